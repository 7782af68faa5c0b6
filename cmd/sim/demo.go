package main

import (
	"errors"
	"math"
	"sort"

	"stocksim-go/infrastructure/logger"
	"stocksim-go/internal/engine"
	"stocksim-go/order"
)

// demoScript 在固定周期提交一组演示订单，覆盖各种订单类型与借贷回补。
type demoScript struct {
	fired map[int]bool
}

func newDemoScript() *demoScript {
	return &demoScript{fired: make(map[int]bool)}
}

func (d *demoScript) apply(eng *engine.Engine, log *logger.Logger) {
	cycle := eng.Cycle()
	if d.fired[cycle] {
		return
	}
	d.fired[cycle] = true

	quotes := eng.Quotes()
	symbols := make([]string, 0, len(quotes))
	for sym := range quotes {
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		return
	}
	sort.Strings(symbols)
	first, _ := quotes.Price(symbols[0])
	last := symbols[len(symbols)-1]
	lastPrice, _ := quotes.Price(last)

	var reqs []order.SubmitRequest
	switch cycle {
	case 0:
		reqs = append(reqs,
			order.SubmitRequest{Symbol: symbols[0], Side: order.SideBuy, Kind: order.KindMarket, Shares: 20, Price: first},
			order.SubmitRequest{Symbol: last, Side: order.SideShortSell, Kind: order.KindMarket, Shares: 40, Price: lastPrice},
		)
	case 3:
		reqs = append(reqs, order.SubmitRequest{
			Symbol: symbols[0], Side: order.SideSell, Kind: order.KindLimit,
			Shares: 10, Price: first, LimitPrice: roundUp(first * 1.01),
		})
	case 5:
		reqs = append(reqs, order.SubmitRequest{
			Symbol: symbols[0], Side: order.SideBuy, Kind: order.KindStopBuyLimit,
			Shares: 5, Price: first, StopPrice: roundUp(first * 1.01), LimitPrice: roundUp(first * 1.03),
		})
	case 8:
		shares := eng.Portfolio().ShortShares(last)
		if shares == 0 {
			return
		}
		lr, err := eng.QuoteCoverLoan(last, shares, lastPrice, eng.Loans().Params().MinDurationCycles)
		if err != nil {
			log.LogError(err, map[string]interface{}{"stage": "demo_cover_quote"})
			return
		}
		req := order.SubmitRequest{Symbol: last, Side: order.SideBuyToCover, Kind: order.KindMarket, Shares: shares, Price: lastPrice}
		if lr.Amount > 0 {
			req.Loan = &lr
		}
		reqs = append(reqs, req)
	}

	for _, req := range reqs {
		if _, err := eng.SubmitOrder(req); err != nil && !errors.Is(err, order.ErrSymbolBusy) {
			log.LogError(err, map[string]interface{}{"stage": "demo_submit", "symbol": req.Symbol})
		}
	}
}

func roundUp(v float64) float64 {
	return math.Ceil(v*100) / 100
}
