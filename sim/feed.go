package sim

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"

	"stocksim-go/config"
	"stocksim-go/cost"
	"stocksim-go/market"
)

// PriceFeed 每个周期提供一组报价。价格如何产生不属于引擎的职责。
type PriceFeed interface {
	Next(ctx context.Context, cycle int) (market.Quotes, error)
}

// ErrFeedExhausted 脚本行情已用完。
var ErrFeedExhausted = errors.New("price feed exhausted")

// RandomWalkFeed 几何随机游走行情，种子固定时可复现。
type RandomWalkFeed struct {
	mu      sync.Mutex
	rng     *rand.Rand
	vol     float64
	drift   float64
	symbols []string
	last    market.Quotes
}

// NewRandomWalkFeed 从配置的初始价格出发。
func NewRandomWalkFeed(cfg config.FeedConfig, symbols []config.SymbolConfig) *RandomWalkFeed {
	f := &RandomWalkFeed{
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		vol:   cfg.Volatility,
		drift: cfg.Drift,
		last:  make(market.Quotes, len(symbols)),
	}
	for _, s := range symbols {
		f.symbols = append(f.symbols, s.Symbol)
		f.last[s.Symbol] = market.Quote{Symbol: s.Symbol, Price: s.Price, MarketCap: s.MarketCap}
	}
	sort.Strings(f.symbols)
	return f
}

// Next 每个标的按 drift + vol·N(0,1) 变动，市值随价格同比例变化，价格下限 0.01。
func (f *RandomWalkFeed) Next(ctx context.Context, cycle int) (market.Quotes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(market.Quotes, len(f.symbols))
	for _, sym := range f.symbols {
		q := f.last[sym]
		step := math.Exp(f.drift + f.vol*f.rng.NormFloat64())
		price := math.Max(0.01, cost.RoundCents(q.Price*step))
		if q.Price > 0 {
			q.MarketCap = q.MarketCap * price / q.Price
		}
		q.Price = price
		f.last[sym] = q
		out[sym] = q
	}
	return out, nil
}

// Current 最近一次报价（尚未调用 Next 时为初始价格）。
func (f *RandomWalkFeed) Current() market.Quotes {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(market.Quotes, len(f.last))
	for k, v := range f.last {
		out[k] = v
	}
	return out
}

// ScriptFeed 按顺序回放预先写好的报价，用于测试和回放。
type ScriptFeed struct {
	mu    sync.Mutex
	steps []market.Quotes
	pos   int
	Loop  bool // 用完后从头开始，否则返回 ErrFeedExhausted
}

func NewScriptFeed(steps ...market.Quotes) *ScriptFeed {
	return &ScriptFeed{steps: steps}
}

func (f *ScriptFeed) Next(ctx context.Context, cycle int) (market.Quotes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.steps) {
		if !f.Loop || len(f.steps) == 0 {
			return nil, ErrFeedExhausted
		}
		f.pos = 0
	}
	q := f.steps[f.pos]
	f.pos++
	return q, nil
}
