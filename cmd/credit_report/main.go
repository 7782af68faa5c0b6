package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"stocksim-go/config"
	"stocksim-go/internal/engine"
	"stocksim-go/internal/store"
	"stocksim-go/order"
	"stocksim-go/sim"
)

type stats struct {
	trades       int
	failed       int
	buyNotional  float64
	sellNotional float64
	fees         float64
	realizedPnL  float64
	reasons      map[engine.FailReason]int
}

func (s *stats) add(rec engine.TradeRecord) {
	if rec.Status != engine.TradeSuccess {
		s.failed++
		s.reasons[rec.Reason]++
		return
	}
	s.trades++
	s.fees += rec.Fee
	s.realizedPnL += rec.PnL
	switch rec.Side {
	case order.SideBuy, order.SideBuyToCover:
		s.buyNotional += rec.Total
	default:
		s.sellNotional += rec.Total
	}
}

// 离线信用报告：读取快照与 SQLite 成交历史，输出额度、贷款与信用记录。
func main() {
	cfgPath := flag.String("config", "", "配置文件路径（为空使用内置默认配置）")
	snapshot := flag.String("snapshot", "", "快照路径（默认取配置）")
	dbPath := flag.String("db", "", "成交历史数据库（默认取配置）")
	symbol := flag.String("symbol", "", "仅统计指定标的 (默认全量)")
	limit := flag.Int("limit", 200, "读取最近多少条成交记录")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.LoadWithEnvOverrides(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
			os.Exit(1)
		}
	}
	if *snapshot != "" {
		cfg.Storage.SnapshotPath = *snapshot
	}
	history := cfg.Storage.HistoryDB
	if *dbPath != "" {
		history = *dbPath
	}
	// 报告只读：不向历史库写入
	cfg.Storage.HistoryDB = ""
	cfg.Alerts.LogChannel = false

	if _, err := store.New(cfg.Storage.SnapshotPath, nil).Load(); err != nil {
		fmt.Fprintf(os.Stderr, "读取快照失败: %v\n", err)
		os.Exit(1)
	}
	s, err := sim.BuildSession(cfg, sim.Options{Restore: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "恢复会话失败: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()
	printCredit(s.Engine())

	if history == "" {
		return
	}
	if _, err := os.Stat(history); err != nil {
		fmt.Fprintf(os.Stderr, "无法读取成交历史: %v\n", err)
		os.Exit(1)
	}
	rec, err := store.NewSQLiteRecorder(history)
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开成交历史失败: %v\n", err)
		os.Exit(1)
	}
	defer rec.Close()
	recs, err := rec.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询成交历史失败: %v\n", err)
		os.Exit(1)
	}
	st := stats{reasons: make(map[engine.FailReason]int)}
	for _, r := range recs {
		if *symbol != "" && r.Symbol != *symbol {
			continue
		}
		st.add(r)
	}
	fmt.Printf("\n成交历史: %s (最近 %d 条)\n", history, len(recs))
	if *symbol != "" {
		fmt.Printf("标的: %s\n", *symbol)
	}
	fmt.Printf("成交笔数: %d  失败/过期: %d\n", st.trades, st.failed)
	fmt.Printf("买入金额: %.2f  卖出金额: %.2f  手续费: %.2f\n", st.buyNotional, st.sellNotional, st.fees)
	fmt.Printf("已实现盈亏: %.2f\n", st.realizedPnL)
	reasons := make([]string, 0, len(st.reasons))
	for r := range st.reasons {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("  %-20s %d\n", r, st.reasons[engine.FailReason(r)])
	}
}

func printCredit(eng *engine.Engine) {
	ev := eng.CreditEvaluation()
	risk := eng.RiskProfile()
	fmt.Printf("周期: %d  现金: %.2f  已实现盈亏: %.2f\n", eng.Cycle(), eng.Portfolio().Cash(), eng.Portfolio().RealizedPnL())
	fmt.Printf("抵押品: 基础 %.2f + 大盘 %.2f + 小盘 %.2f = %.2f\n",
		ev.Collateral.Base, ev.Collateral.LargeCap, ev.Collateral.SmallCap, ev.Collateral.Total)
	fmt.Printf("推荐额度: %.2f  最高额度: %.2f  已用: %.2f  待执行: %.2f  可用: %.2f  使用率: %.1f%%\n",
		ev.Recommended, ev.Maximum, ev.Debt, ev.Pending, ev.Available, ev.Utilization*100)
	fmt.Printf("风险画像: %.2f (%d 笔成交)\n", risk.Score, risk.Trades)

	loans := eng.Loans().Loans()
	fmt.Printf("\n贷款 %d 笔，余额合计 %.2f\n", len(loans), eng.Loans().Debt())
	for _, ln := range loans {
		state := "正常"
		if ln.Overdue {
			state = fmt.Sprintf("逾期 %d 周期", ln.OverdueCycles)
		}
		fmt.Printf("  #%-3d %-12s 本金 %10.2f 余额 %10.2f 利率 %.2f%% 剩余 %3d 周期 %s\n",
			ln.Number, ln.Source, ln.Principal, ln.Balance, ln.Rate*100, ln.RemainingCycles, state)
	}

	profile := eng.Loans().Profile()
	fmt.Printf("\n信用评分: %.1f\n", profile.Score)
	for _, h := range profile.History {
		fmt.Printf("  周期 %-4d %-18s %+6.1f -> %.1f\n", h.Cycle, h.Kind, h.Delta, h.ScoreAfter)
	}
	for _, d := range profile.Delinquencies {
		end := "未解决"
		if !d.Open() {
			end = d.ResolvedAt.Format(time.RFC3339)
		}
		fmt.Printf("  逾期记录 %s 起始周期 %d 最长 %d 周期 %s\n", d.LoanID, d.StartCycle, d.MaxOverdueCycles, end)
	}
}
