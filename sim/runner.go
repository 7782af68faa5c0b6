package sim

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"stocksim-go/infrastructure/logger"
	"stocksim-go/internal/engine"
	"stocksim-go/loan"
)

// StepReport 一个完整周期的结果：订单执行 + 贷款台账推进。
type StepReport struct {
	engine.CycleReport
	Loans     loan.CycleResult
	Cash      float64
	Debt      float64
	Score     float64
	Pending   int
	RecordErr error // 成交记录写入失败，周期本身已完成
}

// Runner 将行情->引擎->贷款台账串成一个周期。
type Runner struct {
	Engine *engine.Engine
	Feed   PriceFeed
	Log    *logger.Logger

	// OnStep 每个周期结束后回调（可选），用于推送或落盘。
	OnStep func(StepReport)
}

// Step 执行一个周期。行情获取失败时不推进周期。
func (r *Runner) Step(ctx context.Context) (StepReport, error) {
	if r.Engine == nil || r.Feed == nil {
		return StepReport{}, errors.New("runner not initialized")
	}
	log := r.Log
	if log == nil {
		log = logger.NewNop()
	}

	quotes, err := r.Feed.Next(ctx, r.Engine.Cycle())
	if err != nil {
		return StepReport{}, fmt.Errorf("price feed: %w", err)
	}

	report, recErr := r.Engine.RunCycle(ctx, quotes)
	if recErr != nil {
		log.LogError(recErr, map[string]interface{}{"stage": "record_trade", "cycle": report.Cycle})
	}
	loans := r.Engine.Loans().AdvanceCycle(report.Cycle)
	r.Engine.EndCycle(loans)

	out := StepReport{
		CycleReport: report,
		Loans:       loans,
		Cash:        r.Engine.Portfolio().Cash(),
		Debt:        r.Engine.Loans().Debt(),
		Score:       r.Engine.Loans().Score(),
		Pending:     r.Engine.Book().Len(),
		RecordErr:   recErr,
	}
	log.Info("cycle complete",
		zap.Int("cycle", report.Cycle),
		zap.Int("executed", len(report.Executed)),
		zap.Int("partial", len(report.Partial)),
		zap.Int("expired", len(report.Expired)),
		zap.Int("auto_repaid", len(loans.AutoRepaid)),
		zap.Int("overdue", len(loans.BecameOverdue)),
		zap.Float64("cash", out.Cash),
		zap.Float64("debt", out.Debt),
	)
	if r.OnStep != nil {
		r.OnStep(out)
	}
	return out, nil
}

// Run 连续执行 n 个周期；ctx 取消或行情出错时提前返回已完成的周期。
func (r *Runner) Run(ctx context.Context, n int) ([]StepReport, error) {
	reports := make([]StepReport, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := r.Step(ctx)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
