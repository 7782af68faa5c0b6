package credit

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"stocksim-go/market"
)

var collateralParams = CollateralParams{
	BaseCollateralRate:  0.25,
	LargeCapThreshold:   1e11,
	LargeCapCoef:        0.7,
	SmallCapCoef:        0.5,
	CreditLineStep:      1000,
	MaxCreditMultiplier: 2.5,
}

var interestParams = InterestParams{
	BaseRate:               0.03,
	MinRate:                0.01,
	MaxRiskAdjustment:      0.01,
	MinTradesForFullEffect: 10,
	LossThreshold:          -1000,
	LossPenaltyPer1000:     0.005,
	MaxLossPenalty:         0.02,
	UtilizationTiers: []UtilizationTier{
		{Threshold: 0.5, Surcharge: 0.005},
		{Threshold: 0.75, Surcharge: 0.01},
		{Threshold: 1.0, Surcharge: 0.02},
	},
	ExtraLoanPenalty:        0.005,
	DurationStepCycles:      10,
	DurationDiscountPerStep: 0.0025,
	MaxDurationDiscount:     0.01,
}

var scoreParams = ScoreParams{
	Min: 0, Max: 100, Default: 50,
	EarlyRepayment: 3, OnTimeRepayment: 2, AutoRepaid: 1,
	OverduePenalty: 2, ProgressiveThreshold: 5, MaxPenaltyMultiplier: 5,
}

func TestEvaluateCollateralExample(t *testing.T) {
	quotes := market.Quotes{
		"MEGA":  {Symbol: "MEGA", Price: 200, MarketCap: 5e11},
		"SMALL": {Symbol: "SMALL", Price: 50, MarketCap: 2e9},
	}
	ev := collateralParams.Evaluate(Inputs{
		Cash:     1_000_000,
		Holdings: []Holding{{Symbol: "MEGA", Shares: 10}, {Symbol: "SMALL", Shares: 20}},
		Quotes:   quotes,
	})
	assert.Equal(t, 1400.0, ev.Collateral.LargeCap)
	assert.Equal(t, 500.0, ev.Collateral.SmallCap)
	assert.Equal(t, 1900.0, ev.Collateral.Total)
	assert.Equal(t, 1000.0, ev.Recommended)
	assert.Equal(t, 2500.0, ev.Maximum)
	assert.Equal(t, 2500.0, ev.Available)
}

func TestEvaluateEmptyIsZero(t *testing.T) {
	ev := collateralParams.Evaluate(Inputs{Cash: 50_000})
	assert.Zero(t, ev.Maximum)
	assert.Zero(t, ev.Available)
	assert.Zero(t, ev.Utilization)
}

func TestEvaluateSubtractsDebtAndPending(t *testing.T) {
	ev := collateralParams.Evaluate(Inputs{
		InitialCapital: 10_000, // base = 2500 -> recommended 2000 -> max 5000
		Debt:           1000,
		PendingLoans:   1500,
	})
	require.Equal(t, 5000.0, ev.Maximum)
	assert.InDelta(t, 0.5, ev.Utilization, 1e-12)
	assert.Equal(t, 2500.0, ev.Available)

	over := collateralParams.Evaluate(Inputs{InitialCapital: 10_000, Debt: 6000})
	assert.Zero(t, over.Available)
}

func TestCreditLineRoundingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		shares := rapid.IntRange(0, 10_000).Draw(t, "shares")
		price := float64(rapid.IntRange(1, 100_000).Draw(t, "cents")) / 100
		large := rapid.Bool().Draw(t, "large")
		mcap := 1e9
		if large {
			mcap = 1e12
		}
		quotes := market.Quotes{"X": {Symbol: "X", Price: price, MarketCap: mcap}}
		ev := collateralParams.Evaluate(Inputs{Holdings: []Holding{{Symbol: "X", Shares: shares}}, Quotes: quotes})
		want := math.Floor(ev.Collateral.Total/1000) * 1000
		if ev.Recommended != want {
			t.Fatalf("recommended %.2f, want %.2f (collateral %.2f)", ev.Recommended, want, ev.Collateral.Total)
		}
		if ev.Maximum != ev.Recommended*2.5 {
			t.Fatalf("maximum %.2f != recommended*2.5", ev.Maximum)
		}
	})
}

func TestInterestComponents(t *testing.T) {
	base := RateInputs{MinDuration: 10, DurationCycles: 10, ConcurrentLoans: 1}
	assert.InDelta(t, 0.03, interestParams.Rate(base), 1e-12)

	tests := []struct {
		name string
		mod  func(in *RateInputs)
		want float64
	}{
		{"零成交不调整", func(in *RateInputs) { in.Risk = RiskProfile{Score: 1, Trades: 0} }, 0.03},
		{"激进满权重", func(in *RateInputs) { in.Risk = RiskProfile{Score: 1, Trades: 20} }, 0.04},
		{"保守半权重", func(in *RateInputs) { in.Risk = RiskProfile{Score: -1, Trades: 5} }, 0.025},
		{"亏损未过阈值", func(in *RateInputs) { in.RealizedPnL = -1000 }, 0.03},
		{"亏损超阈值", func(in *RateInputs) { in.RealizedPnL = -3000 }, 0.04},
		{"亏损封顶", func(in *RateInputs) { in.RealizedPnL = -100000 }, 0.05},
		{"使用率 60%", func(in *RateInputs) { in.Utilization = 0.6 }, 0.035},
		{"使用率 80%", func(in *RateInputs) { in.Utilization = 0.8 }, 0.04},
		{"使用率 120% 只取最高档", func(in *RateInputs) { in.Utilization = 1.2 }, 0.05},
		{"三笔并存贷款", func(in *RateInputs) { in.ConcurrentLoans = 3 }, 0.04},
		{"期限 +25 周期", func(in *RateInputs) { in.DurationCycles = 35 }, 0.025},
		{"期限折扣封顶", func(in *RateInputs) { in.DurationCycles = 500 }, 0.02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mod(&in)
			assert.InDelta(t, tt.want, interestParams.Rate(in), 1e-12)
		})
	}
}

func TestInterestFloorsAtMinRate(t *testing.T) {
	in := RateInputs{
		Risk:           RiskProfile{Score: -1, Trades: 100},
		DurationCycles: 1000,
		MinDuration:    10,
	}
	p := interestParams
	p.BaseRate = 0.005
	q := p.Quote(in)
	assert.Less(t, q.Base+q.RiskAdjustment+q.DurationDiscount, p.MinRate)
	assert.Equal(t, p.MinRate, q.Effective)
}

func TestDeriveRiskProfile(t *testing.T) {
	assert.Equal(t, RiskProfile{}, DeriveRiskProfile(0, 0))
	assert.Equal(t, RiskProfile{Score: -1, Trades: 4}, DeriveRiskProfile(4, 0))
	assert.Equal(t, RiskProfile{Score: 1, Trades: 4}, DeriveRiskProfile(4, 9))
	assert.InDelta(t, 0.0, DeriveRiskProfile(4, 2).Score, 1e-12)
}

func TestProgressiveOverduePenalty(t *testing.T) {
	one := scoreParams.CumulativeOverduePenalty(40)
	three := 3 * scoreParams.CumulativeOverduePenalty(2)
	assert.Greater(t, one, three)

	assert.Equal(t, 2.0, scoreParams.OverduePenaltyAt(5))
	assert.Equal(t, 4.0, scoreParams.OverduePenaltyAt(6))
	assert.Equal(t, 10.0, scoreParams.OverduePenaltyAt(200))
}

func TestProfileRecordClampsScore(t *testing.T) {
	pr := NewProfile(scoreParams)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pr.Record(scoreParams, EventOverduePenalty, "L1", -80, 3, at)
	assert.Equal(t, 0.0, pr.Score)
	pr.Record(scoreParams, EventEarlyRepayment, "L1", 500, 4, at)
	assert.Equal(t, 100.0, pr.Score)
	require.Len(t, pr.History, 2)
	assert.Equal(t, 100.0, pr.History[1].ScoreAfter)
}

func TestDelinquencyLifecycle(t *testing.T) {
	pr := NewProfile(scoreParams)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pr.OpenDelinquency("L1", 10, at)
	pr.OpenDelinquency("L1", 11, at) // 重复开启返回同一条
	pr.ObserveOverdue("L1", 3)
	pr.ObserveOverdue("L1", 2)
	require.Len(t, pr.Delinquencies, 1)
	assert.Equal(t, 3, pr.Delinquencies[0].MaxOverdueCycles)
	assert.Equal(t, 1, pr.OpenDelinquencies())

	assert.True(t, pr.ResolveDelinquency("L1", 14, at.Add(time.Hour)))
	assert.False(t, pr.ResolveDelinquency("L1", 15, at))
	assert.Equal(t, 0, pr.OpenDelinquencies())
	assert.Equal(t, 14, pr.Delinquencies[0].ResolvedCycle)
}
