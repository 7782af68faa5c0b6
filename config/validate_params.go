package config

import (
	"github.com/robfig/cron/v3"

	"stocksim-go/cost"
)

func validateCost(mode string, p cost.Params) error {
	if p.SpreadPct < 0 || p.SlippageCoef < 0 || p.FeeFixed < 0 || p.FeePct < 0 {
		return invalidf("modes.%s cost params must be >= 0", mode)
	}
	if p.OrderDelayCycles < 0 {
		return invalidf("modes.%s.orderDelayCycles must be >= 0", mode)
	}
	return nil
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

func validateCredit(cfg AppConfig) error {
	c := cfg.Credit
	if !unit(c.BaseCollateralRate) || !unit(c.LargeCapCoef) || !unit(c.SmallCapCoef) {
		return ErrInvalid("credit coefficients must be within [0,1]")
	}
	if c.LargeCapThreshold < 0 {
		return ErrInvalid("credit.largeCapThreshold must be >= 0")
	}
	if c.CreditLineStep <= 0 {
		return ErrInvalid("credit.creditLineStep must be > 0")
	}
	if c.MaxCreditMultiplier < 1 {
		return ErrInvalid("credit.maxCreditMultiplier must be >= 1")
	}
	return nil
}

func validateInterest(cfg AppConfig) error {
	p := cfg.Interest
	if p.BaseRate < 0 || p.MinRate < 0 {
		return ErrInvalid("interest rates must be >= 0")
	}
	if p.MinRate > p.BaseRate {
		return ErrInvalid("interest.minRate must be <= baseRate")
	}
	if p.MaxRiskAdjustment < 0 || p.LossPenaltyPer1000 < 0 || p.MaxLossPenalty < 0 || p.ExtraLoanPenalty < 0 {
		return ErrInvalid("interest adjustments must be >= 0")
	}
	if p.MinTradesForFullEffect < 0 || p.DurationStepCycles < 0 {
		return ErrInvalid("interest cycle counts must be >= 0")
	}
	if p.DurationDiscountPerStep < 0 || p.MaxDurationDiscount < 0 {
		return ErrInvalid("interest duration discounts must be >= 0")
	}
	prev := 0.0
	for i, tier := range p.UtilizationTiers {
		if tier.Threshold <= prev && i > 0 {
			return invalidf("interest.utilizationTiers must be ascending (tier %d)", i)
		}
		if tier.Threshold <= 0 || tier.Surcharge < 0 {
			return invalidf("interest.utilizationTiers[%d] invalid", i)
		}
		prev = tier.Threshold
	}
	return nil
}

func validateLoan(cfg AppConfig) error {
	p := cfg.Loan
	if p.MaxConcurrentLoans <= 0 {
		return ErrInvalid("loan.maxConcurrentLoans must be > 0")
	}
	if p.MinDurationCycles <= 0 || p.MinDurationCycles > p.MaxDurationCycles {
		return ErrInvalid("loan duration bounds invalid: need 0 < minDurationCycles <= maxDurationCycles")
	}
	if p.OriginationFeePct < 0 || p.OriginationFeePct >= 1 {
		return ErrInvalid("loan.originationFeePct must be within [0,1)")
	}
	if p.InterestIntervalCycles <= 0 {
		return ErrInvalid("loan.interestIntervalCycles must be > 0")
	}
	if p.DueWarningCycles < 0 {
		return ErrInvalid("loan.dueWarningCycles must be >= 0")
	}
	return nil
}

func validateScore(cfg AppConfig) error {
	s := cfg.Score
	if s.Min > s.Max {
		return ErrInvalid("score.min must be <= score.max")
	}
	if s.Default < s.Min || s.Default > s.Max {
		return ErrInvalid("score.default must be within [min,max]")
	}
	if cfg.Loan.MinCreditScore > s.Max {
		return ErrInvalid("loan.minCreditScore exceeds score.max")
	}
	if s.OverduePenalty < 0 || s.ProgressiveThreshold < 0 || s.MaxPenaltyMultiplier < 0 {
		return ErrInvalid("score penalties must be >= 0")
	}
	return nil
}

func validateOrders(cfg AppConfig) error {
	if cfg.Orders.DefaultValidityCycles <= 0 {
		return ErrInvalid("orders.defaultValidityCycles must be > 0")
	}
	if cfg.Orders.ShortCollateralRatio < 1 {
		return ErrInvalid("orders.shortCollateralRatio must be >= 1")
	}
	return nil
}

func validateSession(cfg AppConfig) error {
	s := cfg.Session
	if s.InitialCash < 0 {
		return ErrInvalid("session.initialCash must be >= 0")
	}
	if s.HistoryLimit < 0 {
		return ErrInvalid("session.historyLimit must be >= 0")
	}
	for name, spec := range map[string]string{"cycleSchedule": s.CycleSchedule, "saveSchedule": s.SaveSchedule} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return invalidf("session.%s: %v", name, err)
		}
	}
	return nil
}

func validateSymbols(cfg AppConfig) error {
	seen := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if s.Symbol == "" {
			return ErrInvalid("symbols: symbol is required")
		}
		if seen[s.Symbol] {
			return invalidf("symbols: duplicate %s", s.Symbol)
		}
		seen[s.Symbol] = true
		if s.Price <= 0 || s.MarketCap < 0 {
			return invalidf("symbol %s price must be > 0 and marketCap >= 0", s.Symbol)
		}
		c := s.Constraints
		if c.TickSize < 0 || c.MinShares < 0 || c.MaxShares < 0 || c.MinNotional < 0 {
			return invalidf("symbol %s constraints must be non-negative", s.Symbol)
		}
		if c.MaxShares > 0 && c.MinShares > c.MaxShares {
			return invalidf("symbol %s minShares %d > maxShares %d", s.Symbol, c.MinShares, c.MaxShares)
		}
	}
	if cfg.Feed.Volatility < 0 {
		return ErrInvalid("feed.volatility must be >= 0")
	}
	return nil
}
