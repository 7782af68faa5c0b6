package order

import (
	"fmt"
	"math"
)

// SymbolConstraints 描述标的的价格步长与数量/名义限制。
type SymbolConstraints struct {
	TickSize    float64 `yaml:"tickSize"`
	MinShares   int     `yaml:"minShares"`
	MaxShares   int     `yaml:"maxShares"`
	MinNotional float64 `yaml:"minNotional"`
}

// Validate 检查价格精度、股数与最小名义。
func (c SymbolConstraints) Validate(price float64, shares int) error {
	if c.TickSize > 0 && price > 0 && !isMultiple(price, c.TickSize) {
		return fmt.Errorf("price %.4f not aligned to tickSize %.4f", price, c.TickSize)
	}
	if c.MinShares > 0 && shares < c.MinShares {
		return fmt.Errorf("shares %d < minShares %d", shares, c.MinShares)
	}
	if c.MaxShares > 0 && shares > c.MaxShares {
		return fmt.Errorf("shares %d > maxShares %d", shares, c.MaxShares)
	}
	if c.MinNotional > 0 && price > 0 && price*float64(shares) < c.MinNotional {
		return fmt.Errorf("notional %.2f < minNotional %.2f", price*float64(shares), c.MinNotional)
	}
	return nil
}

func isMultiple(value, step float64) bool {
	if step <= 0 {
		return true
	}
	ratio := value / step
	return math.Abs(ratio-math.Round(ratio)) <= 1e-8
}
