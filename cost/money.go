package cost

import "github.com/shopspring/decimal"

// RoundCents 金额四舍五入到分。
func RoundCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// CeilCents 金额向上取整到分，用于贷款额度确保足额覆盖缺口。
func CeilCents(v float64) float64 {
	d := decimal.NewFromFloat(v).Round(6).Mul(decimal.NewFromInt(100)).Ceil().Div(decimal.NewFromInt(100))
	f, _ := d.Float64()
	return f
}

// FloorToStep 向下取整到 step 的整数倍（如信用额度按 $1,000 取整）。
func FloorToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	s := decimal.NewFromFloat(step)
	f, _ := decimal.NewFromFloat(v).Div(s).Floor().Mul(s).Float64()
	return f
}
