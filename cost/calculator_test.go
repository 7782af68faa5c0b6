package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var testParams = Params{SpreadPct: 0.002, SlippageCoef: 0.0001, FeeFixed: 1, FeePct: 0.001}

func TestCalculateBuyAddsSpreadSlippageAndFee(t *testing.T) {
	b := Calculate(100, 10, Buy, testParams)
	// 100 * (1 + 0.001 + 0.001) = 100.2
	assert.InDelta(t, 100.2, b.EffectivePrice, 1e-9)
	assert.InDelta(t, 1002, b.Subtotal, 1e-9)
	assert.InDelta(t, 1.0, b.SpreadCost, 1e-9)
	assert.InDelta(t, 1.0, b.SlippageCost, 1e-9)
	assert.InDelta(t, 1+1.002, b.Fee, 0.005)
	assert.InDelta(t, 1004.0, b.Total, 0.005)
}

func TestCalculateSellDeductsCosts(t *testing.T) {
	b := Calculate(100, 10, Sell, testParams)
	assert.InDelta(t, 99.8, b.EffectivePrice, 1e-9)
	assert.InDelta(t, 998, b.Subtotal, 1e-9)
	assert.InDelta(t, 998-1-0.998, b.Total, 0.005)
}

func TestCalculateZeroInputs(t *testing.T) {
	assert.Equal(t, Breakdown{}, Calculate(0, 10, Buy, testParams))
	assert.Equal(t, Breakdown{}, Calculate(100, 0, Sell, testParams))
}

func TestCalculateFreeMode(t *testing.T) {
	b := Calculate(100, 5, Buy, Params{})
	if b.Total != 500 {
		t.Fatalf("expected 500, got %.2f", b.Total)
	}
}

func TestPerSharePriceMonotonicInQuantity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := rapid.Float64Range(0.5, 5000).Draw(t, "price")
		q := rapid.IntRange(1, 5000).Draw(t, "qty")
		small := Calculate(price, q, Buy, testParams)
		large := Calculate(price, q+1, Buy, testParams)
		if large.EffectivePrice < small.EffectivePrice {
			t.Fatalf("per-share price decreased: %v -> %v", small.EffectivePrice, large.EffectivePrice)
		}
		if large.Total < small.Total {
			t.Fatalf("total decreased: %v -> %v", small.Total, large.Total)
		}
	})
}

func TestMaxAffordableShares(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := rapid.Float64Range(1, 1000).Draw(t, "price")
		budget := rapid.Float64Range(0, 100000).Draw(t, "budget")
		n := MaxAffordableShares(budget, price, testParams, 0)
		if n > 0 && Calculate(price, n, Buy, testParams).Total > budget+1e-9 {
			t.Fatalf("%d shares not affordable with %.2f", n, budget)
		}
		if Calculate(price, n+1, Buy, testParams).Total <= budget {
			t.Fatalf("%d+1 shares still affordable with %.2f", n, budget)
		}
	})
}

func TestMaxAffordableSharesRespectsLimit(t *testing.T) {
	assert.Equal(t, 3, MaxAffordableShares(1e6, 10, Params{}, 3))
	assert.Equal(t, 0, MaxAffordableShares(5, 10, Params{}, 3))
}

func TestMoneyHelpers(t *testing.T) {
	assert.Equal(t, 10.13, RoundCents(10.125))
	assert.Equal(t, 10.13, CeilCents(10.121))
	assert.Equal(t, 10.12, CeilCents(10.12))
	assert.Equal(t, 1000.0, FloorToStep(1900, 1000))
	assert.Equal(t, 0.0, FloorToStep(999.99, 1000))
}
