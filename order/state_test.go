package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func limitOrder(side Action, limit float64) *PendingOrder {
	return &PendingOrder{ID: "l", Symbol: "ACME", Action: side, Kind: Limit{LimitPrice: limit}, Shares: 1, RemainingCycles: 5}
}

func TestLimitPredicate(t *testing.T) {
	buy := limitOrder(Buy{}, 100)
	sell := limitOrder(Sell{}, 100)
	for _, p := range []float64{50, 99.99, 100} {
		assert.True(t, Executable(buy, p), "buy at %v", p)
	}
	assert.False(t, Executable(buy, 100.01))
	for _, p := range []float64{100, 100.01, 150} {
		assert.True(t, Executable(sell, p), "sell at %v", p)
	}
	assert.False(t, Executable(sell, 99.99))
}

func TestLimitPredicateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := rapid.Float64Range(0.01, 1000).Draw(t, "price")
		if Executable(limitOrder(Buy{}, 100), price) != (price <= 100) {
			t.Fatalf("buy limit mismatch at %v", price)
		}
		if Executable(limitOrder(Sell{}, 100), price) != (price >= 100) {
			t.Fatalf("sell limit mismatch at %v", price)
		}
	})
}

func TestStopPredicate(t *testing.T) {
	buy := &PendingOrder{Action: Buy{}, Kind: Stop{StopPrice: 110}, RemainingCycles: 3}
	assert.False(t, Executable(buy, 109))
	assert.True(t, Executable(buy, 110))
	stopLoss := &PendingOrder{Action: Sell{}, Kind: Stop{StopPrice: 90}, RemainingCycles: 3}
	assert.False(t, Executable(stopLoss, 91))
	assert.True(t, Executable(stopLoss, 90))
}

func TestStopLimitLatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prices := rapid.SliceOfN(rapid.Float64Range(50, 150), 1, 30).Draw(t, "prices")
		o := &PendingOrder{Action: Buy{}, Kind: StopLimit{StopPrice: 100, LimitPrice: 105}, RemainingCycles: 100}
		triggered := false
		for _, p := range prices {
			if !o.StopTriggered() && CanExecute(o, p) {
				t.Fatalf("untriggered stop-limit executable at %v", p)
			}
			if ShouldTrigger(o, p) {
				Trigger(o)
				triggered = true
				continue
			}
			if triggered {
				if !o.StopTriggered() {
					t.Fatalf("trigger latch reset")
				}
				if CanExecute(o, p) != (p <= 105) {
					t.Fatalf("triggered order not governed by limit at %v", p)
				}
			}
		}
	})
}

func TestFreshOrderNeverExecutes(t *testing.T) {
	o := limitOrder(Buy{}, 100)
	o.Fresh = true
	assert.False(t, Executable(o, 1))
	assert.False(t, ShouldTrigger(&PendingOrder{Action: Buy{}, Kind: StopLimit{StopPrice: 1}, Fresh: true}, 100))
	assert.False(t, Tick(o))
	assert.False(t, o.Fresh)
	assert.Equal(t, 5, o.RemainingCycles)
}

func TestMarketGating(t *testing.T) {
	o := &PendingOrder{Action: Buy{}, Kind: Market{}, RemainingCycles: 3}
	assert.False(t, Executable(o, 10))
	Tick(o)
	assert.False(t, Executable(o, 10))
	Tick(o)
	assert.True(t, Executable(o, 10))
	Tick(o)
	Tick(o)
	assert.Equal(t, 0, o.RemainingCycles)
	assert.True(t, Executable(o, 10))
}

func TestTickNeverLeavesNegativeCounter(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		isMarket := rapid.Bool().Draw(t, "market")
		o := &PendingOrder{Action: Buy{}, RemainingCycles: rapid.IntRange(0, 5).Draw(t, "validity"), Fresh: rapid.Bool().Draw(t, "fresh")}
		if isMarket {
			o.Kind = Market{}
		} else {
			o.Kind = Limit{LimitPrice: 1}
		}
		for i := 0; i < 12; i++ {
			expired := Tick(o)
			if isMarket {
				if expired || o.RemainingCycles < 0 {
					t.Fatalf("market order expired or negative: %d", o.RemainingCycles)
				}
				continue
			}
			if o.RemainingCycles < 0 && !expired {
				t.Fatalf("negative counter without expiry")
			}
			if expired {
				return
			}
		}
	})
}

func TestStateMachineTransitions(t *testing.T) {
	sm := NewStateMachine()
	assert.NoError(t, sm.ValidateTransition(StatusPending, StatusExecuted))
	assert.NoError(t, sm.ValidateTransition(StatusTriggered, StatusExecuted))
	assert.Error(t, sm.ValidateTransition(StatusAwaitingTrigger, StatusExecuted))
	assert.Error(t, sm.ValidateTransition(StatusFresh, StatusExecuted))
	assert.Error(t, sm.ValidateTransition(StatusExpired, StatusPending))
	assert.True(t, sm.IsFinalState(StatusCanceled))
	assert.False(t, sm.IsFinalState(StatusTriggered))
}

func TestUnmetCondition(t *testing.T) {
	r, th := UnmetCondition(&PendingOrder{Kind: StopLimit{StopPrice: 90, LimitPrice: 95}})
	assert.Equal(t, "stop_not_triggered", r)
	assert.Equal(t, 90.0, th)
	r, th = UnmetCondition(&PendingOrder{Kind: StopLimit{StopPrice: 90, LimitPrice: 95, Triggered: true}})
	assert.Equal(t, "limit_not_reached", r)
	assert.Equal(t, 95.0, th)
}
