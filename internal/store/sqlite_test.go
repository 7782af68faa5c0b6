package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksim-go/infrastructure/alert"
	"stocksim-go/internal/engine"
	"stocksim-go/order"
)

func openRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteRecorderRecent(t *testing.T) {
	r := openRecorder(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Record(ctx, engine.TradeRecord{
			ID:        fmt.Sprintf("t%d", i),
			OrderID:   fmt.Sprintf("o%d", i),
			Cycle:     i,
			Symbol:    "ACME",
			Side:      order.SideBuy,
			Kind:      order.KindMarket,
			Shares:    i,
			Price:     100,
			Total:     float64(100 * i),
			Status:    engine.TradeSuccess,
			Timestamp: testNow,
		}))
	}
	require.NoError(t, r.Record(ctx, engine.TradeRecord{
		ID: "t4", OrderID: "o4", ParentID: "o1", Cycle: 4, Symbol: "ACME",
		Side: order.SideBuyToCover, Kind: order.KindLimit, Shares: 5, Price: 90,
		Status: engine.TradeFailed, Reason: engine.ReasonExpired, Message: "expired", Partial: true,
		Timestamp: testNow,
	}))

	recs, err := r.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "t3", recs[0].ID)
	assert.Equal(t, "t4", recs[1].ID)
	assert.Equal(t, 300.0, recs[0].Total)

	last := recs[1]
	assert.Equal(t, "o1", last.ParentID)
	assert.Equal(t, order.SideBuyToCover, last.Side)
	assert.Equal(t, engine.ReasonExpired, last.Reason)
	assert.True(t, last.Partial)
	assert.True(t, last.Timestamp.Equal(testNow))
}

func TestSQLiteRecorderDuplicateID(t *testing.T) {
	r := openRecorder(t)
	rec := engine.TradeRecord{ID: "dup", OrderID: "o", Symbol: "ACME", Side: order.SideBuy, Kind: order.KindMarket, Status: engine.TradeSuccess}
	require.NoError(t, r.Record(context.Background(), rec))
	assert.Error(t, r.Record(context.Background(), rec))
}

func TestSQLiteRecorderAsEngineSink(t *testing.T) {
	r := openRecorder(t)
	e := newEngineWith(t, 100, r, r)

	_, err := e.SubmitOrder(order.SubmitRequest{Symbol: "ACME", Side: order.SideBuy, Kind: order.KindMarket, Shares: 10, Price: 100})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = e.RunCycle(context.Background(), quotes(100))
		require.NoError(t, err)
	}

	recs, err := r.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1, "deduplicated failure recorded once")
	assert.Equal(t, engine.ReasonInsufficientFunds, recs[0].Reason)

	n, err := r.CountNotifications(context.Background(), alert.LevelWarning)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	all, err := r.CountNotifications(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, all)
}
