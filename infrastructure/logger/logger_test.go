package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return FromZap(zap.New(core)), logs
}

func TestLogOrderAddsIdentity(t *testing.T) {
	l, logs := observed()
	l.LogOrder("order_canceled", "o-1", map[string]interface{}{"symbol": "ACME"})
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "order_event", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "o-1", ctx["order_id"])
	assert.Equal(t, "order_canceled", ctx["event"])
	assert.NotContains(t, ctx, "schema_missing")
}

func TestSchemaMissingIsAnnotated(t *testing.T) {
	l, logs := observed()
	fields := map[string]interface{}{"loan_id": "L1"}
	l.LogCredit("loan_originated", fields)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Contains(t, entry.ContextMap()["schema_missing"], "amount")
	assert.Len(t, fields, 1, "caller map must not be mutated")
}

func TestLogErrorAndNop(t *testing.T) {
	l, logs := observed()
	l.LogError(errors.New("boom"), map[string]interface{}{"op": "save"})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])

	var nilLogger *Logger
	nilLogger.LogTrade("trade_failed", nil)
	NewNop().LogTrade("trade_failed", nil)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", Outputs: []string{"stdout"}})
	assert.Error(t, err)
}
