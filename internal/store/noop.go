package store

import (
	"context"

	"stocksim-go/internal/engine"
)

// NoopRecorder 未配置 SQLite 时使用。
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Record(context.Context, engine.TradeRecord) error { return nil }
func (n *NoopRecorder) Close() error                                    { return nil }
