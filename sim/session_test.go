package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksim-go/infrastructure/alert"
	"stocksim-go/infrastructure/monitor"
	"stocksim-go/internal/engine"
	"stocksim-go/order"
)

var sessionNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func loopFeed(price float64) *ScriptFeed {
	f := NewScriptFeed(flat(price))
	f.Loop = true
	return f
}

func TestBuildSessionRejectsInvalidConfig(t *testing.T) {
	cfg := sandboxConfig(t)
	cfg.GameMode = "arcade"
	_, err := BuildSession(cfg, Options{})
	require.Error(t, err)
}

func TestStagedConfigAppliesOnlyOnNext(t *testing.T) {
	cfg := sandboxConfig(t)
	s := newSession(t, cfg, loopFeed(100))
	_, err := s.Engine().SubmitOrder(order.SubmitRequest{Symbol: "ACME", Side: order.SideBuy, Kind: order.KindMarket, Shares: 10, Price: 100})
	require.NoError(t, err)
	_, err = s.Runner().Run(context.Background(), 2)
	require.NoError(t, err)

	next := cfg
	next.GameMode = "hardcore"
	s.Stage(next)

	staged, ok := s.Staged()
	require.True(t, ok)
	assert.Equal(t, "hardcore", staged.GameMode)
	assert.Equal(t, "sandbox", s.Config().GameMode, "running session keeps its config")
	assert.Zero(t, s.Engine().CostParams().FeeFixed)

	// 当前会话继续以旧成本执行
	_, err = s.Engine().SubmitOrder(order.SubmitRequest{Symbol: "ACME", Side: order.SideSell, Kind: order.KindMarket, Shares: 5, Price: 100})
	require.NoError(t, err)
	_, err = s.Runner().Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9500.0, s.Engine().Portfolio().Cash())

	ns, err := s.Next(sessionNow, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { ns.Close() })

	assert.Equal(t, "hardcore", ns.Config().GameMode)
	assert.Equal(t, 5.0, ns.Engine().CostParams().FeeFixed)
	assert.Equal(t, 3, ns.Engine().Cycle())
	assert.Equal(t, 9500.0, ns.Engine().Portfolio().Cash())
	assert.Equal(t, 5, ns.Engine().Portfolio().Shares("ACME"))
	_, ok = ns.Staged()
	assert.False(t, ok)
}

func TestNextMovesStateToNewSnapshotPath(t *testing.T) {
	cfg := sandboxConfig(t)
	s := newSession(t, cfg, loopFeed(100))
	_, err := s.Engine().TakeLoan(500, 20)
	require.NoError(t, err)

	next := cfg
	next.Storage.SnapshotPath = filepath.Join(t.TempDir(), "moved", "session.json")
	s.Stage(next)
	ns, err := s.Next(sessionNow, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { ns.Close() })

	assert.Equal(t, next.Storage.SnapshotPath, ns.Store().Path())
	assert.Equal(t, 1, ns.Engine().Loans().Count())
}

func TestBuildSessionRestoresSnapshot(t *testing.T) {
	cfg := sandboxConfig(t)
	s := newSession(t, cfg, loopFeed(100))
	_, err := s.Engine().SubmitOrder(order.SubmitRequest{
		Symbol: "ACME", Side: order.SideBuy, Kind: order.KindLimit, Shares: 3, Price: 100, LimitPrice: 90,
	})
	require.NoError(t, err)
	_, err = s.Runner().Step(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Save(sessionNow))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	restored, err := BuildSession(cfg, Options{Feed: loopFeed(90), Restore: true})
	require.NoError(t, err)
	defer restored.Close()
	assert.Equal(t, 1, restored.Engine().Cycle())
	require.Equal(t, 1, restored.Engine().Book().Len())

	rep, err := restored.Runner().Step(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Executed, 1, "limit reached after restore")
	assert.Equal(t, 10000.0-270, restored.Engine().Portfolio().Cash())
}

func TestSessionWithHistoryDB(t *testing.T) {
	cfg := sandboxConfig(t)
	cfg.Storage.HistoryDB = filepath.Join(t.TempDir(), "db", "history.db")
	mock := alert.NewMockChannel("mock")
	s, err := BuildSession(cfg, Options{Feed: loopFeed(100), Channels: []alert.Channel{mock}})
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.History())

	_, err = s.Engine().SubmitOrder(order.SubmitRequest{Symbol: "ACME", Side: order.SideBuy, Kind: order.KindMarket, Shares: 1000, Price: 100})
	require.NoError(t, err)
	_, err = s.Runner().Step(context.Background())
	require.NoError(t, err)

	recs, err := s.History().Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, engine.TradeFailed, recs[0].Status)
	assert.Equal(t, 1, mock.CountLevel(alert.LevelWarning))

	n, err := s.History().CountNotifications(context.Background(), alert.LevelWarning)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNextWithoutSnapshotPath(t *testing.T) {
	cfg := sandboxConfig(t)
	cfg.Storage.SnapshotPath = ""
	s := newSession(t, cfg, loopFeed(100))
	assert.NoError(t, s.Save(sessionNow))
	_, err := s.Next(sessionNow, Options{})
	assert.Error(t, err)
}

func TestNextKeepsChannelsAndMonitor(t *testing.T) {
	cfg := sandboxConfig(t)
	mock := alert.NewMockChannel("mock")
	mon := monitor.New(monitor.DefaultConfig())
	s, err := BuildSession(cfg, Options{Feed: loopFeed(100), Channels: []alert.Channel{mock}, Monitor: mon})
	require.NoError(t, err)

	ns, err := s.Next(sessionNow, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { ns.Close() })
	assert.Equal(t, []string{"mock"}, ns.Engine().Alerts().GetChannels())

	_, err = ns.Engine().SubmitOrder(order.SubmitRequest{Symbol: "ACME", Side: order.SideBuy, Kind: order.KindMarket, Shares: 1000, Price: 100})
	require.NoError(t, err)
	_, err = ns.Runner().Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mock.CountLevel(alert.LevelWarning))

	mfs, err := mon.Registry().Gather()
	require.NoError(t, err)
	var submitted float64
	for _, mf := range mfs {
		if mf.GetName() == "stocksim_engine_orders_submitted_total" {
			submitted = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, submitted, "new session reports to the same registry")
}

func TestNextFailureKeepsCurrentSession(t *testing.T) {
	cfg := sandboxConfig(t)
	cfg.Storage.HistoryDB = filepath.Join(t.TempDir(), "history.db")
	s := newSession(t, cfg, loopFeed(100))

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	next := cfg
	next.Storage.HistoryDB = filepath.Join(blocker, "history.db")
	s.Stage(next)

	sch := NewScheduler(context.Background(), s, nil)
	sch.now = func() time.Time { return sessionNow }
	require.Error(t, sch.Rotate(Options{}))
	assert.Same(t, s, sch.Session())

	_, err := s.Engine().SubmitOrder(order.SubmitRequest{Symbol: "ACME", Side: order.SideBuy, Kind: order.KindMarket, Shares: 1, Price: 100})
	require.NoError(t, err)
	rep, err := s.Runner().Step(context.Background())
	require.NoError(t, err)
	assert.NoError(t, rep.RecordErr)

	recs, err := s.History().Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestBuildSessionInstallsSymbolConstraints(t *testing.T) {
	cfg := sandboxConfig(t)
	cfg.Symbols[0].Constraints = order.SymbolConstraints{TickSize: 0.05, MinShares: 10}
	s := newSession(t, cfg, loopFeed(100))

	_, err := s.Engine().SubmitOrder(order.SubmitRequest{Symbol: "ACME", Side: order.SideBuy, Kind: order.KindMarket, Shares: 5, Price: 100})
	assert.ErrorIs(t, err, order.ErrInvalidOrder)
	_, err = s.Engine().SubmitOrder(order.SubmitRequest{
		Symbol: "ACME", Side: order.SideBuy, Kind: order.KindLimit, Shares: 10, Price: 100, LimitPrice: 99.99,
	})
	assert.ErrorIs(t, err, order.ErrInvalidOrder)
	_, err = s.Engine().SubmitOrder(order.SubmitRequest{
		Symbol: "ACME", Side: order.SideBuy, Kind: order.KindLimit, Shares: 10, Price: 100, LimitPrice: 99.95,
	})
	assert.NoError(t, err)
}
