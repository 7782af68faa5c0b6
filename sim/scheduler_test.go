package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRegisterRejectsBadSpec(t *testing.T) {
	s := newSession(t, sandboxConfig(t), loopFeed(100))
	sch := NewScheduler(context.Background(), s, nil)
	assert.Error(t, sch.Register("not a schedule", ""))
	assert.Error(t, sch.Register("@every 1s", "whenever"))
	require.NoError(t, sch.Register("@every 1s", "@every 1m"))
	assert.Len(t, sch.Cron.Entries(), 3, "first failed call registered nothing, second registered the cycle task")
}

func TestSchedulerStepAndSave(t *testing.T) {
	s := newSession(t, sandboxConfig(t), loopFeed(100))
	sch := NewScheduler(context.Background(), s, nil)
	sch.now = func() time.Time { return sessionNow }
	var steps int
	sch.OnStep = func(*Session, StepReport) { steps++ }

	sch.step()
	sch.step()
	sch.save()
	assert.Equal(t, 2, steps)
	assert.Equal(t, 2, s.Engine().Cycle())

	snap, err := s.Store().Load()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.State.Cycle)
	assert.True(t, snap.SavedAt.Equal(sessionNow))
}

func TestSchedulerSkipsStepAfterCancel(t *testing.T) {
	s := newSession(t, sandboxConfig(t), loopFeed(100))
	ctx, cancel := context.WithCancel(context.Background())
	sch := NewScheduler(ctx, s, nil)
	cancel()
	sch.step()
	assert.Zero(t, s.Engine().Cycle())
}

func TestSchedulerRotateAppliesStagedConfig(t *testing.T) {
	cfg := sandboxConfig(t)
	s := newSession(t, cfg, loopFeed(100))
	sch := NewScheduler(context.Background(), s, nil)
	sch.step()

	next := cfg
	next.GameMode = "realistic"
	sch.Stage(next)
	require.NoError(t, sch.Rotate(Options{}))
	t.Cleanup(func() { sch.Session().Close() })

	assert.NotSame(t, s, sch.Session())
	assert.Equal(t, "realistic", sch.Session().Config().GameMode)
	assert.Equal(t, 1, sch.Session().Engine().Cycle())
	assert.Equal(t, 1, sch.Session().Engine().CostParams().OrderDelayCycles)
}
