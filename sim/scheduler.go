package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stocksim-go/config"
	"stocksim-go/infrastructure/logger"
)

// Scheduler 按 cron 计划驱动周期与定期快照，并负责会话切换。
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context

	mu      sync.Mutex
	session *Session
	log     *logger.Logger
	now     func() time.Time

	// OnStep 每个周期完成后回调（例如 systemd watchdog），调用时持有调度锁。
	OnStep func(*Session, StepReport)
}

// NewScheduler creates a scheduler around an existing session.
func NewScheduler(ctx context.Context, s *Session, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		Cron:    cron.New(),
		Ctx:     ctx,
		session: s,
		log:     log,
		now:     time.Now,
	}
}

// Register 注册周期任务；saveSpec 为空时不做定期快照。
func (s *Scheduler) Register(cycleSpec, saveSpec string) error {
	if _, err := s.Cron.AddFunc(cycleSpec, s.step); err != nil {
		return fmt.Errorf("register cycle task: %w", err)
	}
	if saveSpec == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(saveSpec, s.save); err != nil {
		return fmt.Errorf("register save task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop 停止调度并等待正在执行的任务结束。
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Session 当前会话。
func (s *Scheduler) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Stage 把重新加载的配置交给当前会话暂存。
func (s *Scheduler) Stage(cfg config.AppConfig) {
	s.Session().Stage(cfg)
}

// Rotate 以暂存配置开启新会话；周期任务在切换期间不会运行。
func (s *Scheduler) Rotate(opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.session.Next(s.now(), opts)
	if err != nil {
		return err
	}
	s.session = next
	s.log.LogTrade("session_rotated", map[string]interface{}{
		"cycle":    next.Engine().Cycle(),
		"gameMode": next.Config().GameMode,
	})
	return nil
}

func (s *Scheduler) step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Ctx.Err() != nil {
		return
	}
	rep, err := s.session.Runner().Step(s.Ctx)
	if err != nil {
		s.log.LogError(err, map[string]interface{}{"stage": "cycle"})
		return
	}
	if s.OnStep != nil {
		s.OnStep(s.session, rep)
	}
}

func (s *Scheduler) save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.Save(s.now()); err != nil {
		s.log.LogError(err, map[string]interface{}{"stage": "snapshot"})
	}
}
