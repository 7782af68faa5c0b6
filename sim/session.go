package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"stocksim-go/config"
	"stocksim-go/infrastructure/logger"
	"stocksim-go/internal/engine"
	"stocksim-go/internal/store"
)

// Session 一次模拟会话。会话内配置不可变：重新加载的配置先暂存，在 Next 开启新会话时生效。
type Session struct {
	cfg     config.AppConfig
	log     *logger.Logger
	engine  *engine.Engine
	store   *store.Store
	history *store.SQLiteRecorder
	runner  *Runner
	opts    Options // 组装时的可选组件，Next 未指定时沿用

	mu     sync.Mutex
	staged *config.AppConfig
	closed bool
}

func (s *Session) Config() config.AppConfig       { return s.cfg }
func (s *Session) Engine() *engine.Engine         { return s.engine }
func (s *Session) Runner() *Runner                { return s.runner }
func (s *Session) Store() *store.Store            { return s.store }
func (s *Session) History() *store.SQLiteRecorder { return s.history }

// Stage 暂存新配置，当前会话继续使用旧配置。
func (s *Session) Stage(cfg config.AppConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cfg
	s.staged = &c
	s.log.LogTrade("config_staged", map[string]interface{}{"gameMode": cfg.GameMode})
}

// Staged 返回暂存的配置。
func (s *Session) Staged() (config.AppConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return config.AppConfig{}, false
	}
	return *s.staged, true
}

// Save 写快照；未配置快照路径时为 no-op。
func (s *Session) Save(now time.Time) error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveEngine(s.engine, now)
}

// Close 关闭成交记录器。重复调用安全。
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.engine.Close()
}

// Next 保存当前会话，用暂存配置（若有）开启新会话并从快照继续。
// opts 中未指定的 Logger、Monitor、Channels、Feed 沿用当前会话；opts.Restore 被忽略。
// 新会话组装成功后才关闭当前会话，失败时当前会话保持可用。
func (s *Session) Next(now time.Time, opts Options) (*Session, error) {
	cfg, ok := s.Staged()
	if !ok {
		cfg = s.cfg
	}
	if s.store == nil || cfg.Storage.SnapshotPath == "" {
		return nil, errors.New("session handover requires a snapshot path")
	}
	if err := s.Save(now); err != nil {
		return nil, err
	}
	// 新配置可能换了快照路径，把当前状态带过去
	if cfg.Storage.SnapshotPath != s.store.Path() {
		st := store.New(cfg.Storage.SnapshotPath, s.log)
		if err := st.Save(s.engine.Snapshot(), now); err != nil {
			return nil, err
		}
	}
	if opts.Logger == nil {
		opts.Logger = s.log
	}
	if opts.Monitor == nil {
		opts.Monitor = s.opts.Monitor
	}
	if opts.Channels == nil {
		opts.Channels = s.opts.Channels
	}
	if opts.Feed == nil {
		opts.Feed = s.runner.Feed
	}
	opts.Restore = true
	next, err := BuildSession(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("next session: %w", err)
	}
	if err := s.Close(); err != nil {
		s.log.LogError(err, map[string]interface{}{"stage": "close_session"})
	}
	return next, nil
}
