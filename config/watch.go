package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"stocksim-go/infrastructure/logger"
)

// Watcher 监听配置文件变化，重新加载并校验后回调。
// 监听所在目录而非文件本身，编辑器的原子替换（rename）也能被捕获。
type Watcher struct {
	path     string
	cooldown time.Duration
	log      *logger.Logger
	fsw      *fsnotify.Watcher

	mu         sync.Mutex
	lastReload time.Time
	stopOnce   sync.Once
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewWatcher 创建监听器；cooldown 内的重复事件被合并。
func NewWatcher(path string, cooldown time.Duration, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		cooldown: cooldown,
		log:      log,
		fsw:      fsw,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 开始监听；onUpdate 只会收到通过校验的配置。
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}
	go w.loop(ctx, onUpdate)
	return nil
}

// Stop 停止监听并释放 fsnotify 资源。
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	select {
	case <-w.doneChan:
	case <-time.After(time.Second):
		// loop 未启动
	}
	return w.fsw.Close()
}

// LastReload 最近一次成功重载的时间。
func (w *Watcher) LastReload() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReload
}

func (w *Watcher) loop(ctx context.Context, onUpdate func(AppConfig)) {
	defer close(w.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.reload(onUpdate)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(onUpdate func(AppConfig)) {
	w.mu.Lock()
	if !w.lastReload.IsZero() && time.Since(w.lastReload) < w.cooldown {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		// 写入过程中可能读到半个文件，等待下一次事件
		w.log.Warn("config reload rejected", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.lastReload = time.Now()
	w.mu.Unlock()
	w.log.Info("config reloaded", zap.String("path", w.path), zap.String("gameMode", cfg.GameMode))
	if onUpdate != nil {
		onUpdate(cfg)
	}
}
