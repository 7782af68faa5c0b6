// Package store 负责会话存档（JSON 快照）与成交历史落盘（SQLite）。
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"stocksim-go/infrastructure/logger"
	"stocksim-go/internal/engine"
)

// SnapshotVersion 当前存档格式版本。
const SnapshotVersion = 1

// ErrNoSnapshot 存档文件不存在。
var ErrNoSnapshot = errors.New("snapshot not found")

// Snapshot 存档文件内容。
type Snapshot struct {
	Version int          `json:"version"`
	SavedAt time.Time    `json:"savedAt"`
	State   engine.State `json:"state"`
}

// Store 读写单个存档文件。
type Store struct {
	path string
	log  *logger.Logger
}

func New(path string, log *logger.Logger) *Store {
	return &Store{path: path, log: log}
}

// Path 存档路径
func (s *Store) Path() string { return s.path }

// Save 原子写入：先写同目录临时文件，fsync 后 rename 覆盖。
func (s *Store) Save(st engine.State, now time.Time) error {
	snap := Snapshot{Version: SnapshotVersion, SavedAt: now.UTC(), State: st}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // rename 成功后为空操作

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	if s.log != nil {
		s.log.Info("snapshot saved",
			zap.String("path", s.path),
			zap.Int("cycle", st.Cycle),
			zap.Int("orders", len(st.Orders)),
			zap.Int("loans", len(st.Loans.Loans)),
		)
	}
	return nil
}

// Load 读取存档。文件不存在时返回 ErrNoSnapshot。
func (s *Store) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version > SnapshotVersion {
		return Snapshot{}, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, SnapshotVersion)
	}
	return snap, nil
}

// SaveEngine 保存引擎当前状态。
func (s *Store) SaveEngine(e *engine.Engine, now time.Time) error {
	return s.Save(e.Snapshot(), now)
}

// RestoreEngine 读取存档并恢复到引擎；没有存档时返回 false。
func (s *Store) RestoreEngine(e *engine.Engine) (bool, error) {
	snap, err := s.Load()
	if errors.Is(err, ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := e.Restore(snap.State); err != nil {
		return false, err
	}
	return true, nil
}
