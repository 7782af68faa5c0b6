package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeTempConfig(t, "env: dev\n")
	w, err := NewWatcher(path, 0, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 4)
	if err := w.Start(ctx, func(cfg AppConfig) { ch <- cfg }); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(path, []byte("env: dev\ngameMode: hardcore\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case cfg := <-ch:
			done = cfg.GameMode == "hardcore"
		case <-deadline:
			t.Fatalf("expected update callback")
		}
	}
	if w.LastReload().IsZero() {
		t.Fatalf("last reload not recorded")
	}
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, "env: dev\n")
	w, err := NewWatcher(path, 0, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 4)
	if err := w.Start(ctx, func(cfg AppConfig) { ch <- cfg }); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := os.WriteFile(path, []byte("env: dev\ngameMode: arcade\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	select {
	case cfg := <-ch:
		t.Fatalf("invalid config delivered: %+v", cfg.GameMode)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	path := writeTempConfig(t, "env: dev\n")
	w, err := NewWatcher(path, 0, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 4)
	if err := w.Start(ctx, func(cfg AppConfig) { ch <- cfg }); err != nil {
		t.Fatalf("start: %v", err)
	}
	other := filepath.Join(filepath.Dir(path), "other.yaml")
	if err := os.WriteFile(other, []byte("env: dev\n"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}
	select {
	case <-ch:
		t.Fatalf("sibling file should not trigger reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w, err := NewWatcher(writeTempConfig(t, "env: dev\n"), time.Second, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
