package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Fatalf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Fatalf("Storage.Driver = %q, want postgres", cfg.Storage.Driver)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Fatalf("Session.TTL = %v, want 24h", cfg.Session.TTL)
	}
	if cfg.Leaderboard.Strategy != "index" {
		t.Fatalf("Leaderboard.Strategy = %q, want index", cfg.Leaderboard.Strategy)
	}
	if cfg.Leaderboard.RetryAttempts != 5 {
		t.Fatalf("Leaderboard.RetryAttempts = %d, want 5", cfg.Leaderboard.RetryAttempts)
	}
	if cfg.Kafka.Topic != "arena-scores" {
		t.Fatalf("Kafka.Topic = %q, want arena-scores", cfg.Kafka.Topic)
	}
	if cfg.Sync.Disabled {
		t.Fatal("Sync.Disabled = true, want the reconcile worker on by default")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: 9090
storage:
  driver: memory
session:
  ttl: 1h
leaderboard:
  strategy: snapshot
  default_limit: 25
redis:
  addr: ${ARENA_TEST_REDIS_ADDR}
`
	os.Setenv("ARENA_TEST_REDIS_ADDR", "redis.internal:6380")
	defer os.Unsetenv("ARENA_TEST_REDIS_ADDR")

	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("Storage.Driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Session.TTL != time.Hour {
		t.Fatalf("Session.TTL = %v, want 1h", cfg.Session.TTL)
	}
	if cfg.Leaderboard.Strategy != "snapshot" {
		t.Fatalf("Leaderboard.Strategy = %q, want snapshot", cfg.Leaderboard.Strategy)
	}
	if cfg.Leaderboard.DefaultLimit != 25 {
		t.Fatalf("Leaderboard.DefaultLimit = %d, want 25", cfg.Leaderboard.DefaultLimit)
	}
	// Environment variables are expanded.
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Fatalf("Redis.Addr = %q, want expanded env value", cfg.Redis.Addr)
	}
	// Unset fields still get defaults.
	if cfg.Leaderboard.MaxLimit != 1000 {
		t.Fatalf("Leaderboard.MaxLimit = %d, want 1000", cfg.Leaderboard.MaxLimit)
	}
	// A file that never mentions sync keeps the reconcile worker on.
	if cfg.Sync.Disabled {
		t.Fatal("Sync.Disabled = true for a file without a sync section")
	}
}

func TestLoadSyncDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
sync:
  disabled: true
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Sync.Disabled {
		t.Fatal("Sync.Disabled = false, want explicit opt-out honored")
	}
	if cfg.Sync.Interval != 15*time.Minute {
		t.Fatalf("Sync.Interval = %v, want default 15m", cfg.Sync.Interval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load on missing file: err = nil, want error")
	}
}
