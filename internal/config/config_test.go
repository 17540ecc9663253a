package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestResolveSweepStride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.MaxGap = 40 * time.Minute
	cfg.Resolve()
	if cfg.Session.SweepStride != 10*time.Minute {
		t.Errorf("sweep stride: got %v, want 10m", cfg.Session.SweepStride)
	}

	cfg = DefaultConfig()
	cfg.Session.SweepStride = time.Minute
	cfg.Resolve()
	if cfg.Session.SweepStride != time.Minute {
		t.Errorf("explicit stride overridden: %v", cfg.Session.SweepStride)
	}
}

func TestValidateMemoryQueueRequiresLocalMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeCoordinate
	cfg.Queue.Type = "memory"
	cfg.Resolve()
	if err := cfg.Validate(); err == nil {
		t.Fatal("memory queue outside local mode must be rejected")
	}

	cfg.Queue.Type = "redis"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("redis queue in coordinate mode should validate: %v", err)
	}
}

func TestValidateWorkModeNeedsNoInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeWork
	cfg.Queue.Type = "redis"
	cfg.Input.Path = ""
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("work mode without input should validate: %v", err)
	}
}

func TestValidateBloomParameters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dedup.Mode = DedupBloom
	cfg.Dedup.FalsePositiveRate = 1.5
	cfg.Resolve()
	if err := cfg.Validate(); err == nil {
		t.Fatal("false positive rate out of range must be rejected")
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	// Durations in file configs are integer nanoseconds; the env loader
	// accepts human-readable forms like "45m".
	content := `
mode: local
input:
  path: /data/events.json.gz
session:
  max_gap: 2700000000000
shard:
  count: 8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Input.Path != "/data/events.json.gz" {
		t.Errorf("input path: %q", cfg.Input.Path)
	}
	if cfg.Session.MaxGap != 45*time.Minute {
		t.Errorf("max gap: %v", cfg.Session.MaxGap)
	}
	if cfg.Shard.Count != 8 {
		t.Errorf("shard count: %d", cfg.Shard.Count)
	}
	// File values merge over defaults.
	if cfg.Pipeline.FlushRows != 100_000 {
		t.Errorf("flush rows default lost: %d", cfg.Pipeline.FlushRows)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CARTFLOW_MODE", "work")
	t.Setenv("CARTFLOW_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("CARTFLOW_QUEUE_TYPE", "redis")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Mode != ModeWork {
		t.Errorf("mode: %s", cfg.Mode)
	}
	if cfg.Queue.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis addr: %s", cfg.Queue.Redis.Addr)
	}
	if cfg.Queue.Type != "redis" {
		t.Errorf("queue type: %s", cfg.Queue.Type)
	}
}
