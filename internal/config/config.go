// Package config provides unified configuration for all Cartflow run modes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the run mode.
type Mode string

const (
	// ModeLocal runs coordinator and workers in one process over an
	// in-memory queue.
	ModeLocal Mode = "local"

	// ModeCoordinate plans shards, enqueues assignments to the shared
	// queue, and waits for completion reports.
	ModeCoordinate Mode = "coordinate"

	// ModeWork consumes shard assignments from the shared queue.
	ModeWork Mode = "work"
)

// Config holds the unified configuration for all Cartflow run modes.
type Config struct {
	// Mode specifies how to run: local, coordinate, work
	Mode Mode `json:"mode" yaml:"mode"`

	// Input is the ingestion input configuration
	Input InputConfig `json:"input" yaml:"input"`

	// Output is the output location configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Pipeline holds per-shard pipeline tuning
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`

	// Session holds session windowing configuration
	Session SessionConfig `json:"session" yaml:"session"`

	// Dedup holds deduplication configuration
	Dedup DedupConfig `json:"dedup" yaml:"dedup"`

	// Shard holds scale-out configuration
	Shard ShardConfig `json:"shard" yaml:"shard"`

	// Queue holds assignment queue configuration
	Queue QueueConfig `json:"queue" yaml:"queue"`

	// Storage configuration for output upload
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// InputConfig holds ingestion input configuration.
type InputConfig struct {
	// Path is the compressed JSON array input file (.json.gz)
	Path string `json:"path" yaml:"path"`
}

// OutputConfig holds output location configuration.
type OutputConfig struct {
	// Dir is the root directory for partitioned output
	Dir string `json:"dir" yaml:"dir"`

	// Upload enables uploading flushed output to object storage
	Upload bool `json:"upload" yaml:"upload"`
}

// PipelineConfig holds per-shard pipeline tuning.
type PipelineConfig struct {
	// FlushRows is the per-partition buffer size that triggers a flush
	FlushRows int `json:"flush_rows" yaml:"flush_rows"`

	// ProgressInterval is the number of events between progress reports
	ProgressInterval int64 `json:"progress_interval" yaml:"progress_interval"`
}

// SessionConfig holds session windowing configuration.
type SessionConfig struct {
	// MaxGap is the maximum idle time within one session; exceeding it
	// finalizes the session. Must exceed the longest genuine session span.
	MaxGap time.Duration `json:"max_gap" yaml:"max_gap"`

	// SweepStride is how far the watermark must advance before the next
	// eviction sweep. Zero sweeps on every event.
	SweepStride time.Duration `json:"sweep_stride" yaml:"sweep_stride"`
}

// DedupMode selects the identifier set implementation.
const (
	DedupExact = "exact"
	DedupBloom = "bloom"
)

// DedupConfig holds deduplication configuration.
type DedupConfig struct {
	// Mode is the identifier set implementation: exact, bloom
	Mode string `json:"mode" yaml:"mode"`

	// ExpectedItems sizes the bloom filter (bloom mode only)
	ExpectedItems int `json:"expected_items" yaml:"expected_items"`

	// FalsePositiveRate is the accepted bloom false positive rate; a false
	// positive drops a valid event (bloom mode only)
	FalsePositiveRate float64 `json:"false_positive_rate" yaml:"false_positive_rate"`
}

// ShardConfig holds scale-out configuration.
type ShardConfig struct {
	// Count is the number of shards to split the input into
	Count int `json:"count" yaml:"count"`

	// MaxRetries is how many times a failed shard is re-enqueued
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// StallTimeout flags a worker with no progress heartbeat
	StallTimeout time.Duration `json:"stall_timeout" yaml:"stall_timeout"`

	// StallCheckInterval is how often the stall monitor checks
	StallCheckInterval time.Duration `json:"stall_check_interval" yaml:"stall_check_interval"`
}

// QueueConfig holds assignment queue configuration.
type QueueConfig struct {
	// Type is the queue type: memory, redis
	Type string `json:"type" yaml:"type"`

	// KeyPrefix prefixes the assignment and report list keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// Redis configuration (for redis type)
	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage root (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket   string `json:"bucket" yaml:"bucket"`
	Region   string `json:"region" yaml:"region"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode: ModeLocal,
		Input: InputConfig{
			Path: "./data/cart_events.json.gz",
		},
		Output: OutputConfig{
			Dir: "./data/output",
		},
		Pipeline: PipelineConfig{
			FlushRows:        100_000,
			ProgressInterval: 100_000,
		},
		Session: SessionConfig{
			MaxGap: 30 * time.Minute,
			// resolved to MaxGap/4 when zero
			SweepStride: 0,
		},
		Dedup: DedupConfig{
			Mode:              DedupExact,
			ExpectedItems:     1_000_000,
			FalsePositiveRate: 0.01,
		},
		Shard: ShardConfig{
			Count:              1,
			MaxRetries:         1,
			StallTimeout:       5 * time.Minute,
			StallCheckInterval: 30 * time.Second,
		},
		Queue: QueueConfig{
			Type:      "memory",
			KeyPrefix: "cartflow",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve resolves derived values and relative paths.
func (c *Config) Resolve() {
	if c.Output.Dir == "" {
		c.Output.Dir = "./data/output"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(filepath.Dir(c.Output.Dir), "storage")
	}
	if c.Session.SweepStride <= 0 {
		c.Session.SweepStride = c.Session.MaxGap / 4
	}
	if c.Queue.KeyPrefix == "" {
		c.Queue.KeyPrefix = "cartflow"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal, ModeCoordinate, ModeWork:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be local, coordinate, or work)", c.Mode)
	}

	if c.Mode != ModeWork && c.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Pipeline.FlushRows <= 0 {
		return fmt.Errorf("pipeline.flush_rows must be > 0, got %d", c.Pipeline.FlushRows)
	}
	if c.Session.MaxGap <= 0 {
		return fmt.Errorf("session.max_gap must be > 0, got %v", c.Session.MaxGap)
	}

	switch c.Dedup.Mode {
	case DedupExact:
	case DedupBloom:
		if c.Dedup.ExpectedItems <= 0 {
			return fmt.Errorf("dedup.expected_items must be > 0 in bloom mode")
		}
		if c.Dedup.FalsePositiveRate <= 0 || c.Dedup.FalsePositiveRate >= 1 {
			return fmt.Errorf("dedup.false_positive_rate must be in (0,1), got %g", c.Dedup.FalsePositiveRate)
		}
	default:
		return fmt.Errorf("invalid dedup mode: %s (must be exact or bloom)", c.Dedup.Mode)
	}

	if c.Shard.Count <= 0 {
		return fmt.Errorf("shard.count must be > 0, got %d", c.Shard.Count)
	}
	if c.Shard.MaxRetries < 0 {
		return fmt.Errorf("shard.max_retries must be >= 0, got %d", c.Shard.MaxRetries)
	}

	switch c.Queue.Type {
	case "memory":
		if c.Mode != ModeLocal {
			return fmt.Errorf("queue.type memory is only valid in local mode")
		}
	case "redis":
		if c.Queue.Redis.Addr == "" {
			return fmt.Errorf("queue.redis.addr is required when queue type is redis")
		}
	default:
		return fmt.Errorf("invalid queue type: %s (must be memory or redis)", c.Queue.Type)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Output.Dir}
	if c.Output.Upload && c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CARTFLOW_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CARTFLOW_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("CARTFLOW_INPUT_PATH"); v != "" {
		cfg.Input.Path = v
	}
	if v := os.Getenv("CARTFLOW_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("CARTFLOW_OUTPUT_UPLOAD"); v != "" {
		cfg.Output.Upload = v == "true" || v == "1"
	}

	// Pipeline configuration
	if v := os.Getenv("CARTFLOW_FLUSH_ROWS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Pipeline.FlushRows)
	}
	if v := os.Getenv("CARTFLOW_PROGRESS_INTERVAL"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Pipeline.ProgressInterval)
	}

	// Session configuration
	if v := os.Getenv("CARTFLOW_SESSION_MAX_GAP"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.MaxGap = d
		}
	}

	// Dedup configuration
	if v := os.Getenv("CARTFLOW_DEDUP_MODE"); v != "" {
		cfg.Dedup.Mode = v
	}

	// Shard configuration
	if v := os.Getenv("CARTFLOW_SHARD_COUNT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Shard.Count)
	}
	if v := os.Getenv("CARTFLOW_SHARD_MAX_RETRIES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Shard.MaxRetries)
	}

	// Queue configuration
	if v := os.Getenv("CARTFLOW_QUEUE_TYPE"); v != "" {
		cfg.Queue.Type = v
	}
	if v := os.Getenv("CARTFLOW_REDIS_ADDR"); v != "" {
		cfg.Queue.Redis.Addr = v
	}
	if v := os.Getenv("CARTFLOW_REDIS_PASSWORD"); v != "" {
		cfg.Queue.Redis.Password = v
	}
	if v := os.Getenv("CARTFLOW_REDIS_DB"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Queue.Redis.DB)
	}

	// Storage configuration
	if v := os.Getenv("CARTFLOW_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("CARTFLOW_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CARTFLOW_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("CARTFLOW_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("CARTFLOW_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}
