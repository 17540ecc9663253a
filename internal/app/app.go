// Package app wires configuration into a runnable pipeline for each of
// the three modes: local (plan, work, and collect in one process),
// coordinate (plan and collect over a shared queue), and work (consume
// assignments until stopped).
package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cartflow/cartflow/internal/config"
	"github.com/cartflow/cartflow/internal/coordinator"
	"github.com/cartflow/cartflow/internal/ingest"
	"github.com/cartflow/cartflow/internal/queue"
	"github.com/cartflow/cartflow/internal/storage"
	"github.com/cartflow/cartflow/internal/worker"
	"github.com/cartflow/cartflow/pkg/types"
)

// App manages the pipeline lifecycle for one invocation.
type App struct {
	cfg   *config.Config
	store storage.ObjectStorage
	queue queue.Queue
}

// New creates an App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{cfg: cfg}, nil
}

// Run executes the configured mode to completion. In work mode it runs
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.initStorage(ctx); err != nil {
		return err
	}
	if err := a.initQueue(ctx); err != nil {
		return err
	}
	defer a.queue.Close()

	switch a.cfg.Mode {
	case config.ModeLocal:
		return a.runLocal(ctx)
	case config.ModeCoordinate:
		return a.runCoordinate(ctx)
	case config.ModeWork:
		return worker.New(a.cfg, a.queue, a.store).Run(ctx)
	default:
		return fmt.Errorf("unsupported mode: %s", a.cfg.Mode)
	}
}

// initStorage sets up object storage when outputs are uploaded or inputs
// may need fetching. Local-only runs without upload skip it entirely.
func (a *App) initStorage(ctx context.Context) error {
	if !a.cfg.Output.Upload && a.cfg.Mode != config.ModeWork {
		return nil
	}

	var err error
	switch a.cfg.Storage.Type {
	case "local":
		a.store, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		a.store, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.Endpoint != "",
		})
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Printf("storage initialized: type=%s", a.cfg.Storage.Type)
	if a.cfg.Storage.Type == "s3" {
		log.Printf("s3: bucket=%s region=%s endpoint=%s",
			a.cfg.Storage.S3.Bucket, a.cfg.Storage.S3.Region, a.cfg.Storage.S3.Endpoint)
	}
	return nil
}

func (a *App) initQueue(ctx context.Context) error {
	switch a.cfg.Queue.Type {
	case "memory":
		a.queue = queue.NewMemoryQueue(a.cfg.Shard.Count * 2)
	case "redis":
		q, err := queue.NewRedisQueue(ctx,
			a.cfg.Queue.Redis.Addr, a.cfg.Queue.Redis.Password, a.cfg.Queue.Redis.DB,
			a.cfg.Queue.KeyPrefix)
		if err != nil {
			return err
		}
		a.queue = q
		log.Printf("queue: redis at %s (prefix %s)", a.cfg.Queue.Redis.Addr, a.cfg.Queue.KeyPrefix)
	default:
		return fmt.Errorf("unsupported queue type: %s", a.cfg.Queue.Type)
	}
	return nil
}

// runLocal runs the coordinator and shard.count workers inside one
// process over the in-memory queue.
func (a *App) runLocal(ctx context.Context) error {
	assignments, err := a.plan()
	if err != nil {
		return err
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var wg sync.WaitGroup
	for i := 0; i < a.cfg.Shard.Count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.New(a.cfg, a.queue, a.store).Run(workerCtx); err != nil {
				log.Printf("worker error: %v", err)
			}
		}()
	}

	summary, err := coordinator.New(a.queue, a.cfg.Shard.MaxRetries).Run(ctx, assignments)
	stopWorkers()
	wg.Wait()
	if err != nil {
		return err
	}

	return a.report(summary)
}

// runCoordinate plans shards and collects reports; remote work-mode
// processes do the processing.
func (a *App) runCoordinate(ctx context.Context) error {
	assignments, err := a.plan()
	if err != nil {
		return err
	}

	summary, err := coordinator.New(a.queue, a.cfg.Shard.MaxRetries).Run(ctx, assignments)
	if err != nil {
		return err
	}
	return a.report(summary)
}

func (a *App) plan() ([]types.ShardAssignment, error) {
	total, err := ingest.CountEvents(a.cfg.Input.Path)
	if err != nil {
		return nil, err
	}
	log.Printf("input: %d events in %s", total, a.cfg.Input.Path)

	return coordinator.PlanShards(total, a.cfg.Shard.Count, a.cfg.Input.Path, a.cfg.Output.Dir)
}

func (a *App) report(summary *coordinator.RunSummary) error {
	log.Printf("run complete: shards=%d events=%d sessions=%d elapsed=%v",
		len(summary.Shards), summary.TotalEvents, summary.TotalSessions, summary.Elapsed)

	if !summary.Succeeded {
		for id, r := range summary.Shards {
			if r.Status != types.ShardSucceeded {
				log.Printf("shard %d failed after %d attempts: %s", id, r.Attempt, r.Error)
			}
		}
		return fmt.Errorf("run failed: one or more shards did not complete")
	}
	return nil
}
