// Package worker consumes shard assignments from the queue, runs the
// ingest pipeline over each assigned range, and reports the outcome.
// Workers are stateless between assignments; all retry policy lives in
// the coordinator.
package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cartflow/cartflow/internal/config"
	"github.com/cartflow/cartflow/internal/ingest"
	"github.com/cartflow/cartflow/internal/queue"
	"github.com/cartflow/cartflow/internal/storage"
	"github.com/cartflow/cartflow/pkg/types"
)

// Worker processes shard assignments until its context is done.
type Worker struct {
	id    string
	cfg   *config.Config
	queue queue.Queue
	store storage.ObjectStorage
}

// New creates a worker. store may be nil when inputs and outputs are
// local paths.
func New(cfg *config.Config, q queue.Queue, store storage.ObjectStorage) *Worker {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Worker{
		id:    fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
		cfg:   cfg,
		queue: q,
		store: store,
	}
}

// ID returns the worker's identity as stamped into shard reports.
func (w *Worker) ID() string {
	return w.id
}

// Run polls for assignments until ctx is done. Each assignment produces
// exactly one report, success or failure.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("worker %s: started", w.id)

	for {
		a, err := w.queue.PopAssignment(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("worker %s: stopping", w.id)
				return nil
			}
			return err
		}
		if a == nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		report := w.processShard(ctx, a)
		if err := w.queue.PushReport(ctx, report); err != nil {
			return err
		}
	}
}

// ProcessOne pops and processes a single assignment, reporting the
// outcome. Returns false if no assignment arrived within the timeout.
func (w *Worker) ProcessOne(ctx context.Context, timeout time.Duration) (bool, error) {
	a, err := w.queue.PopAssignment(ctx, timeout)
	if err != nil {
		return false, err
	}
	if a == nil {
		return false, nil
	}
	report := w.processShard(ctx, a)
	if err := w.queue.PushReport(ctx, report); err != nil {
		return true, err
	}
	return true, nil
}

func (w *Worker) processShard(ctx context.Context, a *types.ShardAssignment) *types.ShardReport {
	log.Printf("worker %s: processing %s", w.id, a)

	report := &types.ShardReport{
		ShardID:  a.ShardID,
		Attempt:  a.Attempt,
		WorkerID: w.id,
	}

	outputDir := filepath.Join(w.cfg.Output.Dir, fmt.Sprintf("shard=%d", a.ShardID))
	// A retried attempt must not inherit partial output from the failed one.
	if a.Attempt > 1 {
		if err := os.RemoveAll(outputDir); err != nil {
			report.Status = types.ShardFailed
			report.Error = fmt.Sprintf("failed to clear output dir: %v", err)
			return report
		}
	}

	inputPath, err := w.resolveInput(ctx, a.InputURI)
	if err != nil {
		report.Status = types.ShardFailed
		report.Error = err.Error()
		return report
	}

	var uploadPrefix string
	store := w.store
	if !w.cfg.Output.Upload {
		store = nil
	} else {
		uploadPrefix = a.OutputURI
	}

	in, err := ingest.NewIngestor(ctx, w.cfg, outputDir, uploadPrefix, store)
	if err != nil {
		report.Status = types.ShardFailed
		report.Error = err.Error()
		return report
	}

	stallCtx, stopStall := context.WithCancel(ctx)
	defer stopStall()
	go w.watchForStall(stallCtx, a.ShardID, in.Progress())

	result, err := in.Run(ctx, inputPath, a.StartIndex, a.EndIndex)
	if err != nil {
		report.Status = types.ShardFailed
		report.Error = err.Error()
		return report
	}

	report.Status = types.ShardSucceeded
	report.EventsProcessed = result.EventsRead
	report.SessionsEmitted = result.SessionsEmitted
	return report
}

// resolveInput returns a local path for the assignment input, downloading
// it from object storage when it is not already on disk.
func (w *Worker) resolveInput(ctx context.Context, inputURI string) (string, error) {
	if _, err := os.Stat(inputURI); err == nil {
		return inputURI, nil
	}
	if w.store == nil {
		return "", fmt.Errorf("input %s not found and no object storage configured", inputURI)
	}

	localPath := filepath.Join(w.cfg.Output.Dir, "scratch", filepath.Base(inputURI))
	if err := w.store.Download(ctx, inputURI, localPath); err != nil {
		return "", fmt.Errorf("failed to fetch input %s: %w", inputURI, err)
	}
	return localPath, nil
}

// watchForStall logs a warning when the pipeline heartbeat goes quiet for
// longer than the configured stall timeout. The shard is not killed; the
// coordinator's retry budget decides its fate if it never reports.
func (w *Worker) watchForStall(ctx context.Context, shardID int, progress *ingest.Tracker) {
	interval := w.cfg.Shard.StallCheckInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := time.Since(progress.LastHeartbeat())
			if idle >= w.cfg.Shard.StallTimeout {
				log.Printf("worker %s: shard %d has made no progress for %v (processed %d)",
					w.id, shardID, idle.Round(time.Second), progress.Processed())
			}
		}
	}
}
