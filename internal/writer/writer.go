// Package writer buffers annotated events per date partition, flushes
// them as SQLite partition files, and produces the run's side outputs:
// the sessions file, the daily summary, and the _SUCCESS marker.
package writer

import (
	"context"
	"log"
	"os"
	"path"
	"path/filepath"

	cferrors "github.com/cartflow/cartflow/internal/errors"
	"github.com/cartflow/cartflow/internal/partition"
	"github.com/cartflow/cartflow/internal/storage"
	"github.com/cartflow/cartflow/pkg/types"
)

// SuccessMarker is the file written last, only after every partition and
// side output has been flushed. Consumers treat its absence as an
// incomplete run.
const SuccessMarker = "_SUCCESS"

// Writer is the output stage of one shard pipeline. Not safe for
// concurrent use.
type Writer struct {
	outputDir string
	flushRows int

	builder  *partition.Builder
	sessions *SessionWriter

	buffers map[string][]types.AnnotatedEvent
	daily   map[string]*dailyStats

	partitions []partition.PartitionInfo

	// Optional: when set, finished outputs are shipped to object storage
	// under uploadPrefix.
	store        storage.ObjectStorage
	uploadPrefix string

	closed bool
}

// NewWriter creates a writer rooted at outputDir. flushRows bounds the
// per-partition buffer; store may be nil for local-only runs.
func NewWriter(ctx context.Context, outputDir string, flushRows int, store storage.ObjectStorage, uploadPrefix string) (*Writer, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create output directory", err)
	}

	sessions, err := NewSessionWriter(ctx, outputDir)
	if err != nil {
		return nil, err
	}

	return &Writer{
		outputDir:    outputDir,
		flushRows:    flushRows,
		builder:      partition.NewBuilder(outputDir),
		sessions:     sessions,
		buffers:      make(map[string][]types.AnnotatedEvent),
		daily:        make(map[string]*dailyStats),
		store:        store,
		uploadPrefix: uploadPrefix,
	}, nil
}

// WriteEvent routes one annotated event to its date partition buffer,
// flushing the buffer when it reaches the row limit.
func (w *Writer) WriteEvent(ctx context.Context, e types.AnnotatedEvent) error {
	key := partition.DateKey(e.Timestamp)

	w.buffers[key] = append(w.buffers[key], e)

	stats, ok := w.daily[key]
	if !ok {
		stats = newDailyStats()
		w.daily[key] = stats
	}
	stats.observe(&e)

	if len(w.buffers[key]) >= w.flushRows {
		return w.flushPartition(ctx, key)
	}
	return nil
}

// WriteSession implements session.Sink by delegating to the sessions file.
func (w *Writer) WriteSession(rec types.SessionRecord) error {
	return w.sessions.WriteSession(rec)
}

func (w *Writer) flushPartition(ctx context.Context, key string) error {
	events := w.buffers[key]
	if len(events) == 0 {
		return nil
	}

	info, err := w.builder.Build(ctx, events, key)
	if err != nil {
		return err
	}

	log.Printf("writer: flushed partition %s (%d rows, %d bytes)", info.PartitionID, info.RowCount, info.SizeBytes)
	w.partitions = append(w.partitions, *info)
	delete(w.buffers, key)
	return nil
}

// Close flushes every remaining buffer, finalizes the sessions file,
// writes the daily summary, drops the success marker, and ships outputs
// to object storage when configured. The marker is written strictly last.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	for key := range w.buffers {
		if err := w.flushPartition(ctx, key); err != nil {
			return err
		}
	}

	if err := w.sessions.Close(ctx); err != nil {
		return err
	}

	summaryPath, err := writeDailySummary(w.outputDir, w.daily)
	if err != nil {
		return err
	}

	markerPath := filepath.Join(w.outputDir, SuccessMarker)
	if err := os.WriteFile(markerPath, nil, 0644); err != nil {
		return cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to write success marker", err)
	}

	if w.store != nil {
		if err := w.upload(ctx, summaryPath, markerPath); err != nil {
			return err
		}
	}

	return nil
}

// upload ships all run outputs, uploading the marker last so remote
// readers see the same completeness contract as local ones.
func (w *Writer) upload(ctx context.Context, summaryPath, markerPath string) error {
	for i := range w.partitions {
		p := &w.partitions[i]
		key := path.Join(w.uploadPrefix, partition.Dir(p.DateKey), filepath.Base(p.Path))
		if err := w.store.Upload(ctx, p.Path, key); err != nil {
			return cferrors.NewStorageError(cferrors.CodeUploadFailed, "failed to upload partition "+p.PartitionID, err)
		}
	}

	for _, local := range []string{w.sessions.Path(), summaryPath, markerPath} {
		key := path.Join(w.uploadPrefix, filepath.Base(local))
		if err := w.store.Upload(ctx, local, key); err != nil {
			return cferrors.NewStorageError(cferrors.CodeUploadFailed, "failed to upload "+filepath.Base(local), err)
		}
	}

	return nil
}

// Partitions returns metadata for every flushed partition file.
func (w *Writer) Partitions() []partition.PartitionInfo {
	return w.partitions
}

// SessionsWritten returns the number of persisted session records.
func (w *Writer) SessionsWritten() int64 {
	return w.sessions.Written()
}
