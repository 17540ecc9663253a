package ingest

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/cartflow/cartflow/internal/config"
	"github.com/cartflow/cartflow/internal/dedup"
	"github.com/cartflow/cartflow/internal/normalize"
	"github.com/cartflow/cartflow/internal/session"
	"github.com/cartflow/cartflow/internal/storage"
	"github.com/cartflow/cartflow/internal/writer"
	"github.com/cartflow/cartflow/pkg/types"
)

// RunReport summarizes one shard's pass over its event range.
type RunReport struct {
	EventsRead        int64
	Accepted          int64
	DuplicatesDropped int64
	ValidationDropped int64
	DroppedByReason   map[normalize.RejectReason]int64
	SessionsEmitted   int64
	ReopenedSessions  int64
	PartitionsWritten int
	Elapsed           time.Duration
}

// Ingestor runs the full pipeline for one shard: read, normalize, dedup,
// window, write.
type Ingestor struct {
	norm     *normalize.Normalizer
	seen     dedup.IdentifierSet
	window   *session.Windower
	out      *writer.Writer
	progress *Tracker
}

// NewIngestor wires a shard pipeline from configuration. outputDir is the
// shard's own output root; store may be nil when outputs stay local.
func NewIngestor(ctx context.Context, cfg *config.Config, outputDir, uploadPrefix string, store storage.ObjectStorage) (*Ingestor, error) {
	out, err := writer.NewWriter(ctx, outputDir, cfg.Pipeline.FlushRows, store, uploadPrefix)
	if err != nil {
		return nil, err
	}

	var seen dedup.IdentifierSet
	if cfg.Dedup.Mode == config.DedupBloom {
		seen = dedup.NewBloomSet(cfg.Dedup.ExpectedItems, cfg.Dedup.FalsePositiveRate)
	} else {
		seen = dedup.NewExactSet(0)
	}

	return &Ingestor{
		norm:     normalize.NewNormalizer(),
		seen:     seen,
		window:   session.NewWindower(cfg.Session.MaxGap, cfg.Session.SweepStride, out),
		out:      out,
		progress: NewTracker(cfg.Pipeline.ProgressInterval),
	}, nil
}

// Progress exposes the tracker for stall watchdogs.
func (in *Ingestor) Progress() *Tracker {
	return in.progress
}

// Run streams events [start, end) from inputPath through the pipeline.
// end < 0 means run to end of input. A malformed stream is fatal;
// per-record validation failures are counted and skipped.
func (in *Ingestor) Run(ctx context.Context, inputPath string, start, end int64) (*RunReport, error) {
	began := time.Now()

	report := &RunReport{
		DroppedByReason: make(map[normalize.RejectReason]int64),
	}

	r, err := OpenEventReader(inputPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for i := int64(0); i < start; i++ {
		if err := r.Skip(); err != nil {
			if err == io.EOF {
				return in.finish(ctx, report, began)
			}
			return nil, err
		}
	}

	var raw types.RawEvent
	for idx := start; end < 0 || idx < end; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw = types.RawEvent{}
		if err := r.Next(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		report.EventsRead++
		in.progress.Record()

		canonical, rejection := in.norm.Normalize(&raw)
		if rejection != nil {
			report.ValidationDropped++
			report.DroppedByReason[rejection.Reason]++
			continue
		}

		if !in.seen.Accept(canonical.EventID) {
			report.DuplicatesDropped++
			continue
		}

		annotated, err := in.window.Observe(&canonical)
		if err != nil {
			return nil, err
		}

		if err := in.out.WriteEvent(ctx, annotated); err != nil {
			return nil, err
		}
		report.Accepted++
	}

	return in.finish(ctx, report, began)
}

func (in *Ingestor) finish(ctx context.Context, report *RunReport, began time.Time) (*RunReport, error) {
	if err := in.window.Flush(); err != nil {
		return nil, err
	}
	if err := in.out.Close(ctx); err != nil {
		return nil, err
	}

	report.SessionsEmitted = in.window.SessionsEmitted()
	report.ReopenedSessions = in.window.ReopenedSessions()
	report.PartitionsWritten = len(in.out.Partitions())
	report.Elapsed = time.Since(began)

	log.Printf("ingest: done: read=%d accepted=%d dup=%d invalid=%d sessions=%d partitions=%d elapsed=%v",
		report.EventsRead, report.Accepted, report.DuplicatesDropped, report.ValidationDropped,
		report.SessionsEmitted, report.PartitionsWritten, report.Elapsed.Round(time.Millisecond))

	return report, nil
}
