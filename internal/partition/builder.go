// Package partition creates date-partitioned SQLite micro-partitions from
// annotated cart events.
package partition

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	cferrors "github.com/cartflow/cartflow/internal/errors"
	"github.com/cartflow/cartflow/pkg/types"
)

// PartitionInfo contains metadata about a created partition file.
type PartitionInfo struct {
	PartitionID  string
	DateKey      string
	Path         string
	RowCount     int64
	SizeBytes    int64
	MinEventTime int64
	MaxEventTime int64
	CreatedAt    time.Time
}

// attribution is the compressed payload column: the marketing fields that
// are read together or not at all, stored as one snappy-compressed JSON
// blob instead of six sparse columns.
type attribution struct {
	Referrer    string `json:"referrer"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	PageURL     string `json:"page_url"`
}

// Builder writes annotated events into SQLite partition files under
// outputDir, one subdirectory per date key.
type Builder struct {
	outputDir string
}

// NewBuilder creates a partition builder rooted at outputDir.
func NewBuilder(outputDir string) *Builder {
	return &Builder{outputDir: outputDir}
}

// Build creates one partition file from events that all share dateKey.
// The file is immutable once Build returns: WAL is checkpointed and the
// journal switched to DELETE mode before close.
func (b *Builder) Build(ctx context.Context, events []types.AnnotatedEvent, dateKey string) (*PartitionInfo, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("partition: cannot build partition with no events")
	}

	partitionID := fmt.Sprintf("events:%s:%s", dateKey, uuid.New().String()[:8])
	createdAt := time.Now()

	partDir := filepath.Join(b.outputDir, Dir(dateKey))
	if err := os.MkdirAll(partDir, 0755); err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create partition directory", err)
	}

	sqlitePath := filepath.Clean(filepath.Join(partDir, fmt.Sprintf("events_%s.sqlite", uuid.New().String()[:8])))

	db, err := sql.Open("sqlite3", sqlitePath)
	if err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create SQLite database", err)
	}
	defer db.Close()

	// WAL mode for write performance during the build
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to set journal mode", err)
	}

	createTableSQL := `
		CREATE TABLE events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_time INTEGER NOT NULL,
			product_id TEXT,
			product_name TEXT,
			price_vnd REAL,
			price_usd REAL,
			quantity INTEGER,
			old_quantity INTEGER,
			line_total_vnd REAL,
			line_total_usd REAL,
			source TEXT,
			device TEXT,
			browser TEXT,
			sequence_num INTEGER NOT NULL,
			session_start INTEGER,
			session_end INTEGER,
			session_duration_seconds REAL,
			session_event_count INTEGER,
			session_journey TEXT,
			attribution BLOB
		) WITHOUT ROWID
	`
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create events table", err)
	}

	indexes := []string{
		"CREATE INDEX idx_events_session_time ON events(session_id, event_time)",
		"CREATE INDEX idx_events_customer_time ON events(customer_id, event_time)",
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create index", err)
		}
	}

	insertSQL := `INSERT INTO events (
		event_id, session_id, customer_id, event_type, event_time,
		product_id, product_name, price_vnd, price_usd,
		quantity, old_quantity, line_total_vnd, line_total_usd,
		source, device, browser,
		sequence_num, session_start, session_end,
		session_duration_seconds, session_event_count, session_journey,
		attribution
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := db.PrepareContext(ctx, insertSQL)
	if err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to prepare insert statement", err)
	}
	defer stmt.Close()

	stats := NewStatsTracker()

	for i := range events {
		e := &events[i]

		attrJSON, err := json.Marshal(attribution{
			Referrer:    e.Referrer,
			UTMSource:   e.UTMSource,
			UTMMedium:   e.UTMMedium,
			UTMCampaign: e.UTMCampaign,
			PageURL:     e.PageURL,
		})
		if err != nil {
			return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to marshal attribution", err)
		}
		compressed := snappy.Encode(nil, attrJSON)

		if _, err := stmt.ExecContext(ctx,
			e.EventID, e.SessionID, e.CustomerID, string(e.Kind), e.Timestamp,
			e.ProductID, e.ProductName, e.PriceVND, e.PriceUSD,
			e.Quantity, e.OldQuantity, e.LineTotalVND, e.LineTotalUSD,
			e.Source, e.Device, e.Browser,
			e.SequenceNum, e.SessionStart, e.SessionEnd,
			e.SessionDurationSeconds, e.SessionEventCount, e.SessionJourney,
			compressed,
		); err != nil {
			return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to insert event", err)
		}

		stats.Update(e)
	}

	if err := writeStatsTable(ctx, db, stats); err != nil {
		return nil, err
	}

	// Checkpoint WAL and switch to DELETE mode for immutability
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to checkpoint WAL", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to set journal mode to DELETE", err)
	}

	if err := db.Close(); err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to close database", err)
	}

	fileInfo, err := os.Stat(sqlitePath)
	if err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to stat partition file", err)
	}

	return &PartitionInfo{
		PartitionID:  partitionID,
		DateKey:      dateKey,
		Path:         sqlitePath,
		RowCount:     stats.RowCount(),
		SizeBytes:    fileInfo.Size(),
		MinEventTime: *stats.MinEventTime(),
		MaxEventTime: *stats.MaxEventTime(),
		CreatedAt:    createdAt,
	}, nil
}

// writeStatsTable stores min/max pruning statistics inside the partition
// itself so downstream readers can skip files without opening the events
// table.
func writeStatsTable(ctx context.Context, db *sql.DB, stats *StatsTracker) error {
	statsTableSQL := `
		CREATE TABLE _cartflow_stats (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			min_value TEXT,
			max_value TEXT,
			PRIMARY KEY (table_name, column_name)
		) WITHOUT ROWID
	`
	if _, err := db.ExecContext(ctx, statsTableSQL); err != nil {
		return cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create stats table", err)
	}

	insert := `INSERT INTO _cartflow_stats (table_name, column_name, min_value, max_value) VALUES (?, ?, ?, ?)`

	if stats.MinEventTime() != nil {
		if _, err := db.ExecContext(ctx, insert, "events", "event_time",
			fmt.Sprintf("%d", *stats.MinEventTime()), fmt.Sprintf("%d", *stats.MaxEventTime())); err != nil {
			return cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to insert event_time stats", err)
		}
	}
	if stats.MinSessionID() != nil {
		if _, err := db.ExecContext(ctx, insert, "events", "session_id",
			*stats.MinSessionID(), *stats.MaxSessionID()); err != nil {
			return cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to insert session_id stats", err)
		}
	}

	return nil
}
