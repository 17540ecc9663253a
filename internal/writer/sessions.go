package writer

import (
	"context"
	"database/sql"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	cferrors "github.com/cartflow/cartflow/internal/errors"
	"github.com/cartflow/cartflow/pkg/types"
)

// SessionWriter persists finalized session records to a single SQLite
// file next to the partition directories. session_id is deliberately not
// a primary key: a session reopened after an ordering violation produces
// more than one record under the same id.
type SessionWriter struct {
	db   *sql.DB
	stmt *sql.Stmt
	path string

	written int64
}

// NewSessionWriter creates sessions.sqlite under outputDir.
func NewSessionWriter(ctx context.Context, outputDir string) (*SessionWriter, error) {
	path := filepath.Join(outputDir, "sessions.sqlite")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create sessions database", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to set journal mode", err)
	}

	createSQL := `
		CREATE TABLE sessions (
			session_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			source TEXT,
			device TEXT,
			browser TEXT,
			session_start INTEGER NOT NULL,
			session_end INTEGER NOT NULL,
			session_duration_seconds REAL NOT NULL,
			total_events INTEGER NOT NULL,
			event_journey TEXT,
			has_purchase INTEGER NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		db.Close()
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create sessions table", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX idx_sessions_id ON sessions(session_id)"); err != nil {
		db.Close()
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create sessions index", err)
	}

	stmt, err := db.PrepareContext(ctx, `INSERT INTO sessions (
		session_id, customer_id, source, device, browser,
		session_start, session_end, session_duration_seconds,
		total_events, event_journey, has_purchase
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to prepare sessions insert", err)
	}

	return &SessionWriter{db: db, stmt: stmt, path: path}, nil
}

// WriteSession appends one session record.
func (w *SessionWriter) WriteSession(rec types.SessionRecord) error {
	hasPurchase := 0
	if rec.HasPurchase {
		hasPurchase = 1
	}

	_, err := w.stmt.Exec(
		rec.SessionID, rec.CustomerID, rec.Source, rec.Device, rec.Browser,
		rec.StartTime, rec.EndTime, rec.DurationSeconds,
		rec.EventCount, rec.Journey, hasPurchase,
	)
	if err != nil {
		return cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to insert session record", err)
	}
	w.written++
	return nil
}

// Written returns how many session records have been persisted.
func (w *SessionWriter) Written() int64 {
	return w.written
}

// Path returns the sessions file location.
func (w *SessionWriter) Path() string {
	return w.path
}

// Close checkpoints and finalizes the sessions file.
func (w *SessionWriter) Close(ctx context.Context) error {
	if err := w.stmt.Close(); err != nil {
		w.db.Close()
		return cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to close sessions statement", err)
	}

	if _, err := w.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		w.db.Close()
		return cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to checkpoint sessions WAL", err)
	}
	if _, err := w.db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		w.db.Close()
		return cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to finalize sessions journal", err)
	}

	if err := w.db.Close(); err != nil {
		return cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to close sessions database", err)
	}
	return nil
}
