package partition

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"

	"github.com/cartflow/cartflow/pkg/types"
)

func testEvent(i int, sessionID string, ts time.Time) types.AnnotatedEvent {
	return types.AnnotatedEvent{
		CanonicalEvent: types.CanonicalEvent{
			EventID:      fmt.Sprintf("evt_%012d", i),
			Kind:         types.KindAddToCart,
			Timestamp:    ts.UnixNano(),
			SessionID:    sessionID,
			CustomerID:   "CUST-42",
			ProductID:    "SP-001",
			ProductName:  "Ca phe sua da",
			PriceVND:     45000,
			PriceUSD:     1.85,
			Quantity:     2,
			LineTotalVND: 90000,
			LineTotalUSD: 3.70,
			Source:       "web",
			Device:       "mobile",
			Browser:      "safari",
			Referrer:     "https://google.com",
			UTMSource:    "google",
			UTMMedium:    "cpc",
			UTMCampaign:  "spring",
			PageURL:      "https://shop.example/p/sp-001",
		},
		SequenceNum:       1,
		SessionStart:      ts.UnixNano(),
		SessionEnd:        ts.UnixNano(),
		SessionEventCount: 1,
		SessionJourney:    "add_to_cart",
	}
}

func TestBuildCreatesPartitionFile(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir)

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	events := []types.AnnotatedEvent{
		testEvent(1, "sess_a", base),
		testEvent(2, "sess_a", base.Add(2*time.Minute)),
		testEvent(3, "sess_b", base.Add(5*time.Minute)),
	}

	info, err := b.Build(context.Background(), events, "2026-03-15")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if info.RowCount != 3 {
		t.Errorf("row count: got %d, want 3", info.RowCount)
	}
	if info.DateKey != "2026-03-15" {
		t.Errorf("date key: got %q", info.DateKey)
	}
	if info.MinEventTime != base.UnixNano() {
		t.Errorf("min event time: got %d", info.MinEventTime)
	}
	if info.MaxEventTime != base.Add(5*time.Minute).UnixNano() {
		t.Errorf("max event time: got %d", info.MaxEventTime)
	}
	if info.SizeBytes <= 0 {
		t.Error("size bytes not recorded")
	}

	wantDir := filepath.Join(dir, "date=2026-03-15")
	if filepath.Dir(info.Path) != wantDir {
		t.Errorf("partition file in wrong directory: %s", info.Path)
	}
	if _, err := os.Stat(info.Path); err != nil {
		t.Fatalf("partition file missing: %v", err)
	}

	// No WAL sidecar files should survive the build.
	if _, err := os.Stat(info.Path + "-wal"); !os.IsNotExist(err) {
		t.Error("WAL sidecar left behind")
	}
}

func TestBuildRowsReadBack(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir)

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	events := []types.AnnotatedEvent{
		testEvent(1, "sess_a", base),
		testEvent(2, "sess_b", base.Add(time.Minute)),
	}

	info, err := b.Build(context.Background(), events, "2026-03-15")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	db, err := sql.Open("sqlite3", info.Path)
	if err != nil {
		t.Fatalf("open partition: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows, got %d", count)
	}

	var eventType string
	var eventTime int64
	var blob []byte
	err = db.QueryRow(
		"SELECT event_type, event_time, attribution FROM events WHERE event_id = ?",
		"evt_000000000001",
	).Scan(&eventType, &eventTime, &blob)
	if err != nil {
		t.Fatalf("row query: %v", err)
	}
	if eventType != "add_to_cart" {
		t.Errorf("event_type: got %q", eventType)
	}
	if eventTime != base.UnixNano() {
		t.Errorf("event_time: got %d", eventTime)
	}

	decoded, err := snappy.Decode(nil, blob)
	if err != nil {
		t.Fatalf("snappy decode: %v", err)
	}
	var attr map[string]string
	if err := json.Unmarshal(decoded, &attr); err != nil {
		t.Fatalf("attribution unmarshal: %v", err)
	}
	if attr["utm_source"] != "google" || attr["referrer"] != "https://google.com" {
		t.Errorf("attribution payload wrong: %v", attr)
	}
}

func TestBuildStatsTable(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(dir)

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	events := []types.AnnotatedEvent{
		testEvent(1, "sess_b", base.Add(time.Minute)),
		testEvent(2, "sess_a", base),
	}

	info, err := b.Build(context.Background(), events, "2026-03-15")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	db, err := sql.Open("sqlite3", info.Path)
	if err != nil {
		t.Fatalf("open partition: %v", err)
	}
	defer db.Close()

	var minV, maxV string
	err = db.QueryRow(
		"SELECT min_value, max_value FROM _cartflow_stats WHERE column_name = ?",
		"session_id",
	).Scan(&minV, &maxV)
	if err != nil {
		t.Fatalf("stats query: %v", err)
	}
	if minV != "sess_a" || maxV != "sess_b" {
		t.Errorf("session_id stats: got %q..%q", minV, maxV)
	}

	err = db.QueryRow(
		"SELECT min_value, max_value FROM _cartflow_stats WHERE column_name = ?",
		"event_time",
	).Scan(&minV, &maxV)
	if err != nil {
		t.Fatalf("event_time stats query: %v", err)
	}
	if minV != fmt.Sprintf("%d", base.UnixNano()) {
		t.Errorf("event_time min: got %q", minV)
	}
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	b := NewBuilder(t.TempDir())
	if _, err := b.Build(context.Background(), nil, "2026-03-15"); err == nil {
		t.Fatal("expected error for empty event slice")
	}
}
