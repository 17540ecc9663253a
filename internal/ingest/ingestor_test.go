package ingest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cartflow/cartflow/internal/config"
	"github.com/cartflow/cartflow/internal/normalize"
)

func pipelineConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Resolve()
	return cfg
}

func fullEvent(id, sessionID, ts string, overrides map[string]interface{}) map[string]interface{} {
	e := map[string]interface{}{
		"event_id":          id,
		"event_type":        "add_to_cart",
		"timestamp":         ts,
		"session_id":        sessionID,
		"customer_id":       "CUST-9",
		"product_id":        "SP-001",
		"product_name":      "Banh mi",
		"product_price_vnd": 25000,
		"product_price_usd": 1.02,
		"quantity":          1,
		"line_total_vnd":    25000,
		"line_total_usd":    1.02,
		"source":            "web",
		"device":            "mobile",
		"browser":           "chrome",
	}
	for k, v := range overrides {
		e[k] = v
	}
	return e
}

func TestIngestorEndToEnd(t *testing.T) {
	// 5 raw events: one duplicate id, one invalid, three accepted across
	// two sessions separated by more than the session gap.
	path := writeFixture(t, []map[string]interface{}{
		fullEvent("evt_1", "sess_a", "2026-03-15T10:00:00Z", nil),
		fullEvent("evt_2", "sess_a", "2026-03-15T10:05:00Z", map[string]interface{}{"event_type": "purchase"}),
		fullEvent("evt_2", "sess_a", "2026-03-15T10:06:00Z", nil), // duplicate id
		fullEvent("evt_3", "sess_a", "", map[string]interface{}{"timestamp": "not-a-time"}),
		fullEvent("evt_4", "sess_b", "2026-03-15T11:00:00Z", nil),
	})

	outputDir := t.TempDir()
	ctx := context.Background()

	in, err := NewIngestor(ctx, pipelineConfig(), outputDir, "", nil)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	report, err := in.Run(ctx, path, 0, -1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.EventsRead != 5 {
		t.Errorf("events read: got %d, want 5", report.EventsRead)
	}
	if report.Accepted != 3 {
		t.Errorf("accepted: got %d, want 3", report.Accepted)
	}
	if report.DuplicatesDropped != 1 {
		t.Errorf("duplicates: got %d, want 1", report.DuplicatesDropped)
	}
	if report.ValidationDropped != 1 {
		t.Errorf("validation drops: got %d, want 1", report.ValidationDropped)
	}
	if report.DroppedByReason[normalize.RejectBadTimestamp] != 1 {
		t.Errorf("drop reasons: %v", report.DroppedByReason)
	}
	// sess_a and sess_b are separated by 55 minutes, well past the 30
	// minute gap.
	if report.SessionsEmitted != 2 {
		t.Errorf("sessions: got %d, want 2", report.SessionsEmitted)
	}
	if report.ReopenedSessions != 0 {
		t.Errorf("reopened: got %d, want 0", report.ReopenedSessions)
	}

	db, err := sql.Open("sqlite3", filepath.Join(outputDir, "sessions.sqlite"))
	if err != nil {
		t.Fatalf("open sessions: %v", err)
	}
	defer db.Close()

	var journey string
	var hasPurchase int
	err = db.QueryRow(
		"SELECT event_journey, has_purchase FROM sessions WHERE session_id = ?", "sess_a",
	).Scan(&journey, &hasPurchase)
	if err != nil {
		t.Fatalf("query sess_a: %v", err)
	}
	if journey != "add_to_cart,purchase" {
		t.Errorf("sess_a journey: %q", journey)
	}
	if hasPurchase != 1 {
		t.Error("sess_a should have a purchase")
	}
}

func TestIngestorShardRange(t *testing.T) {
	events := make([]map[string]interface{}, 10)
	for i := range events {
		ts := []string{
			"2026-03-15T10:00:00Z", "2026-03-15T10:01:00Z", "2026-03-15T10:02:00Z",
			"2026-03-15T10:03:00Z", "2026-03-15T10:04:00Z", "2026-03-15T10:05:00Z",
			"2026-03-15T10:06:00Z", "2026-03-15T10:07:00Z", "2026-03-15T10:08:00Z",
			"2026-03-15T10:09:00Z",
		}[i]
		events[i] = fullEvent("evt_"+ts, "sess_x", ts, nil)
	}
	path := writeFixture(t, events)

	ctx := context.Background()
	in, err := NewIngestor(ctx, pipelineConfig(), t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	report, err := in.Run(ctx, path, 3, 7)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.EventsRead != 4 {
		t.Errorf("range [3,7): read %d events, want 4", report.EventsRead)
	}
	if report.Accepted != 4 {
		t.Errorf("range [3,7): accepted %d, want 4", report.Accepted)
	}
}

func TestIngestorRangeBeyondEOF(t *testing.T) {
	path := writeFixture(t, []map[string]interface{}{
		fullEvent("evt_1", "sess_a", "2026-03-15T10:00:00Z", nil),
	})

	ctx := context.Background()
	in, err := NewIngestor(ctx, pipelineConfig(), t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	report, err := in.Run(ctx, path, 5, 10)
	if err != nil {
		t.Fatalf("run past EOF should succeed: %v", err)
	}
	if report.EventsRead != 0 {
		t.Errorf("expected 0 events read, got %d", report.EventsRead)
	}
}

func TestIngestorMalformedStreamIsFatal(t *testing.T) {
	path := writeRawFixture(t, `[{"event_id": "evt_1", "event_type": "add_to_cart", "timestamp": "2026-03-15T10:00:00Z", "session_id": "s"}, {"broken": ]`)

	ctx := context.Background()
	in, err := NewIngestor(ctx, pipelineConfig(), t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	if _, err := in.Run(ctx, path, 0, -1); err == nil {
		t.Fatal("expected fatal error for malformed stream")
	}
}

func TestIngestorHonorsContextCancel(t *testing.T) {
	path := writeFixture(t, []map[string]interface{}{
		fullEvent("evt_1", "sess_a", "2026-03-15T10:00:00Z", nil),
		fullEvent("evt_2", "sess_a", "2026-03-15T10:01:00Z", nil),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in, err := NewIngestor(context.Background(), pipelineConfig(), t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	if _, err := in.Run(ctx, path, 0, -1); err == nil {
		t.Fatal("expected context cancellation error")
	}
}
