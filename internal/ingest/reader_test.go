package ingest

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cartflow/cartflow/pkg/types"
)

// writeFixture gzips a JSON array of events into a temp file.
func writeFixture(t *testing.T, events []map[string]interface{}) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "events.json.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(events); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return path
}

func writeRawFixture(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "events.json.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return path
}

func fixtureEvent(id, sessionID, ts string) map[string]interface{} {
	return map[string]interface{}{
		"event_id":   id,
		"event_type": "add_to_cart",
		"timestamp":  ts,
		"session_id": sessionID,
	}
}

func TestReaderStreamsArray(t *testing.T) {
	path := writeFixture(t, []map[string]interface{}{
		fixtureEvent("evt_1", "sess_a", "2026-03-15T10:00:00Z"),
		fixtureEvent("evt_2", "sess_a", "2026-03-15T10:01:00Z"),
	})

	r, err := OpenEventReader(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	var raw types.RawEvent
	if err := r.Next(&raw); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if raw.EventID != "evt_1" {
		t.Errorf("first event id: %q", raw.EventID)
	}

	raw = types.RawEvent{}
	if err := r.Next(&raw); err != nil {
		t.Fatalf("second event: %v", err)
	}
	if raw.EventID != "evt_2" {
		t.Errorf("second event id: %q", raw.EventID)
	}

	if err := r.Next(&raw); err != io.EOF {
		t.Errorf("expected EOF after last event, got %v", err)
	}
}

func TestReaderRejectsNonArray(t *testing.T) {
	path := writeRawFixture(t, `{"not": "an array"}`)
	if _, err := OpenEventReader(path); err == nil {
		t.Fatal("expected error for non-array input")
	}
}

func TestReaderRejectsPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.json")
	if err := os.WriteFile(path, []byte("[]"), 0644); err != nil {
		t.Fatalf("write plain file: %v", err)
	}
	if _, err := OpenEventReader(path); err == nil {
		t.Fatal("expected error for uncompressed input")
	}
}

func TestReaderMalformedElement(t *testing.T) {
	path := writeRawFixture(t, `[{"event_id": "evt_1"}, {"event_id": }]`)

	r, err := OpenEventReader(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	var raw types.RawEvent
	if err := r.Next(&raw); err != nil {
		t.Fatalf("first event should decode: %v", err)
	}
	if err := r.Next(&raw); err == nil || err == io.EOF {
		t.Fatalf("expected decode error for malformed element, got %v", err)
	}
}

func TestCountEvents(t *testing.T) {
	events := make([]map[string]interface{}, 7)
	for i := range events {
		events[i] = fixtureEvent("evt", "sess", "2026-03-15T10:00:00Z")
	}
	path := writeFixture(t, events)

	n, err := CountEvents(path)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 7 {
		t.Errorf("count: got %d, want 7", n)
	}
}

func TestCountEventsEmptyArray(t *testing.T) {
	path := writeRawFixture(t, `[]`)
	n, err := CountEvents(path)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("count: got %d, want 0", n)
	}
}
