// Package ingest streams compressed cart event exports through the
// normalize, dedup, and session stages without ever holding the full
// input in memory.
package ingest

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"

	cferrors "github.com/cartflow/cartflow/internal/errors"
	"github.com/cartflow/cartflow/pkg/types"
)

// EventReader streams raw events out of a gzip-compressed JSON array
// export. Memory use is bounded by the largest single event, not the
// file size.
type EventReader struct {
	file *os.File
	gz   *gzip.Reader
	dec  *json.Decoder
}

// OpenEventReader opens path and positions the decoder inside the
// top-level array.
func OpenEventReader(path string) (*EventReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, cferrors.NewIngestError("failed to open input file", err)
	}

	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, cferrors.NewIngestError("input is not valid gzip", err)
	}

	dec := json.NewDecoder(gz)

	tok, err := dec.Token()
	if err != nil {
		gz.Close()
		file.Close()
		return nil, cferrors.NewIngestError("failed to read input", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		gz.Close()
		file.Close()
		return nil, cferrors.NewIngestError(fmt.Sprintf("expected top-level JSON array, got %v", tok), nil)
	}

	return &EventReader{file: file, gz: gz, dec: dec}, nil
}

// Next decodes the next event. Returns io.EOF when the array ends.
func (r *EventReader) Next(raw *types.RawEvent) error {
	if !r.dec.More() {
		return io.EOF
	}
	if err := r.dec.Decode(raw); err != nil {
		return cferrors.NewIngestError("malformed event in input stream", err)
	}
	return nil
}

// Skip consumes the next event without decoding its fields. Used to fast
// forward to a shard's start index.
func (r *EventReader) Skip() error {
	if !r.dec.More() {
		return io.EOF
	}
	var raw json.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		return cferrors.NewIngestError("malformed event in input stream", err)
	}
	return nil
}

// Close releases the underlying readers.
func (r *EventReader) Close() error {
	gzErr := r.gz.Close()
	fileErr := r.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}

// CountEvents streams the whole file and returns the number of events in
// the array. Used by the coordinator to plan shard ranges.
func CountEvents(path string) (int64, error) {
	r, err := OpenEventReader(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var count int64
	for {
		if err := r.Skip(); err != nil {
			if err == io.EOF {
				return count, nil
			}
			return 0, err
		}
		count++
	}
}
