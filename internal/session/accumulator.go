package session

import (
	"strings"
	"time"

	"github.com/cartflow/cartflow/pkg/types"
)

// EventSummary is the per-event state retained inside an accumulator:
// just enough to rebuild the journey, nothing else.
type EventSummary struct {
	Kind      types.EventKind
	Timestamp int64
	ProductID string
}

// Accumulator holds the in-flight state for one session. Identity fields
// are fixed at the first event; LastSeen is monotonically non-decreasing
// as events are appended.
type Accumulator struct {
	SessionID  string
	CustomerID string
	Source     string
	Device     string
	Browser    string

	FirstSeen int64
	LastSeen  int64
	Count     int64

	Summaries []EventSummary
}

// newAccumulator seeds an accumulator from a session's first event.
func newAccumulator(e *types.CanonicalEvent) *Accumulator {
	return &Accumulator{
		SessionID:  e.SessionID,
		CustomerID: e.CustomerID,
		Source:     e.Source,
		Device:     e.Device,
		Browser:    e.Browser,
		FirstSeen:  e.Timestamp,
		LastSeen:   e.Timestamp,
	}
}

// append records one event and returns its 1-based sequence number.
func (a *Accumulator) append(e *types.CanonicalEvent) int64 {
	a.Summaries = append(a.Summaries, EventSummary{
		Kind:      e.Kind,
		Timestamp: e.Timestamp,
		ProductID: e.ProductID,
	})
	if e.Timestamp > a.LastSeen {
		a.LastSeen = e.Timestamp
	}
	a.Count++
	return a.Count
}

// Journey returns the comma-joined event kinds in arrival order.
func (a *Accumulator) Journey() string {
	var b strings.Builder
	for i, s := range a.Summaries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(s.Kind))
	}
	return b.String()
}

// DurationSeconds returns the session span so far.
func (a *Accumulator) DurationSeconds() float64 {
	return float64(a.LastSeen-a.FirstSeen) / float64(time.Second)
}

// finalize projects the accumulator into an immutable SessionRecord.
func (a *Accumulator) finalize() types.SessionRecord {
	hasPurchase := false
	for _, s := range a.Summaries {
		if s.Kind == types.KindPurchase {
			hasPurchase = true
			break
		}
	}

	return types.SessionRecord{
		SessionID:       a.SessionID,
		CustomerID:      a.CustomerID,
		Source:          a.Source,
		Device:          a.Device,
		Browser:         a.Browser,
		StartTime:       a.FirstSeen,
		EndTime:         a.LastSeen,
		DurationSeconds: a.DurationSeconds(),
		EventCount:      a.Count,
		Journey:         a.Journey(),
		HasPurchase:     hasPurchase,
	}
}
