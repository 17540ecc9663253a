// Package session assembles finalized session records from a
// timestamp-ordered event stream using only a bounded active window of
// in-flight sessions. The algorithm relies on two structural guarantees
// of the input: events arrive in non-decreasing timestamp order, and a
// session is over once the configured maximum gap has elapsed since its
// last event. A monotonic watermark (the newest event timestamp seen)
// drives eviction instead of wall-clock time, so runs are deterministic
// and replayable.
package session

import (
	"log"
	"time"

	"github.com/cartflow/cartflow/pkg/types"
)

// Sink receives finalized session records.
type Sink interface {
	WriteSession(rec types.SessionRecord) error
}

// Windower is the session window manager for one shard. It is not safe
// for concurrent use; each shard pipeline owns its own instance.
type Windower struct {
	gap    int64 // nanoseconds
	stride int64 // watermark advance between eviction sweeps

	active    map[string]*Accumulator
	watermark int64
	lastSweep int64
	started   bool

	sink Sink

	emitted    int64
	reopened   int64
	peakActive int
}

// NewWindower creates a session window manager. gap is the maximum
// session gap G; stride amortizes the eviction sweep (zero sweeps on
// every event).
func NewWindower(gap, stride time.Duration, sink Sink) *Windower {
	return &Windower{
		gap:    int64(gap),
		stride: int64(stride),
		active: make(map[string]*Accumulator),
		sink:   sink,
	}
}

// Observe processes one accepted event: advances the watermark, updates
// or seeds the session accumulator, and runs the eviction sweep. The
// returned AnnotatedEvent carries provisional session fields and must be
// written downstream immediately; finalized sessions flow to the sink.
func (w *Windower) Observe(e *types.CanonicalEvent) (types.AnnotatedEvent, error) {
	// The watermark only moves forward; an out-of-order event must not
	// drag it back and resurrect eviction-eligible sessions.
	if !w.started || e.Timestamp > w.watermark {
		w.watermark = e.Timestamp
	}
	if !w.started {
		w.lastSweep = w.watermark
		w.started = true
	}

	acc, ok := w.active[e.SessionID]
	if ok && acc.LastSeen+w.gap <= e.Timestamp {
		// A full gap elapsed within the same session id. Finalize the old
		// occurrence here rather than waiting for the sweep, so the split
		// does not depend on the sweep stride.
		if err := w.emit(acc); err != nil {
			return types.AnnotatedEvent{}, err
		}
		delete(w.active, e.SessionID)
		ok = false
	}
	if !ok {
		// A session absent from the active map whose event is already
		// older than watermark-G was evicted earlier: the ordering
		// guarantee was violated upstream. Reopen it; the session will
		// produce a second record.
		if e.Timestamp+w.gap <= w.watermark {
			w.reopened++
			log.Printf("session: reopening session %s: event %s is %v behind the watermark",
				e.SessionID, e.EventID, time.Duration(w.watermark-e.Timestamp))
		}
		acc = newAccumulator(e)
		w.active[e.SessionID] = acc
		if len(w.active) > w.peakActive {
			w.peakActive = len(w.active)
		}
	}

	seq := acc.append(e)

	annotated := types.AnnotatedEvent{
		CanonicalEvent:         *e,
		SequenceNum:            seq,
		SessionStart:           acc.FirstSeen,
		SessionEnd:             acc.LastSeen,
		SessionDurationSeconds: acc.DurationSeconds(),
		SessionEventCount:      acc.Count,
		SessionJourney:         acc.Journey(),
	}

	if w.watermark-w.lastSweep >= w.stride {
		if err := w.sweep(); err != nil {
			return annotated, err
		}
	}

	return annotated, nil
}

// sweep finalizes and evicts every accumulator that can no longer receive
// events: lastSeen + gap ≤ watermark.
func (w *Windower) sweep() error {
	w.lastSweep = w.watermark
	for id, acc := range w.active {
		if acc.LastSeen+w.gap <= w.watermark {
			if err := w.emit(acc); err != nil {
				return err
			}
			delete(w.active, id)
		}
	}
	return nil
}

// Flush finalizes all remaining active sessions unconditionally. Called
// at end of input, when no further events can arrive.
func (w *Windower) Flush() error {
	for id, acc := range w.active {
		if err := w.emit(acc); err != nil {
			return err
		}
		delete(w.active, id)
	}
	return nil
}

func (w *Windower) emit(acc *Accumulator) error {
	if err := w.sink.WriteSession(acc.finalize()); err != nil {
		return err
	}
	w.emitted++
	return nil
}

// ActiveSessions returns the current active-map size.
func (w *Windower) ActiveSessions() int {
	return len(w.active)
}

// PeakActiveSessions returns the maximum active-map size observed.
func (w *Windower) PeakActiveSessions() int {
	return w.peakActive
}

// SessionsEmitted returns the number of finalized session records.
func (w *Windower) SessionsEmitted() int64 {
	return w.emitted
}

// ReopenedSessions returns how many sessions were reopened after
// eviction, which only happens when the input ordering guarantee was
// violated upstream.
func (w *Windower) ReopenedSessions() int64 {
	return w.reopened
}

// Watermark returns the current watermark in epoch nanoseconds.
func (w *Windower) Watermark() int64 {
	return w.watermark
}
