package ingest

import (
	"log"
	"runtime"
	"sync/atomic"
	"time"
)

// Tracker logs ingestion progress at a fixed event interval and exposes a
// heartbeat for stall detection. Record is called from the pipeline
// goroutine; LastHeartbeat may be read from a watchdog goroutine.
type Tracker struct {
	interval int64
	started  time.Time

	processed atomic.Int64
	heartbeat atomic.Int64 // unix nanos of last Record call
}

// NewTracker creates a progress tracker logging every interval events.
func NewTracker(interval int64) *Tracker {
	t := &Tracker{
		interval: interval,
		started:  time.Now(),
	}
	t.heartbeat.Store(time.Now().UnixNano())
	return t
}

// Record counts one processed event.
func (t *Tracker) Record() {
	n := t.processed.Add(1)
	t.heartbeat.Store(time.Now().UnixNano())

	if t.interval > 0 && n%t.interval == 0 {
		elapsed := time.Since(t.started)
		rate := float64(n) / elapsed.Seconds()

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		log.Printf("ingest: processed %d events in %v (%.0f events/s, heap %d MiB)",
			n, elapsed.Round(time.Second), rate, mem.Alloc/(1<<20))
	}
}

// Processed returns the number of events recorded so far.
func (t *Tracker) Processed() int64 {
	return t.processed.Load()
}

// LastHeartbeat returns when progress was last recorded.
func (t *Tracker) LastHeartbeat() time.Time {
	return time.Unix(0, t.heartbeat.Load())
}
