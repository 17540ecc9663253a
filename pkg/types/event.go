// Package types provides core data types for the Cartflow pipeline.
package types

// EventKind categorizes a cart interaction event.
type EventKind string

const (
	KindAddToCart      EventKind = "add_to_cart"
	KindRemoveFromCart EventKind = "remove_from_cart"
	KindUpdateQuantity EventKind = "update_quantity"
	KindViewItem       EventKind = "view_item"
	KindPurchase       EventKind = "purchase"
)

// Known reports whether the kind is one of the enumerated cart event kinds.
func (k EventKind) Known() bool {
	switch k {
	case KindAddToCart, KindRemoveFromCart, KindUpdateQuantity, KindViewItem, KindPurchase:
		return true
	}
	return false
}

// RawEvent is one item of the producer's JSON array, before validation.
// Numeric and identifier fields the producer is allowed to omit or mistype
// are decoded loosely (interface{}) and coerced by the normalizer.
type RawEvent struct {
	EventID       string `json:"event_id"`
	EventType     string `json:"event_type"`
	Timestamp     string `json:"timestamp"`
	TimestampUnix int64  `json:"timestamp_unix"` // epoch milliseconds, optional

	SessionID  string      `json:"session_id"`
	CustomerID interface{} `json:"customer_id"`

	ProductID   interface{} `json:"product_id"`
	ProductName string      `json:"product_name"`

	PriceVND     interface{} `json:"product_price_vnd"`
	PriceUSD     interface{} `json:"product_price_usd"`
	Quantity     interface{} `json:"quantity"`
	OldQuantity  interface{} `json:"old_quantity"`
	LineTotalVND interface{} `json:"line_total_vnd"`
	LineTotalUSD interface{} `json:"line_total_usd"`

	Source      string `json:"source"`
	Device      string `json:"device"`
	Browser     string `json:"browser"`
	Referrer    string `json:"referrer"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	PageURL     string `json:"page_url"`
}

// CanonicalEvent is a RawEvent after validation and coercion. Invariant:
// EventID, SessionID and Kind are non-empty and Timestamp is ≥ 0.
type CanonicalEvent struct {
	EventID    string    `json:"event_id"`
	Kind       EventKind `json:"event_type"`
	Timestamp  int64     `json:"event_time"` // epoch nanoseconds, UTC
	SessionID  string    `json:"session_id"`
	CustomerID string    `json:"customer_id"`

	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`

	PriceVND     float64 `json:"price_vnd"`
	PriceUSD     float64 `json:"price_usd"`
	Quantity     int64   `json:"quantity"`
	OldQuantity  int64   `json:"old_quantity"`
	LineTotalVND float64 `json:"line_total_vnd"`
	LineTotalUSD float64 `json:"line_total_usd"`

	Source      string `json:"source"`
	Device      string `json:"device"`
	Browser     string `json:"browser"`
	Referrer    string `json:"referrer"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	PageURL     string `json:"page_url"`
}

// AnnotatedEvent is a CanonicalEvent enriched with its position within its
// session. The session fields are provisional: they reflect the session
// state at the time the event was processed and are only final once the
// session closes. Consumers needing final session metrics must join
// against SessionRecord.
type AnnotatedEvent struct {
	CanonicalEvent

	// SequenceNum is the 1-based position of this event within its session.
	SequenceNum int64 `json:"event_sequence_num"`

	SessionStart           int64   `json:"session_start"`
	SessionEnd             int64   `json:"session_end"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
	SessionEventCount      int64   `json:"session_event_count"`
	SessionJourney         string  `json:"session_journey"`
}
