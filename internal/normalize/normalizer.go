// Package normalize validates and coerces raw cart events into canonical
// typed records. Normalization is a pure function: one input value, one
// output value, no side effects.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cartflow/cartflow/pkg/types"
)

// RejectReason classifies why a raw event failed validation.
type RejectReason string

const (
	RejectMissingField   RejectReason = "missing_field"
	RejectBadTimestamp   RejectReason = "bad_timestamp"
	RejectInvalidNumeric RejectReason = "invalid_numeric"
)

// Rejection describes a dropped raw event.
type Rejection struct {
	Reason RejectReason
	Field  string
}

func (r *Rejection) String() string {
	return fmt.Sprintf("%s (%s)", r.Reason, r.Field)
}

// Sentinel values substituted for missing optional fields.
const (
	unknownValue   = "unknown"
	directReferrer = "direct"
)

// Normalizer converts raw events into canonical events.
type Normalizer struct{}

// NewNormalizer creates a new normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize validates and coerces one raw event. On success the rejection
// is nil. Rules are applied in order: required fields, timestamp parse,
// numeric coercion, attribution defaults.
func (n *Normalizer) Normalize(raw *types.RawEvent) (types.CanonicalEvent, *Rejection) {
	var ev types.CanonicalEvent

	// Required fields must be present and non-empty.
	if raw.EventID == "" {
		return ev, &Rejection{Reason: RejectMissingField, Field: "event_id"}
	}
	if raw.SessionID == "" {
		return ev, &Rejection{Reason: RejectMissingField, Field: "session_id"}
	}
	if raw.EventType == "" {
		return ev, &Rejection{Reason: RejectMissingField, Field: "event_type"}
	}
	if raw.Timestamp == "" && raw.TimestampUnix == 0 {
		return ev, &Rejection{Reason: RejectMissingField, Field: "timestamp"}
	}

	ts, ok := parseTimestamp(raw.Timestamp, raw.TimestampUnix)
	if !ok {
		return ev, &Rejection{Reason: RejectBadTimestamp, Field: "timestamp"}
	}

	ev.EventID = raw.EventID
	ev.Kind = types.EventKind(raw.EventType)
	ev.Timestamp = ts
	ev.SessionID = raw.SessionID
	ev.CustomerID = coerceString(raw.CustomerID)
	ev.ProductID = coerceString(raw.ProductID)
	ev.ProductName = raw.ProductName

	// Numeric fields: missing coerces to zero, negative or non-numeric
	// values reject the record.
	numerics := []struct {
		field string
		value interface{}
		dst   *float64
	}{
		{"product_price_vnd", raw.PriceVND, &ev.PriceVND},
		{"product_price_usd", raw.PriceUSD, &ev.PriceUSD},
		{"line_total_vnd", raw.LineTotalVND, &ev.LineTotalVND},
		{"line_total_usd", raw.LineTotalUSD, &ev.LineTotalUSD},
	}
	for _, nf := range numerics {
		v, ok := coerceNumber(nf.value)
		if !ok || v < 0 {
			return types.CanonicalEvent{}, &Rejection{Reason: RejectInvalidNumeric, Field: nf.field}
		}
		*nf.dst = v
	}

	qty, ok := coerceNumber(raw.Quantity)
	if !ok || qty < 0 {
		return types.CanonicalEvent{}, &Rejection{Reason: RejectInvalidNumeric, Field: "quantity"}
	}
	ev.Quantity = int64(qty)

	oldQty, ok := coerceNumber(raw.OldQuantity)
	if !ok || oldQty < 0 {
		return types.CanonicalEvent{}, &Rejection{Reason: RejectInvalidNumeric, Field: "old_quantity"}
	}
	ev.OldQuantity = int64(oldQty)

	// Context fields with sentinel defaults.
	ev.Source = orDefault(raw.Source, unknownValue)
	ev.Device = orDefault(raw.Device, unknownValue)
	ev.Browser = orDefault(raw.Browser, unknownValue)
	ev.Referrer = orDefault(raw.Referrer, directReferrer)
	ev.UTMSource = orDefault(raw.UTMSource, unknownValue)
	ev.UTMMedium = orDefault(raw.UTMMedium, unknownValue)
	ev.UTMCampaign = orDefault(raw.UTMCampaign, unknownValue)
	ev.PageURL = raw.PageURL

	return ev, nil
}

// parseTimestamp parses the producer's timestamp formats: RFC3339 (with or
// without fractional seconds), a bare ISO local time, or the epoch-millis
// fallback field.
func parseTimestamp(s string, unixMillis int64) (int64, bool) {
	if s != "" {
		layouts := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05.999999",
			"2006-01-02T15:04:05",
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				if t.UnixNano() < 0 {
					return 0, false
				}
				return t.UTC().UnixNano(), true
			}
		}
		return 0, false
	}
	if unixMillis < 0 {
		return 0, false
	}
	return unixMillis * int64(time.Millisecond), true
}

// coerceNumber converts a loosely decoded JSON value to a float64.
// Missing values (nil) coerce to zero.
func coerceNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		if x == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// coerceString converts a loosely decoded identifier to its string form.
// Integral identifiers (JSON numbers) are rendered without an exponent.
func coerceString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
