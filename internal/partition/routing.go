package partition

import (
	"fmt"
	"time"
)

// DateKey produces the YYYY-MM-DD partition key from a Unix nanosecond
// timestamp, in UTC.
func DateKey(eventTimeNanos int64) string {
	return time.Unix(0, eventTimeNanos).UTC().Format("2006-01-02")
}

// Dir returns the Hive-style partition directory name for a date key.
func Dir(dateKey string) string {
	return fmt.Sprintf("date=%s", dateKey)
}
