package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	cferrors "github.com/cartflow/cartflow/internal/errors"
	"github.com/cartflow/cartflow/pkg/types"
)

// dailyStats accumulates per-date aggregates during the run. Distinct
// counts use maps; their memory is bounded by per-day cardinality, which
// is a small fraction of the full input.
type dailyStats struct {
	events    int64
	sessions  map[string]struct{}
	customers map[string]struct{}
	kinds     map[types.EventKind]int64
	revVND    float64
	revUSD    float64
}

func newDailyStats() *dailyStats {
	return &dailyStats{
		sessions:  make(map[string]struct{}),
		customers: make(map[string]struct{}),
		kinds:     make(map[types.EventKind]int64),
	}
}

func (d *dailyStats) observe(e *types.AnnotatedEvent) {
	d.events++
	d.sessions[e.SessionID] = struct{}{}
	d.customers[e.CustomerID] = struct{}{}
	d.kinds[e.Kind]++
	if e.Kind == types.KindPurchase {
		d.revVND += e.LineTotalVND
		d.revUSD += e.LineTotalUSD
	}
}

var summaryKinds = []types.EventKind{
	types.KindAddToCart,
	types.KindRemoveFromCart,
	types.KindUpdateQuantity,
	types.KindViewItem,
	types.KindPurchase,
}

// writeDailySummary writes daily_summary.csv under outputDir, one row per
// date key in ascending order.
func writeDailySummary(outputDir string, daily map[string]*dailyStats) (string, error) {
	path := filepath.Join(outputDir, "daily_summary.csv")

	f, err := os.Create(path)
	if err != nil {
		return "", cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to create daily summary", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"date", "total_events", "unique_sessions", "unique_customers"}
	for _, k := range summaryKinds {
		header = append(header, string(k))
	}
	header = append(header, "purchase_revenue_vnd", "purchase_revenue_usd")
	if err := w.Write(header); err != nil {
		return "", cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to write summary header", err)
	}

	dates := make([]string, 0, len(daily))
	for d := range daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	for _, date := range dates {
		s := daily[date]
		row := []string{
			date,
			fmt.Sprintf("%d", s.events),
			fmt.Sprintf("%d", len(s.sessions)),
			fmt.Sprintf("%d", len(s.customers)),
		}
		for _, k := range summaryKinds {
			row = append(row, fmt.Sprintf("%d", s.kinds[k]))
		}
		row = append(row, fmt.Sprintf("%.2f", s.revVND), fmt.Sprintf("%.2f", s.revUSD))
		if err := w.Write(row); err != nil {
			return "", cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to write summary row", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", cferrors.NewStorageError(cferrors.CodeFlushFailed, "failed to flush daily summary", err)
	}

	return path, nil
}
