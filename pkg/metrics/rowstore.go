package metrics

import (
	"errors"
	"time"

	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/prometheus/client_golang/prometheus"
)

// RowStoreMetrics records row store operation latency and outcomes. It
// satisfies rowstore.Observer.
type RowStoreMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

var _ rowstore.Observer = (*RowStoreMetrics)(nil)

// NewRowStoreMetrics registers the row store metrics on the provided registerer.
func NewRowStoreMetrics(reg prometheus.Registerer) *RowStoreMetrics {
	if reg == nil {
		return &RowStoreMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rowstore_operation_duration_seconds",
		Help:    "Duration of row store operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sheet", "op"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rowstore_operations_total",
		Help: "Row store operations by outcome.",
	}, []string{"sheet", "op", "outcome"})
	reg.MustRegister(duration, total)
	return &RowStoreMetrics{duration: duration, total: total}
}

// Observe implements rowstore.Observer.
func (m *RowStoreMetrics) Observe(sheet, op string, elapsed time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	sheet = normalizeLabel(sheet)
	op = normalizeLabel(op)
	m.duration.WithLabelValues(sheet, op).Observe(elapsed.Seconds())
	m.total.WithLabelValues(sheet, op, outcome(err)).Inc()
}

// outcome separates expected misses from real failures so alerts can key on "error".
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, rowstore.ErrNotFound):
		return "not_found"
	case errors.Is(err, rowstore.ErrConflict), errors.Is(err, rowstore.ErrDuplicateKey):
		return "conflict"
	case errors.Is(err, rowstore.ErrMalformedRow):
		return "malformed"
	default:
		return "error"
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
