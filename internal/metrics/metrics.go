package metrics

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/mirador-eeg/internal/signal"
)

const (
	// OutcomeSuccess labels completed analyses.
	OutcomeSuccess = "success"
	// OutcomeError labels failed analyses.
	OutcomeError = "error"

	// CacheHit and CacheMiss label result cache lookups.
	CacheHit  = "hit"
	CacheMiss = "miss"
	// CacheError labels lookups the backend could not answer.
	CacheError = "error"
)

// Failure kinds reported by FailureKind.
const (
	KindInvalidFilter      = "invalid_filter"
	KindInvalidWindow      = "invalid_window"
	KindInsufficientMargin = "insufficient_margin"
	KindEmptySignal        = "empty_signal"
	KindShapeMismatch      = "shape_mismatch"
	KindNotFound           = "not_found"
	KindCanceled           = "canceled"
	KindInternal           = "internal"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_eeg",
			Name:      "analyses_total",
			Help:      "Total number of phase analyses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_eeg",
			Name:      "analysis_seconds",
			Help:      "Phase analysis latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	analysisFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_eeg",
			Name:      "analysis_failures_total",
			Help:      "Failed phase analyses, partitioned by failure kind.",
		},
		[]string{"kind"},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_eeg",
			Name:      "cache_requests_total",
			Help:      "Result cache lookups, partitioned by result.",
		},
		[]string{"result"},
	)
)

// Register attaches mirador-eeg collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		analysisFailuresTotal,
		cacheRequestsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveFailure counts a failed analysis by the kind of err.
func ObserveFailure(err error) {
	analysisFailuresTotal.WithLabelValues(FailureKind(err)).Inc()
}

// ObserveCache counts a result cache lookup.
func ObserveCache(result string) {
	switch result {
	case CacheHit, CacheMiss:
	default:
		result = CacheError
	}
	cacheRequestsTotal.WithLabelValues(result).Inc()
}

// FailureKind classifies err into a low-cardinality label.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, signal.ErrInvalidFilterSpec):
		return KindInvalidFilter
	case errors.Is(err, signal.ErrInvalidWindow):
		return KindInvalidWindow
	case errors.Is(err, signal.ErrInsufficientMargin):
		return KindInsufficientMargin
	case errors.Is(err, signal.ErrEmptySignal):
		return KindEmptySignal
	case errors.Is(err, signal.ErrShapeMismatch):
		return KindShapeMismatch
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
