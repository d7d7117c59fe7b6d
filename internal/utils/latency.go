package utils

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// LatencyTracker keeps the most recent analysis durations in a ring and reports
// percentiles over them. It is safe for concurrent use.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []time.Duration
	next    int
	full    bool
}

// NewLatencyTracker creates a tracker holding up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{samples: make([]time.Duration, maxSize)}
}

// Observe records a duration, overwriting the oldest once full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = d
	l.next = (l.next + 1) % len(l.samples)
	if l.next == 0 {
		l.full = true
	}
}

// Count returns the number of samples held.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count()
}

func (l *LatencyTracker) count() int {
	if l.full {
		return len(l.samples)
	}
	return l.next
}

// Percentile returns the p-th percentile (0-100) duration, zero without samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	data := make(stats.Float64Data, l.count())
	for i := range data {
		data[i] = float64(l.samples[i])
	}
	l.mu.RUnlock()

	if len(data) == 0 {
		return 0
	}
	var (
		v   float64
		err error
	)
	switch {
	case p <= 0:
		v, err = data.Min()
	case p >= 100:
		v, err = data.Max()
	default:
		v, err = data.PercentileNearestRank(p)
	}
	if err != nil {
		return 0
	}
	return time.Duration(v)
}
