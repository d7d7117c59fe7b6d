package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/miradorstack/mirador-eeg/internal/segment"
)

func TestCacheKeyStable(t *testing.T) {
	req := AnalysisRequest{Recording: "chb01/chb01_03.edf", StartTime: 2996, EndTime: 3036}
	key := req.CacheKey()

	assert.True(t, strings.HasPrefix(key, "eeg:analysis:"))
	assert.Len(t, strings.TrimPrefix(key, "eeg:analysis:"), 64)
	assert.Equal(t, key, req.CacheKey())

	filtered := req
	filtered.Filter = &FilterRequest{LowFreq: 0.5, HighFreq: 40, Order: 4}
	assert.NotEqual(t, key, filtered.CacheKey())

	clamped := req
	clamped.Clamp = true
	assert.NotEqual(t, key, clamped.CacheKey())
}

func TestResultPhase(t *testing.T) {
	r := AnalysisResult{Phases: []PhaseResult{{Phase: segment.Preictal}, {Phase: segment.Ictal, Samples: 10}}}

	p, ok := r.Phase(segment.Ictal)
	assert.True(t, ok)
	assert.Equal(t, 10, p.Samples)

	_, ok = r.Phase(segment.Postictal)
	assert.False(t, ok)
}
