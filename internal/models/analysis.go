package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-eeg/internal/filter"
	"github.com/miradorstack/mirador-eeg/internal/segment"
	"github.com/miradorstack/mirador-eeg/internal/stats"
)

// FilterRequest selects a band-pass filter. The sampling frequency comes from
// the recording.
type FilterRequest struct {
	LowFreq  float64 `json:"low_freq"`
	HighFreq float64 `json:"high_freq"`
	Order    int     `json:"order"`
}

// AnalysisRequest asks for the phase analysis of one seizure in a recording.
type AnalysisRequest struct {
	// Recording is a path relative to the data directory.
	Recording string  `json:"recording"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	// SamplingFreq overrides the rate read from the recording when positive.
	SamplingFreq    float64        `json:"sampling_freq,omitempty"`
	Filter          *FilterRequest `json:"filter,omitempty"`
	CorrelationMode string         `json:"correlation_mode,omitempty"`
	Clamp           bool           `json:"clamp,omitempty"`
	Export          bool           `json:"export,omitempty"`
}

// CacheKey identifies the request for result caching.
func (r AnalysisRequest) CacheKey() string {
	raw, _ := json.Marshal(r)
	sum := sha256.Sum256(raw)
	return "eeg:analysis:" + hex.EncodeToString(sum[:])
}

// AnalysisResult is the outcome of a phase analysis.
type AnalysisResult struct {
	ID         uuid.UUID      `json:"id"`
	Recording  string         `json:"recording"`
	Labels     []string       `json:"labels"`
	SampleRate float64        `json:"sample_rate"`
	Window     segment.Window `json:"window"`
	Filter     *filter.Spec   `json:"filter,omitempty"`
	// Truncated is set when clamp mode shortened a phase.
	Truncated bool          `json:"truncated"`
	Phases    []PhaseResult `json:"phases"`
	CreatedAt time.Time     `json:"created_at"`
}

// Phase returns the result for name, or false.
func (r AnalysisResult) Phase(name segment.Phase) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.Phase == name {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// PhaseResult holds the correlation and statistics of one phase.
type PhaseResult struct {
	Phase              segment.Phase          `json:"phase"`
	StartIndex         int                    `json:"start_index"`
	EndIndex           int                    `json:"end_index"`
	Samples            int                    `json:"samples"`
	Correlation        [][]float64            `json:"correlation"`
	MeanAbsCorrelation float64                `json:"mean_abs_correlation"`
	StrongestPair      *ElectrodePair         `json:"strongest_pair,omitempty"`
	Channels           []stats.ChannelSummary `json:"channels"`
	ExportPath         string                 `json:"export_path,omitempty"`
}

// ElectrodePair names the off-diagonal entry with the largest magnitude.
type ElectrodePair struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Value float64 `json:"value"`
}

// RecordingSummary describes a whole recording without segmentation.
type RecordingSummary struct {
	Recording  string                 `json:"recording"`
	Labels     []string               `json:"labels"`
	SampleRate float64                `json:"sample_rate"`
	Samples    int                    `json:"samples"`
	Duration   float64                `json:"duration_seconds"`
	Channels   []stats.ChannelSummary `json:"channels"`
}
