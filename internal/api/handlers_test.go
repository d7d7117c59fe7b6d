package api

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-eeg/internal/filter"
	"github.com/miradorstack/mirador-eeg/internal/models"
	"github.com/miradorstack/mirador-eeg/internal/segment"
	"github.com/miradorstack/mirador-eeg/internal/stats"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestFromStructAnalysisRequest(t *testing.T) {
	in := mustStruct(t, map[string]any{
		"recording":        "chb01/chb01_03.edf",
		"start_time":       2996,
		"end_time":         3036,
		"sampling_freq":    256,
		"correlation_mode": "pearson",
		"clamp":            true,
		"export":           false,
		"filter":           map[string]any{"low_freq": 0.5, "high_freq": 40, "order": 4},
	})

	req, err := FromStructAnalysisRequest(in)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisRequest{
		Recording:       "chb01/chb01_03.edf",
		StartTime:       2996,
		EndTime:         3036,
		SamplingFreq:    256,
		Filter:          &models.FilterRequest{LowFreq: 0.5, HighFreq: 40, Order: 4},
		CorrelationMode: "pearson",
		Clamp:           true,
	}, req)
}

func TestFromStructAnalysisRequestMinimal(t *testing.T) {
	req, err := FromStructAnalysisRequest(mustStruct(t, map[string]any{
		"recording": "r.edf", "start_time": 5, "end_time": 7, "filter": nil,
	}))
	require.NoError(t, err)
	assert.Nil(t, req.Filter)
	assert.Zero(t, req.SamplingFreq)
	assert.False(t, req.Clamp)
}

func TestFromStructAnalysisRequestMalformed(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{"recording": "r.edf", "start_time": 5, "end_time": 7}
	}
	cases := map[string]func(m map[string]any){
		"missing recording": func(m map[string]any) { delete(m, "recording") },
		"blank recording":   func(m map[string]any) { m["recording"] = "  " },
		"missing end":       func(m map[string]any) { delete(m, "end_time") },
		"string start":      func(m map[string]any) { m["start_time"] = "5" },
		"negative rate":     func(m map[string]any) { m["sampling_freq"] = -1 },
		"mode type":         func(m map[string]any) { m["correlation_mode"] = 1 },
		"clamp type":        func(m map[string]any) { m["clamp"] = "yes" },
		"filter type":       func(m map[string]any) { m["filter"] = "0.5-40" },
		"filter order":      func(m map[string]any) { m["filter"] = map[string]any{"low_freq": 1, "high_freq": 2, "order": 2.5} },
		"filter missing":    func(m map[string]any) { m["filter"] = map[string]any{"low_freq": 1, "order": 2} },
		"filter unknown":    func(m map[string]any) { m["filter"] = map[string]any{"low_freq": 1, "high_freq": 2, "order": 2, "type": "cheby"} },
		"unknown field":     func(m map[string]any) { m["start"] = 5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := base()
			mutate(m)
			_, err := FromStructAnalysisRequest(mustStruct(t, m))
			assert.ErrorIs(t, err, ErrMalformedRequest)
		})
	}

	_, err := FromStructAnalysisRequest(nil)
	assert.ErrorIs(t, err, ErrMalformedRequest)

	inf := mustStruct(t, base())
	inf.Fields["end_time"] = structpb.NewNumberValue(math.Inf(1))
	_, err = FromStructAnalysisRequest(inf)
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestFromStructDescribeRequest(t *testing.T) {
	rec, err := FromStructDescribeRequest(mustStruct(t, map[string]any{"recording": "chb01/chb01_03.edf"}))
	require.NoError(t, err)
	assert.Equal(t, "chb01/chb01_03.edf", rec)

	_, err = FromStructDescribeRequest(mustStruct(t, map[string]any{}))
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestAnalysisResultStructRoundTrip(t *testing.T) {
	res := models.AnalysisResult{
		ID:         uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427"),
		Recording:  "chb01/chb01_03.edf",
		Labels:     []string{"A", "B"},
		SampleRate: 256,
		Window:     segment.Window{StartTime: 5, EndTime: 7, SamplingFreq: 256},
		Filter:     &filter.Spec{LowFreq: 0.5, HighFreq: 40, SamplingFreq: 256, Order: 4},
		Phases: []models.PhaseResult{{
			Phase:              segment.Ictal,
			StartIndex:         1280,
			EndIndex:           1792,
			Samples:            512,
			Correlation:        [][]float64{{0, 0.5}, {0.5, 0}},
			MeanAbsCorrelation: 0.5,
			StrongestPair:      &models.ElectrodePair{A: "A", B: "B", Value: 0.5},
			Channels:           []stats.ChannelSummary{{Label: "A", Mean: 1, Bands: &stats.BandPower{Alpha: 1, DominantFreq: 10}}},
		}},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	s, err := ToStructAnalysisResult(res)
	require.NoError(t, err)
	assert.Equal(t, "chb01/chb01_03.edf", s.Fields["recording"].GetStringValue())
	phases := s.Fields["phases"].GetListValue().GetValues()
	require.Len(t, phases, 1)
	assert.Equal(t, "ictal", phases[0].GetStructValue().Fields["phase"].GetStringValue())

	back, err := FromStructAnalysisResult(s)
	require.NoError(t, err)
	assert.Equal(t, res, back)
}

func TestToStructRecordingSummary(t *testing.T) {
	s, err := ToStructRecordingSummary(models.RecordingSummary{Recording: "r.edf", Labels: []string{"A"}, SampleRate: 256, Samples: 512, Duration: 2})
	require.NoError(t, err)
	assert.Equal(t, 512.0, s.Fields["samples"].GetNumberValue())
	assert.Equal(t, 2.0, s.Fields["duration_seconds"].GetNumberValue())
}
