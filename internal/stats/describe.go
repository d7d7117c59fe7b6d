package stats

import (
	"fmt"
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"

	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// ChannelSummary holds descriptive statistics for one electrode.
type ChannelSummary struct {
	Label  string     `json:"label"`
	Mean   float64    `json:"mean"`
	StdDev float64    `json:"std_dev"`
	Min    float64    `json:"min"`
	Max    float64    `json:"max"`
	Median float64    `json:"median"`
	P25    float64    `json:"p25"`
	P75    float64    `json:"p75"`
	RMS    float64    `json:"rms"`
	Bands  *BandPower `json:"bands,omitempty"`
}

// Describe summarises every electrode of sig. Band powers are filled when the
// matrix carries a sampling rate.
func Describe(sig *signal.Matrix) ([]ChannelSummary, error) {
	const op = "stats.Describe"
	if sig == nil || sig.Empty() {
		return nil, utils.NewAppError(op, "no samples to describe", signal.ErrEmptySignal)
	}

	out := make([]ChannelSummary, 0, sig.Electrodes())
	for j := 0; j < sig.Electrodes(); j++ {
		summary, err := Summarise(sig.Label(j), sig.Column(j))
		if err != nil {
			return nil, err
		}
		if fs := sig.SampleRate(); fs > 0 && sig.Samples() > 1 {
			bands, err := BandPowers(sig.Column(j), fs)
			if err != nil {
				return nil, err
			}
			summary.Bands = &bands
		}
		out = append(out, summary)
	}
	return out, nil
}

// Summarise computes descriptive statistics over values.
func Summarise(label string, values []float64) (ChannelSummary, error) {
	const op = "stats.Summarise"
	if len(values) == 0 {
		return ChannelSummary{}, utils.NewAppError(op, fmt.Sprintf("electrode %q has no samples", label), signal.ErrEmptySignal)
	}

	s := ChannelSummary{Label: label}
	var err error
	steps := []struct {
		name string
		dst  *float64
		fn   func(mstats.Float64Data) (float64, error)
	}{
		{"mean", &s.Mean, mstats.Mean},
		{"std dev", &s.StdDev, mstats.StandardDeviation},
		{"min", &s.Min, mstats.Min},
		{"max", &s.Max, mstats.Max},
		{"median", &s.Median, mstats.Median},
		{"p25", &s.P25, func(d mstats.Float64Data) (float64, error) { return mstats.Percentile(d, 25) }},
		{"p75", &s.P75, func(d mstats.Float64Data) (float64, error) { return mstats.Percentile(d, 75) }},
	}
	for _, step := range steps {
		if *step.dst, err = step.fn(values); err != nil {
			return ChannelSummary{}, utils.NewAppError(op, fmt.Sprintf("%s of %q", step.name, label), err)
		}
	}
	s.RMS = math.Sqrt(floats.Dot(values, values) / float64(len(values)))
	return s, nil
}
