package segment

import (
	"fmt"
	"math"

	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// Window is one seizure episode in seconds from recording start.
type Window struct {
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	SamplingFreq float64 `json:"sampling_freq"`
}

// Duration returns EndTime - StartTime.
func (w Window) Duration() float64 { return w.EndTime - w.StartTime }

// Validate enforces 0 <= StartTime < EndTime and a positive sampling frequency.
func (w Window) Validate() error {
	var msg string
	switch {
	case !(w.SamplingFreq > 0) || math.IsInf(w.SamplingFreq, 0):
		msg = fmt.Sprintf("sampling frequency %g must be positive", w.SamplingFreq)
	case !(w.StartTime >= 0):
		msg = fmt.Sprintf("start %gs must not be negative", w.StartTime)
	case !(w.StartTime < w.EndTime) || math.IsInf(w.EndTime, 0):
		msg = fmt.Sprintf("start %gs must precede end %gs", w.StartTime, w.EndTime)
	default:
		return nil
	}
	return utils.NewAppError("segment.Window.Validate", msg, signal.ErrInvalidWindow)
}

// Range is a half-open sample index range [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in the range.
func (r Range) Len() int { return r.End - r.Start }

func (r Range) clamp(n int) Range {
	return Range{Start: clampIndex(r.Start, n), End: clampIndex(r.End, n)}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// PhaseBounds holds the sample ranges of the three phases.
type PhaseBounds struct {
	Preictal  Range `json:"preictal"`
	Ictal     Range `json:"ictal"`
	Postictal Range `json:"postictal"`
}

// Bounds converts w to sample ranges. Every boundary is rounded to the nearest
// sample (halves away from zero) so adjacent phases share their edge exactly.
// The ranges are not checked against any recording and may be negative.
// A window that rounds to no ictal sample, or whose postictal end exceeds the
// int range, fails with ErrInvalidWindow.
func Bounds(w Window) (PhaseBounds, error) {
	const op = "segment.Bounds"
	if err := w.Validate(); err != nil {
		return PhaseBounds{}, err
	}
	fs := w.SamplingFreq
	d := w.Duration()
	last := fs*w.EndTime + fs*d
	if !(last < maxSample) {
		return PhaseBounds{}, utils.NewAppError(op, fmt.Sprintf("window %gs-%gs at %g Hz exceeds the addressable sample range", w.StartTime, w.EndTime, fs), signal.ErrInvalidWindow)
	}

	onset := toSample(fs * w.StartTime)
	offset := toSample(fs * w.EndTime)
	if offset == onset {
		return PhaseBounds{}, utils.NewAppError(op, fmt.Sprintf("window %gs-%gs is shorter than one sample at %g Hz", w.StartTime, w.EndTime, fs), signal.ErrInvalidWindow)
	}
	return PhaseBounds{
		Preictal:  Range{Start: toSample(fs*w.StartTime - fs*d), End: onset},
		Ictal:     Range{Start: onset, End: offset},
		Postictal: Range{Start: offset, End: toSample(last)},
	}, nil
}

// maxSample is 2^63 on 64-bit platforms; every float below it rounds to a
// representable int.
const maxSample = float64(math.MaxInt)

func toSample(x float64) int {
	return int(math.Round(x))
}
