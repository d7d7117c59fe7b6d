package segment

import (
	"fmt"

	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// Phase names a seizure period.
type Phase string

const (
	Preictal  Phase = "preictal"
	Ictal     Phase = "ictal"
	Postictal Phase = "postictal"
)

// Segment is one extracted phase.
type Segment struct {
	Phase  Phase
	Range  Range
	Signal *signal.Matrix
}

// Phases is the result of Split.
type Phases struct {
	Preictal  *signal.Matrix
	Ictal     *signal.Matrix
	Postictal *signal.Matrix
	Bounds    PhaseBounds
	// Truncated is set when clamp mode shortened a phase at a recording edge.
	Truncated bool
}

// Segments lists the phases in time order.
func (p Phases) Segments() []Segment {
	return []Segment{
		{Phase: Preictal, Range: p.Bounds.Preictal, Signal: p.Preictal},
		{Phase: Ictal, Range: p.Bounds.Ictal, Signal: p.Ictal},
		{Phase: Postictal, Range: p.Bounds.Postictal, Signal: p.Postictal},
	}
}

type options struct {
	clamp bool
}

// Option customises Split.
type Option func(*options)

// WithClamp shortens phases that would cross a recording edge instead of
// failing. The result is marked Truncated.
func WithClamp() Option {
	return func(o *options) { o.clamp = true }
}

// Split extracts the preictal, ictal and postictal phases of w from sig. The
// preictal and postictal phases are as long as the seizure. By default a window
// too close to either end of the recording fails with ErrInsufficientMargin.
func Split(sig *signal.Matrix, w Window, opts ...Option) (Phases, error) {
	const op = "segment.Split"
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	bounds, err := Bounds(w)
	if err != nil {
		return Phases{}, err
	}
	if sig == nil || sig.Empty() {
		var samples, electrodes int
		if sig != nil {
			samples, electrodes = sig.Dims()
		}
		return Phases{}, utils.NewAppError(op, fmt.Sprintf("%d samples x %d electrodes", samples, electrodes), signal.ErrEmptySignal)
	}

	n := sig.Samples()
	truncated := false
	if o.clamp {
		clamped := PhaseBounds{
			Preictal:  bounds.Preictal.clamp(n),
			Ictal:     bounds.Ictal.clamp(n),
			Postictal: bounds.Postictal.clamp(n),
		}
		truncated = clamped != bounds
		bounds = clamped
		if bounds.Ictal.Len() == 0 {
			return Phases{}, utils.NewAppError(op, fmt.Sprintf("seizure at %gs-%gs lies outside %d samples", w.StartTime, w.EndTime, n), signal.ErrInsufficientMargin)
		}
	} else {
		if bounds.Preictal.Start < 0 {
			return Phases{}, utils.NewAppError(op, fmt.Sprintf("preictal phase starts at sample %d, before the recording", bounds.Preictal.Start), signal.ErrInsufficientMargin)
		}
		if bounds.Postictal.End > n {
			return Phases{}, utils.NewAppError(op, fmt.Sprintf("postictal phase ends at sample %d, past %d samples", bounds.Postictal.End, n), signal.ErrInsufficientMargin)
		}
	}

	out := Phases{Bounds: bounds, Truncated: truncated}
	if out.Preictal, err = sig.Rows(bounds.Preictal.Start, bounds.Preictal.End); err != nil {
		return Phases{}, err
	}
	if out.Ictal, err = sig.Rows(bounds.Ictal.Start, bounds.Ictal.End); err != nil {
		return Phases{}, err
	}
	if out.Postictal, err = sig.Rows(bounds.Postictal.Start, bounds.Postictal.End); err != nil {
		return Phases{}, err
	}
	return out, nil
}
