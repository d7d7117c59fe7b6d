package filter

import (
	"fmt"

	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// Bandpass is a designed zero-phase band-pass filter that can be applied to
// any number of recordings.
type Bandpass struct {
	spec    Spec
	cascade Cascade
}

// NewBandpass validates spec and designs the filter.
func NewBandpass(spec Spec) (*Bandpass, error) {
	cascade, err := Design(spec)
	if err != nil {
		return nil, err
	}
	return &Bandpass{spec: spec, cascade: cascade}, nil
}

// Spec returns the parameters the filter was designed from.
func (b *Bandpass) Spec() Spec { return b.spec }

// Cascade returns a copy of the designed sections.
func (b *Bandpass) Cascade() Cascade { return append(Cascade(nil), b.cascade...) }

// Apply filters every electrode independently and returns a new matrix of the
// same shape, labels and rate.
func (b *Bandpass) Apply(sig *signal.Matrix) (*signal.Matrix, error) {
	if sig == nil || sig.Samples() == 0 || sig.Electrodes() == 0 {
		var samples, electrodes int
		if sig != nil {
			samples, electrodes = sig.Dims()
		}
		return nil, utils.NewAppError("filter.Apply", fmt.Sprintf("%d samples x %d electrodes", samples, electrodes), signal.ErrEmptySignal)
	}

	out := signal.NewBuilder(sig.Samples(), sig.Labels(), sig.SampleRate())
	for j := 0; j < sig.Electrodes(); j++ {
		if err := out.SetColumn(j, b.cascade.FiltFilt(sig.Column(j))); err != nil {
			return nil, err
		}
	}
	return out.Build()
}

// Apply designs a filter from spec and runs it over sig.
func Apply(sig *signal.Matrix, spec Spec) (*signal.Matrix, error) {
	bp, err := NewBandpass(spec)
	if err != nil {
		return nil, err
	}
	return bp.Apply(sig)
}
