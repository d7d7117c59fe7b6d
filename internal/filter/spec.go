package filter

import (
	"fmt"

	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// Spec describes a band-pass filter. Frequencies are in Hz.
type Spec struct {
	LowFreq      float64 `json:"low_freq" yaml:"lowFreq"`
	HighFreq     float64 `json:"high_freq" yaml:"highFreq"`
	SamplingFreq float64 `json:"sampling_freq" yaml:"samplingFreq"`
	Order        int     `json:"order" yaml:"order"`
}

// Nyquist returns half the sampling frequency.
func (s Spec) Nyquist() float64 { return s.SamplingFreq / 2 }

// Validate enforces 0 < LowFreq < HighFreq < SamplingFreq/2 and Order >= 1.
func (s Spec) Validate() error {
	const op = "filter.Spec.Validate"
	var msg string
	switch {
	case !(s.SamplingFreq > 0):
		msg = fmt.Sprintf("sampling frequency %g must be positive", s.SamplingFreq)
	case !(s.LowFreq > 0) || !(s.HighFreq > 0):
		msg = fmt.Sprintf("cutoffs %g/%g must be positive", s.LowFreq, s.HighFreq)
	case s.LowFreq >= s.HighFreq:
		msg = fmt.Sprintf("low cutoff %g must be below high cutoff %g", s.LowFreq, s.HighFreq)
	case s.HighFreq >= s.Nyquist():
		msg = fmt.Sprintf("high cutoff %g must be below the Nyquist limit %g", s.HighFreq, s.Nyquist())
	case s.Order < 1:
		msg = fmt.Sprintf("order %d must be at least 1", s.Order)
	default:
		return nil
	}
	return utils.NewAppError(op, msg, signal.ErrInvalidFilterSpec)
}

func (s Spec) String() string {
	return fmt.Sprintf("bandpass %g-%gHz order %d @ %gHz", s.LowFreq, s.HighFreq, s.Order, s.SamplingFreq)
}
