package stats

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// Band is a clinical EEG frequency band [Low, High) in Hz.
type Band struct {
	Name string
	Low  float64
	High float64
}

// Bands lists the clinical EEG bands in ascending order. Gamma is capped at the
// Nyquist limit of the recording.
var Bands = []Band{
	{Name: "delta", Low: 0.5, High: 4},
	{Name: "theta", Low: 4, High: 8},
	{Name: "alpha", Low: 8, High: 13},
	{Name: "beta", Low: 13, High: 30},
	{Name: "gamma", Low: 30, High: 100},
}

// BandPower is the share of spectral power in each band, relative to the total
// power between 0.5 Hz and the top of the gamma band.
type BandPower struct {
	Delta        float64 `json:"delta"`
	Theta        float64 `json:"theta"`
	Alpha        float64 `json:"alpha"`
	Beta         float64 `json:"beta"`
	Gamma        float64 `json:"gamma"`
	DominantFreq float64 `json:"dominant_freq"`
}

// BandPowers computes relative band powers from the periodogram of values.
// The mean is removed first.
func BandPowers(values []float64, fs float64) (BandPower, error) {
	const op = "stats.BandPowers"
	if len(values) < 2 {
		return BandPower{}, utils.NewAppError(op, fmt.Sprintf("%d samples", len(values)), signal.ErrEmptySignal)
	}
	if !(fs > 0) {
		return BandPower{}, utils.NewAppError(op, fmt.Sprintf("sampling frequency %g must be positive", fs), nil)
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	centred := make([]float64, len(values))
	for i, v := range values {
		centred[i] = v - mean
	}

	fft := fourier.NewFFT(len(centred))
	coeffs := fft.Coefficients(nil, centred)

	top := math.Min(Bands[len(Bands)-1].High, fs/2)
	power := make([]float64, len(Bands))
	var total, peak float64
	var result BandPower
	for k, c := range coeffs {
		f := fft.Freq(k) * fs
		if f < Bands[0].Low || f > top {
			continue
		}
		p := cmplx.Abs(c)
		p *= p
		total += p
		if p > peak {
			peak = p
			result.DominantFreq = f
		}
		for b, band := range Bands {
			if f >= band.Low && (f < band.High || (b == len(Bands)-1 && f <= top)) {
				power[b] += p
				break
			}
		}
	}
	if total == 0 {
		return BandPower{}, nil
	}

	result.Delta = power[0] / total
	result.Theta = power[1] / total
	result.Alpha = power[2] / total
	result.Beta = power[3] / total
	result.Gamma = power[4] / total
	return result, nil
}
