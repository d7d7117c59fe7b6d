package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-eeg/internal/signal"
)

func tone(n int, freq, fs float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / fs)
	}
	return out
}

func TestSummarise(t *testing.T) {
	s, err := Summarise("C3-P3", []float64{5, 1, 4, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, "C3-P3", s.Label)
	assert.Equal(t, 3.0, s.Mean)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.InDelta(t, math.Sqrt2, s.StdDev, 1e-12)
	assert.InDelta(t, math.Sqrt(11), s.RMS, 1e-12)
	assert.LessOrEqual(t, s.P25, s.Median)
	assert.GreaterOrEqual(t, s.P75, s.Median)
}

func TestSummariseEmpty(t *testing.T) {
	_, err := Summarise("A", nil)
	assert.ErrorIs(t, err, signal.ErrEmptySignal)
}

func TestDescribe(t *testing.T) {
	sig, err := signal.FromColumns([][]float64{tone(1024, 10, 256), tone(1024, 2, 256)}, []string{"A", "B"}, 256)
	require.NoError(t, err)

	summaries, err := Describe(sig)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "A", summaries[0].Label)
	require.NotNil(t, summaries[0].Bands)
	assert.InDelta(t, 1, summaries[0].Bands.Alpha, 1e-6)
	assert.InDelta(t, 10, summaries[0].Bands.DominantFreq, 1e-9)

	require.NotNil(t, summaries[1].Bands)
	assert.InDelta(t, 1, summaries[1].Bands.Delta, 1e-6)
	assert.InDelta(t, 2, summaries[1].Bands.DominantFreq, 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, summaries[1].RMS, 1e-9)
}

func TestDescribeWithoutRate(t *testing.T) {
	sig, err := signal.FromColumns([][]float64{{1, 2, 3}}, []string{"A"}, 0)
	require.NoError(t, err)

	summaries, err := Describe(sig)
	require.NoError(t, err)
	assert.Nil(t, summaries[0].Bands)
}

func TestDescribeEmpty(t *testing.T) {
	sig, err := signal.FromColumns([][]float64{{}}, []string{"A"}, 256)
	require.NoError(t, err)

	_, err = Describe(sig)
	assert.ErrorIs(t, err, signal.ErrEmptySignal)
}

func TestBandPowersSumToOne(t *testing.T) {
	const fs = 256.0
	x := tone(2048, 6, fs)
	beta := tone(2048, 20, fs)
	for i := range x {
		x[i] += 0.5*beta[i] + 3 // offset is removed before the transform
	}

	bp, err := BandPowers(x, fs)
	require.NoError(t, err)
	assert.InDelta(t, 1, bp.Delta+bp.Theta+bp.Alpha+bp.Beta+bp.Gamma, 1e-9)
	assert.InDelta(t, 0.8, bp.Theta, 1e-6)
	assert.InDelta(t, 0.2, bp.Beta, 1e-6)
	assert.InDelta(t, 6, bp.DominantFreq, 1e-9)
}

func TestBandPowersFlatSignal(t *testing.T) {
	bp, err := BandPowers([]float64{2, 2, 2, 2}, 100)
	require.NoError(t, err)
	assert.Equal(t, BandPower{}, bp)
}

func TestBandPowersRejectsBadInput(t *testing.T) {
	_, err := BandPowers([]float64{1}, 100)
	assert.ErrorIs(t, err, signal.ErrEmptySignal)

	_, err = BandPowers([]float64{1, 2}, 0)
	assert.Error(t, err)
}
