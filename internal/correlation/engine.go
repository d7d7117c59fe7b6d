package correlation

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/miradorstack/mirador-eeg/internal/signal"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// Mode selects how a pair of electrodes is reduced to one value.
type Mode string

const (
	// ModeRaw is the zero-lag un-normalized cross-correlation Σ x_i·x_j. Its
	// magnitude scales with signal amplitude.
	ModeRaw Mode = "raw"
	// ModePearson is the Pearson correlation coefficient in [-1, 1].
	ModePearson Mode = "pearson"
)

// ParseMode maps a config or request string to a Mode. Empty selects ModeRaw.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeRaw):
		return ModeRaw, nil
	case string(ModePearson):
		return ModePearson, nil
	default:
		return "", fmt.Errorf("unknown correlation mode %q", s)
	}
}

type options struct {
	mode Mode
}

// Option customises Compute.
type Option func(*options)

// WithMode selects the pairwise reduction. The default is ModeRaw.
func WithMode(mode Mode) Option {
	return func(o *options) {
		if mode != "" {
			o.mode = mode
		}
	}
}

// Matrix is a symmetric electrodes × electrodes correlation matrix with a zero diagonal.
type Matrix struct {
	labels []string
	mode   Mode
	sym    *mat.SymDense
}

// Compute correlates every electrode pair of sig over its full length.
func Compute(sig *signal.Matrix, opts ...Option) (*Matrix, error) {
	const op = "correlation.Compute"
	o := options{mode: ModeRaw}
	for _, opt := range opts {
		opt(&o)
	}
	if sig == nil || sig.Empty() {
		var samples, electrodes int
		if sig != nil {
			samples, electrodes = sig.Dims()
		}
		return nil, utils.NewAppError(op, fmt.Sprintf("%d samples x %d electrodes", samples, electrodes), signal.ErrEmptySignal)
	}

	var pair func(a, b []float64) (float64, error)
	switch o.mode {
	case ModeRaw:
		pair = func(a, b []float64) (float64, error) { return floats.Dot(a, b), nil }
	case ModePearson:
		pair = func(a, b []float64) (float64, error) { return stats.Correlation(a, b) }
	default:
		return nil, utils.NewAppError(op, fmt.Sprintf("unknown mode %q", o.mode), nil)
	}

	m := sig.Electrodes()
	cols := make([][]float64, m)
	for j := range cols {
		cols[j] = sig.Column(j)
	}

	// SymDense stores one triangle, so (i, j) and (j, i) are the same value.
	sym := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			v, err := pair(cols[i], cols[j])
			if err != nil {
				return nil, utils.NewAppError(op, fmt.Sprintf("electrodes %s/%s", sig.Label(i), sig.Label(j)), err)
			}
			sym.SetSym(i, j, v)
		}
	}
	return &Matrix{labels: sig.Labels(), mode: o.mode, sym: sym}, nil
}

// Size returns the number of electrodes.
func (c *Matrix) Size() int { return len(c.labels) }

// Labels returns the electrode labels indexing rows and columns.
func (c *Matrix) Labels() []string { return append([]string(nil), c.labels...) }

// Mode reports how the entries were computed.
func (c *Matrix) Mode() Mode { return c.mode }

// At returns the entry for electrodes i and j.
func (c *Matrix) At(i, j int) float64 { return c.sym.At(i, j) }

// Sym exposes the matrix as a read-only gonum symmetric matrix.
func (c *Matrix) Sym() mat.Symmetric { return c.sym }

// Rows returns the matrix as a dense row-major slice of slices.
func (c *Matrix) Rows() [][]float64 {
	n := c.Size()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = c.sym.At(i, j)
		}
	}
	return out
}

// MeanAbsOffDiagonal averages |c(i, j)| over i != j. It returns 0 for fewer than two electrodes.
func (c *Matrix) MeanAbsOffDiagonal() float64 {
	n := c.Size()
	if n < 2 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += math.Abs(c.sym.At(i, j))
		}
	}
	return sum / float64(n*(n-1)/2)
}

// Strongest returns the electrode pair with the largest |c(i, j)|.
func (c *Matrix) Strongest() (i, j int, value float64) {
	i, j = -1, -1
	best := -1.0
	n := c.Size()
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			if v := math.Abs(c.sym.At(a, b)); v > best {
				best, i, j, value = v, a, b, c.sym.At(a, b)
			}
		}
	}
	return i, j, value
}
