package signal

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// Builder fills a preallocated samples × electrodes buffer column by column and
// finalizes it into an immutable Matrix.
type Builder struct {
	samples int
	labels  []string
	rate    float64
	data    []float64 // row-major
	written []bool
	built   bool
}

// NewBuilder allocates storage for samples rows and one column per label.
func NewBuilder(samples int, labels []string, rate float64) *Builder {
	if samples < 0 {
		samples = 0
	}
	return &Builder{
		samples: samples,
		labels:  append([]string(nil), labels...),
		rate:    rate,
		data:    make([]float64, samples*len(labels)),
		written: make([]bool, len(labels)),
	}
}

// SetColumn copies values into column j. values must hold exactly one entry per sample.
func (b *Builder) SetColumn(j int, values []float64) error {
	if b.built {
		return utils.NewAppError("signal.Builder.SetColumn", "builder already finalized", errors.ErrUnsupported)
	}
	if j < 0 || j >= len(b.labels) {
		return utils.NewAppError("signal.Builder.SetColumn", fmt.Sprintf("column %d outside [0,%d)", j, len(b.labels)), ErrShapeMismatch)
	}
	if len(values) != b.samples {
		return utils.NewAppError("signal.Builder.SetColumn", fmt.Sprintf("electrode %q has %d samples, want %d", b.labels[j], len(values), b.samples), ErrShapeMismatch)
	}
	cols := len(b.labels)
	for i, v := range values {
		b.data[i*cols+j] = v
	}
	b.written[j] = true
	return nil
}

// Build returns the Matrix. Every column must have been written. The builder
// cannot be used afterwards.
func (b *Builder) Build() (*Matrix, error) {
	if b.built {
		return nil, utils.NewAppError("signal.Builder.Build", "builder already finalized", errors.ErrUnsupported)
	}
	for j, ok := range b.written {
		if !ok && b.samples > 0 {
			return nil, utils.NewAppError("signal.Builder.Build", fmt.Sprintf("electrode %q never written", b.labels[j]), ErrShapeMismatch)
		}
	}
	b.built = true

	m := &Matrix{rows: b.samples, cols: len(b.labels), labels: b.labels, rate: b.rate}
	if m.rows > 0 && m.cols > 0 {
		m.data = mat.NewDense(m.rows, m.cols, b.data)
	}
	b.data = nil
	return m, nil
}
