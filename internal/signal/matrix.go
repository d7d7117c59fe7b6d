package signal

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/miradorstack/mirador-eeg/internal/utils"
)

// Matrix is an immutable samples × electrodes recording. Every electrode shares
// one sample count and one sampling rate.
type Matrix struct {
	rows   int
	cols   int
	data   *mat.Dense // nil when rows or cols is zero
	labels []string
	rate   float64
}

// NewMatrix copies data into a new Matrix. labels must hold one entry per column.
// rate is the sampling frequency in Hz, or 0 when unknown.
func NewMatrix(data mat.Matrix, labels []string, rate float64) (*Matrix, error) {
	var r, c int
	if data != nil {
		r, c = data.Dims()
	}
	if len(labels) != c {
		return nil, utils.NewAppError("signal.NewMatrix", fmt.Sprintf("%d labels for %d electrodes", len(labels), c), ErrShapeMismatch)
	}
	m := &Matrix{rows: r, cols: c, labels: append([]string(nil), labels...), rate: rate}
	if r > 0 && c > 0 {
		m.data = mat.DenseCopyOf(data)
	}
	return m, nil
}

// FromColumns builds a Matrix from one slice per electrode. All columns must
// have the same length.
func FromColumns(columns [][]float64, labels []string, rate float64) (*Matrix, error) {
	if len(columns) != len(labels) {
		return nil, utils.NewAppError("signal.FromColumns", fmt.Sprintf("%d labels for %d electrodes", len(labels), len(columns)), ErrShapeMismatch)
	}
	samples := 0
	if len(columns) > 0 {
		samples = len(columns[0])
	}
	b := NewBuilder(samples, labels, rate)
	for j, col := range columns {
		if err := b.SetColumn(j, col); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// Samples returns the number of rows.
func (m *Matrix) Samples() int { return m.rows }

// Electrodes returns the number of columns.
func (m *Matrix) Electrodes() int { return m.cols }

// Dims returns (samples, electrodes).
func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

// Empty reports whether either axis has zero length.
func (m *Matrix) Empty() bool { return m.rows == 0 || m.cols == 0 }

// SampleRate returns the sampling frequency in Hz, 0 when unknown.
func (m *Matrix) SampleRate() float64 { return m.rate }

// Labels returns a copy of the electrode labels in column order.
func (m *Matrix) Labels() []string { return append([]string(nil), m.labels...) }

// Label returns the label of column j.
func (m *Matrix) Label(j int) string { return m.labels[j] }

// ColumnIndex returns the column holding label.
func (m *Matrix) ColumnIndex(label string) (int, bool) {
	for j, l := range m.labels {
		if l == label {
			return j, true
		}
	}
	return -1, false
}

// At returns the sample at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	if m.data == nil {
		panic(mat.ErrIndexOutOfRange)
	}
	return m.data.At(i, j)
}

// Column returns a copy of electrode j.
func (m *Matrix) Column(j int) []float64 {
	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}
	if m.data == nil {
		return []float64{}
	}
	return mat.Col(nil, j, m.data)
}

// Row returns a copy of sample i across all electrodes.
func (m *Matrix) Row(i int) []float64 {
	if i < 0 || i >= m.rows {
		panic(mat.ErrRowAccess)
	}
	if m.data == nil {
		return []float64{}
	}
	return mat.Row(nil, i, m.data)
}

// Mat exposes the samples as a read-only gonum matrix. It returns nil for an
// empty Matrix.
func (m *Matrix) Mat() mat.Matrix {
	if m.data == nil {
		return nil
	}
	return m.data
}

// Duration returns the recording length in seconds, 0 when the rate is unknown.
func (m *Matrix) Duration() float64 {
	if m.rate <= 0 {
		return 0
	}
	return float64(m.rows) / m.rate
}

// TimeAxis returns the time in seconds of every sample. A plotter pairs it with
// each column.
func (m *Matrix) TimeAxis() []float64 {
	t := make([]float64, m.rows)
	if m.rate <= 0 {
		return t
	}
	for i := range t {
		t[i] = float64(i) / m.rate
	}
	return t
}

// Rows returns the half-open sample range [start, end) as a new Matrix with the
// same labels and rate. The result shares storage with m; neither is ever written.
func (m *Matrix) Rows(start, end int) (*Matrix, error) {
	if start < 0 || end < start || end > m.rows {
		return nil, utils.NewAppError("signal.Rows", fmt.Sprintf("range [%d,%d) outside [0,%d)", start, end, m.rows), ErrShapeMismatch)
	}
	out := &Matrix{rows: end - start, cols: m.cols, labels: m.labels, rate: m.rate}
	if out.rows > 0 && out.cols > 0 {
		out.data = m.data.Slice(start, end, 0, m.cols).(*mat.Dense)
	}
	return out, nil
}

// Select returns the named electrodes, in the order given.
func (m *Matrix) Select(labels ...string) (*Matrix, error) {
	b := NewBuilder(m.rows, labels, m.rate)
	for k, label := range labels {
		j, ok := m.ColumnIndex(label)
		if !ok {
			return nil, utils.NewAppError("signal.Select", fmt.Sprintf("electrode %q not present", label), ErrShapeMismatch)
		}
		if err := b.SetColumn(k, m.Column(j)); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
