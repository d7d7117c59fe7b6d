package filter

import (
	"math"
	"math/cmplx"
)

// Section is one second-order IIR stage with A[0] == 1.
type Section struct {
	B [3]float64
	A [3]float64
}

// Response evaluates the section at normalized angular frequency omega (rad/sample).
func (s Section) Response(omega float64) complex128 {
	z1 := cmplx.Exp(complex(0, -omega))
	z2 := z1 * z1
	num := complex(s.B[0], 0) + complex(s.B[1], 0)*z1 + complex(s.B[2], 0)*z2
	den := complex(s.A[0], 0) + complex(s.A[1], 0)*z1 + complex(s.A[2], 0)*z2
	return num / den
}

// Cascade is a chain of second-order sections applied in order.
type Cascade []Section

// Response returns the complex frequency response at freq Hz for sampling rate fs.
func (c Cascade) Response(freq, fs float64) complex128 {
	return c.response(2 * math.Pi * freq / fs)
}

func (c Cascade) response(omega float64) complex128 {
	h := complex(1, 0)
	for _, s := range c {
		h *= s.Response(omega)
	}
	return h
}

// Design builds a Butterworth band-pass of spec.Order as spec.Order second-order
// sections (2·Order poles). Analog prototype poles are moved to the band with the
// low-pass to band-pass transform on pre-warped edges, then mapped through the
// bilinear transform. Each section carries zeros at z = 1 and z = -1 and is
// scaled to unit gain at the digital image of the geometric centre frequency.
func Design(spec Spec) (Cascade, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	n := spec.Order
	fs := spec.SamplingFreq
	w1 := prewarp(spec.LowFreq, fs)
	w2 := prewarp(spec.HighFreq, fs)
	bw := w2 - w1
	w0sq := w1 * w2

	toBand := func(p complex128) (complex128, complex128) {
		half := p * complex(bw/2, 0)
		root := cmplx.Sqrt(half*half - complex(w0sq, 0))
		return half + root, half - root
	}
	bilinear := func(s complex128) complex128 {
		k := complex(2*fs, 0)
		return (k + s) / (k - s)
	}

	cascade := make(Cascade, 0, n)
	// Upper-half-plane prototype poles; their conjugates fill the other half of
	// each section.
	for k := 0; k < n/2; k++ {
		p := cmplx.Exp(complex(0, math.Pi*float64(2*k+n+1)/float64(2*n)))
		q1, q2 := toBand(p)
		cascade = append(cascade, conjugatePair(bilinear(q1)), conjugatePair(bilinear(q2)))
	}
	if n%2 == 1 {
		q1, q2 := toBand(complex(-1, 0))
		z1, z2 := bilinear(q1), bilinear(q2)
		cascade = append(cascade, Section{
			B: [3]float64{1, 0, -1},
			A: [3]float64{1, -real(z1 + z2), real(z1 * z2)},
		})
	}

	centre := 2 * math.Atan(math.Sqrt(w0sq)/(2*fs))
	for i := range cascade {
		g := 1 / cmplx.Abs(cascade[i].Response(centre))
		for k := range cascade[i].B {
			cascade[i].B[k] *= g
		}
	}
	return cascade, nil
}

func prewarp(freq, fs float64) float64 {
	return 2 * fs * math.Tan(math.Pi*freq/fs)
}

func conjugatePair(z complex128) Section {
	return Section{
		B: [3]float64{1, 0, -1},
		A: [3]float64{1, -2 * real(z), real(z)*real(z) + imag(z)*imag(z)},
	}
}
