package filter

// PadLen returns the odd-extension length used at each end by FiltFilt for a
// signal of n samples.
func (c Cascade) PadLen(n int) int {
	pad := 3 * (2*len(c) + 1)
	if pad > n-1 {
		pad = n - 1
	}
	if pad < 0 {
		pad = 0
	}
	return pad
}

// FiltFilt runs the cascade forward then backward over x and returns a new
// slice of the same length with zero net phase. Each end is padded with an
// odd extension and every pass starts from the steady-state section states for
// its first sample, which suppresses start-up transients.
func (c Cascade) FiltFilt(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	pad := c.PadLen(n)
	ext := oddExtend(x, pad)
	zi := c.steadyState()

	c.filterInPlace(ext, zi, ext[0])
	reverse(ext)
	c.filterInPlace(ext, zi, ext[0])
	reverse(ext)

	copy(out, ext[pad:pad+n])
	return out
}

// Filter runs a single forward pass from rest.
func (c Cascade) Filter(x []float64) []float64 {
	out := append([]float64(nil), x...)
	c.filterInPlace(out, make([][2]float64, len(c)), 0)
	return out
}

// filterInPlace applies each section in transposed direct form II. Section s
// starts from zi[s]·x0.
func (c Cascade) filterInPlace(x []float64, zi [][2]float64, x0 float64) {
	for s, sec := range c {
		z0, z1 := zi[s][0]*x0, zi[s][1]*x0
		b0, b1, b2 := sec.B[0], sec.B[1], sec.B[2]
		a1, a2 := sec.A[1], sec.A[2]
		for i, v := range x {
			y := b0*v + z0
			z0 = b1*v - a1*y + z1
			z1 = b2*v - a2*y
			x[i] = y
		}
	}
}

// steadyState returns per-section delay states for a unit step that has been
// applied forever. Section s sees the DC gain of the sections before it.
func (c Cascade) steadyState() [][2]float64 {
	zi := make([][2]float64, len(c))
	scale := 1.0
	for s, sec := range c {
		b, a := sec.B, sec.A
		r1 := b[1] - a[1]*b[0]
		r2 := b[2] - a[2]*b[0]
		z0 := (r1 + r2) / (a[0] + a[1] + a[2])
		z1 := r2 - a[2]*z0
		zi[s] = [2]float64{scale * z0, scale * z1}
		scale *= (b[0] + b[1] + b[2]) / (a[0] + a[1] + a[2])
	}
	return zi
}

func oddExtend(x []float64, pad int) []float64 {
	n := len(x)
	ext := make([]float64, n+2*pad)
	first, last := x[0], x[n-1]
	for i := 0; i < pad; i++ {
		ext[i] = 2*first - x[pad-i]
		ext[pad+n+i] = 2*last - x[n-2-i]
	}
	copy(ext[pad:], x)
	return ext
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
