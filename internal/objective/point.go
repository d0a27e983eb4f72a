package objective

import "math"

// Clone returns a copy of x. Points are never shared between iterations.
func Clone(x []float64) []float64 {
	return append([]float64(nil), x...)
}

// Dot returns xᵀy. The slices must have equal length.
func Dot(x, y []float64) float64 {
	var s float64
	for i, v := range x {
		s += v * y[i]
	}
	return s
}

// Norm returns the Euclidean norm ‖x‖₂.
func Norm(x []float64) float64 {
	return math.Sqrt(Dot(x, x))
}

// Axpy returns a new point x + alpha*d.
func Axpy(x []float64, alpha float64, d []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + alpha*d[i]
	}
	return out
}

// Distance returns ‖x − y‖₂.
func Distance(x, y []float64) float64 {
	var s float64
	for i := range x {
		d := x[i] - y[i]
		s += d * d
	}
	return math.Sqrt(s)
}
