package objective

import "gonum.org/v1/gonum/mat"

// Sphere is f(x) = Σ xᵢ². With N = 1 it is f(x) = x², with N = 2 it is
// f(x, y) = x² + y². The curvature is constant, so Newton's method lands on
// the origin in a single step.
type Sphere struct {
	N int
}

func (s Sphere) Dim() int { return s.N }

func (s Sphere) Value(x []float64) float64 {
	return Dot(x, x)
}

func (s Sphere) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2 * v
	}
	return g
}

func (s Sphere) Hessian(x []float64) *mat.SymDense {
	h := mat.NewSymDense(s.N, nil)
	for i := 0; i < s.N; i++ {
		h.SetSym(i, i, 2)
	}
	return h
}
