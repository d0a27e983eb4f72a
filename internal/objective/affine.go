package objective

import "gonum.org/v1/gonum/mat"

// Affine is f(x) = wᵀx + c. Affine{W: []float64{1, 1}} is f(x, y) = x + y.
type Affine struct {
	W []float64
	C float64
}

func (a Affine) Dim() int { return len(a.W) }

func (a Affine) Value(x []float64) float64 {
	return Dot(a.W, x) + a.C
}

func (a Affine) Gradient(x []float64) []float64 {
	return Clone(a.W)
}

func (a Affine) Hessian(x []float64) *mat.SymDense {
	return mat.NewSymDense(len(a.W), nil)
}

// RadialConstraint is c(x) = r² − ‖x‖², zero on the sphere of the given
// radius. With N = 2 and Radius = √2 it is c(x, y) = 2 − x² − y².
type RadialConstraint struct {
	N      int
	Radius float64
}

func (c RadialConstraint) Dim() int { return c.N }

func (c RadialConstraint) Value(x []float64) float64 {
	return c.Radius*c.Radius - Dot(x, x)
}

func (c RadialConstraint) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = -2 * v
	}
	return g
}

func (c RadialConstraint) Hessian(x []float64) *mat.SymDense {
	h := mat.NewSymDense(c.N, nil)
	for i := 0; i < c.N; i++ {
		h.SetSym(i, i, -2)
	}
	return h
}
