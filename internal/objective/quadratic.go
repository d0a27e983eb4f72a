package objective

import "gonum.org/v1/gonum/mat"

// Quadratic is f(x) = ½ xᵀAx − bᵀx with symmetric A. For positive-definite A
// its minimizer is the solution of Ax = b, which ties the descent methods to
// the conjugate gradient solver.
type Quadratic struct {
	A mat.Symmetric
	B []float64
}

// NewQuadratic validates that A is square with the dimension of b.
func NewQuadratic(a mat.Symmetric, b []float64) (*Quadratic, error) {
	if err := CheckDim("b", b, a.SymmetricDim()); err != nil {
		return nil, err
	}
	return &Quadratic{A: a, B: Clone(b)}, nil
}

func (q *Quadratic) Dim() int { return len(q.B) }

func (q *Quadratic) Value(x []float64) float64 {
	var ax mat.VecDense
	ax.MulVec(q.A, mat.NewVecDense(len(x), Clone(x)))
	return 0.5*mat.Dot(mat.NewVecDense(len(x), Clone(x)), &ax) - Dot(q.B, x)
}

// Gradient returns Ax − b, the negative residual of the linear system.
func (q *Quadratic) Gradient(x []float64) []float64 {
	var ax mat.VecDense
	ax.MulVec(q.A, mat.NewVecDense(len(x), Clone(x)))
	g := make([]float64, len(x))
	for i := range g {
		g[i] = ax.AtVec(i) - q.B[i]
	}
	return g
}

func (q *Quadratic) Hessian(x []float64) *mat.SymDense {
	n := q.A.SymmetricDim()
	h := mat.NewSymDense(n, nil)
	h.CopySym(q.A)
	return h
}
