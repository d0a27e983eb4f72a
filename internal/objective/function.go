// Package objective holds the problem side of the optimizers: scalar
// functions with their gradients and Hessians, evaluated at points of a
// fixed dimension.
package objective

import "gonum.org/v1/gonum/mat"

// Function is a differentiable scalar objective f: Rⁿ → R.
// Implementations must be stateless so they can be evaluated any number of
// times, from any point and from concurrent optimization runs.
type Function interface {
	// Dim returns the dimension every point passed to the function must have.
	Dim() int

	// Value evaluates f(x).
	Value(x []float64) float64

	// Gradient returns a freshly allocated ∇f(x).
	Gradient(x []float64) []float64
}

// Hessianer is a Function that also supplies second derivatives.
type Hessianer interface {
	Function

	// Hessian returns a freshly allocated ∇²f(x).
	Hessian(x []float64) *mat.SymDense
}

// Func adapts caller-supplied closures into a Function. Hess may be nil;
// solvers that need second derivatives reject such a Func through
// CheckHessian.
type Func struct {
	N    int
	F    func(x []float64) float64
	Grad func(x []float64) []float64
	Hess func(x []float64) *mat.SymDense
}

func (f Func) Dim() int { return f.N }

func (f Func) Value(x []float64) float64 { return f.F(x) }

func (f Func) Gradient(x []float64) []float64 { return f.Grad(x) }

// Hessian panics if no Hess closure was supplied. See CheckHessian.
func (f Func) Hessian(x []float64) *mat.SymDense {
	if f.Hess == nil {
		panic("objective: Func has no Hessian")
	}
	return f.Hess(x)
}
