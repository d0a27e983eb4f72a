// Package lsq fits parametric curve models to data by Gauss-Newton least
// squares.
package lsq

import (
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optdemo/internal/objective"
)

// Model is a curve y = f(x; θ) with a fixed number of parameters.
type Model interface {
	NumParams() int

	// Eval returns f(x; θ).
	Eval(x float64, theta []float64) float64

	// ParamGrad returns ∂f/∂θ at x.
	ParamGrad(x float64, theta []float64) []float64
}

// Linear is f(x) = m·x + b with θ = (m, b).
type Linear struct{}

func (Linear) NumParams() int { return 2 }

func (Linear) Eval(x float64, theta []float64) float64 {
	return theta[0]*x + theta[1]
}

func (Linear) ParamGrad(x float64, _ []float64) []float64 {
	return []float64{x, 1}
}

// Saturation is f(x) = a·x/(b + x) with θ = (a, b). Data with b + x = 0 is
// the caller's problem.
type Saturation struct{}

func (Saturation) NumParams() int { return 2 }

func (Saturation) Eval(x float64, theta []float64) float64 {
	return theta[0] * x / (theta[1] + x)
}

func (Saturation) ParamGrad(x float64, theta []float64) []float64 {
	d := theta[1] + x
	return []float64{x / d, -theta[0] * x / (d * d)}
}

// Residuals returns rᵢ = yᵢ − f(xᵢ; θ).
func Residuals(model Model, x, y, theta []float64) []float64 {
	r := make([]float64, len(x))
	for i, xi := range x {
		r[i] = y[i] - model.Eval(xi, theta)
	}
	return r
}

// Jacobian stacks ∂f(xᵢ)/∂θ row by row into an N×P matrix.
func Jacobian(model Model, x, theta []float64) *mat.Dense {
	p := model.NumParams()
	j := mat.NewDense(len(x), p, nil)
	for i, xi := range x {
		j.SetRow(i, model.ParamGrad(xi, theta))
	}
	return j
}

// SumSquares returns Σ rᵢ².
func SumSquares(model Model, x, y, theta []float64) float64 {
	r := Residuals(model, x, y, theta)
	return objective.Dot(r, r)
}

// Objective exposes the sum of squared residuals as an objective.Function
// over θ, so fits can also be driven by descent methods or the mayfly
// baseline.
type Objective struct {
	Model Model
	X, Y  []float64
}

func (o Objective) Dim() int { return o.Model.NumParams() }

func (o Objective) Value(theta []float64) float64 {
	return SumSquares(o.Model, o.X, o.Y, theta)
}

// Gradient returns −2Jᵀr.
func (o Objective) Gradient(theta []float64) []float64 {
	r := Residuals(o.Model, o.X, o.Y, theta)
	g := make([]float64, o.Model.NumParams())
	for i, xi := range o.X {
		for k, d := range o.Model.ParamGrad(xi, theta) {
			g[k] -= 2 * d * r[i]
		}
	}
	return g
}
