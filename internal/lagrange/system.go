// Package lagrange finds stationary points of equality-constrained problems
// by Newton iteration on the gradient of the Lagrangian.
package lagrange

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optdemo/internal/objective"
)

// System is a square nonlinear system F(z) = 0 with its Jacobian.
type System interface {
	Dim() int
	Residual(z []float64) []float64
	Jacobian(z []float64) *mat.Dense
}

// Lagrangian is L(x, λ) = f(x) − Σ λᵢ cᵢ(x) for minimizing f subject to
// cᵢ(x) = 0. Its stationarity system in z = (x, λ) is
//
//	F(z) = [ ∇f(x) − Σ λᵢ∇cᵢ(x) ]      J(z) = [ ∇²f − Σ λᵢ∇²cᵢ   −∇Cᵀ ]
//	       [ c(x)                ]             [ ∇C                 0  ]
//
// where ∇C stacks the constraint gradients as rows.
type Lagrangian struct {
	Objective   objective.Hessianer
	Constraints []objective.Hessianer
}

// NewLagrangian checks that every constraint lives in the objective's space.
func NewLagrangian(f objective.Hessianer, constraints ...objective.Hessianer) (*Lagrangian, error) {
	if len(constraints) == 0 {
		return nil, fmt.Errorf("lagrangian: at least one constraint is required")
	}
	if err := objective.CheckHessian(f); err != nil {
		return nil, fmt.Errorf("lagrangian: objective: %w", err)
	}
	for i, c := range constraints {
		if err := objective.CheckHessian(c); err != nil {
			return nil, fmt.Errorf("lagrangian: constraint %d: %w", i, err)
		}
		if c.Dim() != f.Dim() {
			return nil, &objective.DimensionError{What: fmt.Sprintf("constraint %d", i), Want: f.Dim(), Got: c.Dim()}
		}
	}
	return &Lagrangian{Objective: f, Constraints: constraints}, nil
}

// Dim is n + m for n variables and m constraints.
func (l *Lagrangian) Dim() int {
	return l.Objective.Dim() + len(l.Constraints)
}

func (l *Lagrangian) split(z []float64) (x, lambda []float64) {
	n := l.Objective.Dim()
	return z[:n], z[n:]
}

func (l *Lagrangian) Residual(z []float64) []float64 {
	x, lambda := l.split(z)
	n := len(x)

	out := make([]float64, l.Dim())
	copy(out, l.Objective.Gradient(x))
	for i, c := range l.Constraints {
		for k, d := range c.Gradient(x) {
			out[k] -= lambda[i] * d
		}
		out[n+i] = c.Value(x)
	}
	return out
}

func (l *Lagrangian) Jacobian(z []float64) *mat.Dense {
	x, lambda := l.split(z)
	n := len(x)
	j := mat.NewDense(l.Dim(), l.Dim(), nil)

	hf := l.Objective.Hessian(x)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			j.Set(r, c, hf.At(r, c))
		}
	}

	for i, con := range l.Constraints {
		hc := con.Hessian(x)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				j.Set(r, c, j.At(r, c)-lambda[i]*hc.At(r, c))
			}
		}
		for k, d := range con.Gradient(x) {
			j.Set(k, n+i, -d)
			j.Set(n+i, k, d)
		}
	}
	return j
}

// Value returns f at the x part of z.
func (l *Lagrangian) Value(z []float64) float64 {
	x, _ := l.split(z)
	return l.Objective.Value(x)
}
