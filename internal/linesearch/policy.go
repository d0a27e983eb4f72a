// Package linesearch provides step-size policies for descent methods.
package linesearch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cwbudde/optdemo/internal/objective"
)

// DefaultMaxShrink bounds the backtracking inner loop when no cap is set.
const DefaultMaxShrink = 100

// ErrShrinkLimit is returned by Backtracking when the sufficient-decrease
// condition still fails after MaxShrink reductions of the step.
var ErrShrinkLimit = errors.New("line search: shrink limit reached")

// ErrNotDescent is returned by Backtracking when ∇f(x)ᵀd ≥ 0 at a
// non-stationary x, so no step along d can decrease f.
var ErrNotDescent = errors.New("line search: not a descent direction")

// Policy chooses the step length τ for the update x ← x + τ·d.
type Policy interface {
	// Step returns τ for the direction dir at x, where grad is ∇f(x).
	Step(fn objective.Function, x, grad, dir []float64) (float64, error)
}

// Fixed always returns the same learning rate. It gives no decrease
// guarantee and diverges when Tau is too large for the curvature.
type Fixed struct {
	Tau float64
}

func (f Fixed) Step(objective.Function, []float64, []float64, []float64) (float64, error) {
	return f.Tau, nil
}

func (f Fixed) String() string { return fmt.Sprintf("fixed(tau=%g)", f.Tau) }

// Backtracking starts at τ = 1 and multiplies by Beta until the Armijo test
//
//	f(x + τd) − f(x) ≤ ε·∇f(x)ᵀd
//
// holds. For the steepest descent direction d = −∇f(x) the right-hand side is
// −ε‖∇f(x)‖². Directions with ∇f(x)ᵀd ≥ 0 are rejected with ErrNotDescent,
// so accepted steps never increase the objective.
type Backtracking struct {
	Eps       float64
	Beta      float64
	MaxShrink int // 0 means DefaultMaxShrink
}

// NewBacktracking validates the parameters.
func NewBacktracking(eps, beta float64, maxShrink int) (*Backtracking, error) {
	b := &Backtracking{Eps: eps, Beta: beta, MaxShrink: maxShrink}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate reports parameters for which the search is not guaranteed to
// terminate or to decrease f.
func (b *Backtracking) Validate() error {
	if b.Eps <= 0 || b.Eps >= 1 {
		return &ParamError{Name: "eps", Value: b.Eps, Reason: "outside allowed range (0, 1)"}
	}
	if b.Beta <= 0 || b.Beta >= 1 {
		return &ParamError{Name: "beta", Value: b.Beta, Reason: "outside allowed range (0, 1)"}
	}
	if b.MaxShrink < 0 {
		return &ParamError{Name: "max_shrink", Value: float64(b.MaxShrink), Reason: "cannot be negative"}
	}
	return nil
}

func (b *Backtracking) Step(fn objective.Function, x, grad, dir []float64) (float64, error) {
	maxShrink := b.MaxShrink
	if maxShrink == 0 {
		maxShrink = DefaultMaxShrink
	}

	slope := objective.Dot(grad, dir)
	if slope >= 0 && objective.Norm(grad) > 0 {
		return 0, ErrNotDescent
	}

	fx := fn.Value(x)
	bound := b.Eps * slope

	tau := 1.0
	for shrink := 0; ; shrink++ {
		if fn.Value(objective.Axpy(x, tau, dir))-fx <= bound {
			return tau, nil
		}
		if shrink == maxShrink {
			slog.Debug("Backtracking gave up", "tau", tau, "shrinks", shrink)
			return tau, ErrShrinkLimit
		}
		tau *= b.Beta
	}
}

func (b *Backtracking) String() string {
	return fmt.Sprintf("backtracking(eps=%g, beta=%g)", b.Eps, b.Beta)
}

// ParamError reports an invalid policy parameter.
type ParamError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s=%g: %s", e.Name, e.Value, e.Reason)
}
