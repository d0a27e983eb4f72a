// Package descent implements the line-search descent loop shared by
// gradient descent and Newton's method.
package descent

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optdemo/internal/linesearch"
	"github.com/cwbudde/optdemo/internal/objective"
	"github.com/cwbudde/optdemo/internal/trace"
)

// directionFunc returns the search direction at x given g = ∇f(x).
type directionFunc func(x, g []float64) ([]float64, error)

// GradientDescent minimizes fn from start along d = −∇f(x) with step sizes
// chosen by policy. A nil settings uses DefaultSettings.
func GradientDescent(fn objective.Function, start []float64, policy linesearch.Policy, settings *Settings) (*Result, error) {
	if policy == nil {
		return nil, errors.New("gradient descent: nil step policy")
	}
	steepest := func(_, g []float64) ([]float64, error) {
		return steepestDescent(g), nil
	}
	return minimize("gradient_descent", fn, start, policy, steepest, settings)
}

func steepestDescent(g []float64) []float64 {
	d := make([]float64, len(g))
	for i, v := range g {
		d[i] = -v
	}
	return d
}

// Newton minimizes fn from start along d = −H(x)⁻¹∇f(x). The step size
// comes from settings.StepPolicy, a full step by default. On a quadratic
// with positive-definite Hessian the first full step lands on the minimizer.
// When the Hessian is indefinite and the policy is a line search that
// rejects uphill directions, that iteration steps along −∇f(x) instead.
func Newton(fn objective.Hessianer, start []float64, settings *Settings) (*Result, error) {
	if err := objective.CheckHessian(fn); err != nil {
		return nil, fmt.Errorf("newton: %w", err)
	}
	var policy linesearch.Policy = linesearch.Fixed{Tau: 1}
	if settings != nil && settings.StepPolicy != nil {
		policy = settings.StepPolicy
	}
	newton := func(x, g []float64) ([]float64, error) {
		return newtonDirection(fn.Hessian(x), g)
	}
	return minimize("newton", fn, start, policy, newton, settings)
}

// newtonDirection solves H·d = −g. One-dimensional problems divide by the
// scalar curvature directly.
func newtonDirection(h *mat.SymDense, g []float64) ([]float64, error) {
	n := len(g)
	if h.SymmetricDim() != n {
		return nil, &objective.DimensionError{What: "hessian", Want: n, Got: h.SymmetricDim()}
	}

	if n == 1 {
		if h.At(0, 0) == 0 {
			return nil, fmt.Errorf("newton step: zero curvature: %w", objective.ErrSingular)
		}
		return []float64{-g[0] / h.At(0, 0)}, nil
	}

	rhs := mat.NewVecDense(n, nil)
	for i, v := range g {
		rhs.SetVec(i, -v)
	}
	var d mat.VecDense
	if err := d.SolveVec(h, rhs); err != nil {
		return nil, fmt.Errorf("newton step: %v: %w", err, objective.ErrSingular)
	}
	return d.RawVector().Data, nil
}

func minimize(method string, fn objective.Function, start []float64, policy linesearch.Policy, direction directionFunc, settings *Settings) (*Result, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if err := objective.CheckDim("start", start, fn.Dim()); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	x := objective.Clone(start)
	g := fn.Gradient(x)
	res := &Result{
		X:        x,
		Value:    fn.Value(x),
		GradNorm: objective.Norm(g),
		Status:   StatusMaxIterations,
	}
	tracker := NewConvergenceTracker(settings.Convergence)

	slog.Debug("Starting descent", "method", method, "dim", len(x), "max_iterations", settings.MaxIterations)

	for res.Iterations < settings.MaxIterations {
		d, err := direction(x, g)
		if err != nil {
			return nil, fmt.Errorf("%s: iteration %d: %w", method, res.Iterations+1, err)
		}

		tau, err := policy.Step(fn, x, g, d)
		if errors.Is(err, linesearch.ErrNotDescent) {
			// Indefinite Hessian: fall back to steepest descent for this step.
			slog.Warn("Direction points uphill, using steepest descent", "method", method, "iteration", res.Iterations+1)
			d = steepestDescent(g)
			tau, err = policy.Step(fn, x, g, d)
		}
		if errors.Is(err, linesearch.ErrShrinkLimit) {
			slog.Warn("Line search failed, keeping last point", "method", method, "iteration", res.Iterations+1)
			res.Status = StatusLineSearchFailed
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: step size: %w", method, err)
		}

		x = objective.Axpy(x, tau, d)
		g = fn.Gradient(x)
		res.Iterations++
		res.X = x
		res.Value = fn.Value(x)
		res.GradNorm = objective.Norm(g)

		trace.Emit(settings.Recorder, trace.NewEntry(res.Iterations, x, res.Value))
		slog.Debug("Iteration",
			"method", method,
			"iteration", res.Iterations,
			"tau", tau,
			"value", res.Value,
			"grad_norm", res.GradNorm,
		)

		if res.GradNorm <= settings.GradTol {
			res.Status = StatusConverged
			break
		}
		if tracker.Update(res.Value) {
			res.Status = StatusStalled
			slog.Debug("Stalled", "method", method, "best", tracker.Best(), "stale_count", tracker.StaleCount())
			break
		}
	}

	slog.Info("Descent complete",
		"method", method,
		"iterations", res.Iterations,
		"value", res.Value,
		"grad_norm", res.GradNorm,
		"status", res.Status,
	)
	return res, nil
}
