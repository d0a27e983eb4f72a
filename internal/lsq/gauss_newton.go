package lsq

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optdemo/internal/objective"
	"github.com/cwbudde/optdemo/internal/trace"
)

const (
	DefaultMaxIterations = 100
	DefaultTol           = 1e-5
)

// Settings configures GaussNewton.
type Settings struct {
	// MaxIterations caps the number of parameter updates.
	MaxIterations int

	// Tol stops the fit once ‖θ_new − θ_old‖ < Tol.
	Tol float64

	// Recorder receives θ and the sum of squares after every update.
	Recorder trace.Recorder
}

func DefaultSettings() *Settings {
	return &Settings{MaxIterations: DefaultMaxIterations, Tol: DefaultTol}
}

// Result is the outcome of a fit.
type Result struct {
	Theta      []float64
	SumSquares float64
	Iterations int
	Converged  bool
}

// GaussNewton fits model to (x, y) starting from theta0. Each iteration
// solves the normal equations (JᵀJ)Δ = Jᵀr through a Cholesky factorization
// and sets θ ← θ + Δ. JᵀJ must be positive definite, which needs a Jacobian
// of full column rank; otherwise the fit fails with objective.ErrSingular.
func GaussNewton(model Model, x, y, theta0 []float64, settings *Settings) (*Result, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	if settings.MaxIterations < 0 || settings.Tol < 0 {
		return nil, errors.New("gauss-newton: max iterations and tolerance cannot be negative")
	}
	if err := objective.CheckDim("y", y, len(x)); err != nil {
		return nil, fmt.Errorf("gauss-newton: %w", err)
	}
	if err := objective.CheckDim("theta0", theta0, model.NumParams()); err != nil {
		return nil, fmt.Errorf("gauss-newton: %w", err)
	}

	theta := objective.Clone(theta0)
	res := &Result{Theta: theta}

	for res.Iterations < settings.MaxIterations {
		step, err := normalStep(model, x, y, theta)
		if err != nil {
			return nil, fmt.Errorf("gauss-newton: iteration %d: %w", res.Iterations+1, err)
		}

		next := objective.Axpy(theta, 1, step)
		res.Iterations++
		moved := objective.Distance(theta, next)
		theta = next

		ssr := SumSquares(model, x, y, theta)
		trace.Emit(settings.Recorder, trace.NewEntry(res.Iterations, theta, ssr))
		slog.Debug("Gauss-Newton iteration", "iteration", res.Iterations, "theta", theta, "ssr", ssr, "step", moved)

		if moved < settings.Tol {
			res.Converged = true
			break
		}
	}

	res.Theta = theta
	res.SumSquares = SumSquares(model, x, y, theta)

	slog.Info("Gauss-Newton complete",
		"iterations", res.Iterations,
		"converged", res.Converged,
		"theta", res.Theta,
		"ssr", res.SumSquares,
	)
	return res, nil
}

// normalStep returns Δ solving (JᵀJ)Δ = Jᵀr at θ.
func normalStep(model Model, x, y, theta []float64) ([]float64, error) {
	j := Jacobian(model, x, theta)
	r := mat.NewVecDense(len(x), Residuals(model, x, y, theta))

	p := model.NumParams()
	jtj := mat.NewSymDense(p, nil)
	jtj.SymOuterK(1, j.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(jtj); !ok {
		return nil, fmt.Errorf("normal equations: %w", objective.ErrSingular)
	}

	var jtr, step mat.VecDense
	jtr.MulVec(j.T(), r)
	if err := chol.SolveVecTo(&step, &jtr); err != nil {
		return nil, fmt.Errorf("normal equations: %v: %w", err, objective.ErrSingular)
	}
	return step.RawVector().Data, nil
}
