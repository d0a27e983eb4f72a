package lagrange

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optdemo/internal/objective"
	"github.com/cwbudde/optdemo/internal/trace"
)

const DefaultMaxIterations = 10

// Settings configures Newton.
type Settings struct {
	// MaxIterations is the number of Newton steps taken.
	MaxIterations int

	// ResidualTol stops early once ‖F(z)‖ ≤ ResidualTol. Zero disables the
	// test and the solver always runs MaxIterations steps.
	ResidualTol float64

	// Recorder receives z and ‖F(z)‖ after every step.
	Recorder trace.Recorder
}

func DefaultSettings() *Settings {
	return &Settings{MaxIterations: DefaultMaxIterations}
}

// Result is the outcome of a root-finding run.
type Result struct {
	Z            []float64
	ResidualNorm float64
	Iterations   int
}

// Newton iterates z ← z + Δ where J(z)·Δ = −F(z), solving the linear system
// directly by LU factorization. A singular Jacobian is fatal and returned as
// objective.ErrSingular.
func Newton(sys System, z0 []float64, settings *Settings) (*Result, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	if settings.MaxIterations < 0 || settings.ResidualTol < 0 {
		return nil, errors.New("newton-lagrange: max iterations and tolerance cannot be negative")
	}
	n := sys.Dim()
	if err := objective.CheckDim("z0", z0, n); err != nil {
		return nil, fmt.Errorf("newton-lagrange: %w", err)
	}

	z := objective.Clone(z0)
	f := sys.Residual(z)
	res := &Result{Z: z, ResidualNorm: objective.Norm(f)}

	for res.Iterations < settings.MaxIterations {
		if settings.ResidualTol > 0 && res.ResidualNorm <= settings.ResidualTol {
			break
		}

		rhs := mat.NewVecDense(n, nil)
		for i, v := range f {
			rhs.SetVec(i, -v)
		}
		var delta mat.VecDense
		if err := delta.SolveVec(sys.Jacobian(z), rhs); err != nil {
			return nil, fmt.Errorf("newton-lagrange: iteration %d: %v: %w", res.Iterations+1, err, objective.ErrSingular)
		}

		z = objective.Axpy(z, 1, delta.RawVector().Data)
		f = sys.Residual(z)
		res.Iterations++
		res.Z = z
		res.ResidualNorm = objective.Norm(f)

		trace.Emit(settings.Recorder, trace.NewEntry(res.Iterations, z, res.ResidualNorm))
		slog.Debug("Newton-Lagrange iteration", "iteration", res.Iterations, "z", z, "residual", res.ResidualNorm)
	}

	slog.Info("Newton-Lagrange complete", "iterations", res.Iterations, "z", res.Z, "residual", res.ResidualNorm)
	return res, nil
}
