// Package cg solves symmetric positive-definite linear systems with the
// conjugate gradient method.
package cg

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optdemo/internal/objective"
	"github.com/cwbudde/optdemo/internal/trace"
)

const DefaultMaxIterations = 10

// Settings configures Solve.
type Settings struct {
	// MaxIterations caps the number of CG steps. In exact arithmetic an
	// n×n system is solved in at most n steps.
	MaxIterations int

	// Tol stops once ‖r‖ ≤ Tol·‖b‖. With Tol = 0 only an exactly zero
	// residual stops the recurrence before MaxIterations.
	Tol float64

	// Recorder receives x and ‖r‖ after every step.
	Recorder trace.Recorder
}

func DefaultSettings() *Settings {
	return &Settings{MaxIterations: DefaultMaxIterations}
}

// Result is the approximate solution of Ax = b.
type Result struct {
	X            []float64
	ResidualNorm float64
	Iterations   int
}

// Solve approximates the solution of Ax = b from x0 with the recurrence
//
//	α = rᵀr / pᵀAp,  x ← x + αp,  r' = r − αAp,  β = r'ᵀr' / rᵀr,  p ← r' + βp
//
// A must be positive definite; the loop stops if pᵀAp ≤ 0, which also
// guards the division once the residual has vanished.
func Solve(a mat.Symmetric, b, x0 []float64, settings *Settings) (*Result, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	if settings.MaxIterations < 0 || settings.Tol < 0 {
		return nil, errors.New("conjugate gradient: max iterations and tolerance cannot be negative")
	}
	n := a.SymmetricDim()
	if err := objective.CheckDim("b", b, n); err != nil {
		return nil, fmt.Errorf("conjugate gradient: %w", err)
	}
	if err := objective.CheckDim("x0", x0, n); err != nil {
		return nil, fmt.Errorf("conjugate gradient: %w", err)
	}

	x := mat.NewVecDense(n, objective.Clone(x0))
	bv := mat.NewVecDense(n, objective.Clone(b))

	// r = b − Ax, p = r
	r := mat.NewVecDense(n, nil)
	r.MulVec(a, x)
	r.SubVec(bv, r)
	p := mat.VecDenseCopyOf(r)
	ap := mat.NewVecDense(n, nil)

	rr := mat.Dot(r, r)
	stop := settings.Tol * mat.Norm(bv, 2)
	res := &Result{}

	for res.Iterations < settings.MaxIterations {
		if math.Sqrt(rr) <= stop {
			break
		}

		ap.MulVec(a, p)
		pAp := mat.Dot(p, ap)
		if pAp <= 0 {
			if rr > 0 {
				slog.Warn("Conjugate gradient hit non-positive curvature", "iteration", res.Iterations+1, "pAp", pAp)
			}
			break
		}

		alpha := rr / pAp
		x.AddScaledVec(x, alpha, p)
		r.AddScaledVec(r, -alpha, ap)

		rrNew := mat.Dot(r, r)
		beta := rrNew / rr
		p.AddScaledVec(r, beta, p)
		rr = rrNew
		res.Iterations++

		trace.Emit(settings.Recorder, trace.NewEntry(res.Iterations, x.RawVector().Data, math.Sqrt(rr)))
		slog.Debug("Conjugate gradient iteration", "iteration", res.Iterations, "alpha", alpha, "beta", beta, "residual", math.Sqrt(rr))
	}

	res.X = objective.Clone(x.RawVector().Data)
	res.ResidualNorm = math.Sqrt(rr)

	slog.Info("Conjugate gradient complete", "iterations", res.Iterations, "residual", res.ResidualNorm)
	return res, nil
}
