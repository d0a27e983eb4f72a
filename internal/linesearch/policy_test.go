package linesearch

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/optdemo/internal/objective"
)

func neg(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}

func TestFixedReturnsTau(t *testing.T) {
	p := Fixed{Tau: 0.09}
	tau, err := p.Step(objective.Sphere{N: 1}, []float64{8}, []float64{16}, []float64{-16})
	require.NoError(t, err)
	require.Equal(t, 0.09, tau)
}

func TestBacktrackingOnSquare(t *testing.T) {
	tests := []struct {
		name string
		beta float64
		want float64
	}{
		// τ = 1 reflects x to −x and fails the strict decrease test,
		// the first shrink is accepted.
		{name: "beta 0.9", beta: 0.9, want: 0.9},
		{name: "beta 0.8", beta: 0.8, want: 0.8},
	}

	fn := objective.Sphere{N: 1}
	x := []float64{8}
	g := fn.Gradient(x)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBacktracking(1e-4, tt.beta, 0)
			require.NoError(t, err)

			tau, err := b.Step(fn, x, g, neg(g))
			require.NoError(t, err)
			require.Equal(t, tt.want, tau)
			require.Less(t, fn.Value(objective.Axpy(x, tau, neg(g))), fn.Value(x))
		})
	}
}

func TestBacktrackingAtStationaryPoint(t *testing.T) {
	fn := objective.Sphere{N: 2}
	b := &Backtracking{Eps: 1e-4, Beta: 0.5}

	tau, err := b.Step(fn, []float64{0, 0}, []float64{0, 0}, []float64{0, 0})
	require.NoError(t, err)
	require.Equal(t, 1.0, tau)
}

func TestBacktrackingShrinkLimit(t *testing.T) {
	// With ε close to 1 only τ ≤ 0.01 passes on x² from x = 1.
	fn := objective.Sphere{N: 1}
	x := []float64{1}
	g := fn.Gradient(x)
	b := &Backtracking{Eps: 0.99, Beta: 0.5, MaxShrink: 5}

	tau, err := b.Step(fn, x, g, neg(g))
	require.True(t, errors.Is(err, ErrShrinkLimit))
	require.Equal(t, 1.0/32, tau)
}

func TestBacktrackingRejectsAscentDirection(t *testing.T) {
	fn := objective.Sphere{N: 1}
	x := []float64{1}
	g := fn.Gradient(x)
	b := &Backtracking{Eps: 1e-4, Beta: 0.5}

	_, err := b.Step(fn, x, g, g)
	require.ErrorIs(t, err, ErrNotDescent)

	_, err = b.Step(fn, x, g, []float64{0})
	require.ErrorIs(t, err, ErrNotDescent)
}

func TestBacktrackingRejectsNewtonOnConcaveCurvature(t *testing.T) {
	// cos has negative curvature at 0.5, so −f'/f'' points uphill.
	fn := objective.Func{
		N:    1,
		F:    func(x []float64) float64 { return math.Cos(x[0]) },
		Grad: func(x []float64) []float64 { return []float64{-math.Sin(x[0])} },
	}
	x := []float64{0.5}
	g := fn.Gradient(x)
	dir := []float64{-g[0] / -math.Cos(x[0])}
	b := &Backtracking{Eps: 1e-4, Beta: 0.5}

	_, err := b.Step(fn, x, g, dir)
	require.ErrorIs(t, err, ErrNotDescent)
}

func TestBacktrackingValidate(t *testing.T) {
	tests := []struct {
		name      string
		eps, beta float64
		maxShrink int
	}{
		{"zero eps", 0, 0.5, 0},
		{"beta one", 1e-4, 1, 0},
		{"negative beta", 1e-4, -0.1, 0},
		{"negative shrink cap", 1e-4, 0.5, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBacktracking(tt.eps, tt.beta, tt.maxShrink)
			var pe *ParamError
			require.ErrorAs(t, err, &pe)
		})
	}
}
