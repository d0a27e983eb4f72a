package descent

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optdemo/internal/linesearch"
	"github.com/cwbudde/optdemo/internal/objective"
	"github.com/cwbudde/optdemo/internal/trace"
)

func backtracking(t *testing.T, eps, beta float64) *linesearch.Backtracking {
	t.Helper()
	b, err := linesearch.NewBacktracking(eps, beta, 0)
	require.NoError(t, err)
	return b
}

func TestGradientDescentSquare(t *testing.T) {
	tests := []struct {
		name   string
		policy func(t *testing.T) linesearch.Policy
		bound  float64
	}{
		{
			name:   "fixed rate",
			policy: func(*testing.T) linesearch.Policy { return linesearch.Fixed{Tau: 0.09} },
			bound:  1e-7,
		},
		{
			name:   "backtracking",
			policy: func(t *testing.T) linesearch.Policy { return backtracking(t, 1e-4, 0.9) },
			bound:  1e-8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := GradientDescent(objective.Sphere{N: 1}, []float64{8}, tt.policy(t), nil)
			require.NoError(t, err)
			require.Less(t, math.Abs(res.X[0]), tt.bound)
			require.Equal(t, 100, res.Iterations)
			require.Equal(t, StatusMaxIterations, res.Status)
		})
	}
}

func TestGradientDescentSphere2D(t *testing.T) {
	tests := []struct {
		name   string
		policy func(t *testing.T) linesearch.Policy
		bound  float64
	}{
		{
			name:   "fixed rate",
			policy: func(*testing.T) linesearch.Policy { return linesearch.Fixed{Tau: 0.1} },
			bound:  1e-9,
		},
		{
			name:   "backtracking",
			policy: func(t *testing.T) linesearch.Policy { return backtracking(t, 1e-4, 0.8) },
			bound:  1e-22,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := GradientDescent(objective.Sphere{N: 2}, []float64{1, 1}, tt.policy(t), nil)
			require.NoError(t, err)
			require.Less(t, math.Abs(res.X[0]), tt.bound)
			require.Less(t, math.Abs(res.X[1]), tt.bound)
		})
	}
}

func TestBacktrackingNeverIncreasesObjective(t *testing.T) {
	var rec trace.Memory
	fn := objective.Sphere{N: 2}
	start := []float64{3, -4}

	settings := DefaultSettings()
	settings.MaxIterations = 30
	settings.Recorder = &rec

	_, err := GradientDescent(fn, start, backtracking(t, 1e-4, 0.3), settings)
	require.NoError(t, err)

	entries := rec.Entries()
	require.Len(t, entries, 30)
	prev := fn.Value(start)
	for i, e := range entries {
		require.Equal(t, i+1, e.Iteration)
		require.LessOrEqual(t, e.Value, prev)
		prev = e.Value
	}
}

func TestFixedRateCanDiverge(t *testing.T) {
	// τ > 1/L with L = 2 overshoots: |1 − 2τ| > 1.
	settings := DefaultSettings()
	settings.MaxIterations = 10

	res, err := GradientDescent(objective.Sphere{N: 1}, []float64{1}, linesearch.Fixed{Tau: 1.5}, settings)
	require.NoError(t, err)
	require.InDelta(t, 1024.0, math.Abs(res.X[0]), 1e-9)
}

func TestNewtonSquareOneIteration(t *testing.T) {
	for _, x0 := range []float64{10, -3.7, 1e-6, 12345.678} {
		res, err := Newton(objective.Sphere{N: 1}, []float64{x0}, nil)
		require.NoError(t, err)
		require.Equal(t, 0.0, res.X[0], "x0=%g", x0)
		require.Equal(t, 1, res.Iterations, "x0=%g", x0)
		require.Equal(t, StatusConverged, res.Status)
	}
}

func TestNewtonSphere2D(t *testing.T) {
	res, err := Newton(objective.Sphere{N: 2}, []float64{1, -2}, nil)
	require.NoError(t, err)
	require.InDelta(t, 0.0, res.X[0], 1e-15)
	require.InDelta(t, 0.0, res.X[1], 1e-15)
	require.Equal(t, 1, res.Iterations)
}

func TestNewtonWithGradTol(t *testing.T) {
	// f(x) = x⁴ has vanishing curvature at the minimum; Newton only
	// contracts by 2/3 per step, so a tolerance is needed to stop.
	quartic := objective.Func{
		N:    1,
		F:    func(x []float64) float64 { return math.Pow(x[0], 4) },
		Grad: func(x []float64) []float64 { return []float64{4 * math.Pow(x[0], 3)} },
	}
	fn := hessFunc{Func: quartic, hess: func(x []float64) float64 { return 12 * x[0] * x[0] }}

	settings := DefaultSettings()
	settings.GradTol = 1e-9

	res, err := Newton(fn, []float64{1}, settings)
	require.NoError(t, err)
	require.Equal(t, StatusConverged, res.Status)
	require.Less(t, res.Iterations, 100)
	require.LessOrEqual(t, res.GradNorm, 1e-9)
}

func TestNewtonSingularHessian(t *testing.T) {
	affine := objective.Affine{W: []float64{1, 1}}
	_, err := Newton(affine, []float64{0, 0}, nil)
	require.True(t, errors.Is(err, objective.ErrSingular))

	scalar := objective.Affine{W: []float64{1}}
	_, err = Newton(scalar, []float64{0}, nil)
	require.True(t, errors.Is(err, objective.ErrSingular))
}

func TestNewtonWithBacktracking(t *testing.T) {
	settings := DefaultSettings()
	settings.StepPolicy = backtracking(t, 1e-4, 0.5)

	res, err := Newton(objective.Sphere{N: 3}, []float64{1, 2, 3}, settings)
	require.NoError(t, err)
	require.Equal(t, 1, res.Iterations)
	require.InDeltaSlice(t, []float64{0, 0, 0}, res.X, 1e-15)
}

func TestDimensionMismatch(t *testing.T) {
	_, err := GradientDescent(objective.Sphere{N: 2}, []float64{1}, linesearch.Fixed{Tau: 0.1}, nil)
	require.True(t, errors.Is(err, objective.ErrDimension))

	_, err = Newton(objective.Sphere{N: 1}, []float64{1, 2}, nil)
	require.True(t, errors.Is(err, objective.ErrDimension))
}

func TestInvalidSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxIterations = -1
	_, err := GradientDescent(objective.Sphere{N: 1}, []float64{1}, linesearch.Fixed{Tau: 0.1}, settings)
	require.Error(t, err)

	_, err = GradientDescent(objective.Sphere{N: 1}, []float64{1}, nil, nil)
	require.Error(t, err)
}

func TestLineSearchFailureStopsLoop(t *testing.T) {
	// Steepest descent on a function whose value grows in every direction
	// from x: the Armijo test can never pass.
	bad := objective.Func{
		N:    1,
		F:    func(x []float64) float64 { return math.Abs(x[0]) },
		Grad: func(x []float64) []float64 { return []float64{-1} },
	}
	settings := DefaultSettings()
	settings.MaxIterations = 5

	res, err := GradientDescent(bad, []float64{0}, &linesearch.Backtracking{Eps: 1e-4, Beta: 0.5, MaxShrink: 10}, settings)
	require.NoError(t, err)
	require.Equal(t, StatusLineSearchFailed, res.Status)
	require.Equal(t, 0, res.Iterations)
	require.Equal(t, []float64{0}, res.X)
}

func TestStallDetection(t *testing.T) {
	// Tiny fixed steps barely move the objective.
	settings := DefaultSettings()
	settings.MaxIterations = 1000
	settings.Convergence = ConvergenceConfig{Enabled: true, Patience: 3, Threshold: 0.01}

	res, err := GradientDescent(objective.Sphere{N: 1}, []float64{1}, linesearch.Fixed{Tau: 1e-6}, settings)
	require.NoError(t, err)
	require.Equal(t, StatusStalled, res.Status)
	require.Less(t, res.Iterations, 10)
}

func TestIdempotentRestart(t *testing.T) {
	fn := objective.Sphere{N: 1}
	policy := linesearch.Fixed{Tau: 0.09}

	first, err := GradientDescent(fn, []float64{8}, policy, nil)
	require.NoError(t, err)
	second, err := GradientDescent(fn, first.X, policy, nil)
	require.NoError(t, err)
	require.Less(t, math.Abs(second.X[0]-first.X[0]), 1e-7)

	n1, err := Newton(fn, []float64{8}, nil)
	require.NoError(t, err)
	n2, err := Newton(fn, n1.X, nil)
	require.NoError(t, err)
	require.Equal(t, n1.X, n2.X)
}

func TestStartIsNotMutated(t *testing.T) {
	start := []float64{1, 1}
	_, err := GradientDescent(objective.Sphere{N: 2}, start, linesearch.Fixed{Tau: 0.1}, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 1}, start)
}

func TestConcurrentRuns(t *testing.T) {
	fn := objective.Sphere{N: 2}
	policy := linesearch.Fixed{Tau: 0.1}

	want, err := GradientDescent(fn, []float64{1, 1}, policy, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = GradientDescent(fn, []float64{1, 1}, policy, nil)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		require.Equal(t, want.X, r.X)
	}
}

type hessFunc struct {
	objective.Func
	hess func(x []float64) float64
}

func (h hessFunc) Hessian(x []float64) *mat.SymDense {
	return mat.NewSymDense(1, []float64{h.hess(x)})
}

func cosine() objective.Func {
	return objective.Func{
		N:    1,
		F:    func(x []float64) float64 { return math.Cos(x[0]) },
		Grad: func(x []float64) []float64 { return []float64{-math.Sin(x[0])} },
		Hess: func(x []float64) *mat.SymDense {
			return mat.NewSymDense(1, []float64{-math.Cos(x[0])})
		},
	}
}

func TestNewtonIndefiniteHessianNeverIncreases(t *testing.T) {
	// cos has negative curvature on (−π/2, π/2), where the Newton
	// direction points uphill.
	fn := cosine()
	rec := &trace.Memory{}
	settings := DefaultSettings()
	settings.MaxIterations = 20
	settings.StepPolicy = backtracking(t, 1e-4, 0.5)
	settings.Recorder = rec

	start := []float64{0.5}
	res, err := Newton(fn, start, settings)
	require.NoError(t, err)

	prev := fn.Value(start)
	for _, e := range rec.Entries() {
		require.LessOrEqual(t, e.Value, prev, "iteration %d increased f", e.Iteration)
		prev = e.Value
	}
	require.Less(t, res.Value, fn.Value(start))
	require.InDelta(t, -1, res.Value, 1e-9)
}

func TestNewtonWithoutHessian(t *testing.T) {
	fn := cosine()
	fn.Hess = nil

	_, err := Newton(fn, []float64{0.5}, nil)
	require.ErrorIs(t, err, objective.ErrNoHessian)

	_, err = Newton(&fn, []float64{0.5}, nil)
	require.ErrorIs(t, err, objective.ErrNoHessian)
}
