package demo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/optdemo/internal/config"
	"github.com/cwbudde/optdemo/internal/lsq"
	"github.com/cwbudde/optdemo/internal/trace"
)

func paramsFor(t *testing.T, name, method string) (Problem, Params) {
	t.Helper()
	p, ok := Lookup(name)
	require.True(t, ok, "problem %s not registered", name)

	c := config.Default()
	c.Run.Method = method
	params, err := BuildParams(p, c, method != "", false)
	require.NoError(t, err)
	return p, params
}

func TestRegistry(t *testing.T) {
	require.Equal(t,
		[]string{"cg", "lagrange", "linear-lsq", "saturation-lsq", "x2", "xy2"},
		Names(),
	)
	for _, name := range Names() {
		p, _ := Lookup(name)
		require.NotEmpty(t, p.Methods, name)
		require.NotEmpty(t, p.Start, name)
	}

	_, ok := Lookup("rosenbrock")
	require.False(t, ok)
}

func TestResolveMethod(t *testing.T) {
	p, _ := Lookup("lagrange")

	m, err := ResolveMethod(p, "gd", false)
	require.NoError(t, err)
	require.Equal(t, "newton-lagrange", m)

	_, err = ResolveMethod(p, "gd", true)
	require.Error(t, err)

	x2, _ := Lookup("x2")
	m, err = ResolveMethod(x2, "newton", true)
	require.NoError(t, err)
	require.Equal(t, "newton", m)
}

func TestBuildParams(t *testing.T) {
	xy2, _ := Lookup("xy2")
	c := config.Default()
	c.Run.Start = []float64{1, 2, 3}
	_, err := BuildParams(xy2, c, false, false)
	require.Error(t, err)

	c.Run.Start = []float64{3, 4}
	params, err := BuildParams(xy2, c, false, false)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4}, params.Start)
	require.Equal(t, "gd", params.Method)

	sat, _ := Lookup("saturation-lsq")
	params, err = BuildParams(sat, config.Default(), false, false)
	require.NoError(t, err)
	require.Equal(t, 0.1, params.Run.Noise)
	require.Equal(t, "gauss-newton", params.Method)

	params, err = BuildParams(sat, config.Default(), false, true)
	require.NoError(t, err)
	require.Zero(t, params.Run.Noise)
}

func TestBuildParamsDoesNotAliasStart(t *testing.T) {
	p, params := paramsFor(t, "x2", "gd")
	params.Start[0] = -1
	require.Equal(t, 8.0, p.Start[0])
}

func TestSolveRejectsUnsupportedMethod(t *testing.T) {
	p, params := paramsFor(t, "cg", "")
	params.Method = "newton"
	_, err := p.Solve(params)
	require.Error(t, err)
}

func TestSolveX2(t *testing.T) {
	p, params := paramsFor(t, "x2", "gd")
	out, err := p.Solve(params)
	require.NoError(t, err)
	require.Equal(t, 100, out.Iterations)
	require.Less(t, math.Abs(out.Final[0]), 1e-8)
	require.Equal(t, "max_iterations", out.Status)

	p, params = paramsFor(t, "x2", "newton")
	out, err = p.Solve(params)
	require.NoError(t, err)
	require.Equal(t, 1, out.Iterations)
	require.Equal(t, 0.0, out.Final[0])
	require.Equal(t, "converged", out.Status)
}

func TestSolveX2StallDetection(t *testing.T) {
	p, params := paramsFor(t, "x2", "gd")
	params.Run.Tau = 1e-6
	params.Run.Patience = 3
	params.Run.StallThreshold = 0.01

	out, err := p.Solve(params)
	require.NoError(t, err)
	require.Equal(t, "stalled", out.Status)
	require.Equal(t, 4, out.Iterations)

	s := params.Settings()
	require.Equal(t, 3.0, s["patience"])
	require.Equal(t, 0.01, s["stall_threshold"])

	// Without a patience the same run goes to the iteration cap.
	params.Run.Patience = 0
	out, err = p.Solve(params)
	require.NoError(t, err)
	require.Equal(t, "max_iterations", out.Status)
	require.NotContains(t, params.Settings(), "patience")
}

func TestSolveXY2Backtracking(t *testing.T) {
	var rec trace.Memory
	p, params := paramsFor(t, "xy2", "backtracking")
	params.Recorder = &rec

	out, err := p.Solve(params)
	require.NoError(t, err)
	require.Less(t, math.Abs(out.Final[0]), 1e-22)
	require.Less(t, math.Abs(out.Final[1]), 1e-22)
	require.Len(t, rec.Entries(), out.Iterations)
}

func TestSolveXY2Mayfly(t *testing.T) {
	var rec trace.Memory
	p, params := paramsFor(t, "xy2", "mayfly")
	params.Recorder = &rec

	out, err := p.Solve(params)
	require.NoError(t, err)
	require.Len(t, out.Final, 2)
	// The search box around (1, 1) contains the start, so the best cost
	// cannot be worse than f(1, 1).
	require.LessOrEqual(t, out.Value, 2.0)
	require.Len(t, rec.Entries(), 1)
}

func TestSolveLagrange(t *testing.T) {
	p, params := paramsFor(t, "lagrange", "")
	out, err := p.Solve(params)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{-1, -1, 0.5}, out.Final, 1e-6)
	require.Equal(t, 5, out.Iterations)
	require.Equal(t, "converged", out.Status)
}

func TestSolveCG(t *testing.T) {
	p, params := paramsFor(t, "cg", "")
	out, err := p.Solve(params)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{1.0 / 11, 7.0 / 11}, out.Final, 1e-12)
	require.Equal(t, 2, out.Iterations)
	require.Equal(t, "converged", out.Status)
}

func TestSolveSaturationNoiseless(t *testing.T) {
	p, params := paramsFor(t, "saturation-lsq", "")
	params.Run.Noise = 0

	out, err := p.Solve(params)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{2, 3}, out.Final, 1e-8)
	require.Equal(t, 7, out.Iterations)
	require.Equal(t, "converged", out.Status)
}

func TestSolveLinearNoisy(t *testing.T) {
	p, params := paramsFor(t, "linear-lsq", "")

	out, err := p.Solve(params)
	require.NoError(t, err)
	require.Equal(t, "converged", out.Status)
	// 50 points with σ = 0.5 pin the line down well
	require.InDelta(t, 1.0, out.Final[0], 0.3)
	require.InDelta(t, 3.0, out.Final[1], 0.6)

	again, err := p.Solve(params)
	require.NoError(t, err)
	require.Equal(t, out.Final, again.Final, "same seed must reproduce the fit")
}

func TestParamsSettings(t *testing.T) {
	_, params := paramsFor(t, "xy2", "backtracking")
	s := params.Settings()
	require.Equal(t, 0.8, s["beta"])
	require.Equal(t, 1e-4, s["eps"])
	require.NotContains(t, s, "tau")

	_, params = paramsFor(t, "saturation-lsq", "")
	require.Equal(t, 0.1, params.Settings()["noise"])
}

func TestGenerateData(t *testing.T) {
	x, y := GenerateData(lsq.Saturation{}, []float64{2, 3}, 0, 5, 50, 0, 1)
	require.Len(t, x, 50)
	require.Equal(t, 0.0, x[0])
	require.Equal(t, 5.0, x[49])
	require.InDelta(t, 1.25, y[49], 1e-15)

	require.Equal(t, []float64{2}, Linspace(2, 7, 1))
	require.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3))
	require.Nil(t, Linspace(0, 5, 0))
	require.Nil(t, Linspace(0, 5, -3))

	x, y = GenerateData(lsq.Linear{}, []float64{1, 3}, 0, 5, 0, 0.5, 42)
	require.Empty(t, x)
	require.Empty(t, y)
}
