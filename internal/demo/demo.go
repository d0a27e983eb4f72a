// Package demo holds the registry of demo problems shared by the CLI and
// the job server: each problem knows its objective, its default start and
// which solvers apply to it.
package demo

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optdemo/internal/cg"
	"github.com/cwbudde/optdemo/internal/config"
	"github.com/cwbudde/optdemo/internal/descent"
	"github.com/cwbudde/optdemo/internal/lagrange"
	"github.com/cwbudde/optdemo/internal/linesearch"
	"github.com/cwbudde/optdemo/internal/lsq"
	"github.com/cwbudde/optdemo/internal/objective"
	"github.com/cwbudde/optdemo/internal/opt"
	"github.com/cwbudde/optdemo/internal/trace"
)

// Params carries everything a problem needs to run one solver.
type Params struct {
	Method   string
	Start    []float64
	Run      config.RunConfig
	Mayfly   config.MayflyConfig
	Recorder trace.Recorder
}

// Outcome is the solver-independent summary of a run.
type Outcome struct {
	Final      []float64
	Value      float64
	Iterations int
	Status     string
}

// Problem is one demo the CLI and server can run.
type Problem struct {
	Name        string
	Description string
	Start       []float64

	// Methods lists the supported solvers; the first is the default.
	Methods []string

	// Noise is the default standard deviation of generated data.
	Noise float64

	solve func(p Params) (*Outcome, error)
}

// Solve runs the problem with p.
func (pr Problem) Solve(p Params) (*Outcome, error) {
	if !slices.Contains(pr.Methods, p.Method) {
		return nil, fmt.Errorf("problem %s does not support method %q", pr.Name, p.Method)
	}
	return pr.solve(p)
}

var registry = map[string]Problem{}

func register(p Problem) {
	registry[p.Name] = p
}

// Lookup returns the problem called name.
func Lookup(name string) (Problem, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names returns the registered problem names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveMethod picks the solver for p. An explicit request must be
// supported; a configured default that p does not support falls back to
// p's own default.
func ResolveMethod(p Problem, requested string, explicit bool) (string, error) {
	if requested != "" && slices.Contains(p.Methods, requested) {
		return requested, nil
	}
	if explicit {
		return "", fmt.Errorf("problem %s does not support method %q (supported: %v)", p.Name, requested, p.Methods)
	}
	return p.Methods[0], nil
}

// BuildParams resolves method, start point and noise for p from c.
// explicitNoise marks c.Run.Noise as chosen by the user even when zero.
func BuildParams(p Problem, c *config.Config, explicitMethod, explicitNoise bool) (Params, error) {
	m, err := ResolveMethod(p, c.Run.Method, explicitMethod)
	if err != nil {
		return Params{}, err
	}

	params := Params{
		Method: m,
		Start:  objective.Clone(p.Start),
		Run:    c.Run,
		Mayfly: c.Mayfly,
	}
	if len(c.Run.Start) > 0 {
		if len(c.Run.Start) != len(p.Start) {
			return Params{}, fmt.Errorf("problem %s needs a %d-dimensional start, got %v", p.Name, len(p.Start), c.Run.Start)
		}
		params.Start = objective.Clone(c.Run.Start)
	}
	if !explicitNoise && params.Run.Noise == 0 {
		params.Run.Noise = p.Noise
	}
	return params, nil
}

// convergence enables stall detection when a patience is configured.
func (p Params) convergence() descent.ConvergenceConfig {
	if p.Run.Patience <= 0 {
		return descent.DisabledConvergenceConfig()
	}
	return descent.ConvergenceConfig{
		Enabled:   true,
		Patience:  p.Run.Patience,
		Threshold: p.Run.StallThreshold,
	}
}

// Settings returns the solver options that matter for p.Method, for
// storing alongside a run.
func (p Params) Settings() map[string]float64 {
	s := map[string]float64{
		"max_iterations": float64(p.Run.MaxIterations),
		"tol":            p.Run.Tol,
		"seed":           float64(p.Run.Seed),
	}
	switch p.Method {
	case "gd":
		s["tau"] = p.Run.Tau
		s["grad_tol"] = p.Run.GradTol
	case "backtracking":
		s["eps"] = p.Run.Eps
		s["beta"] = p.Run.Beta
		s["max_shrink"] = float64(p.Run.MaxShrink)
		s["grad_tol"] = p.Run.GradTol
	case "newton":
		s["grad_tol"] = p.Run.GradTol
	case "mayfly":
		s["mayfly_iterations"] = float64(p.Mayfly.Iterations)
		s["mayfly_population"] = float64(p.Mayfly.Population)
		s["mayfly_radius"] = p.Mayfly.Radius
	}
	switch p.Method {
	case "gd", "backtracking", "newton":
		if p.Run.Patience > 0 {
			s["patience"] = float64(p.Run.Patience)
			s["stall_threshold"] = p.Run.StallThreshold
		}
	}
	if p.Run.Noise != 0 {
		s["noise"] = p.Run.Noise
	}
	if p.Run.WarmStart {
		s["warm_start"] = 1
	}
	return s
}

func init() {
	register(Problem{
		Name:        "x2",
		Description: "f(x) = x²",
		Start:       []float64{8},
		Methods:     []string{"gd", "backtracking", "newton", "mayfly"},
		solve:       minimizeObjective(objective.Sphere{N: 1}),
	})
	register(Problem{
		Name:        "xy2",
		Description: "f(x, y) = x² + y²",
		Start:       []float64{1, 1},
		Methods:     []string{"gd", "backtracking", "newton", "mayfly"},
		solve:       minimizeObjective(objective.Sphere{N: 2}),
	})
	register(Problem{
		Name:        "lagrange",
		Description: "min x + y subject to x² + y² = 2, solved on z = (x, y, λ)",
		Start:       []float64{0, -2, 1},
		Methods:     []string{"newton-lagrange"},
		solve:       solveLagrange,
	})
	register(Problem{
		Name:        "linear-lsq",
		Description: "fit m·x + b to y = x + 3 + noise on [0, 5]",
		Start:       []float64{1, 1},
		Methods:     []string{"gauss-newton", "mayfly"},
		Noise:       0.5,
		solve:       fitModel(lsq.Linear{}, []float64{1, 3}),
	})
	register(Problem{
		Name:        "saturation-lsq",
		Description: "fit a·x/(b + x) to y = 2x/(3 + x) + noise on [0, 5]",
		Start:       []float64{5, 1},
		Methods:     []string{"gauss-newton", "mayfly"},
		Noise:       0.1,
		solve:       fitModel(lsq.Saturation{}, []float64{2, 3}),
	})
	register(Problem{
		Name:        "cg",
		Description: "solve [[4, 1], [1, 3]] x = [1, 2]",
		Start:       []float64{2, 1},
		Methods:     []string{"cg"},
		solve:       solveCG,
	})
}

func minimizeObjective(fn objective.Hessianer) func(p Params) (*Outcome, error) {
	return func(p Params) (*Outcome, error) {
		if p.Method == "mayfly" {
			return runMayfly(fn, p)
		}

		settings := &descent.Settings{
			MaxIterations: p.Run.MaxIterations,
			GradTol:       p.Run.GradTol,
			Convergence:   p.convergence(),
			Recorder:      p.Recorder,
		}

		var (
			res *descent.Result
			err error
		)
		switch p.Method {
		case "gd":
			res, err = descent.GradientDescent(fn, p.Start, linesearch.Fixed{Tau: p.Run.Tau}, settings)
		case "backtracking":
			policy, perr := linesearch.NewBacktracking(p.Run.Eps, p.Run.Beta, p.Run.MaxShrink)
			if perr != nil {
				return nil, perr
			}
			res, err = descent.GradientDescent(fn, p.Start, policy, settings)
		case "newton":
			res, err = descent.Newton(fn, p.Start, settings)
		default:
			return nil, fmt.Errorf("unknown method: %s", p.Method)
		}
		if err != nil {
			return nil, err
		}

		return &Outcome{
			Final:      res.X,
			Value:      res.Value,
			Iterations: res.Iterations,
			Status:     string(res.Status),
		}, nil
	}
}

func runMayfly(fn objective.Function, p Params) (*Outcome, error) {
	optimizer := opt.NewMayfly(p.Mayfly.Iterations, p.Mayfly.Population, p.Run.Seed)
	x, cost, err := opt.Minimize(optimizer, fn, opt.Around(p.Start, p.Mayfly.Radius))
	if err != nil {
		return nil, err
	}
	trace.Emit(p.Recorder, trace.NewEntry(p.Mayfly.Iterations, x, cost))
	return &Outcome{
		Final:      x,
		Value:      cost,
		Iterations: p.Mayfly.Iterations,
		Status:     string(descent.StatusMaxIterations),
	}, nil
}

func solveLagrange(p Params) (*Outcome, error) {
	l, err := lagrange.NewLagrangian(
		objective.Affine{W: []float64{1, 1}},
		objective.RadialConstraint{N: 2, Radius: math.Sqrt2},
	)
	if err != nil {
		return nil, err
	}

	res, err := lagrange.Newton(l, p.Start, &lagrange.Settings{
		MaxIterations: p.Run.MaxIterations,
		ResidualTol:   p.Run.Tol,
		Recorder:      p.Recorder,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Final:      res.Z,
		Value:      res.ResidualNorm,
		Iterations: res.Iterations,
		Status:     rootStatus(res.ResidualNorm, p.Run.Tol),
	}, nil
}

// fitModel fits model to data generated from truth. The data is
// regenerated from the seed on every call so runs are reproducible.
func fitModel(model lsq.Model, truth []float64) func(p Params) (*Outcome, error) {
	return func(p Params) (*Outcome, error) {
		x, y := GenerateData(model, truth, 0, 5, 50, p.Run.Noise, p.Run.Seed)
		obj := lsq.Objective{Model: model, X: x, Y: y}

		if p.Method == "mayfly" {
			return runMayfly(obj, p)
		}

		start := p.Start
		if p.Run.WarmStart {
			optimizer := opt.NewMayfly(p.Mayfly.Iterations, p.Mayfly.Population, p.Run.Seed)
			warm, cost, err := opt.Minimize(optimizer, obj, opt.Around(start, p.Mayfly.Radius))
			if err != nil {
				return nil, fmt.Errorf("warm start: %w", err)
			}
			slog.Info("Warm start complete", "theta", warm, "ssr", cost)
			start = warm
		}

		res, err := lsq.GaussNewton(model, x, y, start, &lsq.Settings{
			MaxIterations: p.Run.MaxIterations,
			Tol:           p.Run.Tol,
			Recorder:      p.Recorder,
		})
		if err != nil {
			return nil, err
		}

		status := descent.StatusMaxIterations
		if res.Converged {
			status = descent.StatusConverged
		}
		return &Outcome{
			Final:      res.Theta,
			Value:      res.SumSquares,
			Iterations: res.Iterations,
			Status:     string(status),
		}, nil
	}
}

func solveCG(p Params) (*Outcome, error) {
	a := mat.NewSymDense(2, []float64{4, 1, 1, 3})
	res, err := cg.Solve(a, []float64{1, 2}, p.Start, &cg.Settings{
		MaxIterations: p.Run.MaxIterations,
		Tol:           p.Run.Tol,
		Recorder:      p.Recorder,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Final:      res.X,
		Value:      res.ResidualNorm,
		Iterations: res.Iterations,
		Status:     rootStatus(res.ResidualNorm, p.Run.Tol),
	}, nil
}

func rootStatus(residual, tol float64) string {
	if residual <= tol {
		return string(descent.StatusConverged)
	}
	return string(descent.StatusMaxIterations)
}
