package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optdemo/internal/config"
	"github.com/cwbudde/optdemo/internal/demo"
	"github.com/cwbudde/optdemo/internal/store"
	"github.com/cwbudde/optdemo/internal/trace"
)

var (
	method        string
	maxIterations int
	tau           float64
	eps           float64
	beta          float64
	maxShrink     int
	tol           float64
	gradTol       float64
	patience      int
	stallThresh   float64
	start         []float64
	plot          bool
	seed          int64
	noise         float64
	warmStart     bool
	mayflyIters   int
	mayflyPop     int
	mayflyRadius  float64
	noSave        bool
)

var runCmd = &cobra.Command{
	Use:   "run <problem>",
	Short: "Run an optimization problem",
	Long: `Runs one demo problem with the selected method and stores the result.

Problems:
  x2              f(x) = x²                         (gd, backtracking, newton, mayfly)
  xy2             f(x, y) = x² + y²                 (gd, backtracking, newton, mayfly)
  lagrange        min x + y s.t. x² + y² = 2        (newton-lagrange)
  linear-lsq      fit m·x + b to noisy data         (gauss-newton, mayfly)
  saturation-lsq  fit a·x/(b + x) to noisy data     (gauss-newton, mayfly)
  cg              solve [[4,1],[1,3]] x = [1,2]     (cg)

With --plot the trajectory is written next to the run record and can be
inspected with "runs show".`,
	Args: cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return demo.Names(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runProblem,
}

func init() {
	runCmd.Flags().StringVar(&method, "method", "gd", "Method: gd, backtracking, newton, mayfly, gauss-newton, newton-lagrange, cg")
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", 100, "Max iterations")
	runCmd.Flags().Float64Var(&tau, "tau", 0.1, "Fixed step size for gd")
	runCmd.Flags().Float64Var(&eps, "eps", 1e-4, "Armijo sufficient-decrease constant")
	runCmd.Flags().Float64Var(&beta, "beta", 0.8, "Backtracking shrink factor in (0, 1)")
	runCmd.Flags().IntVar(&maxShrink, "max-shrink", 0, "Backtracking shrink cap (0 = default)")
	runCmd.Flags().Float64Var(&tol, "tol", 1e-5, "Step, residual or relative residual tolerance")
	runCmd.Flags().Float64Var(&gradTol, "grad-tol", 0, "Stop descent once the gradient norm is at most this")
	runCmd.Flags().IntVar(&patience, "patience", 0, "Stop descent after N iterations without significant decrease (0 = off)")
	runCmd.Flags().Float64Var(&stallThresh, "stall-threshold", 1e-9, "Minimum relative decrease of f that counts as progress")
	runCmd.Flags().Float64SliceVar(&start, "start", nil, "Starting point (comma separated)")
	runCmd.Flags().BoolVar(&plot, "plot", false, "Record the trajectory")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for data noise and mayfly")
	runCmd.Flags().Float64Var(&noise, "noise", 0, "Noise standard deviation for least-squares data (default per problem)")
	runCmd.Flags().BoolVar(&warmStart, "warm-start", false, "Warm-start Gauss-Newton with a mayfly search")
	runCmd.Flags().IntVar(&mayflyIters, "mayfly-iters", 200, "Mayfly iterations")
	runCmd.Flags().IntVar(&mayflyPop, "mayfly-pop", 20, "Mayfly population size (>= 20)")
	runCmd.Flags().Float64Var(&mayflyRadius, "mayfly-radius", 5, "Mayfly search radius around the start")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "Do not store the run")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides cfg with every flag set on the command line.
func applyRunFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	rc := &c.Run
	if flags.Changed("method") {
		rc.Method = method
	}
	if flags.Changed("max-iterations") {
		rc.MaxIterations = maxIterations
	}
	if flags.Changed("tau") {
		rc.Tau = tau
	}
	if flags.Changed("eps") {
		rc.Eps = eps
	}
	if flags.Changed("beta") {
		rc.Beta = beta
	}
	if flags.Changed("max-shrink") {
		rc.MaxShrink = maxShrink
	}
	if flags.Changed("tol") {
		rc.Tol = tol
	}
	if flags.Changed("grad-tol") {
		rc.GradTol = gradTol
	}
	if flags.Changed("patience") {
		rc.Patience = patience
	}
	if flags.Changed("stall-threshold") {
		rc.StallThreshold = stallThresh
	}
	if flags.Changed("start") {
		rc.Start = start
	}
	if flags.Changed("plot") {
		rc.Plot = plot
	}
	if flags.Changed("seed") {
		rc.Seed = seed
	}
	if flags.Changed("noise") {
		rc.Noise = noise
	}
	if flags.Changed("warm-start") {
		rc.WarmStart = warmStart
	}
	if flags.Changed("mayfly-iters") {
		c.Mayfly.Iterations = mayflyIters
	}
	if flags.Changed("mayfly-pop") {
		c.Mayfly.Population = mayflyPop
	}
	if flags.Changed("mayfly-radius") {
		c.Mayfly.Radius = mayflyRadius
	}
	return c.Validate()
}

func runProblem(cmd *cobra.Command, args []string) error {
	p, ok := demo.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown problem %q (available: %s)", args[0], strings.Join(demo.Names(), ", "))
	}

	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	params, err := demo.BuildParams(p, cfg, cmd.Flags().Changed("method"), cmd.Flags().Changed("noise"))
	if err != nil {
		return err
	}

	record := store.NewRunRecord(p.Name, params.Method, params.Start)
	record.Settings = params.Settings()

	var runStore *store.FSStore
	if !noSave {
		runStore, err = store.NewFSStore(cfg.General.DataDir)
		if err != nil {
			return fmt.Errorf("failed to create run store: %w", err)
		}
	}

	var writer *trace.Writer
	if params.Run.Plot {
		if runStore == nil {
			return fmt.Errorf("--plot needs the run to be stored, drop --no-save")
		}
		writer, err = trace.NewWriter(runStore.RunDir(record.ID), false)
		if err != nil {
			return fmt.Errorf("failed to create trace writer: %w", err)
		}
		params.Recorder = writer
		record.HasTrace = true
	}

	slog.Info("Starting run", "problem", p.Name, "method", params.Method, "start", params.Start, "id", record.ID)

	began := time.Now()
	out, err := p.Solve(params)
	if writer != nil {
		if cerr := writer.Close(); cerr != nil {
			slog.Warn("Failed to close trace writer", "error", cerr)
		}
	}
	if err != nil {
		if writer != nil {
			if derr := runStore.DeleteRun(record.ID); derr != nil {
				slog.Warn("Failed to remove partial trace", "id", record.ID, "error", derr)
			}
		}
		return fmt.Errorf("%s/%s: %w", p.Name, params.Method, err)
	}
	elapsed := time.Since(began)

	record.Finish(out.Final, out.Value, out.Iterations, out.Status)

	if runStore != nil {
		if err := runStore.SaveRun(record); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	slog.Info("Run complete", "problem", p.Name, "method", params.Method, "elapsed", elapsed, "status", out.Status)

	printOutcome(cmd.OutOrStdout(), p, record, runStore != nil)
	return nil
}

func printOutcome(w io.Writer, p demo.Problem, r *store.RunRecord, saved bool) {
	fmt.Fprintf(w, "Problem:    %s (%s)\n", p.Name, p.Description)
	fmt.Fprintf(w, "Method:     %s\n", r.Method)
	fmt.Fprintf(w, "Start:      %s\n", formatPoint(r.Start))
	fmt.Fprintf(w, "Final:      %s\n", formatPoint(r.Final))
	fmt.Fprintf(w, "Value:      %.6g\n", r.Value)
	fmt.Fprintf(w, "Iterations: %d\n", r.Iterations)
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	if saved {
		fmt.Fprintf(w, "Run ID:     %s\n", r.ID)
	}
}

func formatPoint(x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = fmt.Sprintf("%.6g", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
