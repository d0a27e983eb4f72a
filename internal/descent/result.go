package descent

// Status tells why a run stopped.
type Status string

const (
	// StatusMaxIterations means the iteration cap was exhausted. This is
	// not an error; the last point is still the best-effort answer.
	StatusMaxIterations Status = "max_iterations"

	// StatusConverged means ‖∇f(x)‖ ≤ GradTol.
	StatusConverged Status = "converged"

	// StatusStalled means the stall detector fired.
	StatusStalled Status = "stalled"

	// StatusLineSearchFailed means the step policy could not find an
	// acceptable step; X is the last accepted point.
	StatusLineSearchFailed Status = "line_search_failed"
)

// Result is the outcome of a descent run.
type Result struct {
	X          []float64
	Value      float64
	GradNorm   float64
	Iterations int
	Status     Status
}
