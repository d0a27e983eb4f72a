package descent

import (
	"fmt"

	"github.com/cwbudde/optdemo/internal/linesearch"
	"github.com/cwbudde/optdemo/internal/trace"
)

// DefaultMaxIterations is the iteration cap used when Settings is nil.
const DefaultMaxIterations = 100

// Settings configures a descent run.
type Settings struct {
	// MaxIterations caps the number of updates.
	MaxIterations int

	// GradTol stops the loop once ‖∇f(x)‖ ≤ GradTol. The zero value stops
	// only at an exact critical point.
	GradTol float64

	// Convergence configures optional stall detection on f.
	Convergence ConvergenceConfig

	// StepPolicy is used by Newton. Nil means a full step, Fixed{Tau: 1}.
	StepPolicy linesearch.Policy

	// Recorder receives one entry per iteration. May be nil.
	Recorder trace.Recorder
}

func DefaultSettings() *Settings {
	return &Settings{
		MaxIterations: DefaultMaxIterations,
		Convergence:   DisabledConvergenceConfig(),
	}
}

func (s *Settings) validate() error {
	if s.MaxIterations < 0 {
		return fmt.Errorf("max iterations cannot be negative: %d", s.MaxIterations)
	}
	if s.GradTol < 0 {
		return fmt.Errorf("gradient tolerance cannot be negative: %g", s.GradTol)
	}
	if s.Convergence.Enabled && s.Convergence.Patience <= 0 {
		return fmt.Errorf("convergence patience must be positive: %d", s.Convergence.Patience)
	}
	return nil
}
