package descent

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines stall detection on the objective value.
type ConvergenceConfig struct {
	// Enabled controls whether stall detection is active
	Enabled bool

	// Patience is the number of consecutive iterations without significant
	// improvement before the loop stops
	Patience int

	// Threshold is the minimum relative decrease that counts as progress.
	// Relative improvement = (lastSignificant - value) / |lastSignificant|
	Threshold float64
}

// DefaultConvergenceConfig returns a conservative stall detector.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  5,
		Threshold: 1e-9,
	}
}

// DisabledConvergenceConfig never reports a stall. The loop then runs until
// the gradient test or the iteration cap stops it.
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: false}
}

// ConvergenceTracker tracks objective values and detects stalls.
// A tracker belongs to a single run.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	updates         int
	best            float64
	lastSignificant float64
	staleCount      int
}

func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a new objective value and returns true once the run has
// gone Patience iterations without significant improvement.
func (c *ConvergenceTracker) Update(value float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.updates++
	if value < c.best {
		c.best = value
	}

	if c.updates == 1 {
		c.lastSignificant = value
		return false
	}

	// Objectives may be zero or negative; scale by magnitude.
	scale := math.Max(math.Abs(c.lastSignificant), math.SmallestNonzeroFloat64)
	improvement := (c.lastSignificant - value) / scale

	if improvement >= c.config.Threshold {
		c.lastSignificant = value
		c.staleCount = 0
		return false
	}

	c.staleCount++
	slog.Debug("No significant improvement",
		"value", value,
		"last_significant", c.lastSignificant,
		"relative_improvement", improvement,
		"stale_count", c.staleCount,
	)

	if c.staleCount >= c.config.Patience {
		slog.Info("Stall detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best", c.best,
		)
		return true
	}
	return false
}

func (c *ConvergenceTracker) Best() float64 {
	return c.best
}

func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}
