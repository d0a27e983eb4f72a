// Package trace records optimization trajectories: one Entry per iteration,
// kept in memory or streamed to a JSONL file.
package trace

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/optdemo/internal/objective"
)

// Entry is one iteration of an optimization run.
type Entry struct {
	// Iteration is the 1-based iteration that produced Point
	Iteration int `json:"iteration"`

	// Point is the iterate after the update
	Point []float64 `json:"point"`

	// Value is the objective (or residual norm for root finders) at Point
	Value float64 `json:"value"`

	Timestamp time.Time `json:"timestamp"`
}

// NewEntry copies point so the recorder never aliases solver state.
func NewEntry(iteration int, point []float64, value float64) Entry {
	return Entry{
		Iteration: iteration,
		Point:     objective.Clone(point),
		Value:     value,
		Timestamp: time.Now(),
	}
}

// Recorder is a sink for iteration entries. Solvers call Record once per
// iteration; a failing recorder never changes the numerical result.
type Recorder interface {
	Record(entry Entry) error
}

// Emit forwards an entry to rec, logging instead of propagating failures.
// A nil rec is a no-op.
func Emit(rec Recorder, entry Entry) {
	if rec == nil {
		return
	}
	if err := rec.Record(entry); err != nil {
		slog.Warn("Failed to record iteration", "iteration", entry.Iteration, "error", err)
	}
}

// Memory keeps the trajectory in memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Memory) Record(entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of the recorded trajectory.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Points returns the visited points in order.
func (m *Memory) Points() [][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	points := make([][]float64, len(m.entries))
	for i, e := range m.entries {
		points[i] = e.Point
	}
	return points
}

// Multi fans an entry out to several recorders and returns the first error.
type Multi []Recorder

func (m Multi) Record(entry Entry) error {
	var first error
	for _, r := range m {
		if err := r.Record(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
