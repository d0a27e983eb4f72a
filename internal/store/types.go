package store

import (
	"time"

	"github.com/google/uuid"
)

// RunRecord is a finished optimization run.
type RunRecord struct {
	ID string `json:"id"`

	// Problem names the demo problem, e.g. "xy2" or "saturation-lsq"
	Problem string `json:"problem"`

	// Method names the solver, e.g. "backtracking" or "gauss-newton"
	Method string `json:"method"`

	Start []float64 `json:"start"`
	Final []float64 `json:"final"`

	// Value is the objective, sum of squares or residual norm at Final
	Value float64 `json:"value"`

	Iterations int    `json:"iterations"`
	Status     string `json:"status"`

	Timestamp time.Time `json:"timestamp"`

	// Settings records the solver options used, for reproduction
	Settings map[string]float64 `json:"settings,omitempty"`

	// HasTrace is set when a trajectory file was written next to the record
	HasTrace bool `json:"hasTrace"`
}

// RunInfo is the listing view of a run.
type RunInfo struct {
	ID         string    `json:"id"`
	Problem    string    `json:"problem"`
	Method     string    `json:"method"`
	Value      float64   `json:"value"`
	Iterations int       `json:"iterations"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewRunRecord creates a record with a fresh ID and the current time.
func NewRunRecord(problem, method string, start []float64) *RunRecord {
	return &RunRecord{
		ID:        uuid.New().String(),
		Problem:   problem,
		Method:    method,
		Start:     append([]float64(nil), start...),
		Timestamp: time.Now(),
		Settings:  map[string]float64{},
	}
}

// Finish fills in the outcome of the run.
func (r *RunRecord) Finish(final []float64, value float64, iterations int, status string) {
	r.Final = append([]float64(nil), final...)
	r.Value = value
	r.Iterations = iterations
	r.Status = status
}

func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		ID:         r.ID,
		Problem:    r.Problem,
		Method:     r.Method,
		Value:      r.Value,
		Iterations: r.Iterations,
		Status:     r.Status,
		Timestamp:  r.Timestamp,
	}
}

// Validate checks that the record is complete enough to persist.
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		return &ValidationError{Field: "ID", Reason: "must be a UUID"}
	}
	if r.Problem == "" {
		return &ValidationError{Field: "Problem", Reason: "cannot be empty"}
	}
	if r.Method == "" {
		return &ValidationError{Field: "Method", Reason: "cannot be empty"}
	}
	if r.Iterations < 0 {
		return &ValidationError{Field: "Iterations", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
