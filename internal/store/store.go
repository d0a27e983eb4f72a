// Package store persists finished optimization runs and their trajectories.
package store

// Store defines the interface for run persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun atomically writes the record, overwriting an existing one
	// with the same ID.
	SaveRun(record *RunRecord) error

	// LoadRun retrieves the record for id.
	LoadRun(id string) (*RunRecord, error)

	// ListRuns returns summaries of all stored runs, oldest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the record and its trajectory.
	DeleteRun(id string) error

	// RunDir returns the directory holding the run's artifacts. The
	// trajectory writer places trace.jsonl there.
	RunDir(id string) string
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "run not found: " + e.ID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
