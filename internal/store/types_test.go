package store

import (
	"testing"
	"time"
)

func TestNewRunRecord(t *testing.T) {
	start := []float64{8}
	record := NewRunRecord("x2", "gd", start)
	start[0] = 0

	if record.ID == "" {
		t.Fatal("Expected generated ID")
	}
	if record.Start[0] != 8 {
		t.Errorf("Start aliases caller slice: %v", record.Start)
	}
	if err := record.Validate(); err != nil {
		t.Errorf("Fresh record should validate: %v", err)
	}

	other := NewRunRecord("x2", "gd", nil)
	if other.ID == record.ID {
		t.Error("Expected unique IDs")
	}
}

func TestRunRecordValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*RunRecord)
		field  string
	}{
		{"empty id", func(r *RunRecord) { r.ID = "" }, "ID"},
		{"bad id", func(r *RunRecord) { r.ID = "abc" }, "ID"},
		{"empty problem", func(r *RunRecord) { r.Problem = "" }, "Problem"},
		{"empty method", func(r *RunRecord) { r.Method = "" }, "Method"},
		{"negative iterations", func(r *RunRecord) { r.Iterations = -1 }, "Iterations"},
		{"zero timestamp", func(r *RunRecord) { r.Timestamp = time.Time{} }, "Timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := NewRunRecord("cg", "cg", []float64{2, 1})
			tt.modify(record)

			err := record.Validate()
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestRunRecordToInfo(t *testing.T) {
	record := NewRunRecord("lagrange", "newton-lagrange", []float64{0, -2, 1})
	record.Finish([]float64{-1, -1, 0.5}, 1e-16, 10, "max_iterations")

	info := record.ToInfo()
	if info.ID != record.ID || info.Problem != "lagrange" || info.Iterations != 10 {
		t.Errorf("Unexpected info: %+v", info)
	}
	if info.Status != "max_iterations" {
		t.Errorf("Expected status max_iterations, got %s", info.Status)
	}
}

func TestNotFoundError(t *testing.T) {
	if (&NotFoundError{ID: "abc"}).Error() != "run not found: abc" {
		t.Error("Unexpected message")
	}
	if ErrNotFound.Error() != "run not found" {
		t.Error("Unexpected sentinel message")
	}
}
