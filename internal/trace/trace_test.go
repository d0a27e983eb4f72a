package trace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestWriter_WriteAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-1")

	writer, err := NewWriter(dir, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	entries := []Entry{
		NewEntry(1, []float64{6.56}, 43.0336),
		NewEntry(2, []float64{5.3792}, 28.93579264),
		NewEntry(3, []float64{4.410944, -1}, 20.45),
	}
	for _, entry := range entries {
		if err := writer.Record(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	if _, err := os.Stat(writer.Path()); os.IsNotExist(err) {
		t.Fatalf("Trace file not created: %s", writer.Path())
	}

	reader, err := NewReader(dir)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i, entry := range got {
		if entry.Iteration != entries[i].Iteration {
			t.Errorf("Entry %d: expected iteration %d, got %d", i, entries[i].Iteration, entry.Iteration)
		}
		if entry.Value != entries[i].Value {
			t.Errorf("Entry %d: expected value %f, got %f", i, entries[i].Value, entry.Value)
		}
		if len(entry.Point) != len(entries[i].Point) {
			t.Errorf("Entry %d: expected %d coordinates, got %d", i, len(entries[i].Point), len(entry.Point))
		}
	}
}

func TestWriter_Append(t *testing.T) {
	dir := t.TempDir()

	for i, appendMode := range []bool{false, true} {
		writer, err := NewWriter(dir, appendMode)
		if err != nil {
			t.Fatalf("Failed to create trace writer: %v", err)
		}
		if err := writer.Record(NewEntry(i+1, []float64{1}, 1)); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("Failed to close writer: %v", err)
		}
	}

	reader, err := NewReader(dir)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries after append, got %d", len(entries))
	}
}

func TestReader_Missing(t *testing.T) {
	_, err := NewReader(t.TempDir())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()

	// Missing file is fine
	if err := Delete(dir); err != nil {
		t.Fatalf("Delete on missing trace failed: %v", err)
	}

	writer, err := NewWriter(dir, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	writer.Close()

	if err := Delete(dir); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(err) {
		t.Error("Expected trace file to be removed")
	}
}

func TestMemory_CopiesPoints(t *testing.T) {
	var m Memory
	point := []float64{1, 2}

	Emit(&m, NewEntry(1, point, 5))
	point[0] = 100

	points := m.Points()
	if len(points) != 1 {
		t.Fatalf("Expected 1 point, got %d", len(points))
	}
	if points[0][0] != 1 {
		t.Errorf("Recorded point aliases caller slice: got %v", points[0])
	}
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(Entry) error {
	f.calls++
	return errors.New("disk full")
}

func TestMulti_ContinuesAfterFailure(t *testing.T) {
	failing := &failingRecorder{}
	var m Memory

	err := Multi{failing, &m}.Record(NewEntry(1, []float64{0}, 0))
	if err == nil {
		t.Error("Expected error from failing recorder")
	}
	if len(m.Entries()) != 1 {
		t.Error("Expected memory recorder to receive the entry")
	}

	// Emit swallows the error and a nil recorder is a no-op
	Emit(failing, NewEntry(2, []float64{0}, 0))
	Emit(nil, NewEntry(3, []float64{0}, 0))
	if failing.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", failing.calls)
	}
}
