package persistence

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleTasks() []SerializableTask {
	return []SerializableTask{
		{TaskID: "a", SubmitTimeMs: 100, Priority: 1, Blob: []byte(`{"n":1}`)},
		{TaskID: "b", SubmitTimeMs: 200, Priority: 1, Blob: []byte(`{"n":2}`)},
		{TaskID: "c", SubmitTimeMs: 150, Priority: 5, Blob: []byte(`{"n":3}`)},
	}
}

// TestNoopStrategy_LoadAlwaysEmpty verifies the no-op variant never retains data.
func TestNoopStrategy_LoadAlwaysEmpty(t *testing.T) {
	s := NewNoopStrategy()
	ctx := context.Background()

	if err := s.Save(ctx, sampleTasks()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %v, want empty", got)
	}
}

// TestFileStrategy_SaveLoadRoundTrip verifies save(Q); load() = Q as ordered sequences.
func TestFileStrategy_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStrategy(filepath.Join(dir, "nested", "queue.jsonl"))
	ctx := context.Background()

	want := sampleTasks()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

// TestFileStrategy_SaveReplacesNotAppends verifies a second Save replaces the image.
func TestFileStrategy_SaveReplacesNotAppends(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStrategy(filepath.Join(dir, "queue.jsonl"))
	ctx := context.Background()

	if err := s.Save(ctx, sampleTasks()); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	second := []SerializableTask{{TaskID: "z", SubmitTimeMs: 999, Priority: 0, Blob: []byte("{}")}}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, second) {
		t.Errorf("Load() = %+v, want %+v (replaced, not appended)", got, second)
	}
}

// TestFileStrategy_CleanupThenLoadEmpty verifies cleanup(); load() returns empty.
func TestFileStrategy_CleanupThenLoadEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStrategy(filepath.Join(dir, "queue.jsonl"))
	ctx := context.Background()

	if err := s.Save(ctx, sampleTasks()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() after Cleanup() = %v, want empty", got)
	}

	// Cleanup must be idempotent.
	if err := s.Cleanup(ctx); err != nil {
		t.Errorf("second Cleanup() error = %v, want nil (idempotent)", err)
	}
}

// TestFileStrategy_LoadMissingFileReturnsEmpty verifies loading a never-saved
// strategy returns an empty sequence, not an error.
func TestFileStrategy_LoadMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStrategy(filepath.Join(dir, "never-written.jsonl"))

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %v, want empty", got)
	}
}
