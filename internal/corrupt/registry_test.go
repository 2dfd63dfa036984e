package corrupt

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRegistryMissingFileIsEmpty(t *testing.T) {
	r := NewRegistry(t.TempDir())

	if got := r.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
	if r.IsCorrupt("abc") {
		t.Error("IsCorrupt on empty registry")
	}
}

func TestRegistryMalformedFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(`{"oops":`), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(dir)

	if got := r.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
	if err := r.Mark("abc"); err != nil {
		t.Fatalf("Mark after malformed: %v", err)
	}
	if !reflect.DeepEqual(r.List(), []string{"abc"}) {
		t.Errorf("List() = %v", r.List())
	}
}

func TestRegistryMarkClear(t *testing.T) {
	r := NewRegistry(t.TempDir())

	for _, id := range []string{"a", "b", "a", "c"} {
		if err := r.Mark(id); err != nil {
			t.Fatalf("Mark(%q): %v", id, err)
		}
	}
	if got := r.List(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("List() = %v", got)
	}
	if !r.IsCorrupt("b") {
		t.Error("b should be corrupt")
	}

	cleared, err := r.Clear("b")
	if err != nil || !cleared {
		t.Errorf("Clear(b) = %v, %v", cleared, err)
	}
	cleared, err = r.Clear("b")
	if err != nil || cleared {
		t.Errorf("second Clear(b) = %v, %v", cleared, err)
	}
	if r.IsCorrupt("b") {
		t.Error("b should be cleared")
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d", r.Count())
	}
}

func TestRegistryClearAll(t *testing.T) {
	r := NewRegistry(t.TempDir())
	_ = r.Mark("x")
	_ = r.Mark("y")

	n, err := r.ClearAll()
	if err != nil || n != 2 {
		t.Errorf("ClearAll() = %d, %v", n, err)
	}
	if r.Count() != 0 {
		t.Errorf("registry not empty after ClearAll")
	}

	data, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("file content = %s, want []", data)
	}
}

func TestRegistryPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	if err := NewRegistry(dir).Mark("persisted"); err != nil {
		t.Fatal(err)
	}
	if !NewRegistry(dir).IsCorrupt("persisted") {
		t.Error("mark did not persist")
	}
}
