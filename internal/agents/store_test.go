package agents

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Save(ctx, Definition{ID: "a1", Name: "first"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	defs, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if defs["a1"].Name != "first" {
		t.Fatalf("Load() = %+v, want a1 named first", defs)
	}

	if err := store.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	defs, _ = store.Load(ctx)
	if _, ok := defs["a1"]; ok {
		t.Fatal("expected a1 to be deleted")
	}
}

func TestMemoryStore_LoadReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Save(ctx, Definition{ID: "a1", ToolIDs: []string{"search"}})

	defs, _ := store.Load(ctx)
	loaded := defs["a1"]
	loaded.ToolIDs[0] = "mutated"

	defs2, _ := store.Load(ctx)
	if defs2["a1"].ToolIDs[0] != "search" {
		t.Fatalf("mutating a loaded copy affected the store: %+v", defs2["a1"])
	}
}

func TestFileStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	def := Definition{ID: "research-agent", Name: "Research", Provider: "anthropic"}
	if err := store.Save(ctx, def); err != nil {
		t.Fatalf("Save: %v", err)
	}

	defs, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defs) != 1 || defs["research-agent"].Name != "Research" {
		t.Fatalf("Load() = %+v, want one entry named Research", defs)
	}

	if err := store.Delete(ctx, "research-agent"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	defs, _ = store.Load(ctx)
	if len(defs) != 0 {
		t.Fatalf("expected an empty store after delete, got %+v", defs)
	}
}

func TestFileStore_LoadOnMissingDirReturnsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "does-not-exist"))
	defs, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("expected an empty map, got %+v", defs)
	}
}

func TestFileStore_DeleteMissingIsNotAnError(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Delete(context.Background(), "never-existed"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestFileStore_SanitizesIDForFilename(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	if err := store.Save(ctx, Definition{ID: "weird/id with spaces"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	defs, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := defs["weird/id with spaces"]; !ok {
		t.Fatalf("expected the original ID to round-trip, got %+v", defs)
	}
}
