package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	if _, ok := store.Get("missing"); ok {
		t.Fatalf("expected miss for absent key")
	}
	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok := store.Get("k"); !ok || v != "v" {
		t.Fatalf("unexpected value: %q ok=%v", v, ok)
	}
	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.Get("k"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "session.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Set(nonceStorageKey, "n-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(tokenStorageKey, "tokens"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := reopened.Get(nonceStorageKey); !ok || v != "n-1" {
		t.Fatalf("expected persisted nonce, got %q ok=%v", v, ok)
	}

	if err := reopened.Delete(nonceStorageKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	final, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen after delete: %v", err)
	}
	if _, ok := final.Get(nonceStorageKey); ok {
		t.Fatalf("expected delete to persist")
	}
	if v, ok := final.Get(tokenStorageKey); !ok || v != "tokens" {
		t.Fatalf("expected untouched key to survive, got %q ok=%v", v, ok)
	}
}

func TestFileStoreToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("expected corrupt file to be tolerated, got %v", err)
	}
	if _, ok := store.Get(tokenStorageKey); ok {
		t.Fatalf("expected empty store after corrupt load")
	}
}
