package selection

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	store, err := NewStore()
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, ok, err := store.Get(); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	if err := store.Put("media_player.den"); err != nil {
		t.Fatalf("put: %v", err)
	}
	id, ok, err := store.Get()
	if err != nil || !ok || id != "media_player.den" {
		t.Fatalf("unexpected get %q %v %v", id, ok, err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Get(); ok {
		t.Fatalf("expected cleared")
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
}

func TestStoreEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selection.json")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok, err := NewStoreAt(path).Get(); err != nil || ok {
		t.Fatalf("expected empty, ok=%v err=%v", ok, err)
	}
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selection.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := NewStoreAt(path).Get(); err == nil {
		t.Fatalf("expected decode error")
	}
}
