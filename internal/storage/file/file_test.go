package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"splitpay/internal/core"
	"splitpay/internal/storage"
)

func TestStore_ReadMissing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "payment_data.json"))
	if _, err := s.Read(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Read = %v, want ErrNotFound", err)
	}
}

func TestStore_WriteReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "payment_data.json")
	s := New(path)
	ctx := context.Background()

	if err := s.Write(ctx, []byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(ctx, []byte("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Read = %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the state file, found %d entries", len(entries))
	}
}

func TestStore_StateRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "payment_data.json")
	defaults := core.DefaultState([]string{"Alice", "Bob"})
	store := storage.NewStateStore(New(path), defaults, nil)

	in := core.State{
		History:    core.Ledger{"2024-12": {"Bob"}, "2025-01": {}},
		Members:    []string{"Alice", "Bob"},
		Contractor: "Alice",
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	res := store.Load(ctx)
	if res.Status != storage.StatusLoaded {
		t.Fatalf("status = %q", res.Status)
	}
	if !reflect.DeepEqual(res.State, in) {
		t.Errorf("got %+v, want %+v", res.State, in)
	}
}

func TestStore_UnreadableIsNotCorrupt(t *testing.T) {
	dir := t.TempDir()
	// A directory where the file should be makes ReadFile fail with something
	// other than ErrNotExist.
	path := filepath.Join(dir, "payment_data.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	res := storage.NewStateStore(New(path), core.DefaultState(nil), nil).Load(context.Background())
	if res.Status != storage.StatusUnreadable {
		t.Errorf("status = %q, want unreadable", res.Status)
	}
}
