package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestSQLiteRepository_ReadWrite(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()

	if _, err := repo.Read(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read on empty db = %v, want ErrNotFound", err)
	}

	for _, body := range []string{`{"members":["A"]}`, `{"members":["A","B"]}`} {
		if err := repo.Write(ctx, []byte(body)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got, err := repo.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(got) != body {
			t.Errorf("Read = %s, want %s", got, body)
		}
	}
}

func TestSQLiteRepository_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		repo.Close()
	}
}
