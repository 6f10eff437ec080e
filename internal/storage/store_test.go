package storage

import (
	"context"
	"errors"
	"os"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "calculatorHistory/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := s.Set(ctx, "calculatorHistory/a", []byte(`[1]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "calculatorHistory/a", []byte(`[1,2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.Get(ctx, "calculatorHistory/a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `[1,2]` {
		t.Fatalf("expected %q, got %q", `[1,2]`, got)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	value := []byte("abc")
	if err := m.Set(context.Background(), "k", value); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'x'

	got, _ := m.Get(context.Background(), "k")
	got[1] = 'y'

	again, _ := m.Get(context.Background(), "k")
	if string(again) != "abc" {
		t.Fatalf("expected stored value to be isolated, got %q", again)
	}
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating file store: %v", err)
	}
	exerciseStore(t, s)
}

func TestFileStoreKeepsKeysInsideDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("creating file store: %v", err)
	}
	if err := s.Set(context.Background(), "../escape", []byte("x")); err != nil {
		t.Fatalf("set: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file in store dir, got %d", len(entries))
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("CALC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CALC_TEST_POSTGRES_DSN not set")
	}

	p, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	exerciseStore(t, p)
}
