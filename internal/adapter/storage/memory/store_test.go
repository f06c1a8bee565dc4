package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

func TestStore_StoreAndGet(t *testing.T) {
	t.Parallel()

	s := NewStore("laudos/")
	data := []byte("%PDF")

	loc, err := s.Store(context.Background(), 9, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != "mem://laudos/9.pdf" {
		t.Errorf("location = %q", loc)
	}

	data[0] = 'X'
	got, err := s.Get(9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "%PDF" {
		t.Errorf("stored bytes were aliased: %q", got)
	}
}

func TestStore_IdempotentForSameBytes(t *testing.T) {
	t.Parallel()

	s := NewStore("")
	if _, err := s.Store(context.Background(), 1, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Store(context.Background(), 1, []byte("a")); err != nil {
		t.Fatalf("same bytes should succeed: %v", err)
	}
	if _, err := s.Store(context.Background(), 1, []byte("b")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	if _, err := NewStore("").Get(3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStore("").Store(ctx, 1, []byte("a")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
