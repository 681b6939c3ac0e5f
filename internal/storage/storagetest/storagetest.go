// Package storagetest holds checks every storage.Store implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/IlyasAtabaev731/lsc-coin/internal/storage"
)

func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.GetItem(ctx, "absent")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		if err := s.SetItem(ctx, storage.UsersKey, `[]`); err != nil {
			t.Fatalf("SetItem: %v", err)
		}
		got, err := s.GetItem(ctx, storage.UsersKey)
		if err != nil {
			t.Fatalf("GetItem: %v", err)
		}
		if got != `[]` {
			t.Errorf("GetItem = %q, want %q", got, `[]`)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		if err := s.SetItem(ctx, "k", "one"); err != nil {
			t.Fatalf("SetItem: %v", err)
		}
		if err := s.SetItem(ctx, "k", "two"); err != nil {
			t.Fatalf("SetItem: %v", err)
		}
		got, err := s.GetItem(ctx, "k")
		if err != nil {
			t.Fatalf("GetItem: %v", err)
		}
		if got != "two" {
			t.Errorf("GetItem = %q, want %q", got, "two")
		}
	})

	t.Run("remove", func(t *testing.T) {
		key := storage.SessionKey("abc")
		if err := s.SetItem(ctx, key, "alice"); err != nil {
			t.Fatalf("SetItem: %v", err)
		}
		if err := s.RemoveItem(ctx, key); err != nil {
			t.Fatalf("RemoveItem: %v", err)
		}
		if _, err := s.GetItem(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after remove, got %v", err)
		}
		if err := s.RemoveItem(ctx, key); err != nil {
			t.Errorf("removing an absent key should not fail: %v", err)
		}
	})
}
