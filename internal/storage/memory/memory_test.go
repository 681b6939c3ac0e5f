package memory

import (
	"context"
	"testing"

	"github.com/IlyasAtabaev731/lsc-coin/internal/storage/storagetest"
)

func TestStorage(t *testing.T) {
	storagetest.Run(t, New())
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.SetItem(ctx, "k", "v"); err == nil {
		t.Error("expected error for canceled context")
	}
}
