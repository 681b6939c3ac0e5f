package memory

import (
	"context"
	"sync"

	"github.com/IlyasAtabaev731/lsc-coin/internal/storage"
)

var _ storage.Store = (*Storage)(nil)

// Storage keeps items in process memory. Contents are lost on restart.
type Storage struct {
	items sync.Map
}

func New() *Storage {
	return &Storage{}
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := s.items.Load(key)
	if !ok {
		return "", storage.ErrNotFound
	}
	return v.(string), nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.items.Store(key, value)
	return nil
}

func (s *Storage) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.items.Delete(key)
	return nil
}

func (s *Storage) Close() error {
	return nil
}
