package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/IlyasAtabaev731/lsc-coin/internal/storage"
	_ "github.com/lib/pq"
)

var _ storage.Store = (*Storage)(nil)

// Storage keeps items in the kv_store table created by cmd/migrator.
type Storage struct {
	db *sql.DB
}

func New(dbUrl string) (*Storage, error) {
	db, err := sql.Open("postgres", dbUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection error %s", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect database error %s", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, error) {
	const op = "storage.postgres.GetItem"

	stmt, err := s.db.PrepareContext(ctx, "SELECT value FROM kv_store WHERE key = $1")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var value string
	err = stmt.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return value, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	const op = "storage.postgres.SetItem"

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err = stmt.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) RemoveItem(ctx context.Context, key string) error {
	const op = "storage.postgres.RemoveItem"

	stmt, err := s.db.PrepareContext(ctx, "DELETE FROM kv_store WHERE key = $1")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err = stmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
