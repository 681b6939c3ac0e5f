// Package storage defines the key/value store the wallet keeps its state in.
// The whole user list lives under a single key, sessions under one key each.
package storage

import (
	"context"
	"errors"
)

const (
	UsersKey         = "lsc-coin-users"
	UsersBackupKey   = "lsc-coin-users.backup"
	SessionKeyPrefix = "lsc-coin-session:"
	SessionIndexKey  = "lsc-coin-sessions"
)

// ErrNotFound is returned by GetItem when the key is absent.
var ErrNotFound = errors.New("item not found")

type Store interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Close() error
}

// The session index under SessionIndexKey maps every open session id to
// the time its token expires.

// SessionKey returns the key holding the username of the given session.
func SessionKey(sessionID string) string {
	return SessionKeyPrefix + sessionID
}
