// Package session keeps track of who is logged in. Each login gets its own
// session key in the store and a signed token naming it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IlyasAtabaev731/lsc-coin/internal/lib/jwt"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage"
)

var ErrInvalidSession = errors.New("Not logged in.")

type Manager struct {
	mu     sync.Mutex
	store  storage.Store
	logger *slog.Logger
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func New(store storage.Store, logger *slog.Logger, secret string, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Open starts a session for username and returns its token. Sessions whose
// tokens have expired are dropped on the way.
func (m *Manager) Open(ctx context.Context, username string) (string, error) {
	const op = "session.Open"

	m.mu.Lock()
	defer m.mu.Unlock()

	index, err := m.loadIndex(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := m.dropExpired(ctx, index); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	sid := uuid.NewString()
	token, err := jwt.NewToken(username, sid, m.secret, m.ttl)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := m.store.SetItem(ctx, storage.SessionKey(sid), username); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	index[sid] = m.now().Add(m.ttl)
	if err := m.saveIndex(ctx, index); err != nil {
		_ = m.store.RemoveItem(ctx, storage.SessionKey(sid))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	m.logger.Debug("Session opened", slog.String("username", username), slog.String("sid", sid))
	return token, nil
}

// Resolve returns the username of the session behind token.
func (m *Manager) Resolve(ctx context.Context, token string) (string, error) {
	const op = "session.Resolve"

	claims, err := jwt.ParseToken(token, m.secret)
	if err != nil {
		return "", ErrInvalidSession
	}

	username, err := m.store.GetItem(ctx, storage.SessionKey(claims.SessionID))
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return username, nil
}

// Close ends the session behind token. Closing an already closed session
// is not an error.
func (m *Manager) Close(ctx context.Context, token string) error {
	const op = "session.Close"

	claims, err := jwt.ParseToken(token, m.secret)
	if err != nil {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.RemoveItem(ctx, storage.SessionKey(claims.SessionID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	index, err := m.loadIndex(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := index[claims.SessionID]; ok {
		delete(index, claims.SessionID)
		if err := m.saveIndex(ctx, index); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	m.logger.Debug("Session closed", slog.String("username", claims.Username), slog.String("sid", claims.SessionID))
	return nil
}

// Sweep removes every session whose token has expired.
func (m *Manager) Sweep(ctx context.Context) error {
	const op = "session.Sweep"

	m.mu.Lock()
	defer m.mu.Unlock()

	index, err := m.loadIndex(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	before := len(index)
	if err := m.dropExpired(ctx, index); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(index) == before {
		return nil
	}
	if err := m.saveIndex(ctx, index); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.logger.Debug("Sessions swept", slog.Int("removed", before-len(index)))
	return nil
}

// dropExpired removes the session keys of expired entries and deletes them
// from index. The caller saves index.
func (m *Manager) dropExpired(ctx context.Context, index map[string]time.Time) error {
	now := m.now()
	for sid, expires := range index {
		if now.Before(expires) {
			continue
		}
		if err := m.store.RemoveItem(ctx, storage.SessionKey(sid)); err != nil {
			return err
		}
		delete(index, sid)
	}
	return nil
}

func (m *Manager) loadIndex(ctx context.Context) (map[string]time.Time, error) {
	index := make(map[string]time.Time)

	blob, err := m.store.GetItem(ctx, storage.SessionIndexKey)
	if errors.Is(err, storage.ErrNotFound) {
		return index, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(blob), &index); err != nil {
		return nil, err
	}
	return index, nil
}

func (m *Manager) saveIndex(ctx context.Context, index map[string]time.Time) error {
	blob, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return m.store.SetItem(ctx, storage.SessionIndexKey, string(blob))
}
