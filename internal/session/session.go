// Package session issues and validates opaque bearer tokens.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"
)

var ErrSessionInvalid = errors.New("session_invalid")

const (
	DefaultTTL = 24 * time.Hour
	tokenBytes = 32
)

// Backend is the slice of the store the manager needs.
type Backend interface {
	store.Sessions
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type Manager struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
}

func NewManager(backend Backend, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{backend: backend, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create persists a new session for userID.
func (m *Manager) Create(ctx context.Context, userID string) (model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return model.Session{}, fmt.Errorf("generate token: %w", err)
	}
	sess := model.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := m.backend.CreateSession(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Validate resolves token to its owner's username. Unknown, lapsed and
// orphaned tokens all yield ErrSessionInvalid.
func (m *Manager) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionInvalid
	}
	sess, err := m.backend.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrSessionInvalid
		}
		return "", fmt.Errorf("load session: %w", err)
	}
	if !m.now().Before(sess.ExpiresAt) {
		return "", ErrSessionInvalid
	}

	u, err := m.backend.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrSessionInvalid
		}
		return "", fmt.Errorf("load session owner: %w", err)
	}
	return u.Username, nil
}

// Revoke deletes the session. Revoking an unknown token is not an error.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if err := m.backend.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
