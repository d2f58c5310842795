package memory

import (
	"context"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"
)

func (s *Store) PutVerificationCode(_ context.Context, c model.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Attempts = 0
	s.codes[c.Username] = c
	return nil
}

func (s *Store) GetVerificationCode(_ context.Context, username string) (*model.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ConsumeVerificationCode(_ context.Context, username, codeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[username]
	if !ok || c.CodeHash != codeHash {
		return store.ErrNotFound
	}
	delete(s.codes, username)
	return nil
}

func (s *Store) RecordCodeMismatch(_ context.Context, username, codeHash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[username]
	if !ok || c.CodeHash != codeHash {
		return 0, store.ErrNotFound
	}
	c.Attempts++
	s.codes[username] = c
	return c.Attempts, nil
}

func (s *Store) PurgeVerificationCodesBefore(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for username, c := range s.codes {
		if c.ExpiresAt.Before(before) {
			delete(s.codes, username)
			n++
		}
	}
	return n, nil
}
