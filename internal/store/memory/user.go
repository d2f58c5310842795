package memory

import (
	"context"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"
)

func (s *Store) CreateUser(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Username]; ok {
		return model.User{}, store.ErrConflict
	}

	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = newID()
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.Username] = u
	s.userIDs[u.ID] = u.Username
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.userIDs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[username]
	return &u, nil
}

func (s *Store) UpdateContact(_ context.Context, username, phone, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Phone = phone
	u.Email = email
	u.UpdatedAt = time.Now().UTC()
	s.users[username] = u
	return &u, nil
}

func (s *Store) GetLockState(_ context.Context, username string) (model.LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return model.LockState{}, store.ErrNotFound
	}
	return lockState(u), nil
}

func (s *Store) RecordLoginFailure(_ context.Context, username string, p store.FailurePolicy) (model.LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return model.LockState{}, store.ErrNotFound
	}

	u.FailedAttempts++
	if u.FailedAttempts >= p.Threshold && !lockState(u).Locked(p.Now) {
		until := p.LockUntil
		u.LockedUntil = &until
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[username] = u
	return lockState(u), nil
}

func (s *Store) ResetLoginFailures(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = time.Now().UTC()
	s.users[username] = u
	return nil
}

func lockState(u model.User) model.LockState {
	st := model.LockState{FailedAttempts: u.FailedAttempts}
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		st.LockedUntil = &t
	}
	return st
}
