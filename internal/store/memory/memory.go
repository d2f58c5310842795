package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"streamflix/authd/internal/model"
	"streamflix/authd/internal/store"
)

type Store struct {
	mu sync.Mutex

	users    map[string]model.User // key: username
	userIDs  map[string]string     // id -> username
	codes    map[string]model.VerificationCode
	sessions map[string]model.Session
	catalog  []model.CatalogItem
	nextItem int64
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:    make(map[string]model.User),
		userIDs:  make(map[string]string),
		codes:    make(map[string]model.VerificationCode),
		sessions: make(map[string]model.Session),
	}
}

func (s *Store) CreateSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.Token]; ok {
		return store.ErrConflict
	}
	s.sessions[sess.Token] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, token string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

func (s *Store) PurgeSessionsBefore(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, sess := range s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}

func (s *Store) CountCatalogItems(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.catalog), nil
}

func (s *Store) AddCatalogItems(_ context.Context, items []model.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range items {
		s.nextItem++
		it.ID = s.nextItem
		s.catalog = append(s.catalog, it)
	}
	return nil
}

func (s *Store) SearchCatalog(_ context.Context, term string) ([]model.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(term)
	out := make([]model.CatalogItem, 0, len(s.catalog))
	for _, it := range s.catalog {
		if needle == "" || strings.Contains(strings.ToLower(it.Title), needle) {
			out = append(out, it)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}
