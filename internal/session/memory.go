package session

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]Session
	now func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &MemoryStore{
		ttl: ttl,
		m:   make(map[string]Session),
		now: time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, userID string) (Session, error) {
	id, err := newID()

	if err != nil {
		return Session{}, err
	}

	now := s.now()
	sess := Session{ID: id, UserID: userID, ExpiresAt: now.Add(s.ttl)}

	s.mu.Lock()
	s.sweep(now)
	s.m[id] = sess
	s.mu.Unlock()

	return sess, nil
}

// sweep drops sessions nobody read before they expired. Callers hold mu.
func (s *MemoryStore) sweep(now time.Time) {
	for id, sess := range s.m {
		if now.After(sess.ExpiresAt) {
			delete(s.m, id)
		}
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.m[id]
	if !ok {
		return Session{}, ErrNotFound
	}

	if now.After(sess.ExpiresAt) {
		delete(s.m, id)
		return Session{}, ErrNotFound
	}

	// sliding expiry
	sess.ExpiresAt = now.Add(s.ttl)
	s.m[id] = sess

	return sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) DeleteAllForUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.m {
		if sess.UserID == userID {
			delete(s.m, id)
		}
	}

	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
