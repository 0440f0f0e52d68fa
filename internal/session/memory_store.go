package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is a single-process Store. Sessions are stored encoded so
// callers never share state with the store.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]memoryEntry
	locks    map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memoryEntry),
		locks:    make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*survey.Session, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok && !s.now().Before(e.expires) {
		delete(s.sessions, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var sess survey.Session
	if err := json.Unmarshal(e.data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *survey.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = memoryEntry{data: data, expires: s.now().Add(s.ttl)}
	s.sweep()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.locks, id)
	return nil
}

func (s *MemoryStore) Lock(_ context.Context, id string, ttl time.Duration) (UnlockFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, held := s.locks[id]; held && now.Before(e.expires) {
		return nil, ErrLocked
	}
	// The expiry doubles as the holder's token.
	mine := memoryEntry{expires: now.Add(ttl)}
	s.locks[id] = mine
	return func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if e, held := s.locks[id]; held && e.expires.Equal(mine.expires) {
			delete(s.locks, id)
		}
		return nil
	}, nil
}

// sweep drops expired entries. Callers hold mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	for id, e := range s.sessions {
		if !now.Before(e.expires) {
			delete(s.sessions, id)
		}
	}
	for id, e := range s.locks {
		if !now.Before(e.expires) {
			delete(s.locks, id)
		}
	}
}

func (s *MemoryStore) Close() error { return nil }
