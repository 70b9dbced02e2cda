package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	values  map[string]string
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Data is lost on restart and
// not shared between replicas.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a store whose sessions expire ttl after their last write.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.sessions[sid]
	if e == nil || s.now().After(e.expires) {
		return "", false, nil
	}
	v, ok := e.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, sid, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.sessions[sid]
	if e == nil || s.now().After(e.expires) {
		e = &memoryEntry{values: make(map[string]string)}
		s.sessions[sid] = e
	}
	e.values[key] = value
	e.expires = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Take(_ context.Context, sid, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.sessions[sid]
	if e == nil || s.now().After(e.expires) {
		return "", false, nil
	}
	v, ok := e.values[key]
	delete(e.values, key)
	return v, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, sid, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.sessions[sid]; e != nil {
		delete(e.values, key)
	}
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sid)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for sid, e := range s.sessions {
		if now.After(e.expires) {
			delete(s.sessions, sid)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

var _ Store = (*MemoryStore)(nil)
