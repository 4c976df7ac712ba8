package session

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often Set walks the map for expired sessions.
const sweepInterval = time.Minute

// MemoryStore keeps admin sessions in process memory. Sessions are lost on
// restart, which only forces the admin to log in again.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]memoryEntry
	lastSweep time.Time
	now       func() time.Time
}

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[key]
	if !ok {
		return nil, ErrNoSession
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, key)
		return nil, ErrNoSession
	}

	data := entry.data
	return &data, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, data *Data, ttl time.Duration) error {
	if key == "" || data == nil {
		return errEmptySession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		for k, entry := range s.sessions {
			if !now.Before(entry.expiresAt) {
				delete(s.sessions, k)
			}
		}
		s.lastSweep = now
	}

	s.sessions[key] = memoryEntry{data: *data, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	return nil
}

// Len reports the number of stored sessions, expired ones included until
// the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error {
	return nil
}
