package withdraw

import (
	"context"
	"sync"
	"time"
)

// Pending is a proposed withdrawal awaiting confirmation.
type Pending struct {
	UserID      int64
	Destination string
	Amount      uint64
	Source      string
	CreatedAt   time.Time
}

// Store holds at most one Pending per user; Set overwrites.
type Store interface {
	Get(ctx context.Context, userID int64) (Pending, bool, error)
	Set(ctx context.Context, p Pending) error
	Delete(ctx context.Context, userID int64) error
}

// MemoryStore does not survive a restart.
type MemoryStore struct {
	mu sync.Mutex
	m  map[int64]Pending
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[int64]Pending{}}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (Pending, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[userID]
	return p, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[p.UserID] = p
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
	return nil
}

// userLocks hands out one mutex per user id.
type userLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = map[int64]*sync.Mutex{}
	}
	mu, ok := l.m[userID]
	if !ok {
		mu = &sync.Mutex{}
		l.m[userID] = mu
	}
	l.mu.Unlock()
	mu.Lock()
	return mu.Unlock
}
