package account

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps accounts in process. Per-account mutexes serialize WithLock.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]Account
	emails   map[string]uuid.UUID
	locks    map[uuid.UUID]*sync.Mutex
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]Account),
		emails:   make(map[string]uuid.UUID),
		locks:    make(map[uuid.UUID]*sync.Mutex),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, acc *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(acc.Email)
	if _, taken := s.emails[key]; taken {
		return ErrEmailTaken
	}
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = s.now()
	}
	acc.UpdatedAt = acc.CreatedAt

	s.accounts[acc.ID] = acc.Clone()
	s.emails[key] = acc.ID
	s.locks[acc.ID] = &sync.Mutex{}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok || acc.DeletedAt != nil {
		return Account{}, ErrNotFound
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	s.mu.RLock()
	id, ok := s.emails[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *MemoryStore) WithLock(ctx context.Context, id uuid.UUID, fn MutateFunc) (Account, error) {
	s.mu.RLock()
	lock, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return Account{}, ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	next := current.Clone()
	if err := fn(ctx, &next); err != nil {
		return current, err
	}
	if next.Equal(current) {
		return current, nil
	}

	next.ID = current.ID
	next.UpdatedAt = s.now()
	s.mu.Lock()
	s.accounts[id] = next.Clone()
	s.mu.Unlock()
	return next, nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for id, acc := range s.accounts {
		if acc.DeletedAt == nil && IsDue(acc, now) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
