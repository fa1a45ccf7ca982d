package resource

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/plan"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, item Item) error {
	if !item.Kind.Valid() {
		return ErrUnknownKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, accountID uuid.UUID, kind plan.Resource, id uuid.UUID) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id && it.AccountID == accountID && it.Kind == kind {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, accountID uuid.UUID, kind plan.Resource) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Item{}
	for _, it := range s.items {
		if it.AccountID == accountID && it.Kind == kind {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(a, b Item) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, accountID uuid.UUID, kind plan.Resource, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.items, func(it Item) bool {
		return it.ID == id && it.AccountID == accountID && it.Kind == kind
	})
	if idx < 0 {
		return ErrNotFound
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	return nil
}

func (s *MemoryStore) CountCreated(_ context.Context, accountID uuid.UUID, kind plan.Resource, since, until time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		if it.AccountID == accountID && it.Kind == kind &&
			!it.CreatedAt.Before(since) && !it.CreatedAt.After(until) {
			n++
		}
	}
	return n, nil
}
