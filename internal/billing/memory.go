package billing

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRecordStore is an in-process RecordStore.
type MemoryRecordStore struct {
	mu       sync.RWMutex
	records  []Record
	invoices map[string]struct{}
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{invoices: make(map[string]struct{})}
}

func (s *MemoryRecordStore) Insert(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.invoices[r.InvoiceNumber]; dup {
		return ErrDuplicateInvoice
	}
	s.invoices[r.InvoiceNumber] = struct{}{}
	s.records = append(s.records, r)
	return nil
}

func (s *MemoryRecordStore) ListByAccount(_ context.Context, accountID uuid.UUID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].AccountID == accountID {
			out = append(out, s.records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// MemoryMethodStore is an in-process MethodStore.
type MemoryMethodStore struct {
	mu      sync.Mutex
	methods []PaymentMethod
	now     func() time.Time
}

func NewMemoryMethodStore() *MemoryMethodStore {
	return &MemoryMethodStore{now: time.Now}
}

func (s *MemoryMethodStore) Add(_ context.Context, m PaymentMethod) (PaymentMethod, error) {
	if err := m.validate(); err != nil {
		return PaymentMethod{}, err
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m.IsDefault {
		s.clearDefault(m.AccountID)
	}
	s.methods = append(s.methods, m)
	return m, nil
}

func (s *MemoryMethodStore) List(_ context.Context, accountID uuid.UUID) ([]PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PaymentMethod
	for i := len(s.methods) - 1; i >= 0; i-- {
		if s.methods[i].AccountID == accountID {
			out = append(out, s.methods[i])
		}
	}
	return out, nil
}

func (s *MemoryMethodStore) SetDefault(_ context.Context, accountID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.methods, func(m PaymentMethod) bool { return m.ID == id && m.AccountID == accountID })
	if idx < 0 {
		return ErrMethodNotFound
	}
	s.clearDefault(accountID)
	s.methods[idx].IsDefault = true
	return nil
}

func (s *MemoryMethodStore) Default(_ context.Context, accountID uuid.UUID) (PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.methods {
		if m.AccountID == accountID && m.IsDefault {
			return m, nil
		}
	}
	return PaymentMethod{}, ErrMethodNotFound
}

func (s *MemoryMethodStore) clearDefault(accountID uuid.UUID) {
	for i := range s.methods {
		if s.methods[i].AccountID == accountID {
			s.methods[i].IsDefault = false
		}
	}
}
