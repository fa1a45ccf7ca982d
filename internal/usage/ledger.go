package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/pkg/pg"
)

var ErrInvalidEvent = errors.New("invalid usage event")

// Kind is what happened to a resource.
type Kind string

const (
	KindCreated Kind = "created"
	KindDeleted Kind = "deleted"
)

// Event is an append-only usage ledger row.
type Event struct {
	ID         uuid.UUID     `json:"id"`
	AccountID  uuid.UUID     `json:"account_id"`
	Resource   plan.Resource `json:"resource"`
	Kind       Kind          `json:"kind"`
	ResourceID uuid.UUID     `json:"resource_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func (e Event) validate() error {
	if e.AccountID == uuid.Nil || e.ResourceID == uuid.Nil || !e.Resource.Valid() ||
		(e.Kind != KindCreated && e.Kind != KindDeleted) || e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: %+v", ErrInvalidEvent, e)
	}
	return nil
}

// Counts are created and deleted event totals; Net is Created minus Deleted.
type Counts struct {
	Created int `json:"created"`
	Deleted int `json:"deleted"`
	Net     int `json:"net"`
}

func newCounts(created, deleted int) Counts {
	return Counts{Created: created, Deleted: deleted, Net: created - deleted}
}

// Ledger is the append-only usage event log. There is no update or delete.
type Ledger interface {
	Append(ctx context.Context, e Event) error
	// Summary counts events for the account and resource at or after since.
	// A zero since counts all time.
	Summary(ctx context.Context, accountID uuid.UUID, r plan.Resource, since time.Time) (Counts, error)
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Append(_ context.Context, e Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if err := e.validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLedger) Summary(_ context.Context, accountID uuid.UUID, r plan.Resource, since time.Time) (Counts, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var created, deleted int
	for _, e := range l.events {
		if e.AccountID != accountID || e.Resource != r || e.OccurredAt.Before(since) {
			continue
		}
		if e.Kind == KindCreated {
			created++
		} else {
			deleted++
		}
	}
	return newCounts(created, deleted), nil
}

// PostgresLedger stores events in usage_events; a trigger rejects UPDATE and DELETE.
type PostgresLedger struct {
	db *pg.DB
}

func NewPostgresLedger(db *pg.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Append(ctx context.Context, e Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if err := e.validate(); err != nil {
		return err
	}
	_, err := l.db.Q(ctx).Exec(ctx, `
INSERT INTO usage_events (id, account_id, resource, kind, resource_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.AccountID, string(e.Resource), string(e.Kind), e.ResourceID, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("append usage event: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Summary(ctx context.Context, accountID uuid.UUID, r plan.Resource, since time.Time) (Counts, error) {
	var created, deleted int
	err := l.db.Q(ctx).QueryRow(ctx, `
SELECT count(*) FILTER (WHERE kind = 'created'),
       count(*) FILTER (WHERE kind = 'deleted')
FROM usage_events
WHERE account_id = $1 AND resource = $2 AND occurred_at >= $3`,
		accountID, string(r), since).Scan(&created, &deleted)
	if err != nil {
		return Counts{}, fmt.Errorf("summarize usage: %w", err)
	}
	return newCounts(created, deleted), nil
}
