package resource

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/plan"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnknownKind  = errors.New("unknown resource kind")
	ErrInvalidInput = errors.New("invalid resource input")
)

// Item is an account-owned product, label or QR code. Content is set for QR
// codes only.
type Item struct {
	ID        uuid.UUID     `json:"id"`
	AccountID uuid.UUID     `json:"-"`
	Kind      plan.Resource `json:"kind"`
	Name      string        `json:"name"`
	Content   string        `json:"content,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists items. Delete is a hard delete; the monthly product and
// label quota counts rows that still exist.
type Store interface {
	Insert(ctx context.Context, item Item) error
	Get(ctx context.Context, accountID uuid.UUID, kind plan.Resource, id uuid.UUID) (Item, error)
	List(ctx context.Context, accountID uuid.UUID, kind plan.Resource) ([]Item, error)
	Delete(ctx context.Context, accountID uuid.UUID, kind plan.Resource, id uuid.UUID) error
	CountCreated(ctx context.Context, accountID uuid.UUID, kind plan.Resource, since, until time.Time) (int, error)
}
