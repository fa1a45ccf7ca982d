package billing

import (
	"context"

	"github.com/google/uuid"
)

// MethodStore keeps card display data with at most one default per account.
// Add and SetDefault clear the previous default before setting the new one.
type MethodStore interface {
	Add(ctx context.Context, m PaymentMethod) (PaymentMethod, error)
	List(ctx context.Context, accountID uuid.UUID) ([]PaymentMethod, error)
	SetDefault(ctx context.Context, accountID, id uuid.UUID) error
	Default(ctx context.Context, accountID uuid.UUID) (PaymentMethod, error)
}
