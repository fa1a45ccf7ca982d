package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/nutrilabel/pkg/pg"
)

// PostgresStore persists accounts in the accounts table.
type PostgresStore struct {
	db *pg.DB
}

func NewPostgresStore(db *pg.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `
id, email, name, password_hash, plan_id, payment_status,
trial_ends_at, subscription_starts_at, subscription_ends_at,
cancellation_requested_at, cancellation_effective_at, cancellation_reason, cancelled_at,
auto_renew, external_customer_id, external_subscription_id,
created_at, updated_at, deleted_at`

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc    Account
		status string
		reason *string
	)
	err := row.Scan(
		&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &acc.PlanID, &status,
		&acc.TrialEndsAt, &acc.SubscriptionStartsAt, &acc.SubscriptionEndsAt,
		&acc.CancellationRequestedAt, &acc.CancellationEffectiveAt, &reason, &acc.CancelledAt,
		&acc.AutoRenew, &acc.ExternalCustomerID, &acc.ExternalSubscriptionID,
		&acc.CreatedAt, &acc.UpdatedAt, &acc.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
	acc.Status = Status(status)
	if reason != nil {
		acc.CancellationReason = *reason
	}
	return acc, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PostgresStore) Create(ctx context.Context, acc *Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	acc.UpdatedAt = acc.CreatedAt

	_, err := s.db.Q(ctx).Exec(ctx, `
INSERT INTO accounts (`+accountColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		acc.ID, acc.Email, acc.Name, acc.PasswordHash, acc.PlanID, string(acc.Status),
		acc.TrialEndsAt, acc.SubscriptionStartsAt, acc.SubscriptionEndsAt,
		acc.CancellationRequestedAt, acc.CancellationEffectiveAt, nullString(acc.CancellationReason), acc.CancelledAt,
		acc.AutoRenew, acc.ExternalCustomerID, acc.ExternalSubscriptionID,
		acc.CreatedAt, acc.UpdatedAt, acc.DeletedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	row := s.db.Q(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanAccount(row)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	row := s.db.Q(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1) AND deleted_at IS NULL`, email)
	return scanAccount(row)
}

func (s *PostgresStore) WithLock(ctx context.Context, id uuid.UUID, fn MutateFunc) (Account, error) {
	var result Account
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		row := s.db.Q(ctx).QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
		current, err := scanAccount(row)
		if err != nil {
			return err
		}
		result = current

		next := current.Clone()
		if err := fn(ctx, &next); err != nil {
			return err
		}
		if next.Equal(current) {
			return nil
		}
		next.ID = current.ID
		if err := s.update(ctx, &next); err != nil {
			return err
		}
		result = next
		return nil
	})
	return result, err
}

func (s *PostgresStore) update(ctx context.Context, acc *Account) error {
	err := s.db.Q(ctx).QueryRow(ctx, `
UPDATE accounts SET
    email = $2, name = $3, password_hash = $4, plan_id = $5, payment_status = $6,
    trial_ends_at = $7, subscription_starts_at = $8, subscription_ends_at = $9,
    cancellation_requested_at = $10, cancellation_effective_at = $11, cancellation_reason = $12,
    cancelled_at = $13, auto_renew = $14, external_customer_id = $15, external_subscription_id = $16,
    deleted_at = $17, updated_at = now()
WHERE id = $1
RETURNING updated_at`,
		acc.ID, acc.Email, acc.Name, acc.PasswordHash, acc.PlanID, string(acc.Status),
		acc.TrialEndsAt, acc.SubscriptionStartsAt, acc.SubscriptionEndsAt,
		acc.CancellationRequestedAt, acc.CancellationEffectiveAt, nullString(acc.CancellationReason),
		acc.CancelledAt, acc.AutoRenew, acc.ExternalCustomerID, acc.ExternalSubscriptionID,
		acc.DeletedAt,
	).Scan(&acc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Q(ctx).Query(ctx, `
SELECT id FROM accounts
WHERE deleted_at IS NULL AND (
       (payment_status = 'trial' AND trial_ends_at < $1)
    OR (payment_status = 'cancellation_confirmed' AND cancellation_effective_at <= $1)
    OR (payment_status IN ('paid', 'cancellation_requested') AND subscription_ends_at < $1)
)
ORDER BY id
LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due accounts: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
