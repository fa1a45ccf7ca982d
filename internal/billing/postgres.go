package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/nutrilabel/pkg/pg"
)

// PostgresRecordStore persists records in billing_records. A trigger rejects
// UPDATE and DELETE of paid rows.
type PostgresRecordStore struct {
	db *pg.DB
}

func NewPostgresRecordStore(db *pg.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

// Insert runs under a savepoint so a duplicate invoice number leaves the
// caller's transaction usable for a retry.
func (s *PostgresRecordStore) Insert(ctx context.Context, r Record) error {
	return s.db.Savepoint(ctx, func(ctx context.Context) error {
		return s.insert(ctx, r)
	})
}

func (s *PostgresRecordStore) insert(ctx context.Context, r Record) error {
	_, err := s.db.Q(ctx).Exec(ctx, `
INSERT INTO billing_records (
    id, account_id, plan_id, invoice_number, external_transaction_id,
    amount, currency, status, billing_date, paid_at, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.AccountID, r.PlanID, r.InvoiceNumber, r.ExternalTransactionID,
		r.Amount, r.Currency, string(r.Status), r.BillingDate, r.PaidAt, r.CreatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrDuplicateInvoice
		}
		return fmt.Errorf("insert billing record: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Record, error) {
	rows, err := s.db.Q(ctx).Query(ctx, `
SELECT id, account_id, plan_id, invoice_number, external_transaction_id,
       amount, currency, status, billing_date, paid_at, created_at
FROM billing_records
WHERE account_id = $1
ORDER BY created_at DESC, invoice_number DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query billing history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r      Record
			status string
		)
		if err := rows.Scan(&r.ID, &r.AccountID, &r.PlanID, &r.InvoiceNumber, &r.ExternalTransactionID,
			&r.Amount, &r.Currency, &status, &r.BillingDate, &r.PaidAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan billing record: %w", err)
		}
		r.Status = Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PostgresMethodStore persists payment_methods; a partial unique index backs
// the single-default rule.
type PostgresMethodStore struct {
	db *pg.DB
}

func NewPostgresMethodStore(db *pg.DB) *PostgresMethodStore {
	return &PostgresMethodStore{db: db}
}

const methodColumns = `id, account_id, external_id, brand, last4, exp_month, exp_year, is_default, created_at`

func scanMethod(row pgx.Row) (PaymentMethod, error) {
	var m PaymentMethod
	err := row.Scan(&m.ID, &m.AccountID, &m.ExternalID, &m.Brand, &m.Last4, &m.ExpMonth, &m.ExpYear, &m.IsDefault, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentMethod{}, ErrMethodNotFound
	}
	return m, err
}

func (s *PostgresMethodStore) Add(ctx context.Context, m PaymentMethod) (PaymentMethod, error) {
	if err := m.validate(); err != nil {
		return PaymentMethod{}, err
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		q := s.db.Q(ctx)
		if m.IsDefault {
			if _, err := q.Exec(ctx,
				`UPDATE payment_methods SET is_default = FALSE WHERE account_id = $1 AND is_default`, m.AccountID); err != nil {
				return fmt.Errorf("clear default payment method: %w", err)
			}
		}
		_, err := q.Exec(ctx, `INSERT INTO payment_methods (`+methodColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			m.ID, m.AccountID, m.ExternalID, m.Brand, m.Last4, m.ExpMonth, m.ExpYear, m.IsDefault, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert payment method: %w", err)
		}
		return nil
	})
	if err != nil {
		return PaymentMethod{}, err
	}
	return m, nil
}

func (s *PostgresMethodStore) List(ctx context.Context, accountID uuid.UUID) ([]PaymentMethod, error) {
	rows, err := s.db.Q(ctx).Query(ctx,
		`SELECT `+methodColumns+` FROM payment_methods WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query payment methods: %w", err)
	}
	defer rows.Close()

	var out []PaymentMethod
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresMethodStore) SetDefault(ctx context.Context, accountID, id uuid.UUID) error {
	return s.db.WithTx(ctx, func(ctx context.Context) error {
		q := s.db.Q(ctx)
		if _, err := q.Exec(ctx,
			`UPDATE payment_methods SET is_default = FALSE WHERE account_id = $1 AND is_default`, accountID); err != nil {
			return fmt.Errorf("clear default payment method: %w", err)
		}
		tag, err := q.Exec(ctx,
			`UPDATE payment_methods SET is_default = TRUE WHERE account_id = $1 AND id = $2`, accountID, id)
		if err != nil {
			return fmt.Errorf("set default payment method: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrMethodNotFound
		}
		return nil
	})
}

func (s *PostgresMethodStore) Default(ctx context.Context, accountID uuid.UUID) (PaymentMethod, error) {
	return scanMethod(s.db.Q(ctx).QueryRow(ctx,
		`SELECT `+methodColumns+` FROM payment_methods WHERE account_id = $1 AND is_default`, accountID))
}
