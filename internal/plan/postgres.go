package plan

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/nutrilabel/pkg/pg"
)

// PostgresStore persists the catalog in membership_plans and acts as a Source.
type PostgresStore struct {
	db *pg.DB
}

func NewPostgresStore(db *pg.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectPlans = `
SELECT id, name, description, price_amount, price_currency, external_price_id,
       billing_interval, trial_days, product_limit, label_limit, qr_code_limit,
       features, is_default, is_public, sort_order
FROM membership_plans
ORDER BY sort_order, price_amount`

func (s *PostgresStore) Plans(ctx context.Context) ([]Plan, error) {
	rows, err := s.db.Q(ctx).Query(ctx, selectPlans)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var (
			p        Plan
			interval string
			features []string
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price.Amount, &p.Price.Currency, &p.ExternalPriceID,
			&interval, &p.TrialDays, &p.ProductLimit, &p.LabelLimit, &p.QRCodeLimit,
			&features, &p.Default, &p.Public, &p.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		p.Interval = Interval(interval)
		for _, f := range features {
			p.Features = append(p.Features, Feature(f))
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

const upsertPlan = `
INSERT INTO membership_plans (
    id, name, description, price_amount, price_currency, external_price_id,
    billing_interval, trial_days, product_limit, label_limit, qr_code_limit,
    features, is_default, is_public, sort_order
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_amount = EXCLUDED.price_amount,
    price_currency = EXCLUDED.price_currency,
    external_price_id = EXCLUDED.external_price_id,
    billing_interval = EXCLUDED.billing_interval,
    trial_days = EXCLUDED.trial_days,
    product_limit = EXCLUDED.product_limit,
    label_limit = EXCLUDED.label_limit,
    qr_code_limit = EXCLUDED.qr_code_limit,
    features = EXCLUDED.features,
    is_default = EXCLUDED.is_default,
    is_public = EXCLUDED.is_public,
    sort_order = EXCLUDED.sort_order`

// Seed upserts plans in one transaction. The catalog is validated first so a
// bad seed never reaches the table.
func (s *PostgresStore) Seed(ctx context.Context, plans []Plan) error {
	if _, err := NewCatalog(plans); err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(ctx context.Context) error {
		q := s.db.Q(ctx)
		if _, err := q.Exec(ctx, `UPDATE membership_plans SET is_default = FALSE WHERE is_default`); err != nil {
			return fmt.Errorf("reset default plan: %w", err)
		}
		for _, p := range plans {
			features := make([]string, 0, len(p.Features))
			for _, f := range p.Features {
				features = append(features, string(f))
			}
			if _, err := q.Exec(ctx, upsertPlan,
				p.ID, p.Name, p.Description, p.Price.Amount, p.Price.Currency, p.ExternalPriceID,
				string(p.Interval), p.TrialDays, p.ProductLimit, p.LabelLimit, p.QRCodeLimit,
				features, p.Default, p.Public, p.SortOrder,
			); err != nil {
				return fmt.Errorf("upsert plan %s: %w", p.ID, err)
			}
		}
		return nil
	})
}
