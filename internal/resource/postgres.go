package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/pkg/pg"
)

// PostgresStore keeps each kind in its own table.
type PostgresStore struct {
	db *pg.DB
}

func NewPostgresStore(db *pg.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func table(kind plan.Resource) (string, error) {
	switch kind {
	case plan.Products:
		return "products", nil
	case plan.Labels:
		return "labels", nil
	case plan.QRCodes:
		return "qr_codes", nil
	}
	return "", ErrUnknownKind
}

func columns(kind plan.Resource) string {
	if kind == plan.QRCodes {
		return "id, account_id, name, content, created_at"
	}
	return "id, account_id, name, '' AS content, created_at"
}

func (s *PostgresStore) Insert(ctx context.Context, item Item) error {
	tbl, err := table(item.Kind)
	if err != nil {
		return err
	}
	if item.Kind == plan.QRCodes {
		_, err = s.db.Q(ctx).Exec(ctx,
			`INSERT INTO qr_codes (id, account_id, name, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
			item.ID, item.AccountID, item.Name, item.Content, item.CreatedAt)
	} else {
		_, err = s.db.Q(ctx).Exec(ctx,
			`INSERT INTO `+tbl+` (id, account_id, name, created_at) VALUES ($1, $2, $3, $4)`,
			item.ID, item.AccountID, item.Name, item.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", item.Kind, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, accountID uuid.UUID, kind plan.Resource, id uuid.UUID) (Item, error) {
	tbl, err := table(kind)
	if err != nil {
		return Item{}, err
	}
	rows, err := s.db.Q(ctx).Query(ctx,
		`SELECT `+columns(kind)+` FROM `+tbl+` WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		return Item{}, fmt.Errorf("get %s: %w", kind, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem(kind))
	if pg.IsNotFoundError(err) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("get %s: %w", kind, err)
	}
	return item, nil
}

func (s *PostgresStore) List(ctx context.Context, accountID uuid.UUID, kind plan.Resource) ([]Item, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Q(ctx).Query(ctx,
		`SELECT `+columns(kind)+` FROM `+tbl+` WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	items, err := pgx.CollectRows(rows, scanItem(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return items, nil
}

func (s *PostgresStore) Delete(ctx context.Context, accountID uuid.UUID, kind plan.Resource, id uuid.UUID) error {
	tbl, err := table(kind)
	if err != nil {
		return err
	}
	tag, err := s.db.Q(ctx).Exec(ctx, `DELETE FROM `+tbl+` WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountCreated(ctx context.Context, accountID uuid.UUID, kind plan.Resource, since, until time.Time) (int, error) {
	tbl, err := table(kind)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.Q(ctx).QueryRow(ctx,
		`SELECT count(*) FROM `+tbl+` WHERE account_id = $1 AND created_at >= $2 AND created_at <= $3`,
		accountID, since, until).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

func scanItem(kind plan.Resource) pgx.RowToFunc[Item] {
	return func(row pgx.CollectableRow) (Item, error) {
		it := Item{Kind: kind}
		err := row.Scan(&it.ID, &it.AccountID, &it.Name, &it.Content, &it.CreatedAt)
		return it, err
	}
}
