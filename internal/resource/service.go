package resource

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/internal/usage"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
	"github.com/dmitrymomot/nutrilabel/pkg/qrcode"
	"github.com/dmitrymomot/nutrilabel/pkg/validator"
)

// ErrSubscriptionRequired is returned when the account's status no longer
// grants access to gated resources.
var ErrSubscriptionRequired = errors.New("active subscription or trial required")

// Checker decides whether an account may create one more resource.
type Checker interface {
	Check(ctx context.Context, acc account.Account, r plan.Resource) error
}

type CreateInput struct {
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
}

func (in CreateInput) validate(kind plan.Resource) error {
	return validator.Apply(append([]validator.Rule{
		validator.Required("name", in.Name),
		validator.MaxLen("name", in.Name, 200),
	}, validator.When(kind == plan.QRCodes,
		validator.Required("content", in.Content),
		validator.MaxLen("content", in.Content, 2048),
	)...)...)
}

// Service owns product, label and QR code CRUD. Creation runs the quota check
// and the insert under the account lock so concurrent creates cannot both
// take the last slot.
type Service struct {
	accounts account.Store
	items    Store
	quota    Checker
	events   usage.Ledger
	qr       *qrcode.Renderer
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(accounts account.Store, items Store, quota Checker, events usage.Ledger, qr *qrcode.Renderer, opts ...Option) *Service {
	if accounts == nil || items == nil || quota == nil || events == nil || qr == nil {
		panic("resource: nil dependency")
	}
	s := &Service{
		accounts: accounts,
		items:    items,
		quota:    quota,
		events:   events,
		qr:       qr,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, accountID uuid.UUID, kind plan.Resource, in CreateInput) (Item, error) {
	if !kind.Valid() {
		return Item{}, ErrUnknownKind
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Content = strings.TrimSpace(in.Content)
	if err := in.validate(kind); err != nil {
		return Item{}, err
	}

	var item Item
	_, err := s.accounts.WithLock(ctx, accountID, func(ctx context.Context, acc *account.Account) error {
		now := s.now()
		if !lifecycle.CanUseFeatures(*acc, now) {
			return ErrSubscriptionRequired
		}
		if err := s.quota.Check(ctx, *acc, kind); err != nil {
			return err
		}

		item = Item{
			ID:        uuid.New(),
			AccountID: acc.ID,
			Kind:      kind,
			Name:      in.Name,
			CreatedAt: now,
		}
		if kind == plan.QRCodes {
			item.Content = in.Content
		}
		if err := s.items.Insert(ctx, item); err != nil {
			return err
		}
		return s.events.Append(ctx, usage.Event{
			ID:         uuid.New(),
			AccountID:  acc.ID,
			Resource:   kind,
			Kind:       usage.KindCreated,
			ResourceID: item.ID,
			OccurredAt: now,
		})
	})
	if err != nil {
		return Item{}, err
	}

	s.log.InfoContext(ctx, "resource created",
		logger.Component("resource"),
		logger.AccountID(accountID),
		slog.String("kind", string(kind)),
		slog.String("resource_id", item.ID.String()),
	)
	return item, nil
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID, kind plan.Resource) ([]Item, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	return s.items.List(ctx, accountID, kind)
}

func (s *Service) Get(ctx context.Context, accountID uuid.UUID, kind plan.Resource, id uuid.UUID) (Item, error) {
	if !kind.Valid() {
		return Item{}, ErrUnknownKind
	}
	return s.items.Get(ctx, accountID, kind, id)
}

// Delete removes the row and appends a deleted usage event. The created event
// stays in the ledger.
func (s *Service) Delete(ctx context.Context, accountID uuid.UUID, kind plan.Resource, id uuid.UUID) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	_, err := s.accounts.WithLock(ctx, accountID, func(ctx context.Context, acc *account.Account) error {
		if err := s.items.Delete(ctx, acc.ID, kind, id); err != nil {
			return err
		}
		return s.events.Append(ctx, usage.Event{
			ID:         uuid.New(),
			AccountID:  acc.ID,
			Resource:   kind,
			Kind:       usage.KindDeleted,
			ResourceID: id,
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "resource deleted",
		logger.Component("resource"),
		logger.AccountID(accountID),
		slog.String("kind", string(kind)),
		slog.String("resource_id", id.String()),
	)
	return nil
}

// QRImage renders the stored content of a QR code as PNG. Zero size means
// qrcode.DefaultSize.
func (s *Service) QRImage(ctx context.Context, accountID, id uuid.UUID, size int) ([]byte, error) {
	item, err := s.items.Get(ctx, accountID, plan.QRCodes, id)
	if err != nil {
		return nil, err
	}
	return s.qr.PNG(item.Content, size)
}
