package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/billing"
	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/internal/notify"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
	"github.com/dmitrymomot/nutrilabel/pkg/statemachine"
)

// DefaultCancellationGrace is the time between a confirmed cancellation and
// the loss of paid features.
const DefaultCancellationGrace = 72 * time.Hour

// PlanCatalog resolves plans by id and names the registration default.
type PlanCatalog interface {
	Get(id string) (plan.Plan, error)
	Default() plan.Plan
}

// PasswordVerifier checks a password against a stored hash. Any error means
// the password does not match.
type PasswordVerifier interface {
	Verify(hash, password string) error
}

// Service runs every account status transition. Each operation loads the
// account under an exclusive per-account lock, performs gateway calls, and
// saves the account only when every call succeeded.
type Service struct {
	accounts  account.Store
	plans     PlanCatalog
	gateway   gateway.Gateway
	invoices  *billing.Ledger
	methods   billing.MethodStore
	passwords PasswordVerifier
	notifier  notify.Notifier
	machine   *statemachine.Machine[account.Status, Event]
	now       func() time.Time
	grace     time.Duration
	log       *slog.Logger

	// renewal failures already notified, keyed by account and term end
	notified sync.Map
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCancellationGrace overrides DefaultCancellationGrace.
func WithCancellationGrace(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.grace = d
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
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

// Deps are the collaborators every Service needs.
type Deps struct {
	Accounts  account.Store
	Plans     PlanCatalog
	Gateway   gateway.Gateway
	Invoices  *billing.Ledger
	Methods   billing.MethodStore
	Passwords PasswordVerifier
}

// New builds the service. It panics when a dependency is missing.
func New(deps Deps, opts ...Option) *Service {
	switch {
	case deps.Accounts == nil:
		panic("lifecycle: account store is required")
	case deps.Plans == nil:
		panic("lifecycle: plan catalog is required")
	case deps.Gateway == nil:
		panic("lifecycle: payment gateway is required")
	case deps.Invoices == nil:
		panic("lifecycle: billing ledger is required")
	case deps.Methods == nil:
		panic("lifecycle: payment method store is required")
	case deps.Passwords == nil:
		panic("lifecycle: password verifier is required")
	}

	s := &Service{
		accounts:  deps.Accounts,
		plans:     deps.Plans,
		gateway:   deps.Gateway,
		invoices:  deps.Invoices,
		methods:   deps.Methods,
		passwords: deps.Passwords,
		machine:   newMachine(),
		now:       time.Now,
		grace:     DefaultCancellationGrace,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.log)
	}
	return s
}

// Get returns the account without reconciling it.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return s.accounts.Get(ctx, id)
}

func (s *Service) logTransition(ctx context.Context, acc account.Account, from account.Status, event Event) {
	s.log.InfoContext(ctx, "account transition",
		logger.Component("lifecycle"),
		logger.AccountID(acc.ID),
		logger.PlanID(acc.PlanID),
		logger.Transition(from, acc.Status, event),
	)
}

func (s *Service) logGatewayFailure(ctx context.Context, id uuid.UUID, event Event, err error) {
	level := slog.LevelError
	if gateway.IsDeclined(err) {
		level = slog.LevelWarn
	}
	s.log.Log(ctx, level, "gateway call failed",
		logger.Component("lifecycle"),
		logger.AccountID(id),
		slog.String("event", string(event)),
		logger.Error(err),
	)
}

// notify runs after the account is saved. Delivery errors are logged only.
func (s *Service) notify(ctx context.Context, kind notify.Kind, acc account.Account, planName string, at time.Time) {
	err := s.notifier.Notify(ctx, notify.Message{
		Kind:      kind,
		AccountID: acc.ID,
		Email:     acc.Email,
		Name:      acc.Name,
		PlanName:  planName,
		At:        at,
	})
	if err != nil {
		s.log.WarnContext(ctx, "notification failed",
			logger.Component("lifecycle"),
			logger.AccountID(acc.ID),
			slog.String("kind", string(kind)),
			logger.Error(err),
		)
	}
}

func (s *Service) planName(id string) string {
	if p, err := s.plans.Get(id); err == nil {
		return p.Name
	}
	return id
}

func invoiceAttrs(id uuid.UUID, invoice string) []any {
	return []any{logger.Component("lifecycle"), logger.AccountID(id), logger.InvoiceNumber(invoice)}
}

// startTerm moves acc onto p as a paid account starting at now.
func startTerm(acc *account.Account, p plan.Plan, now time.Time) {
	acc.Status = account.StatusPaid
	acc.PlanID = p.ID
	acc.AutoRenew = true
	acc.TrialEndsAt = nil
	acc.CancelledAt = nil
	acc.ClearCancellation()
	acc.SubscriptionStartsAt = account.Ptr(now)
	acc.SubscriptionEndsAt = nil
	if end, ok := p.TermEnd(now); ok {
		acc.SubscriptionEndsAt = account.Ptr(end)
	}
}
