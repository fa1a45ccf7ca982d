package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/notify"
)

// RegisterParams creates an account. PasswordHash is already hashed. An empty
// PlanID selects the catalog default.
type RegisterParams struct {
	Email        string
	Name         string
	PasswordHash string
	PlanID       string
}

// Register creates the account in trial when the plan grants one, otherwise
// in pending.
func (s *Service) Register(ctx context.Context, params RegisterParams) (account.Account, error) {
	p := s.plans.Default()
	if params.PlanID != "" {
		var err error
		if p, err = s.plans.Get(params.PlanID); err != nil {
			return account.Account{}, err
		}
	}

	now := s.now()
	acc := account.Account{
		Email:        strings.TrimSpace(params.Email),
		Name:         strings.TrimSpace(params.Name),
		PasswordHash: params.PasswordHash,
		PlanID:       p.ID,
		Status:       account.StatusPending,
		AutoRenew:    true,
		CreatedAt:    now,
	}
	if p.GrantsTrial() {
		acc.Status = account.StatusTrial
		acc.TrialEndsAt = account.Ptr(p.TrialEnd(now))
	}
	if err := acc.Validate(); err != nil {
		return account.Account{}, fmt.Errorf("register: %w", err)
	}
	if err := s.accounts.Create(ctx, &acc); err != nil {
		return account.Account{}, err
	}

	if acc.Status == account.StatusTrial {
		s.notify(ctx, notify.KindTrialStarted, acc, p.Name, *acc.TrialEndsAt)
	}
	return acc, nil
}
