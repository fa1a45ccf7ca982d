package lifecycle

import (
	"time"

	"github.com/dmitrymomot/nutrilabel/internal/account"
)

// Access summarizes what an account may do right now.
type Access struct {
	Status             account.Status `json:"payment_status"`
	PlanID             string         `json:"plan_id"`
	CanUseFeatures     bool           `json:"can_use_features"`
	OnTrial            bool           `json:"on_trial"`
	TrialEndsAt        *time.Time     `json:"trial_ends_at"`
	SubscriptionEndsAt *time.Time     `json:"subscription_ends_at"`
	AutoRenew          bool           `json:"auto_renew"`
}

// CanUseFeatures reports whether acc may use gated resources at now: an
// unexpired trial, a paid term that has not ended, or a cancellation before its
// effective date. Terms without an end (free plans) never lapse.
func CanUseFeatures(acc account.Account, now time.Time) bool {
	switch acc.Status {
	case account.StatusTrial:
		return acc.TrialEndsAt != nil && !now.After(*acc.TrialEndsAt)
	case account.StatusPaid, account.StatusCancellationRequested:
		return acc.SubscriptionEndsAt == nil || !now.After(*acc.SubscriptionEndsAt)
	case account.StatusCancellationConfirmed:
		return acc.CancellationEffectiveAt != nil && now.Before(*acc.CancellationEffectiveAt)
	}
	return false
}

// Access is a read model over acc at the service clock.
func (s *Service) Access(acc account.Account) Access {
	now := s.now()
	return Access{
		Status:             acc.Status,
		PlanID:             acc.PlanID,
		CanUseFeatures:     CanUseFeatures(acc, now),
		OnTrial:            acc.Status == account.StatusTrial && CanUseFeatures(acc, now),
		TrialEndsAt:        acc.TrialEndsAt,
		SubscriptionEndsAt: acc.SubscriptionEndsAt,
		AutoRenew:          acc.AutoRenew,
	}
}

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }
