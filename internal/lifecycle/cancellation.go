package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/internal/notify"
)

// RequestCancellation ends a trial immediately, with no grace period, or
// starts the cancellation of a paid account. Any other status conflicts,
// including a cancellation that is already in flight.
func (s *Service) RequestCancellation(ctx context.Context, id uuid.UUID, reason string) (account.Account, error) {
	var from account.Status
	acc, err := s.accounts.WithLock(ctx, id, func(ctx context.Context, acc *account.Account) error {
		from = acc.Status
		next, err := s.fire(ctx, acc, EventRequestCancellation, nil)
		if err != nil {
			return err
		}
		if next == account.StatusCancellationRequested {
			acc.CancellationRequestedAt = account.Ptr(s.now())
			acc.CancellationReason = strings.TrimSpace(reason)
		}
		acc.Status = next
		return nil
	})
	if err != nil {
		return account.Account{}, err
	}
	s.logTransition(ctx, acc, from, EventRequestCancellation)
	return acc, nil
}

// ConfirmCancellation re-verifies the password, schedules the loss of paid
// features after the grace period and tells the gateway to stop renewing.
// A wrong password returns *AuthMismatchError and changes nothing.
func (s *Service) ConfirmCancellation(ctx context.Context, id uuid.UUID, password string) (account.Account, error) {
	var from account.Status
	acc, err := s.accounts.WithLock(ctx, id, func(ctx context.Context, acc *account.Account) error {
		from = acc.Status
		next, err := s.fire(ctx, acc, EventConfirmCancellation, &confirmInput{
			hash:     acc.PasswordHash,
			password: password,
			verifier: s.passwords,
		})
		if err != nil {
			return err
		}
		if acc.ExternalSubscriptionID != "" && acc.AutoRenew {
			if err := s.gateway.CancelAtPeriodEnd(ctx, gateway.SubscriptionRef(acc.ExternalSubscriptionID)); err != nil {
				return err
			}
		}
		acc.CancellationEffectiveAt = account.Ptr(s.now().Add(s.grace))
		acc.Status = next
		return nil
	})
	if err != nil {
		if gateway.IsGatewayError(err) {
			s.logGatewayFailure(ctx, id, EventConfirmCancellation, err)
		}
		return account.Account{}, err
	}
	s.logTransition(ctx, acc, from, EventConfirmCancellation)
	s.notify(ctx, notify.KindCancellationConfirmed, acc, s.planName(acc.PlanID), *acc.CancellationEffectiveAt)
	return acc, nil
}

// CancelCancellationRequest returns an account with a cancellation in flight
// to paid. When the gateway was already told to stop renewing, it is resumed
// first.
func (s *Service) CancelCancellationRequest(ctx context.Context, id uuid.UUID) (account.Account, error) {
	var from account.Status
	acc, err := s.accounts.WithLock(ctx, id, func(ctx context.Context, acc *account.Account) error {
		from = acc.Status
		next, err := s.fire(ctx, acc, EventCancelCancellationRequest, nil)
		if err != nil {
			return err
		}
		if from == account.StatusCancellationConfirmed && acc.AutoRenew && acc.ExternalSubscriptionID != "" {
			if err := s.gateway.ResumeFromCancelAtPeriodEnd(ctx, gateway.SubscriptionRef(acc.ExternalSubscriptionID)); err != nil {
				return err
			}
		}
		acc.ClearCancellation()
		acc.Status = next
		return nil
	})
	if err != nil {
		if gateway.IsGatewayError(err) {
			s.logGatewayFailure(ctx, id, EventCancelCancellationRequest, err)
		}
		return account.Account{}, err
	}
	s.logTransition(ctx, acc, from, EventCancelCancellationRequest)
	if from == account.StatusCancellationConfirmed {
		s.notify(ctx, notify.KindCancellationReverted, acc, s.planName(acc.PlanID), s.now())
	}
	return acc, nil
}

// SetAutoRenew toggles renewal of a paid account and mirrors it to the
// gateway as cancel-at-period-end or resume.
func (s *Service) SetAutoRenew(ctx context.Context, id uuid.UUID, enabled bool) (account.Account, error) {
	acc, err := s.accounts.WithLock(ctx, id, func(ctx context.Context, acc *account.Account) error {
		if _, err := s.fire(ctx, acc, EventSetAutoRenew, nil); err != nil {
			return err
		}
		if acc.AutoRenew == enabled {
			return nil
		}
		if ref := gateway.SubscriptionRef(acc.ExternalSubscriptionID); ref != "" {
			var err error
			if enabled {
				err = s.gateway.ResumeFromCancelAtPeriodEnd(ctx, ref)
			} else {
				err = s.gateway.CancelAtPeriodEnd(ctx, ref)
			}
			if err != nil {
				return err
			}
		}
		acc.AutoRenew = enabled
		return nil
	})
	if err != nil {
		if gateway.IsGatewayError(err) {
			s.logGatewayFailure(ctx, id, EventSetAutoRenew, err)
		}
		return account.Account{}, err
	}
	return acc, nil
}

// CancellationStatus describes where an account is in the cancellation flow.
type CancellationStatus struct {
	Status        account.Status `json:"payment_status"`
	RequestedAt   *time.Time     `json:"cancellation_requested_at"`
	EffectiveAt   *time.Time     `json:"cancellation_effective_at"`
	Reason        string         `json:"cancellation_reason,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at"`
	CanRequest    bool           `json:"can_request"`
	CanConfirm    bool           `json:"can_confirm"`
	CanRevert     bool           `json:"can_revert"`
	GraceDaysLeft int            `json:"grace_days_left"`
}

// CancellationStatus is a read model over acc at the service clock.
func (s *Service) CancellationStatus(acc account.Account) CancellationStatus {
	out := CancellationStatus{
		Status:      acc.Status,
		RequestedAt: acc.CancellationRequestedAt,
		EffectiveAt: acc.CancellationEffectiveAt,
		Reason:      acc.CancellationReason,
		CancelledAt: acc.CancelledAt,
		CanRequest:  s.allows(acc.Status, EventRequestCancellation),
		CanConfirm:  s.allows(acc.Status, EventConfirmCancellation),
		CanRevert:   s.allows(acc.Status, EventCancelCancellationRequest),
	}
	if acc.CancellationEffectiveAt != nil {
		if left := acc.CancellationEffectiveAt.Sub(s.now()); left > 0 {
			out.GraceDaysLeft = int((left + 24*time.Hour - 1) / (24 * time.Hour))
		}
	}
	return out
}
