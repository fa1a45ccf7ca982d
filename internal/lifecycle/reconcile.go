package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/internal/notify"
)

// ReconcileResult is the account after time-based transitions were applied.
// A failed gateway call made by the transition (a renewal, or stopping the
// subscription of an unconfirmed cancellation) leaves the account unchanged
// and sets RenewalErr; it is not returned as the call's error.
type ReconcileResult struct {
	Account    account.Account
	From       account.Status
	Event      Event
	RenewalErr error
}

// Transitioned reports whether the account changed status or term.
func (r ReconcileResult) Transitioned() bool { return r.Event != "" && r.RenewalErr == nil }

// Reconcile applies the transition that is due at now, if any:
// an ended trial expires, a confirmed cancellation past its effective date
// becomes cancelled, a paid term past its end renews through the gateway
// (auto_renew on) or expires (auto_renew off), and an unconfirmed cancellation
// request past its term end expires without another charge.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (ReconcileResult, error) {
	var (
		res      ReconcileResult
		planName string
	)
	acc, err := s.accounts.WithLock(ctx, id, func(ctx context.Context, acc *account.Account) error {
		now := s.now()
		res = ReconcileResult{From: acc.Status}
		if !account.IsDue(*acc, now) {
			return nil
		}

		switch acc.Status {
		case account.StatusTrial:
			res.Event = EventExpireTrial
		case account.StatusCancellationConfirmed:
			res.Event = EventCancellationEffective
		case account.StatusPaid:
			res.Event = EventTermEnded
			if acc.AutoRenew {
				res.Event = EventRenew
			}
		case account.StatusCancellationRequested:
			res.Event = EventTermEnded
		}

		next, err := s.fire(ctx, acc, res.Event, nil)
		if err != nil {
			return err
		}

		switch res.Event {
		case EventCancellationEffective:
			acc.CancelledAt = account.Ptr(now)
			acc.ClearCancellation()
		case EventRenew:
			name, err := s.renew(ctx, acc, now)
			if gateway.IsGatewayError(err) || errors.Is(err, ErrNoSubscription) {
				res.RenewalErr = err
				return nil
			}
			if err != nil {
				return err
			}
			planName = name
		case EventTermEnded:
			if res.From != account.StatusCancellationRequested {
				break
			}
			// An expired account keeps no live subscription at the processor.
			if acc.AutoRenew && acc.ExternalSubscriptionID != "" {
				err := s.gateway.CancelImmediately(ctx, gateway.SubscriptionRef(acc.ExternalSubscriptionID))
				if gateway.IsGatewayError(err) {
					res.RenewalErr = err
					return nil
				}
				if err != nil {
					return err
				}
			}
			acc.ClearCancellation()
		}
		acc.Status = next
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	res.Account = acc

	switch {
	case res.RenewalErr != nil:
		s.logGatewayFailure(ctx, id, res.Event, res.RenewalErr)
		if res.Event == EventRenew {
			s.notifyRenewalFailure(ctx, acc)
		}
	case res.Event == EventRenew:
		s.logTransition(ctx, acc, res.From, res.Event)
		s.notify(ctx, notify.KindSubscriptionRenewed, acc, planName, *acc.SubscriptionEndsAt)
	case res.Event != "":
		s.logTransition(ctx, acc, res.From, res.Event)
		if acc.Status == account.StatusCancelled || res.Event == EventTermEnded {
			s.notify(ctx, notify.KindSubscriptionEnded, acc, s.planName(acc.PlanID), endedAt(acc))
		}
	}
	return res, nil
}

// renew charges the next term and appends its invoice. acc is changed only on
// success. Gateway failures are returned as *gateway.Error.
func (s *Service) renew(ctx context.Context, acc *account.Account, now time.Time) (string, error) {
	p, err := s.plans.Get(acc.PlanID)
	if err != nil {
		return "", err
	}
	if acc.ExternalSubscriptionID == "" || acc.ExternalCustomerID == "" {
		return "", ErrNoSubscription
	}

	sub, err := s.gateway.Renew(ctx,
		gateway.CustomerRef(acc.ExternalCustomerID),
		gateway.SubscriptionRef(acc.ExternalSubscriptionID),
		p.ExternalPriceID,
	)
	if err != nil {
		return "", err
	}

	start := *acc.SubscriptionEndsAt
	end, ok := p.TermEnd(start)
	if !ok {
		return "", fmt.Errorf("renew: plan %q has no billing interval", p.ID)
	}
	// An account not seen for more than a term restarts from now.
	if !end.After(now) {
		start = now
		end, _ = p.TermEnd(now)
	}

	rec, err := s.invoices.Record(ctx, acc.ID, p, p.Price, sub.TransactionID)
	if err != nil {
		return "", err
	}
	s.log.InfoContext(ctx, "subscription renewed", invoiceAttrs(acc.ID, rec.InvoiceNumber)...)

	acc.SubscriptionStartsAt = account.Ptr(start)
	acc.SubscriptionEndsAt = account.Ptr(end)
	acc.ExternalSubscriptionID = string(sub.Ref)
	return p.Name, nil
}

// notifyRenewalFailure sends at most one failure notice per account and term
// end for the life of the process.
func (s *Service) notifyRenewalFailure(ctx context.Context, acc account.Account) {
	if acc.SubscriptionEndsAt == nil {
		return
	}
	key := acc.ID.String() + "/" + acc.SubscriptionEndsAt.UTC().Format(time.RFC3339)
	if _, seen := s.notified.LoadOrStore(key, struct{}{}); seen {
		return
	}
	s.notify(ctx, notify.KindRenewalFailed, acc, s.planName(acc.PlanID), *acc.SubscriptionEndsAt)
}

func endedAt(acc account.Account) time.Time {
	if acc.CancelledAt != nil {
		return *acc.CancelledAt
	}
	if acc.SubscriptionEndsAt != nil {
		return *acc.SubscriptionEndsAt
	}
	if acc.TrialEndsAt != nil {
		return *acc.TrialEndsAt
	}
	return acc.UpdatedAt
}
