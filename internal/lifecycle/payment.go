package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/billing"
	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/internal/notify"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
)

// PaymentParams is the input of CompletePayment. Card is held only for the
// tokenize call.
type PaymentParams struct {
	PlanID  string
	Card    gateway.Card
	Address gateway.Address
}

// CompletePayment moves a pending or trial account to paid on a priced plan.
// The gateway sequence is create customer (once), tokenize, attach, set
// default, subscribe. Nothing is saved unless every call succeeds.
func (s *Service) CompletePayment(ctx context.Context, id uuid.UUID, params PaymentParams) (account.Account, error) {
	p, err := s.plans.Get(params.PlanID)
	if err != nil {
		return account.Account{}, err
	}
	if p.IsFree() {
		return account.Account{}, ErrPlanNotPurchasable
	}

	var from account.Status
	acc, err := s.accounts.WithLock(ctx, id, func(ctx context.Context, acc *account.Account) error {
		from = acc.Status
		next, err := s.fire(ctx, acc, EventCompletePayment, nil)
		if err != nil {
			return err
		}

		pay, err := s.attachCard(ctx, acc, params.Card, params.Address)
		if err != nil {
			return err
		}
		sub, err := s.gateway.Subscribe(ctx, pay.customer, p.ExternalPriceID, pay.method)
		if err != nil {
			return err
		}
		if err := s.recordPaidTerm(ctx, acc, p, sub, pay.card); err != nil {
			return err
		}

		startTerm(acc, p, s.now())
		acc.Status = next
		acc.ExternalCustomerID = string(pay.customer)
		acc.ExternalSubscriptionID = string(sub.Ref)
		return nil
	})
	if err != nil {
		if gateway.IsGatewayError(err) {
			s.logGatewayFailure(ctx, id, EventCompletePayment, err)
		}
		return account.Account{}, err
	}

	s.logTransition(ctx, acc, from, EventCompletePayment)
	s.notify(ctx, notify.KindPaymentCompleted, acc, p.Name, *acc.SubscriptionEndsAt)
	return acc, nil
}

type payment struct {
	customer gateway.CustomerRef
	method   gateway.MethodRef
	// card is set when a new card was tokenized and must be saved.
	card *gateway.PaymentMethod
}

// attachCard creates the customer when missing, then tokenizes the card,
// attaches it and makes it the default.
func (s *Service) attachCard(ctx context.Context, acc *account.Account, card gateway.Card, addr gateway.Address) (payment, error) {
	customer := gateway.CustomerRef(acc.ExternalCustomerID)
	if customer == "" {
		var err error
		if customer, err = s.gateway.CreateCustomer(ctx, acc.Email, acc.Name, addr); err != nil {
			return payment{}, err
		}
	}
	pm, err := s.gateway.TokenizePaymentMethod(ctx, card)
	if err != nil {
		return payment{}, err
	}
	if err := s.gateway.AttachMethod(ctx, pm.Ref, customer); err != nil {
		return payment{}, err
	}
	if err := s.gateway.SetDefaultMethod(ctx, customer, pm.Ref); err != nil {
		return payment{}, err
	}
	return payment{customer: customer, method: pm.Ref, card: &pm}, nil
}

// savedMethod returns the account's default payment method on file.
func (s *Service) savedMethod(ctx context.Context, acc *account.Account) (payment, error) {
	method, err := s.methods.Default(ctx, acc.ID)
	if errors.Is(err, billing.ErrMethodNotFound) || (err == nil && acc.ExternalCustomerID == "") {
		return payment{}, ErrNoPaymentMethod
	}
	if err != nil {
		return payment{}, err
	}
	return payment{customer: gateway.CustomerRef(acc.ExternalCustomerID), method: gateway.MethodRef(method.ExternalID)}, nil
}

// recordPaidTerm writes the invoice and then the payment method of a confirmed
// subscription, so a card is only kept for a term that was recorded. A failure
// here happens after the processor charged; it is logged with the subscription
// reference so operators can reconcile by hand.
func (s *Service) recordPaidTerm(ctx context.Context, acc *account.Account, p plan.Plan, sub gateway.Subscription, pm *gateway.PaymentMethod) error {
	rec, err := s.invoices.Record(ctx, acc.ID, p, p.Price, sub.TransactionID)
	if err != nil {
		return s.chargedButNotRecorded(ctx, acc.ID, sub, err)
	}
	if pm != nil {
		if _, err := s.methods.Add(ctx, billing.PaymentMethod{
			AccountID:  acc.ID,
			ExternalID: string(pm.Ref),
			Brand:      pm.Brand,
			Last4:      pm.Last4,
			ExpMonth:   pm.ExpMonth,
			ExpYear:    pm.ExpYear,
			IsDefault:  true,
		}); err != nil {
			return s.chargedButNotRecorded(ctx, acc.ID, sub, fmt.Errorf("save payment method: %w", err))
		}
	}
	s.log.InfoContext(ctx, "invoice recorded", invoiceAttrs(acc.ID, rec.InvoiceNumber)...)
	return nil
}

func (s *Service) chargedButNotRecorded(ctx context.Context, id uuid.UUID, sub gateway.Subscription, err error) error {
	s.log.ErrorContext(ctx, "payment confirmed by gateway but not recorded",
		logger.Component("lifecycle"),
		logger.AccountID(id),
		slog.String("subscription_ref", string(sub.Ref)),
		slog.String("transaction_id", sub.TransactionID),
		logger.Error(err),
	)
	return err
}

// UpgradeParams is the input of UpgradePlan. Card is optional; without it
// the saved default payment method is charged.
type UpgradeParams struct {
	PlanID  string
	Card    *gateway.Card
	Address gateway.Address
}

// UpgradePlan moves a paid, cancelled or expired account onto another plan.
// A live subscription on the old plan is cancelled immediately before the
// new one is created. Moving to a free plan needs no gateway subscription.
func (s *Service) UpgradePlan(ctx context.Context, id uuid.UUID, params UpgradeParams) (account.Account, error) {
	p, err := s.plans.Get(params.PlanID)
	if err != nil {
		return account.Account{}, err
	}

	var from account.Status
	acc, err := s.accounts.WithLock(ctx, id, func(ctx context.Context, acc *account.Account) error {
		from = acc.Status
		next, err := s.fire(ctx, acc, EventUpgradePlan, &upgradeInput{currentPlan: acc.PlanID, targetPlan: p.ID})
		if err != nil {
			return err
		}

		if p.IsFree() {
			if err := s.cancelLiveSubscription(ctx, acc); err != nil {
				return err
			}
			startTerm(acc, p, s.now())
			acc.Status = next
			acc.ExternalSubscriptionID = ""
			return nil
		}

		var pay payment
		if params.Card != nil {
			pay, err = s.attachCard(ctx, acc, *params.Card, params.Address)
		} else {
			pay, err = s.savedMethod(ctx, acc)
		}
		if err != nil {
			return err
		}
		if err := s.cancelLiveSubscription(ctx, acc); err != nil {
			return err
		}
		sub, err := s.gateway.Subscribe(ctx, pay.customer, p.ExternalPriceID, pay.method)
		if err != nil {
			return err
		}
		if err := s.recordPaidTerm(ctx, acc, p, sub, pay.card); err != nil {
			return err
		}

		startTerm(acc, p, s.now())
		acc.Status = next
		acc.ExternalCustomerID = string(pay.customer)
		acc.ExternalSubscriptionID = string(sub.Ref)
		return nil
	})
	if err != nil {
		if gateway.IsGatewayError(err) {
			s.logGatewayFailure(ctx, id, EventUpgradePlan, err)
		}
		return account.Account{}, err
	}

	s.logTransition(ctx, acc, from, EventUpgradePlan)
	s.notify(ctx, notify.KindPlanUpgraded, acc, p.Name, s.now())
	return acc, nil
}

// cancelLiveSubscription ends the subscription of a paid account. Cancelled
// and expired accounts already told the gateway to stop renewing.
func (s *Service) cancelLiveSubscription(ctx context.Context, acc *account.Account) error {
	if acc.Status != account.StatusPaid || acc.ExternalSubscriptionID == "" {
		return nil
	}
	return s.gateway.CancelImmediately(ctx, gateway.SubscriptionRef(acc.ExternalSubscriptionID))
}
