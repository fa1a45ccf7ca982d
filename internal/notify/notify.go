package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/pkg/logger"
)

var (
	ErrInvalidConfig  = errors.New("invalid notifier configuration")
	ErrInvalidMessage = errors.New("invalid notification message")
	ErrFailedToSend   = errors.New("failed to send notification")
)

// Kind identifies a lifecycle notification.
type Kind string

const (
	KindTrialStarted          Kind = "trial_started"
	KindPaymentCompleted      Kind = "payment_completed"
	KindPlanUpgraded          Kind = "plan_upgraded"
	KindCancellationConfirmed Kind = "cancellation_confirmed"
	KindCancellationReverted  Kind = "cancellation_reverted"
	KindSubscriptionRenewed   Kind = "subscription_renewed"
	KindRenewalFailed         Kind = "renewal_failed"
	KindSubscriptionEnded     Kind = "subscription_ended"
)

// Message is one notification to an account holder.
type Message struct {
	Kind      Kind
	AccountID uuid.UUID
	Email     string
	Name      string
	PlanName  string
	// At is the relevant date: term end, effective cancellation date or trial end.
	At time.Time
}

func (m Message) validate() error {
	if m.Kind == "" || m.Email == "" {
		return fmt.Errorf("%w: kind and email are required", ErrInvalidMessage)
	}
	return nil
}

// Notifier delivers lifecycle notifications. Delivery failures never roll back
// a lifecycle transition; callers log them.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the log. Used in development and when
// no mail provider is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	n.log.InfoContext(ctx, "notification",
		logger.Component("notify"),
		slog.String("kind", string(msg.Kind)),
		logger.AccountID(msg.AccountID),
		slog.String("subject", subject(msg)),
	)
	return nil
}

func subject(msg Message) string {
	switch msg.Kind {
	case KindTrialStarted:
		return "Welcome! Your free trial has started"
	case KindPaymentCompleted:
		return fmt.Sprintf("Your %s subscription is active", msg.PlanName)
	case KindPlanUpgraded:
		return fmt.Sprintf("You are now on the %s plan", msg.PlanName)
	case KindCancellationConfirmed:
		return "Your subscription cancellation is confirmed"
	case KindCancellationReverted:
		return "Your subscription will continue"
	case KindSubscriptionRenewed:
		return fmt.Sprintf("Your %s subscription was renewed", msg.PlanName)
	case KindRenewalFailed:
		return "We could not renew your subscription"
	case KindSubscriptionEnded:
		return "Your subscription has ended"
	}
	return "Account update"
}

func body(msg Message) string {
	name := msg.Name
	if name == "" {
		name = "there"
	}
	date := msg.At.UTC().Format("January 2, 2006")
	switch msg.Kind {
	case KindTrialStarted:
		return fmt.Sprintf("Hi %s, your trial runs until %s.", name, date)
	case KindPaymentCompleted, KindSubscriptionRenewed:
		return fmt.Sprintf("Hi %s, thanks for your payment. Your %s plan is active until %s.", name, msg.PlanName, date)
	case KindPlanUpgraded:
		return fmt.Sprintf("Hi %s, your account now uses the %s plan.", name, msg.PlanName)
	case KindCancellationConfirmed:
		return fmt.Sprintf("Hi %s, your subscription ends on %s. You can undo this until then.", name, date)
	case KindCancellationReverted:
		return fmt.Sprintf("Hi %s, your cancellation request was withdrawn and your %s plan continues.", name, msg.PlanName)
	case KindRenewalFailed:
		return fmt.Sprintf("Hi %s, the renewal payment for your %s plan failed. Please update your payment method.", name, msg.PlanName)
	case KindSubscriptionEnded:
		return fmt.Sprintf("Hi %s, your subscription ended on %s.", name, date)
	}
	return fmt.Sprintf("Hi %s, there is an update on your account.", name)
}
