package lifecycle

import (
	"context"
	"errors"
	"slices"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/pkg/statemachine"
)

// Event triggers a status transition.
type Event string

const (
	EventCompletePayment           Event = "complete_payment"
	EventExpireTrial               Event = "expire_trial"
	EventRequestCancellation       Event = "request_cancellation"
	EventConfirmCancellation       Event = "confirm_cancellation"
	EventCancelCancellationRequest Event = "cancel_cancellation_request"
	EventCancellationEffective     Event = "cancellation_effective"
	EventUpgradePlan               Event = "upgrade_plan"
	EventRenew                     Event = "renew"
	EventTermEnded                 Event = "term_ended"
	EventSetAutoRenew              Event = "set_auto_renew"
)

type confirmInput struct {
	hash     string
	password string
	verifier PasswordVerifier
}

type upgradeInput struct {
	currentPlan string
	targetPlan  string
}

func verifyPassword(_ context.Context, _ account.Status, event Event, data any) error {
	in, ok := data.(*confirmInput)
	if !ok || in.verifier.Verify(in.hash, in.password) != nil {
		return &AuthMismatchError{Op: string(event)}
	}
	return nil
}

func differentPlan(_ context.Context, from account.Status, event Event, data any) error {
	in, ok := data.(*upgradeInput)
	if !ok || in.currentPlan == in.targetPlan {
		return &ConflictError{Op: string(event), Status: from, Reason: "account is already on this plan"}
	}
	return nil
}

func newMachine() *statemachine.Machine[account.Status, Event] {
	return statemachine.NewBuilder[account.Status, Event]().
		From(account.StatusPending, account.StatusTrial).On(EventCompletePayment).To(account.StatusPaid).Add().
		From(account.StatusTrial).On(EventExpireTrial).To(account.StatusExpired).Add().
		From(account.StatusTrial).On(EventRequestCancellation).To(account.StatusExpired).Add().
		From(account.StatusPaid).On(EventRequestCancellation).To(account.StatusCancellationRequested).Add().
		From(account.StatusCancellationRequested).On(EventConfirmCancellation).To(account.StatusCancellationConfirmed).
		Guard(verifyPassword).Add().
		From(account.StatusCancellationRequested, account.StatusCancellationConfirmed).
		On(EventCancelCancellationRequest).To(account.StatusPaid).Add().
		From(account.StatusCancellationConfirmed).On(EventCancellationEffective).To(account.StatusCancelled).Add().
		From(account.StatusCancelled, account.StatusPaid, account.StatusExpired).On(EventUpgradePlan).To(account.StatusPaid).
		Guard(differentPlan).Add().
		From(account.StatusPaid).On(EventRenew).To(account.StatusPaid).Add().
		From(account.StatusPaid, account.StatusCancellationRequested).On(EventTermEnded).To(account.StatusExpired).Add().
		From(account.StatusPaid).On(EventSetAutoRenew).To(account.StatusPaid).Add().
		MustBuild()
}

// fire maps an undefined transition to a ConflictError. Guard errors are
// returned as the typed error the guard produced.
func (s *Service) fire(ctx context.Context, acc *account.Account, event Event, data any) (account.Status, error) {
	next, err := s.machine.Fire(ctx, acc.Status, event, data)
	if err == nil {
		return next, nil
	}
	var rejected *statemachine.RejectedError
	if statemachine.IsNoTransitionError(err) {
		return acc.Status, &ConflictError{Op: string(event), Status: acc.Status}
	}
	if errors.As(err, &rejected) && rejected.Err != nil {
		return acc.Status, rejected.Err
	}
	return acc.Status, err
}

// allows reports whether event is defined for status, ignoring guards.
func (s *Service) allows(status account.Status, event Event) bool {
	return slices.Contains(s.machine.Events(status), event)
}
