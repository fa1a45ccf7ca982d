// Package gateway defines the payment processor contract and its adapters.
//
// Memory is a deterministic mock with test card numbers and injectable
// failures. Stripe talks to the Stripe API; its transport retries network
// errors with idempotency keys, and nothing above it retries. Resilient wraps
// either one with a per-call timeout and a circuit breaker.
//
// Every failure is a *Error. Declined distinguishes card or charge rejections
// from processor outages:
//
//	sub, err := gw.Subscribe(ctx, customer, plan.ExternalPriceID, method)
//	if gateway.IsDeclined(err) {
//		// show the processor message to the user
//	}
package gateway
