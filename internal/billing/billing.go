// Package billing defines the subscription provider boundary. The payment
// lifecycle itself lives behind this interface and outside this repository's
// core; resource-level extensions call it, the identity core never does.
package billing

import (
	"context"
	"errors"
)

// ErrCheckoutUnavailable: the configured provider cannot start checkouts.
var ErrCheckoutUnavailable = errors.New("billing: checkout unavailable")

// Subscription is the minimal view the core's plan policy needs.
type Subscription struct {
	Plan   string
	Active bool
}

// Provider is implemented by payment-processor adapters.
type Provider interface {
	// SubscriptionFor returns the user's current subscription state.
	SubscriptionFor(ctx context.Context, userID string) (Subscription, error)

	// CheckoutURL starts a plan change and returns the redirect target.
	CheckoutURL(ctx context.Context, userID, plan string) (string, error)
}
