package billing

import "context"

// StaticProvider answers every lookup with a fixed plan. It backs dev mode
// and tests until a real payment adapter is configured.
type StaticProvider struct {
	Plan string
}

func (p StaticProvider) SubscriptionFor(ctx context.Context, userID string) (Subscription, error) {
	plan := p.Plan
	if plan == "" {
		plan = "free"
	}
	return Subscription{Plan: plan, Active: true}, nil
}

func (p StaticProvider) CheckoutURL(ctx context.Context, userID, plan string) (string, error) {
	return "", ErrCheckoutUnavailable
}
