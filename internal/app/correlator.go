/**
 * @description
 * The correlator resolves a partially-specified reference from a webhook event
 * (a payment-intent id, a customer id plus a time window, a subscription id, or
 * a charge id) into the provider-confirmed object. It never mutates local state;
 * every call is an idempotent read, which is what makes retries of the
 * reconciler safe.
 *
 * @dependencies
 * - context, fmt, time: Standard Go libraries.
 * - pkg/paymentclient: Provider API types and ErrNotFound.
 */

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/creatorly/payment-service/pkg/paymentclient"
)

// DefaultChargeCorrelationWindow bounds the customer+time-window charge search
// used on the subscription checkout path. The provider does not expose a direct
// checkout->charge link for subscriptions, so we correlate by creation time.
const DefaultChargeCorrelationWindow = 30 * time.Second

// Correlator performs read-only provider lookups on behalf of the reconciler.
type Correlator struct {
	provider ProviderClient
	window   time.Duration
}

// NewCorrelator creates a correlator with the given charge-correlation window.
// A non-positive window falls back to the default.
func NewCorrelator(provider ProviderClient, window time.Duration) *Correlator {
	if window <= 0 {
		window = DefaultChargeCorrelationWindow
	}
	return &Correlator{provider: provider, window: window}
}

// ChargeByID fetches the provider's current view of a charge.
func (c *Correlator) ChargeByID(ctx context.Context, chargeID string) (*paymentclient.Charge, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, paymentclient.ErrNotFound
	}
	return c.provider.GetCharge(ctx, chargeID)
}

// ChargeByPaymentIntent locates the charge backing a payment intent. When the
// provider returns several (retried payment attempts), the most recent one wins,
// with the charge id as a deterministic tie-break.
func (c *Correlator) ChargeByPaymentIntent(ctx context.Context, paymentIntentID string) (*paymentclient.Charge, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, paymentclient.ErrNotFound
	}

	query := fmt.Sprintf("payment_intent:'%s'", paymentIntentID)
	charges, err := c.provider.SearchCharges(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		return nil, paymentclient.ErrNotFound
	}

	best := charges[0]
	for _, charge := range charges[1:] {
		if charge.Created > best.Created || (charge.Created == best.Created && charge.ID < best.ID) {
			best = charge
		}
	}
	return &best, nil
}

// ChargeForCustomerWindow finds the charge created for a customer within the
// correlation window around the event time. When more than one charge matches,
// the one closest to the event time wins; equal distances break on the smaller
// charge id so repeated deliveries always pick the same charge.
func (c *Correlator) ChargeForCustomerWindow(ctx context.Context, customer string, eventTime time.Time) (*paymentclient.Charge, error) {
	if strings.TrimSpace(customer) == "" {
		return nil, paymentclient.ErrNotFound
	}

	lower := eventTime.Add(-c.window).Unix()
	upper := eventTime.Add(c.window).Unix()
	// Bounds are inclusive so a charge created exactly at the window edge
	// still correlates.
	query := fmt.Sprintf("customer:'%s' AND created>=%d AND created<=%d", customer, lower, upper)
	charges, err := c.provider.SearchCharges(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		return nil, paymentclient.ErrNotFound
	}

	event := eventTime.Unix()
	best := charges[0]
	bestDistance := absInt64(best.Created - event)
	for _, charge := range charges[1:] {
		distance := absInt64(charge.Created - event)
		if distance < bestDistance || (distance == bestDistance && charge.ID < best.ID) {
			best = charge
			bestDistance = distance
		}
	}
	return &best, nil
}

// SubscriptionByID fetches the provider's current view of a subscription.
func (c *Correlator) SubscriptionByID(ctx context.Context, subscriptionID string) (*paymentclient.Subscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, paymentclient.ErrNotFound
	}
	return c.provider.GetSubscription(ctx, subscriptionID)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
