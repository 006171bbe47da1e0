/**
 * @description
 * This file defines the core domain models for the payment-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (cents), which avoids floating-point inaccuracies with financial data.
 * - Checkout and Subscription are keyed by the provider's identifiers; the provider
 *   is the source of truth for money movement, our rows record reconciled state.
 */

package domain

import "time"

// Checkout statuses. A checkout only ever advances created -> succeeded|expired
// and succeeded -> refunded; every write enforcing an edge is conditional on the
// currently stored status.
const (
	CheckoutStatusCreated   = "created"
	CheckoutStatusSucceeded = "succeeded"
	CheckoutStatusRefunded  = "refunded"
	CheckoutStatusExpired   = "expired"
)

// Checkout modes.
const (
	CheckoutModePayment      = "payment"
	CheckoutModeSubscription = "subscription"
)

// Subscription statuses.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// Checkout is the local record of one payment attempt. It maps to the
// `checkouts` table and is keyed by the provider's checkout-session id.
type Checkout struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	Mode           string      `json:"mode"`   // 'payment' or 'subscription'
	Status         string      `json:"status"` // 'created', 'succeeded', 'refunded', 'expired'
	AmountTotal    int64       `json:"amount_total"` // in cents; 0 is valid (fully discounted)
	Currency       string      `json:"currency"`
	SubscriptionID *string     `json:"subscription_id,omitempty"`
	ChargeInfo     *ChargeInfo `json:"charge_info,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ChargeInfo is a snapshot of the provider charge at the time of the last
// reconciliation. It is a cache embedded into the checkout row, never a source
// of truth; it is absent until the first successful reconciliation.
type ChargeInfo struct {
	ChargeID       string `json:"charge_id"`
	PaymentIntent  string `json:"payment_intent,omitempty"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Paid           bool   `json:"paid"`
	Refunded       bool   `json:"refunded"`
}

// Subscription is the local record of one provider subscription, keyed by the
// provider's subscription id. `Info` holds the last-seen provider object.
type Subscription struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Customer  string           `json:"customer"`
	Status    string           `json:"status"` // 'active' or 'canceled'
	Currency  string           `json:"currency"`
	Info      SubscriptionInfo `json:"info"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// SubscriptionInfo is the embedded snapshot of the last-seen provider
// subscription object.
type SubscriptionInfo struct {
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   int64  `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         int64  `json:"canceled_at,omitempty"`
}

// CreateCheckoutRequest is the DTO for the checkout-creation endpoint.
type CreateCheckoutRequest struct {
	PriceID    string `json:"price_id"`
	Mode       string `json:"mode"` // 'payment' or 'subscription'
	Quantity   int64  `json:"quantity"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CreateCheckoutResponse is returned after a provider session has been created
// and the local 'created' row persisted. The client redirects to URL.
type CreateCheckoutResponse struct {
	CheckoutID string `json:"checkout_id"`
	URL        string `json:"url"`
}

// OrderListOptions controls pagination for order-history lookups.
type OrderListOptions struct {
	Limit  int
	Offset int
}
