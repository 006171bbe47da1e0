/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the payment-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * The status-changing methods are conditional: they only take effect when the row
 * currently matches an expected status, and report via their boolean return whether
 * a row was modified. That contract is the engine's sole concurrency-control
 * primitive; there are no locks around reconciliation.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/creatorly/payment-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Checkout methods
	CreateCheckout(ctx context.Context, checkout *domain.Checkout) error
	FindCheckoutByID(ctx context.Context, checkoutID string) (*domain.Checkout, error)
	// FindCheckoutByChargeID locates the checkout whose embedded charge snapshot
	// references the given provider charge id, regardless of status.
	FindCheckoutByChargeID(ctx context.Context, chargeID string) (*domain.Checkout, error)
	ListCheckoutsByUserID(ctx context.Context, userID string, opts domain.OrderListOptions) ([]domain.Checkout, error)

	// SettleCheckoutSucceeded inserts the checkout row as 'succeeded', or promotes
	// an existing row only if it is currently 'created'. Returns whether a row was
	// written; false means the stored status forbids the transition.
	SettleCheckoutSucceeded(ctx context.Context, params SettleCheckoutParams) (bool, error)
	// MarkCheckoutRefunded flips 'succeeded' -> 'refunded' for the checkout holding
	// the given charge id and overwrites the charge snapshot. Returns whether a row
	// matched; false means the transition was already applied or never eligible.
	MarkCheckoutRefunded(ctx context.Context, chargeID string, charge domain.ChargeInfo) (bool, error)
	// MarkCheckoutExpired flips 'created' -> 'expired' by checkout id.
	MarkCheckoutExpired(ctx context.Context, checkoutID string) (bool, error)

	// Subscription methods

	// UpsertSubscription creates or overwrites a subscription row. A row that is
	// already 'canceled' is terminal and must never be overwritten.
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error
	FindSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	ListSubscriptionsByUserID(ctx context.Context, userID string) ([]domain.Subscription, error)
	// MarkSubscriptionCanceled flips 'active' -> 'canceled' and overwrites the
	// provider snapshot. Returns whether a row matched.
	MarkSubscriptionCanceled(ctx context.Context, subscriptionID string, info domain.SubscriptionInfo) (bool, error)
}

// SettleCheckoutParams carries everything needed to write a 'succeeded' checkout
// row whether or not the 'created' row exists yet (session creation and webhook
// delivery can race). ChargeInfo is nil only for zero-amount checkouts.
type SettleCheckoutParams struct {
	CheckoutID     string
	UserID         string
	Mode           string
	AmountTotal    int64
	Currency       string
	SubscriptionID *string
	ChargeInfo     *domain.ChargeInfo
}
