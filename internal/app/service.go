/**
 * @description
 * This file contains the core business logic for the payment-service. The `Service`
 * struct orchestrates checkout creation and order/subscription lookups, coordinating
 * between the database repository, the payment provider API client, and the message
 * broker. The webhook reconciliation logic lives in dispatcher.go, reconciler.go and
 * correlator.go on the same struct.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - github.com/google/uuid: For client reference ids on provider sessions.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/paymentclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/creatorly/payment-service/internal/domain"
	"github.com/creatorly/payment-service/internal/store"
	"github.com/creatorly/payment-service/pkg/paymentclient"
	"github.com/creatorly/payment-service/pkg/rabbitmq"
)

// ErrInvalidCheckoutMode is returned when a checkout-creation request carries a
// mode the service does not sell.
var ErrInvalidCheckoutMode = errors.New("checkout mode must be 'payment' or 'subscription'")

// ProviderClient is the subset of the payment provider API the service depends
// on. All lookups are side-effect-free on the provider; checkout-session
// creation is the single command.
type ProviderClient interface {
	CreateCheckoutSession(ctx context.Context, params paymentclient.CheckoutSessionParams) (*paymentclient.CheckoutSession, error)
	GetCharge(ctx context.Context, chargeID string) (*paymentclient.Charge, error)
	SearchCharges(ctx context.Context, query string) ([]paymentclient.Charge, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*paymentclient.Subscription, error)
}

// Service provides the core business logic for payments.
type Service struct {
	repo          store.Repository
	provider      ProviderClient
	correlator    *Correlator
	eventProducer rabbitmq.Publisher

	defaultSuccessURL string
	defaultCancelURL  string
}

// NewService creates a new payment service instance.
func NewService(repo store.Repository, provider ProviderClient, correlator *Correlator, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:          repo,
		provider:      provider,
		correlator:    correlator,
		eventProducer: producer,
	}
}

// SetCheckoutRedirectDefaults configures the fallback success/cancel URLs used
// when a checkout-creation request does not supply its own.
func (s *Service) SetCheckoutRedirectDefaults(successURL, cancelURL string) {
	s.defaultSuccessURL = strings.TrimSpace(successURL)
	s.defaultCancelURL = strings.TrimSpace(cancelURL)
}

// CreateCheckout creates a checkout session at the provider and persists the
// initial 'created' row. The local row is mutated afterwards exclusively by the
// webhook reconciliation path.
func (s *Service) CreateCheckout(ctx context.Context, userID string, req domain.CreateCheckoutRequest) (*domain.CreateCheckoutResponse, error) {
	mode := strings.TrimSpace(req.Mode)
	if mode != domain.CheckoutModePayment && mode != domain.CheckoutModeSubscription {
		return nil, ErrInvalidCheckoutMode
	}
	if strings.TrimSpace(req.PriceID) == "" {
		return nil, errors.New("price id is required")
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	successURL := strings.TrimSpace(req.SuccessURL)
	if successURL == "" {
		successURL = s.defaultSuccessURL
	}
	cancelURL := strings.TrimSpace(req.CancelURL)
	if cancelURL == "" {
		cancelURL = s.defaultCancelURL
	}

	session, err := s.provider.CreateCheckoutSession(ctx, paymentclient.CheckoutSessionParams{
		Mode:              mode,
		PriceID:           req.PriceID,
		Quantity:          quantity,
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		ClientReferenceID: buildClientReferenceID(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider checkout session: %w", err)
	}

	checkout := &domain.Checkout{
		ID:          session.ID,
		UserID:      userID,
		Mode:        mode,
		Status:      domain.CheckoutStatusCreated,
		AmountTotal: session.AmountTotal,
		Currency:    session.Currency,
	}
	if err := s.repo.CreateCheckout(ctx, checkout); err != nil {
		// The provider session exists regardless; completion reconciliation will
		// re-create the local row from the event payload if this insert is lost.
		log.Printf("level=error component=service flow=create_checkout msg=\"failed to persist created checkout\" checkout_id=%s user_id=%s err=%v", session.ID, userID, err)
		return nil, fmt.Errorf("failed to persist checkout record: %w", err)
	}

	log.Printf("level=info component=service flow=create_checkout msg=\"checkout session created\" checkout_id=%s user_id=%s mode=%s amount=%d", session.ID, userID, mode, session.AmountTotal)
	return &domain.CreateCheckoutResponse{
		CheckoutID: session.ID,
		URL:        session.URL,
	}, nil
}

// ListOrders returns a user's checkout history.
func (s *Service) ListOrders(ctx context.Context, userID string, opts domain.OrderListOptions) ([]domain.Checkout, error) {
	return s.repo.ListCheckoutsByUserID(ctx, userID, opts)
}

// GetOrder returns a single checkout, scoped to its owner.
func (s *Service) GetOrder(ctx context.Context, userID, checkoutID string) (*domain.Checkout, error) {
	checkout, err := s.repo.FindCheckoutByID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if checkout.UserID != userID {
		return nil, store.ErrCheckoutNotFound
	}
	return checkout, nil
}

// ListSubscriptions returns a user's subscriptions.
func (s *Service) ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.repo.ListSubscriptionsByUserID(ctx, userID)
}

// buildClientReferenceID tags the provider session with the owning user and a
// nonce so completion events can be attributed even when the local row is lost.
func buildClientReferenceID(userID string) string {
	return userID + ":" + uuid.NewString()
}

// userIDFromClientReference recovers the user id embedded by
// buildClientReferenceID. An empty result means the session was not created by
// this service's checkout flow.
func userIDFromClientReference(clientReferenceID string) string {
	ref := strings.TrimSpace(clientReferenceID)
	if ref == "" {
		return ""
	}
	if idx := strings.IndexByte(ref, ':'); idx > 0 {
		return ref[:idx]
	}
	return ref
}
