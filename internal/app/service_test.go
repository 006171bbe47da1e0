package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/creatorly/payment-service/internal/domain"
	"github.com/creatorly/payment-service/internal/store"
	"github.com/creatorly/payment-service/pkg/paymentclient"
)

type checkoutRepoStub struct {
	store.Repository

	createErr    error
	createCalled bool
	created      *domain.Checkout

	findCheckout *domain.Checkout
}

func (s *checkoutRepoStub) CreateCheckout(ctx context.Context, checkout *domain.Checkout) error {
	s.createCalled = true
	s.created = checkout
	return s.createErr
}

func (s *checkoutRepoStub) FindCheckoutByID(ctx context.Context, checkoutID string) (*domain.Checkout, error) {
	if s.findCheckout == nil {
		return nil, store.ErrCheckoutNotFound
	}
	return s.findCheckout, nil
}

type sessionProviderStub struct {
	providerStub

	session       *paymentclient.CheckoutSession
	sessionErr    error
	sessionParams paymentclient.CheckoutSessionParams
}

func (p *sessionProviderStub) CreateCheckoutSession(ctx context.Context, params paymentclient.CheckoutSessionParams) (*paymentclient.CheckoutSession, error) {
	p.sessionParams = params
	if p.sessionErr != nil {
		return nil, p.sessionErr
	}
	return p.session, nil
}

func TestCreateCheckout_RejectsInvalidMode(t *testing.T) {
	svc := NewService(&checkoutRepoStub{}, &sessionProviderStub{}, nil, nil)

	_, err := svc.CreateCheckout(context.Background(), "user_1", domain.CreateCheckoutRequest{Mode: "setup", PriceID: "price_1"})
	if !errors.Is(err, ErrInvalidCheckoutMode) {
		t.Fatalf("expected ErrInvalidCheckoutMode, got %v", err)
	}
}

func TestCreateCheckout_RequiresPriceID(t *testing.T) {
	svc := NewService(&checkoutRepoStub{}, &sessionProviderStub{}, nil, nil)

	if _, err := svc.CreateCheckout(context.Background(), "user_1", domain.CreateCheckoutRequest{Mode: domain.CheckoutModePayment}); err == nil {
		t.Fatal("expected error for missing price id")
	}
}

func TestCreateCheckout_PersistsCreatedRowAndTagsSession(t *testing.T) {
	repo := &checkoutRepoStub{}
	provider := &sessionProviderStub{
		session: &paymentclient.CheckoutSession{
			ID:          "cs_new",
			Mode:        domain.CheckoutModePayment,
			AmountTotal: 2500,
			Currency:    "usd",
			URL:         "https://pay.example/cs_new",
		},
	}
	svc := NewService(repo, provider, nil, nil)

	resp, err := svc.CreateCheckout(context.Background(), "user_1", domain.CreateCheckoutRequest{
		Mode:    domain.CheckoutModePayment,
		PriceID: "price_1",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if resp.CheckoutID != "cs_new" || resp.URL != "https://pay.example/cs_new" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if provider.sessionParams.Quantity != 1 {
		t.Fatalf("expected quantity to default to 1, got %d", provider.sessionParams.Quantity)
	}
	if !strings.HasPrefix(provider.sessionParams.ClientReferenceID, "user_1:") {
		t.Fatalf("expected client reference tagged with user id, got %q", provider.sessionParams.ClientReferenceID)
	}
	if !repo.createCalled {
		t.Fatal("expected the created checkout row to be persisted")
	}
	if repo.created.Status != domain.CheckoutStatusCreated {
		t.Fatalf("expected initial status created, got %q", repo.created.Status)
	}
}

func TestCreateCheckout_UsesConfiguredRedirectDefaults(t *testing.T) {
	repo := &checkoutRepoStub{}
	provider := &sessionProviderStub{
		session: &paymentclient.CheckoutSession{ID: "cs_new", Mode: domain.CheckoutModeSubscription},
	}
	svc := NewService(repo, provider, nil, nil)
	svc.SetCheckoutRedirectDefaults("https://app.example/success", "https://app.example/cancel")

	_, err := svc.CreateCheckout(context.Background(), "user_1", domain.CreateCheckoutRequest{
		Mode:    domain.CheckoutModeSubscription,
		PriceID: "price_sub",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if provider.sessionParams.SuccessURL != "https://app.example/success" {
		t.Fatalf("expected default success url, got %q", provider.sessionParams.SuccessURL)
	}
	if provider.sessionParams.CancelURL != "https://app.example/cancel" {
		t.Fatalf("expected default cancel url, got %q", provider.sessionParams.CancelURL)
	}
}

func TestGetOrder_ScopesToOwner(t *testing.T) {
	repo := &checkoutRepoStub{
		findCheckout: &domain.Checkout{ID: "cs_1", UserID: "user_owner", Status: domain.CheckoutStatusSucceeded},
	}
	svc := NewService(repo, &sessionProviderStub{}, nil, nil)

	if _, err := svc.GetOrder(context.Background(), "user_other", "cs_1"); !errors.Is(err, store.ErrCheckoutNotFound) {
		t.Fatalf("expected not-found for non-owner, got %v", err)
	}
	order, err := svc.GetOrder(context.Background(), "user_owner", "cs_1")
	if err != nil {
		t.Fatalf("expected nil error for owner, got %v", err)
	}
	if order.ID != "cs_1" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestUserIDFromClientReference(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "user id with nonce", ref: "user_1:8d2f", want: "user_1"},
		{name: "bare user id", ref: "user_1", want: "user_1"},
		{name: "empty reference", ref: "", want: ""},
		{name: "whitespace only", ref: "   ", want: ""},
		{name: "leading colon yields whole string", ref: ":nonce", want: ":nonce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userIDFromClientReference(tt.ref); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
