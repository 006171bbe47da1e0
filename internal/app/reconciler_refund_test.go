package app

import (
	"context"
	"errors"
	"testing"

	"github.com/creatorly/payment-service/internal/domain"
	"github.com/creatorly/payment-service/pkg/paymentclient"
)

func refundEvent() domain.WebhookEvent {
	return domain.WebhookEvent{
		ID:      "evt_refund",
		Type:    "charge.refunded",
		Created: 1700000100,
	}
}

func TestReconcileChargeRefunded_AppliesOnSucceededCheckout(t *testing.T) {
	repo := &reconcileRepoStub{
		findByCharge:  &domain.Checkout{ID: "cs_1", Mode: domain.CheckoutModePayment, Status: domain.CheckoutStatusSucceeded},
		refundApplied: true,
	}
	provider := &providerStub{
		charge: &paymentclient.Charge{ID: "ch_1", Amount: 5000, AmountRefunded: 5000, Paid: true, Refunded: true},
	}
	svc := newReconcileService(repo, provider)

	result, err := svc.reconcileChargeRefunded(context.Background(), refundEvent(), paymentclient.Charge{ID: "ch_1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Outcome != domain.OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", result.Outcome, result.Reason)
	}
	if !repo.refundCalled {
		t.Fatal("expected the refund transition to be written")
	}
	if !repo.refundCharge.Refunded || repo.refundCharge.AmountRefunded != 5000 {
		t.Fatalf("expected refreshed charge snapshot in the write, got %+v", repo.refundCharge)
	}
}

func TestReconcileChargeRefunded_DuplicateDeliveryIsAlreadyApplied(t *testing.T) {
	repo := &reconcileRepoStub{
		findByCharge: &domain.Checkout{ID: "cs_1", Status: domain.CheckoutStatusRefunded},
	}
	provider := &providerStub{
		charge: &paymentclient.Charge{ID: "ch_1", Refunded: true, AmountRefunded: 5000},
	}
	svc := newReconcileService(repo, provider)

	result, err := svc.reconcileChargeRefunded(context.Background(), refundEvent(), paymentclient.Charge{ID: "ch_1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Outcome != domain.OutcomeAlreadyApplied {
		t.Fatalf("expected already_applied, got %s", result.Outcome)
	}
	if repo.refundCalled {
		t.Fatal("did not expect a write for an already-refunded checkout")
	}
}

func TestReconcileChargeRefunded_RejectsWhenCheckoutNotSucceeded(t *testing.T) {
	repo := &reconcileRepoStub{
		findByCharge: &domain.Checkout{ID: "cs_1", Status: domain.CheckoutStatusCreated},
	}
	provider := &providerStub{
		charge: &paymentclient.Charge{ID: "ch_1", Refunded: true, AmountRefunded: 5000},
	}
	svc := newReconcileService(repo, provider)

	result, err := svc.reconcileChargeRefunded(context.Background(), refundEvent(), paymentclient.Charge{ID: "ch_1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Outcome != domain.OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
	if repo.refundCalled {
		t.Fatal("did not expect a write when the checkout never succeeded")
	}
}

func TestReconcileChargeRefunded_RejectsWhenProviderDeniesRefund(t *testing.T) {
	repo := &reconcileRepoStub{
		findByCharge: &domain.Checkout{ID: "cs_1", Status: domain.CheckoutStatusSucceeded},
	}
	provider := &providerStub{
		// Event claimed a refund, but the provider's current view disagrees.
		charge: &paymentclient.Charge{ID: "ch_1", Paid: true, Refunded: false, AmountRefunded: 0},
	}
	svc := newReconcileService(repo, provider)

	result, err := svc.reconcileChargeRefunded(context.Background(), refundEvent(), paymentclient.Charge{ID: "ch_1", Refunded: true})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Outcome != domain.OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
	if repo.refundCalled {
		t.Fatal("did not expect a write for a refund the provider does not confirm")
	}
}

func TestReconcileChargeRefunded_RejectsWhenNoCheckoutHoldsCharge(t *testing.T) {
	repo := &reconcileRepoStub{}
	provider := &providerStub{
		charge: &paymentclient.Charge{ID: "ch_orphan", Refunded: true, AmountRefunded: 100},
	}
	svc := newReconcileService(repo, provider)

	result, err := svc.reconcileChargeRefunded(context.Background(), refundEvent(), paymentclient.Charge{ID: "ch_orphan"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Outcome != domain.OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
}

func TestReconcileChargeRefunded_ConcurrentWinnerIsAlreadyApplied(t *testing.T) {
	repo := &reconcileRepoStub{
		findByCharge:  &domain.Checkout{ID: "cs_1", Status: domain.CheckoutStatusSucceeded},
		refundApplied: false,
	}
	provider := &providerStub{
		charge: &paymentclient.Charge{ID: "ch_1", Refunded: true, AmountRefunded: 5000},
	}
	svc := newReconcileService(repo, provider)

	result, err := svc.reconcileChargeRefunded(context.Background(), refundEvent(), paymentclient.Charge{ID: "ch_1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Outcome != domain.OutcomeAlreadyApplied {
		t.Fatalf("expected already_applied when the conditional update matched nothing, got %s", result.Outcome)
	}
}

func TestReconcileChargeRefunded_StoreFailurePropagates(t *testing.T) {
	repo := &reconcileRepoStub{findByChargeErr: errors.New("connection reset")}
	provider := &providerStub{
		charge: &paymentclient.Charge{ID: "ch_1", Refunded: true, AmountRefunded: 5000},
	}
	svc := newReconcileService(repo, provider)

	if _, err := svc.reconcileChargeRefunded(context.Background(), refundEvent(), paymentclient.Charge{ID: "ch_1"}); err == nil {
		t.Fatal("expected store failure to propagate for redelivery")
	}
}

func TestReconcileCheckoutExpired_AppliesOnCreatedRow(t *testing.T) {
	repo := &reconcileRepoStub{expireApplied: true}
	svc := newReconcileService(repo, &providerStub{})

	event := domain.WebhookEvent{ID: "evt_exp", Type: "checkout.session.expired"}
	result, err := svc.reconcileCheckoutExpired(context.Background(), event, paymentclient.CheckoutSession{ID: "cs_1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Outcome != domain.OutcomeApplied {
		t.Fatalf("expected applied, got %s", result.Outcome)
	}
}

func TestReconcileCheckoutExpired_SettledCheckoutIsAlreadyResolved(t *testing.T) {
	repo := &reconcileRepoStub{
		expireApplied: false,
		findCheckout:  &domain.Checkout{ID: "cs_1", Status: domain.CheckoutStatusSucceeded},
	}
	svc := newReconcileService(repo, &providerStub{})

	event := domain.WebhookEvent{ID: "evt_exp", Type: "checkout.session.expired"}
	result, err := svc.reconcileCheckoutExpired(context.Background(), event, paymentclient.CheckoutSession{ID: "cs_1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Outcome != domain.OutcomeAlreadyApplied {
		t.Fatalf("expected already_applied for expiry after settlement, got %s", result.Outcome)
	}
}

func TestReconcileCheckoutExpired_UnknownCheckoutIsRejected(t *testing.T) {
	repo := &reconcileRepoStub{expireApplied: false}
	svc := newReconcileService(repo, &providerStub{})

	event := domain.WebhookEvent{ID: "evt_exp", Type: "checkout.session.expired"}
	result, err := svc.reconcileCheckoutExpired(context.Background(), event, paymentclient.CheckoutSession{ID: "cs_missing"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Outcome != domain.OutcomeRejected {
		t.Fatalf("expected rejected for unknown checkout, got %s", result.Outcome)
	}
}
