/**
 * @description
 * This file contains the per-event-type reconciliation logic: the state machine
 * that converges local checkout and subscription rows to provider-confirmed
 * truth. It is the only code allowed to mutate checkout/subscription status.
 *
 * Every transition is guarded by a conditional store write keyed on the current
 * stored status, never on values read earlier in the same attempt, so duplicate
 * and out-of-order deliveries are harmless regardless of interleaving. A
 * checkout may only show 'succeeded' when the amount due was zero or the
 * provider independently confirmed a paid, non-refunded charge.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - internal/domain, internal/store: Domain models and the conditional-write contract.
 * - pkg/paymentclient: Provider object shapes and ErrNotFound.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/creatorly/payment-service/internal/domain"
	"github.com/creatorly/payment-service/internal/store"
	"github.com/creatorly/payment-service/pkg/paymentclient"
	"github.com/creatorly/payment-service/pkg/rabbitmq"
)

// reconcileCheckoutCompleted settles a completed checkout session. For paid
// sessions the provider is re-queried for the backing charge and the write only
// proceeds on a confirmed paid, non-refunded charge; zero-amount sessions
// (fully discounted or trial) settle without any charge lookup.
func (s *Service) reconcileCheckoutCompleted(ctx context.Context, event domain.WebhookEvent, session paymentclient.CheckoutSession) (domain.ReconcileResult, error) {
	switch session.Mode {
	case domain.CheckoutModePayment:
		return s.reconcilePaymentCompleted(ctx, event, session)
	case domain.CheckoutModeSubscription:
		return s.reconcileSubscriptionCompleted(ctx, event, session)
	default:
		return s.reject(event, fmt.Sprintf("unsupported checkout mode %q", session.Mode)), nil
	}
}

func (s *Service) reconcilePaymentCompleted(ctx context.Context, event domain.WebhookEvent, session paymentclient.CheckoutSession) (domain.ReconcileResult, error) {
	var snapshot *domain.ChargeInfo
	if session.AmountTotal > 0 {
		charge, err := s.correlator.ChargeByPaymentIntent(ctx, session.PaymentIntent)
		if errors.Is(err, paymentclient.ErrNotFound) {
			return s.reject(event, "no charge found for payment intent"), nil
		}
		if err != nil {
			return domain.ReconcileResult{}, fmt.Errorf("charge lookup for payment intent %s: %w", session.PaymentIntent, err)
		}
		if !charge.Paid || charge.Refunded {
			return s.reject(event, "charge is not a confirmed, non-refunded payment"), nil
		}
		snapshot = chargeSnapshot(charge)
	}
	return s.settleCheckoutSucceeded(ctx, event, session, snapshot, nil)
}

// reconcileSubscriptionCompleted settles a subscription-mode checkout. The
// provider gives no direct checkout->charge link here, so a paid session is
// verified through the customer+time-window correlation before any write.
func (s *Service) reconcileSubscriptionCompleted(ctx context.Context, event domain.WebhookEvent, session paymentclient.CheckoutSession) (domain.ReconcileResult, error) {
	providerSub, err := s.correlator.SubscriptionByID(ctx, session.Subscription)
	if errors.Is(err, paymentclient.ErrNotFound) {
		return s.reject(event, "subscription not found at provider"), nil
	}
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("subscription lookup %s: %w", session.Subscription, err)
	}

	var snapshot *domain.ChargeInfo
	if session.AmountTotal > 0 {
		charge, err := s.correlator.ChargeForCustomerWindow(ctx, session.Customer, time.Unix(event.Created, 0))
		if errors.Is(err, paymentclient.ErrNotFound) {
			return s.reject(event, "no charge found for customer in correlation window"), nil
		}
		if err != nil {
			return domain.ReconcileResult{}, fmt.Errorf("charge correlation for customer %s: %w", session.Customer, err)
		}
		if !charge.Paid || charge.Refunded {
			return s.reject(event, "correlated charge is not a confirmed, non-refunded payment"), nil
		}
		snapshot = chargeSnapshot(charge)
	}

	// The local status mirrors the provider's current view, not the event. A
	// replayed completion arriving after a cancellation must not resurrect the
	// canceled row.
	status := domain.SubscriptionStatusActive
	if providerSub.Status == domain.SubscriptionStatusCanceled {
		status = domain.SubscriptionStatusCanceled
	}
	sub := &domain.Subscription{
		ID:       providerSub.ID,
		UserID:   userIDFromClientReference(session.ClientReferenceID),
		Customer: providerSub.Customer,
		Status:   status,
		Currency: providerSub.Currency,
		Info:     subscriptionSnapshot(providerSub),
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("upsert subscription %s: %w", providerSub.ID, err)
	}

	subscriptionID := providerSub.ID
	return s.settleCheckoutSucceeded(ctx, event, session, snapshot, &subscriptionID)
}

// settleCheckoutSucceeded performs the conditional terminal write and
// classifies the outcome when the write matched nothing.
func (s *Service) settleCheckoutSucceeded(ctx context.Context, event domain.WebhookEvent, session paymentclient.CheckoutSession, snapshot *domain.ChargeInfo, subscriptionID *string) (domain.ReconcileResult, error) {
	applied, err := s.repo.SettleCheckoutSucceeded(ctx, store.SettleCheckoutParams{
		CheckoutID:     session.ID,
		UserID:         userIDFromClientReference(session.ClientReferenceID),
		Mode:           session.Mode,
		AmountTotal:    session.AmountTotal,
		Currency:       session.Currency,
		SubscriptionID: subscriptionID,
		ChargeInfo:     snapshot,
	})
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("settle checkout %s: %w", session.ID, err)
	}
	if applied {
		log.Printf("level=info component=reconciler msg=\"checkout succeeded\" event_id=%s checkout_id=%s mode=%s amount=%d", event.ID, session.ID, session.Mode, session.AmountTotal)
		s.publishOrderEvent(ctx, "payment.order.succeeded", session.ID, session.Mode, session.AmountTotal)
		return domain.ReconcileResult{Outcome: domain.OutcomeApplied}, nil
	}

	// The conditional upsert matched nothing, so the row exists in a
	// non-'created' state. Classify it for the caller.
	checkout, err := s.repo.FindCheckoutByID(ctx, session.ID)
	if err != nil {
		if errors.Is(err, store.ErrCheckoutNotFound) {
			return domain.ReconcileResult{Outcome: domain.OutcomeAlreadyApplied}, nil
		}
		return domain.ReconcileResult{}, fmt.Errorf("classify settled checkout %s: %w", session.ID, err)
	}
	switch checkout.Status {
	case domain.CheckoutStatusSucceeded:
		return domain.ReconcileResult{Outcome: domain.OutcomeAlreadyApplied}, nil
	default:
		// 'expired' or 'refunded': a completion event must never flip these back.
		return s.reject(event, "checkout already "+checkout.Status), nil
	}
}

// reconcileChargeRefunded applies a refund to the checkout holding the charge.
// The charge is re-queried so the transition rests on the provider's current
// view rather than the event body, and the matching checkout must currently be
// 'succeeded'; anything else is a harmless or rejected delivery.
func (s *Service) reconcileChargeRefunded(ctx context.Context, event domain.WebhookEvent, payload paymentclient.Charge) (domain.ReconcileResult, error) {
	charge, err := s.correlator.ChargeByID(ctx, payload.ID)
	if errors.Is(err, paymentclient.ErrNotFound) {
		return s.reject(event, "refunded charge not found at provider"), nil
	}
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("charge lookup %s: %w", payload.ID, err)
	}
	if !charge.Refunded && charge.AmountRefunded == 0 {
		return s.reject(event, "refund not confirmed by provider"), nil
	}

	checkout, err := s.repo.FindCheckoutByChargeID(ctx, charge.ID)
	if errors.Is(err, store.ErrCheckoutNotFound) {
		return s.reject(event, "no checkout references the refunded charge"), nil
	}
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("checkout lookup by charge %s: %w", charge.ID, err)
	}

	switch checkout.Status {
	case domain.CheckoutStatusRefunded:
		return domain.ReconcileResult{Outcome: domain.OutcomeAlreadyApplied}, nil
	case domain.CheckoutStatusSucceeded:
		applied, err := s.repo.MarkCheckoutRefunded(ctx, charge.ID, *chargeSnapshot(charge))
		if err != nil {
			return domain.ReconcileResult{}, fmt.Errorf("mark checkout refunded for charge %s: %w", charge.ID, err)
		}
		if !applied {
			// A concurrent delivery won the conditional update.
			return domain.ReconcileResult{Outcome: domain.OutcomeAlreadyApplied}, nil
		}
		log.Printf("level=info component=reconciler msg=\"checkout refunded\" event_id=%s checkout_id=%s charge_id=%s amount_refunded=%d", event.ID, checkout.ID, charge.ID, charge.AmountRefunded)
		s.publishOrderEvent(ctx, "payment.order.refunded", checkout.ID, checkout.Mode, charge.AmountRefunded)
		return domain.ReconcileResult{Outcome: domain.OutcomeApplied}, nil
	default:
		return s.reject(event, "refund requires a succeeded checkout, found "+checkout.Status), nil
	}
}

// reconcileCheckoutExpired marks an abandoned checkout 'expired'. Only a
// 'created' row matches; a session that already settled is an already-resolved
// no-op.
func (s *Service) reconcileCheckoutExpired(ctx context.Context, event domain.WebhookEvent, session paymentclient.CheckoutSession) (domain.ReconcileResult, error) {
	applied, err := s.repo.MarkCheckoutExpired(ctx, session.ID)
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("mark checkout expired %s: %w", session.ID, err)
	}
	if applied {
		log.Printf("level=info component=reconciler msg=\"checkout expired\" event_id=%s checkout_id=%s", event.ID, session.ID)
		return domain.ReconcileResult{Outcome: domain.OutcomeApplied}, nil
	}

	if _, err := s.repo.FindCheckoutByID(ctx, session.ID); err != nil {
		if errors.Is(err, store.ErrCheckoutNotFound) {
			return s.reject(event, "expired checkout is unknown locally"), nil
		}
		return domain.ReconcileResult{}, fmt.Errorf("classify expired checkout %s: %w", session.ID, err)
	}
	return domain.ReconcileResult{Outcome: domain.OutcomeAlreadyApplied}, nil
}

// reconcileSubscriptionDeleted cancels a local subscription only after the
// provider's current status is re-queried as canceled. The event body's own
// status is never trusted: deletion events can race provider-side renewal
// retries, and a latched wrong cancellation is worse than an extra read.
func (s *Service) reconcileSubscriptionDeleted(ctx context.Context, event domain.WebhookEvent, payload paymentclient.Subscription) (domain.ReconcileResult, error) {
	providerSub, err := s.correlator.SubscriptionByID(ctx, payload.ID)
	if errors.Is(err, paymentclient.ErrNotFound) {
		return s.reject(event, "deleted subscription not found at provider"), nil
	}
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("subscription lookup %s: %w", payload.ID, err)
	}
	if providerSub.Status != domain.SubscriptionStatusCanceled {
		return s.reject(event, "provider still reports subscription "+providerSub.Status), nil
	}

	info := subscriptionSnapshot(providerSub)
	local, err := s.repo.FindSubscriptionByID(ctx, providerSub.ID)
	if errors.Is(err, store.ErrSubscriptionNotFound) {
		// No local row (the activating checkout was never reconciled here);
		// record the canceled subscription so later lookups agree with the provider.
		sub := &domain.Subscription{
			ID:       providerSub.ID,
			Customer: providerSub.Customer,
			Status:   domain.SubscriptionStatusCanceled,
			Currency: providerSub.Currency,
			Info:     info,
		}
		if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
			return domain.ReconcileResult{}, fmt.Errorf("upsert canceled subscription %s: %w", providerSub.ID, err)
		}
		log.Printf("level=info component=reconciler msg=\"subscription canceled (no prior local row)\" event_id=%s subscription_id=%s", event.ID, providerSub.ID)
		s.publishSubscriptionEvent(ctx, "payment.subscription.canceled", providerSub.ID, sub.UserID)
		return domain.ReconcileResult{Outcome: domain.OutcomeApplied}, nil
	}
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("local subscription lookup %s: %w", providerSub.ID, err)
	}
	if local.Status == domain.SubscriptionStatusCanceled {
		return domain.ReconcileResult{Outcome: domain.OutcomeAlreadyApplied}, nil
	}

	applied, err := s.repo.MarkSubscriptionCanceled(ctx, providerSub.ID, info)
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("mark subscription canceled %s: %w", providerSub.ID, err)
	}
	if !applied {
		return domain.ReconcileResult{Outcome: domain.OutcomeAlreadyApplied}, nil
	}
	log.Printf("level=info component=reconciler msg=\"subscription canceled\" event_id=%s subscription_id=%s user_id=%s", event.ID, providerSub.ID, local.UserID)
	s.publishSubscriptionEvent(ctx, "payment.subscription.canceled", providerSub.ID, local.UserID)
	return domain.ReconcileResult{Outcome: domain.OutcomeApplied}, nil
}

// reject logs and drops an event that a business rule refused. These are normal
// outcomes of an eventually-consistent webhook stream, not failures; returning
// them as rejections keeps the provider from retrying forever on an event that
// will never become valid.
func (s *Service) reject(event domain.WebhookEvent, reason string) domain.ReconcileResult {
	log.Printf("level=warn component=reconciler msg=\"event rejected\" event_id=%s event_type=%s reason=%q", event.ID, event.Type, reason)
	return domain.ReconcileResult{Outcome: domain.OutcomeRejected, Reason: reason}
}

func chargeSnapshot(charge *paymentclient.Charge) *domain.ChargeInfo {
	return &domain.ChargeInfo{
		ChargeID:       charge.ID,
		PaymentIntent:  charge.PaymentIntent,
		Amount:         charge.Amount,
		AmountRefunded: charge.AmountRefunded,
		Paid:           charge.Paid,
		Refunded:       charge.Refunded,
	}
}

func subscriptionSnapshot(sub *paymentclient.Subscription) domain.SubscriptionInfo {
	return domain.SubscriptionInfo{
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         sub.CanceledAt,
	}
}

// publishOrderEvent emits a broker notification after an applied transition.
// Publishing is best-effort; a broker failure never fails reconciliation.
func (s *Service) publishOrderEvent(ctx context.Context, routingKey, checkoutID, mode string, amount int64) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.OrderEvent{
		EventID:    uuid.New(),
		CheckoutID: checkoutID,
		Mode:       mode,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.eventProducer.PublishOrderEvent(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=reconciler msg=\"order event publish failed\" routing_key=%s checkout_id=%s err=%v", routingKey, checkoutID, err)
	}
}

func (s *Service) publishSubscriptionEvent(ctx context.Context, routingKey, subscriptionID, userID string) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.SubscriptionEvent{
		EventID:        uuid.New(),
		SubscriptionID: subscriptionID,
		UserID:         userID,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.eventProducer.PublishSubscriptionEvent(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=reconciler msg=\"subscription event publish failed\" routing_key=%s subscription_id=%s err=%v", routingKey, subscriptionID, err)
	}
}
