/**
 * @description
 * The webhook dispatcher routes a decoded, already-authenticated provider event
 * to the reconciliation path for its type. Routing is an exhaustive switch over
 * the closed event-type enum; event types the engine does not handle are a
 * skipped success so new provider event types never break delivery.
 *
 * The dispatcher itself is not idempotent and does not try to be: it cannot know
 * whether a call is a re-delivery. Idempotency is owned by the reconciler's
 * conditional writes.
 *
 * @dependencies
 * - context, encoding/json, log: Standard Go libraries.
 * - internal/domain, pkg/paymentclient: Event envelope and provider payload shapes.
 */

package app

import (
	"context"
	"encoding/json"
	"log"

	"github.com/creatorly/payment-service/internal/domain"
	"github.com/creatorly/payment-service/pkg/paymentclient"
)

// DispatchWebhookEvent applies one provider event to local state and reports
// what happened. Business-rule rejections come back as an OutcomeRejected result
// with a nil error; only provider/store I/O failures produce a non-nil error,
// which the HTTP layer turns into a retryable failure status.
func (s *Service) DispatchWebhookEvent(ctx context.Context, event domain.WebhookEvent) (domain.ReconcileResult, error) {
	switch domain.ParseWebhookEventType(event.Type) {
	case domain.EventCheckoutCompleted:
		var session paymentclient.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return s.rejectMalformed(event, err), nil
		}
		return s.reconcileCheckoutCompleted(ctx, event, session)

	case domain.EventChargeRefunded:
		var charge paymentclient.Charge
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
			return s.rejectMalformed(event, err), nil
		}
		return s.reconcileChargeRefunded(ctx, event, charge)

	case domain.EventCheckoutExpired:
		var session paymentclient.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return s.rejectMalformed(event, err), nil
		}
		return s.reconcileCheckoutExpired(ctx, event, session)

	case domain.EventSubscriptionDeleted:
		var sub paymentclient.Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return s.rejectMalformed(event, err), nil
		}
		return s.reconcileSubscriptionDeleted(ctx, event, sub)

	case domain.EventUnknown:
		log.Printf("level=info component=dispatcher msg=\"skipping unhandled event type\" event_id=%s event_type=%s", event.ID, event.Type)
		return domain.ReconcileResult{Outcome: domain.OutcomeSkipped}, nil
	}

	return domain.ReconcileResult{Outcome: domain.OutcomeSkipped}, nil
}

// rejectMalformed drops an event whose payload does not decode as the shape its
// type promises. Redelivering it would fail identically, so it is not surfaced
// as a retryable error.
func (s *Service) rejectMalformed(event domain.WebhookEvent, err error) domain.ReconcileResult {
	log.Printf("level=warn component=dispatcher msg=\"malformed event payload\" event_id=%s event_type=%s err=%v", event.ID, event.Type, err)
	return domain.ReconcileResult{Outcome: domain.OutcomeRejected, Reason: "malformed event payload"}
}
