package domain

import "encoding/json"

// WebhookEventType is the closed set of provider event kinds the reconciliation
// engine understands. Routing is an exhaustive switch over these values, so a new
// event type is a compile-time decision rather than a silently ignored string.
type WebhookEventType int

const (
	EventUnknown WebhookEventType = iota
	EventCheckoutCompleted
	EventChargeRefunded
	EventCheckoutExpired
	EventSubscriptionDeleted
)

// Raw provider event type strings.
const (
	eventTypeCheckoutCompleted   = "checkout.session.completed"
	eventTypeChargeRefunded      = "charge.refunded"
	eventTypeCheckoutExpired     = "checkout.session.expired"
	eventTypeSubscriptionDeleted = "customer.subscription.deleted"
)

// ParseWebhookEventType maps a provider event type string to the closed enum.
// Anything not listed maps to EventUnknown, which the dispatcher treats as a
// no-op success for forward compatibility.
func ParseWebhookEventType(raw string) WebhookEventType {
	switch raw {
	case eventTypeCheckoutCompleted:
		return EventCheckoutCompleted
	case eventTypeChargeRefunded:
		return EventChargeRefunded
	case eventTypeCheckoutExpired:
		return EventCheckoutExpired
	case eventTypeSubscriptionDeleted:
		return EventSubscriptionDeleted
	default:
		return EventUnknown
	}
}

// WebhookEvent is the decoded, already-authenticated event envelope handed to
// the dispatcher. It is transient: used once, never persisted. Duplicate
// deliveries are expected and must be harmless.
type WebhookEvent struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Created int64            `json:"created"` // epoch seconds
	Data    WebhookEventData `json:"data"`
}

// WebhookEventData wraps the provider-shaped payload. The object is decoded
// per event type by the dispatcher.
type WebhookEventData struct {
	Object json.RawMessage `json:"object"`
}

// ReconcileOutcome classifies what a reconciliation attempt did. Distinguishing
// AlreadyApplied from Rejected lets callers and tests assert on which case
// occurred instead of inferring it from logs.
type ReconcileOutcome string

const (
	// OutcomeApplied means this delivery performed the state transition.
	OutcomeApplied ReconcileOutcome = "applied"
	// OutcomeAlreadyApplied means a previous delivery already performed it;
	// the conditional write matched nothing and that is fine.
	OutcomeAlreadyApplied ReconcileOutcome = "already_applied"
	// OutcomeRejected means a business rule refused the event (unverified
	// payment, missing correlation, unconfirmed cancellation). The event is
	// logged and dropped; local state is unchanged.
	OutcomeRejected ReconcileOutcome = "rejected"
	// OutcomeSkipped means the event type is not one the engine handles.
	OutcomeSkipped ReconcileOutcome = "skipped"
)

// ReconcileResult is returned by the dispatcher for every event. Reason is set
// for rejections.
type ReconcileResult struct {
	Outcome ReconcileOutcome `json:"outcome"`
	Reason  string           `json:"reason,omitempty"`
}
