/**
 * @description
 * This file contains the HTTP handler for provider webhook deliveries. Webhooks
 * are authenticated with an HMAC-SHA256 signature rather than a bearer token,
 * since they originate from the payment provider and not from a user session.
 *
 * The handler deliberately returns 2xx for every business outcome, including
 * rejections: the provider retries non-2xx responses, and a delivery that was
 * rejected on business grounds will be rejected identically on redelivery.
 * Only transient I/O failures return 5xx so that the provider redelivers.
 */

package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/creatorly/payment-service/internal/app"
	"github.com/creatorly/payment-service/internal/domain"
)

// maxWebhookBodyBytes caps the webhook payload size we are willing to read.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandlers holds the dependencies for the webhook endpoint.
type WebhookHandlers struct {
	service  *app.Service
	verifier *WebhookVerifier
}

// NewWebhookHandlers creates a new instance of WebhookHandlers.
func NewWebhookHandlers(service *app.Service, verifier *WebhookVerifier) *WebhookHandlers {
	return &WebhookHandlers{service: service, verifier: verifier}
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
}

// HandleProviderWebhook receives an event delivery from the payment provider,
// verifies its signature, and hands it to the reconciliation service.
func (h *WebhookHandlers) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
	if err != nil {
		log.Printf("level=warn component=webhook outcome=reject reason=body_read_failed err=%v", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxWebhookBodyBytes {
		log.Printf("level=warn component=webhook outcome=reject reason=body_too_large size=%d", len(body))
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
			log.Printf("level=warn component=webhook outcome=reject reason=invalid_signature err=%v", err)
			http.Error(w, "Invalid webhook signature", http.StatusUnauthorized)
			return
		}
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=webhook outcome=reject reason=invalid_json err=%v", err)
		// Malformed JSON will not become valid on redelivery. Acknowledge it.
		writeWebhookResponse(w, http.StatusOK, webhookResponse{
			Received: true,
			Outcome:  string(domain.OutcomeRejected),
			Reason:   "malformed event payload",
		})
		return
	}

	result, err := h.service.DispatchWebhookEvent(r.Context(), event)
	if err != nil {
		// Transient failure; a non-2xx response asks the provider to redeliver.
		log.Printf("level=error component=webhook event_id=%s outcome=retry err=%v", event.ID, err)
		http.Error(w, "Event processing failed", http.StatusInternalServerError)
		return
	}

	log.Printf("level=info component=webhook event_id=%s outcome=%s reason=%q", event.ID, result.Outcome, result.Reason)
	writeWebhookResponse(w, http.StatusOK, webhookResponse{
		Received: true,
		Outcome:  string(result.Outcome),
		Reason:   result.Reason,
	})
}

func writeWebhookResponse(w http.ResponseWriter, status int, resp webhookResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
