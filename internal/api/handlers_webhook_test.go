package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/creatorly/payment-service/internal/app"
	"github.com/creatorly/payment-service/internal/domain"
)

func newWebhookTestHandler(t *testing.T, now time.Time) (*WebhookHandlers, *WebhookVerifier) {
	t.Helper()
	verifier := NewWebhookVerifier("whsec_test", 5*time.Minute)
	verifier.now = func() time.Time { return now }
	service := app.NewService(nil, nil, nil, nil)
	return NewWebhookHandlers(service, verifier), verifier
}

func TestHandleProviderWebhook_RejectsInvalidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h, _ := newWebhookTestHandler(t, now)

	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "t=1700000000,v1=deadbeef")
	rec := httptest.NewRecorder()

	h.HandleProviderWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
}

func TestHandleProviderWebhook_MissingSignatureIsUnauthorized(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h, _ := newWebhookTestHandler(t, now)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	h.HandleProviderWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}
}

func TestHandleProviderWebhook_MalformedJSONIsAcknowledgedAsRejected(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h, verifier := newWebhookTestHandler(t, now)

	body := []byte(`{"id":`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, verifier.Sign(now.Unix(), body))
	rec := httptest.NewRecorder()

	h.HandleProviderWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 so the provider stops redelivering, got %d", rec.Code)
	}
	var resp webhookResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Outcome != string(domain.OutcomeRejected) {
		t.Fatalf("expected rejected outcome, got %q", resp.Outcome)
	}
}

func TestHandleProviderWebhook_UnhandledEventTypeIsSkipped(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h, verifier := newWebhookTestHandler(t, now)

	body := []byte(`{"id":"evt_1","type":"invoice.created","data":{"object":{}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, verifier.Sign(now.Unix(), body))
	rec := httptest.NewRecorder()

	h.HandleProviderWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for skipped event, got %d", rec.Code)
	}
	var resp webhookResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Received {
		t.Fatal("expected received=true")
	}
	if resp.Outcome != string(domain.OutcomeSkipped) {
		t.Fatalf("expected skipped outcome, got %q", resp.Outcome)
	}
}

func TestHandleProviderWebhook_OversizedBodyIsRejected(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h, _ := newWebhookTestHandler(t, now)

	body := bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleProviderWebhook(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized body, got %d", rec.Code)
	}
}
