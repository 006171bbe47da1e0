package api

import (
	"errors"
	"testing"
	"time"
)

func newTestVerifier(secret string, now time.Time) *WebhookVerifier {
	v := NewWebhookVerifier(secret, 5*time.Minute)
	v.now = func() time.Time { return now }
	return v
}

func TestWebhookVerifier_AcceptsValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier("whsec_test", now)
	body := []byte(`{"id":"evt_1"}`)

	header := v.Sign(now.Unix(), body)
	if err := v.Verify(body, header); err != nil {
		t.Fatalf("expected valid signature to verify, got %v", err)
	}
}

func TestWebhookVerifier_RejectsWrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	signer := newTestVerifier("whsec_other", now)
	v := newTestVerifier("whsec_test", now)
	body := []byte(`{"id":"evt_1"}`)

	header := signer.Sign(now.Unix(), body)
	if err := v.Verify(body, header); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestWebhookVerifier_RejectsTamperedBody(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier("whsec_test", now)

	header := v.Sign(now.Unix(), []byte(`{"id":"evt_1"}`))
	if err := v.Verify([]byte(`{"id":"evt_2"}`), header); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch for tampered body, got %v", err)
	}
}

func TestWebhookVerifier_RejectsStaleTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier("whsec_test", now)
	body := []byte(`{"id":"evt_1"}`)

	stale := now.Add(-10 * time.Minute).Unix()
	header := v.Sign(stale, body)
	if err := v.Verify(body, header); !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected expired signature, got %v", err)
	}
}

func TestWebhookVerifier_RejectsFutureTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier("whsec_test", now)
	body := []byte(`{"id":"evt_1"}`)

	future := now.Add(10 * time.Minute).Unix()
	header := v.Sign(future, body)
	if err := v.Verify(body, header); !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected expired signature for future timestamp, got %v", err)
	}
}

func TestWebhookVerifier_RejectsMalformedHeaders(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier("whsec_test", now)
	body := []byte(`{"id":"evt_1"}`)

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "missing header", header: "", wantErr: ErrMissingSignature},
		{name: "no key-value pairs", header: "garbage", wantErr: ErrMalformedSignature},
		{name: "missing signature part", header: "t=1700000000", wantErr: ErrMalformedSignature},
		{name: "missing timestamp part", header: "v1=deadbeef", wantErr: ErrMalformedSignature},
		{name: "non-numeric timestamp", header: "t=abc,v1=deadbeef", wantErr: ErrMalformedSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Verify(body, tt.header); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWebhookVerifier_AcceptsAnyMatchingV1AmongSeveral(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier("whsec_test", now)
	body := []byte(`{"id":"evt_1"}`)

	// Key rotation sends multiple v1 entries; one valid one is enough.
	valid := v.Sign(now.Unix(), body)
	header := "t=1700000000,v1=0000," + valid[len("t=1700000000,"):]
	if err := v.Verify(body, header); err != nil {
		t.Fatalf("expected one matching signature among several to verify, got %v", err)
	}
}
