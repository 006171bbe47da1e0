/**
 * @description
 * This file implements verification of the provider's webhook signature scheme.
 * Each delivery carries a header of the form:
 *
 *   Payment-Signature: t=<unix_timestamp>,v1=<hex_hmac>
 *
 * where the HMAC-SHA256 is computed over "<timestamp>.<raw_body>" using the
 * shared signing secret. The timestamp is checked against a tolerance window
 * to limit replay of captured deliveries.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the header the provider uses to carry the signature.
const SignatureHeader = "Payment-Signature"

// DefaultSignatureTolerance bounds how old a signed timestamp may be.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature   = errors.New("webhook: missing signature header")
	ErrMalformedSignature = errors.New("webhook: malformed signature header")
	ErrSignatureExpired   = errors.New("webhook: signature timestamp outside tolerance")
	ErrSignatureMismatch  = errors.New("webhook: signature mismatch")
)

// WebhookVerifier checks webhook deliveries against the shared signing secret.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier creates a verifier for the given signing secret. A
// non-positive tolerance falls back to DefaultSignatureTolerance.
func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &WebhookVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify checks the signature header against the raw request body.
func (v *WebhookVerifier) Verify(body []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			return ErrMalformedSignature
		}
		switch pair[0] {
		case "t":
			parsed, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrMalformedSignature)
			}
			timestamp = parsed
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return ErrMalformedSignature
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return ErrSignatureExpired
	}

	expected := v.compute(timestamp, body)
	for _, candidate := range signatures {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// Sign produces a signature header value for the given body. Used by tests and
// by local tooling that replays deliveries.
func (v *WebhookVerifier) Sign(timestamp int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(v.compute(timestamp, body)))
}

func (v *WebhookVerifier) compute(timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return mac.Sum(nil)
}
