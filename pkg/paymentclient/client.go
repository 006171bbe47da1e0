/**
 * @description
 * This package provides a client for the payment provider's HTTP API. It
 * encapsulates the logic for making authenticated requests, building request
 * bodies, and parsing responses.
 *
 * The reconciliation engine only ever reads from the provider (charge and
 * subscription lookups); the single command capability is checkout-session
 * creation used by the order-creation flow.
 *
 * @dependencies
 * - context, encoding/json, net/http, net/url, strings, time: Standard Go libraries.
 */
package paymentclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the provider reports that the requested object
// does not exist. Callers use it to distinguish "missing" from transport failure.
var ErrNotFound = errors.New("payment provider object not found")

// Client is a client for the payment provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new payment provider API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckoutSession is the provider's checkout-session object. The same shape
// arrives embedded in checkout.session.completed / expired webhook events.
type CheckoutSession struct {
	ID                string `json:"id"`
	Mode              string `json:"mode"`
	Status            string `json:"status"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	Customer          string `json:"customer"`
	PaymentIntent     string `json:"payment_intent"`
	Subscription      string `json:"subscription"`
	ClientReferenceID string `json:"client_reference_id"`
	URL               string `json:"url"`
	Created           int64  `json:"created"`
}

// Charge is the provider's record of an actual money movement.
type Charge struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
	Customer       string `json:"customer"`
	PaymentIntent  string `json:"payment_intent"`
	Paid           bool   `json:"paid"`
	Refunded       bool   `json:"refunded"`
	Created        int64  `json:"created"`
}

// Subscription is the provider's subscription object.
type Subscription struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	Customer           string `json:"customer"`
	Currency           string `json:"currency"`
	Created            int64  `json:"created"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         int64  `json:"canceled_at"`
}

// chargeSearchResult is the envelope returned by the charge search endpoint.
type chargeSearchResult struct {
	Data    []Charge `json:"data"`
	HasMore bool     `json:"has_more"`
}

// CheckoutSessionParams holds the inputs for creating a checkout session.
type CheckoutSessionParams struct {
	Mode              string
	PriceID           string
	Quantity          int64
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
}

// ErrorResponse represents an error from the provider API.
type ErrorResponse struct {
	Err struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	StatusCode int `json:"-"`
}

func (e *ErrorResponse) Error() string {
	if e.Err.Message != "" {
		return fmt.Sprintf("payment provider error: %s - %s", e.Err.Type, e.Err.Message)
	}
	return "unknown payment provider error"
}

// CreateCheckoutSession creates a new checkout session at the provider.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", params.Mode)
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", strconv.FormatInt(params.Quantity, 10))
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.ClientReferenceID != "" {
		form.Set("client_reference_id", params.ClientReferenceID)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var session CheckoutSession
	if err := c.do(req, "create_checkout_session", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCharge fetches a single charge by id.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/v1/charges/"+url.PathEscape(chargeID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create charge request: %w", err)
	}

	var charge Charge
	if err := c.do(req, "get_charge", &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// SearchCharges runs a provider-side charge search with the given query
// expression (e.g. `customer:'cus_123' AND created>1700000000`).
func (c *Client) SearchCharges(ctx context.Context, query string) ([]Charge, error) {
	endpoint := c.BaseURL + "/v1/charges/search?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create charge search request: %w", err)
	}

	var result chargeSearchResult
	if err := c.do(req, "search_charges", &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// GetSubscription fetches a single subscription by id.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/v1/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription request: %w", err)
	}

	var sub Subscription
	if err := c.do(req, "get_subscription", &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// do executes an authenticated request and decodes the JSON response into out.
func (c *Client) do(req *http.Request, op string, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=payment_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
			return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		errResp.StatusCode = resp.StatusCode
		log.Printf("level=warn component=payment_client op=%s status=%d type=%q message=%q", op, resp.StatusCode, errResp.Err.Type, errResp.Err.Message)
		return &errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
