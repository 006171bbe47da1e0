/**
 * @description
 * This file contains the HTTP handlers for the payment-service's user-facing API
 * endpoints. Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP response.
 * They act as the bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameters.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/creatorly/payment-service/internal/app"
	"github.com/creatorly/payment-service/internal/domain"
	"github.com/creatorly/payment-service/internal/store"
)

// PaymentHandlers holds the application service and rate limiter that handlers use.
type PaymentHandlers struct {
	service                    *app.Service
	limiter                    *app.RedisCheckoutRateLimiter
	checkoutRateLimitPerMinute int
}

// NewPaymentHandlers creates a new instance of PaymentHandlers. The limiter may
// be nil, in which case checkout creation is not rate limited.
func NewPaymentHandlers(service *app.Service, limiter *app.RedisCheckoutRateLimiter, checkoutRateLimitPerMinute int) *PaymentHandlers {
	return &PaymentHandlers{
		service:                    service,
		limiter:                    limiter,
		checkoutRateLimitPerMinute: checkoutRateLimitPerMinute,
	}
}

// CreateCheckoutHandler handles requests to open a new checkout session.
func (h *PaymentHandlers) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	if h.limiter != nil && h.checkoutRateLimitPerMinute > 0 {
		count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), "checkout_create", userID, h.checkoutRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Printf("level=warn component=api endpoint=create_checkout msg=\"rate limiter unavailable; allowing request\" user_id=%s err=%v", userID, err)
		} else if count > h.checkoutRateLimitPerMinute {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many checkout attempts. Please try again shortly.")
			return
		}
	}

	var req domain.CreateCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_checkout outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.CreateCheckout(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_checkout outcome=failed user_id=%s err=%v", userID, err)
		if errors.Is(err, app.ErrInvalidCheckoutMode) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to create checkout session", http.StatusBadGateway)
		return
	}

	log.Printf("level=info component=api endpoint=create_checkout outcome=accepted user_id=%s checkout_id=%s", userID, resp.CheckoutID)
	h.writeJSON(w, http.StatusCreated, resp)
}

// ListOrdersHandler returns the authenticated user's checkout history.
func (h *PaymentHandlers) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	opts := domain.OrderListOptions{
		Limit:  queryInt(r, "limit", 20),
		Offset: queryInt(r, "offset", 0),
	}
	orders, err := h.service.ListOrders(r.Context(), userID, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_orders user_id=%s err=%v", userID, err)
		http.Error(w, "Failed to list orders", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []domain.Checkout{}
	}
	h.writeJSON(w, http.StatusOK, orders)
}

// GetOrderHandler returns a single checkout owned by the authenticated user.
func (h *PaymentHandlers) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	checkoutID := chi.URLParam(r, "checkoutID")
	order, err := h.service.GetOrder(r.Context(), userID, checkoutID)
	if err != nil {
		if errors.Is(err, store.ErrCheckoutNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		log.Printf("level=error component=api endpoint=get_order user_id=%s checkout_id=%s err=%v", userID, checkoutID, err)
		http.Error(w, "Failed to fetch order", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// ListSubscriptionsHandler returns the authenticated user's subscriptions.
func (h *PaymentHandlers) ListSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	subs, err := h.service.ListSubscriptions(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_subscriptions user_id=%s err=%v", userID, err)
		http.Error(w, "Failed to list subscriptions", http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	h.writeJSON(w, http.StatusOK, subs)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
