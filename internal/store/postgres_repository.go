/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to checkouts and subscriptions.
 *
 * Status transitions are expressed as conditional writes: the expected current
 * status is part of the WHERE clause (or the ON CONFLICT update filter), and the
 * rows-affected count is surfaced to the caller. Two concurrent deliveries of the
 * same event will have exactly one of them modify the row; the other matches
 * nothing and reports that.
 *
 * @dependencies
 * - context, encoding/json, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorly/payment-service/internal/domain"
)

var (
	ErrCheckoutNotFound     = errors.New("checkout not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const checkoutColumns = `id, user_id, mode, status, amount_total, currency, subscription_id, charge_info::text, created_at, updated_at`

// CreateCheckout inserts the initial 'created' row for a new checkout session.
func (r *PostgresRepository) CreateCheckout(ctx context.Context, checkout *domain.Checkout) error {
	query := `
		INSERT INTO checkouts (id, user_id, mode, status, amount_total, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query,
		checkout.ID,
		checkout.UserID,
		checkout.Mode,
		checkout.Status,
		checkout.AmountTotal,
		checkout.Currency,
	)
	if err != nil {
		return fmt.Errorf("failed to insert checkout: %w", err)
	}
	return nil
}

// FindCheckoutByID retrieves a checkout by its provider session id.
func (r *PostgresRepository) FindCheckoutByID(ctx context.Context, checkoutID string) (*domain.Checkout, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE id = $1`
	return r.scanCheckout(r.db.QueryRow(ctx, query, checkoutID))
}

// FindCheckoutByChargeID retrieves the checkout whose embedded charge snapshot
// carries the given charge id.
func (r *PostgresRepository) FindCheckoutByChargeID(ctx context.Context, chargeID string) (*domain.Checkout, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE charge_info->>'charge_id' = $1`
	return r.scanCheckout(r.db.QueryRow(ctx, query, chargeID))
}

// ListCheckoutsByUserID returns a user's checkouts, newest first.
func (r *PostgresRepository) ListCheckoutsByUserID(ctx context.Context, userID string, opts domain.OrderListOptions) ([]domain.Checkout, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + checkoutColumns + `
		FROM checkouts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checkouts []domain.Checkout
	for rows.Next() {
		checkout, err := r.scanCheckout(rows)
		if err != nil {
			return nil, err
		}
		checkouts = append(checkouts, *checkout)
	}
	return checkouts, rows.Err()
}

// SettleCheckoutSucceeded writes the terminal 'succeeded' state. The row is
// inserted if session creation and webhook delivery raced; an existing row is
// only promoted from 'created', so 'expired' and 'refunded' rows can never be
// flipped back by a late or replayed completion event.
func (r *PostgresRepository) SettleCheckoutSucceeded(ctx context.Context, params SettleCheckoutParams) (bool, error) {
	chargeJSON, err := marshalChargeInfo(params.ChargeInfo)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO checkouts (id, user_id, mode, status, amount_total, currency, subscription_id, charge_info, created_at, updated_at)
		VALUES ($1, $2, $3, 'succeeded', $4, $5, $6, $7::jsonb, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET status          = 'succeeded',
		    subscription_id = COALESCE(EXCLUDED.subscription_id, checkouts.subscription_id),
		    charge_info     = EXCLUDED.charge_info,
		    updated_at      = NOW()
		WHERE checkouts.status = 'created'
	`
	tag, err := r.db.Exec(ctx, query,
		params.CheckoutID,
		params.UserID,
		params.Mode,
		params.AmountTotal,
		params.Currency,
		params.SubscriptionID,
		chargeJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to settle checkout %s: %w", params.CheckoutID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCheckoutRefunded flips 'succeeded' -> 'refunded' for the checkout holding
// the given charge id.
func (r *PostgresRepository) MarkCheckoutRefunded(ctx context.Context, chargeID string, charge domain.ChargeInfo) (bool, error) {
	chargeJSON, err := marshalChargeInfo(&charge)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE checkouts
		SET status = 'refunded', charge_info = $2::jsonb, updated_at = NOW()
		WHERE charge_info->>'charge_id' = $1 AND status = 'succeeded'
	`
	tag, err := r.db.Exec(ctx, query, chargeID, chargeJSON)
	if err != nil {
		return false, fmt.Errorf("failed to mark checkout refunded for charge %s: %w", chargeID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCheckoutExpired flips 'created' -> 'expired'.
func (r *PostgresRepository) MarkCheckoutExpired(ctx context.Context, checkoutID string) (bool, error) {
	query := `
		UPDATE checkouts
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'created'
	`
	tag, err := r.db.Exec(ctx, query, checkoutID)
	if err != nil {
		return false, fmt.Errorf("failed to mark checkout expired %s: %w", checkoutID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertSubscription creates or overwrites the mutable fields of a
// subscription row. 'canceled' is terminal: an existing canceled row is never
// overwritten, so a replayed activation cannot resurrect it.
func (r *PostgresRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	infoJSON, err := json.Marshal(sub.Info)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription info: %w", err)
	}

	query := `
		INSERT INTO subscriptions (id, user_id, customer, status, currency, info, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET user_id    = CASE WHEN EXCLUDED.user_id <> '' THEN EXCLUDED.user_id ELSE subscriptions.user_id END,
		    customer   = EXCLUDED.customer,
		    status     = EXCLUDED.status,
		    currency   = EXCLUDED.currency,
		    info       = EXCLUDED.info,
		    updated_at = NOW()
		WHERE subscriptions.status <> 'canceled'
	`
	_, err = r.db.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Customer,
		sub.Status,
		sub.Currency,
		string(infoJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription %s: %w", sub.ID, err)
	}
	return nil
}

// FindSubscriptionByID retrieves a subscription by its provider id.
func (r *PostgresRepository) FindSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	query := `
		SELECT id, user_id, customer, status, currency, info::text, created_at, updated_at
		FROM subscriptions
		WHERE id = $1
	`
	return r.scanSubscription(r.db.QueryRow(ctx, query, subscriptionID))
}

// ListSubscriptionsByUserID returns a user's subscriptions, newest first.
func (r *PostgresRepository) ListSubscriptionsByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	query := `
		SELECT id, user_id, customer, status, currency, info::text, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := r.scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// MarkSubscriptionCanceled flips 'active' -> 'canceled' and stores the
// provider-confirmed snapshot.
func (r *PostgresRepository) MarkSubscriptionCanceled(ctx context.Context, subscriptionID string, info domain.SubscriptionInfo) (bool, error) {
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return false, fmt.Errorf("failed to marshal subscription info: %w", err)
	}

	query := `
		UPDATE subscriptions
		SET status = 'canceled', info = $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`
	tag, err := r.db.Exec(ctx, query, subscriptionID, string(infoJSON))
	if err != nil {
		return false, fmt.Errorf("failed to mark subscription canceled %s: %w", subscriptionID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanCheckout(row rowScanner) (*domain.Checkout, error) {
	var checkout domain.Checkout
	var chargeJSON *string
	err := row.Scan(
		&checkout.ID,
		&checkout.UserID,
		&checkout.Mode,
		&checkout.Status,
		&checkout.AmountTotal,
		&checkout.Currency,
		&checkout.SubscriptionID,
		&chargeJSON,
		&checkout.CreatedAt,
		&checkout.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}
	if chargeJSON != nil && *chargeJSON != "" {
		var info domain.ChargeInfo
		if err := json.Unmarshal([]byte(*chargeJSON), &info); err != nil {
			return nil, fmt.Errorf("failed to decode charge snapshot for checkout %s: %w", checkout.ID, err)
		}
		checkout.ChargeInfo = &info
	}
	return &checkout, nil
}

func (r *PostgresRepository) scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var sub domain.Subscription
	var infoJSON string
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Customer,
		&sub.Status,
		&sub.Currency,
		&infoJSON,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if infoJSON != "" {
		if err := json.Unmarshal([]byte(infoJSON), &sub.Info); err != nil {
			return nil, fmt.Errorf("failed to decode subscription snapshot %s: %w", sub.ID, err)
		}
	}
	return &sub, nil
}

func marshalChargeInfo(info *domain.ChargeInfo) (*string, error) {
	if info == nil {
		return nil, nil
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge snapshot: %w", err)
	}
	encoded := string(raw)
	return &encoded, nil
}
