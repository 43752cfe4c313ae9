package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"subscribe/internal/model"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a row does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

// isSubscriptionID reports whether id can match the uuid primary key.
// Anything else would fail the cast in Postgres rather than miss a row.
func isSubscriptionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// SubscriptionRepository defines methods for accessing tracked subscriptions.
// Every read and write is scoped to the owning user.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *model.Subscription) error
	GetByID(ctx context.Context, userID, id string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]model.Subscription, error)
	Update(ctx context.Context, sub *model.Subscription) error
	Delete(ctx context.Context, userID, id string) error
	SetNotifications(ctx context.Context, userID, id string, enabled bool) (*model.Subscription, error)
	// ListRemindable returns subscriptions with notifications on whose owner has a phone number.
	ListRemindable(ctx context.Context) ([]model.Subscription, error)
	// ClaimReminder marks id as reminded on day (YYYY-MM-DD). It reports
	// false when a reminder was already claimed for that day or later.
	ClaimReminder(ctx context.Context, id, day string) (bool, error)
	// ReleaseReminder undoes a claim made for day.
	ReleaseReminder(ctx context.Context, id, day string) error
}

type subscriptionRepo struct {
	db *sql.DB
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, service_name, price, currency, renewal_period,
        billing_date, next_billing_date, trial_end_date, payment_method, category,
        auto_renew, notifications_enabled, notes, service_url, detected_from_email,
        email_source_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.ServiceName,
		&s.Price,
		&s.Currency,
		&s.RenewalPeriod,
		&s.BillingDate,
		&s.NextBillingDate,
		&s.TrialEndDate,
		&s.PaymentMethod,
		&s.Category,
		&s.AutoRenew,
		&s.NotificationsEnabled,
		&s.Notes,
		&s.ServiceURL,
		&s.DetectedFromEmail,
		&s.EmailSourceID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts sub and fills in its timestamps. sub.ID must already be set.
func (r *subscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	const q = `
        INSERT INTO subscriptions (id, user_id, service_name, price, currency, renewal_period,
            billing_date, next_billing_date, trial_end_date, payment_method, category,
            auto_renew, notifications_enabled, notes, service_url, detected_from_email, email_source_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRowContext(ctx, q,
		sub.ID,
		sub.UserID,
		sub.ServiceName,
		sub.Price,
		sub.Currency,
		sub.RenewalPeriod,
		sub.BillingDate,
		sub.NextBillingDate,
		sub.TrialEndDate,
		sub.PaymentMethod,
		sub.Category,
		sub.AutoRenew,
		sub.NotificationsEnabled,
		sub.Notes,
		sub.ServiceURL,
		sub.DetectedFromEmail,
		sub.EmailSourceID,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}

func (r *subscriptionRepo) GetByID(ctx context.Context, userID, id string) (*model.Subscription, error) {
	if !isSubscriptionID(id) {
		return nil, ErrNotFound
	}
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 AND user_id = $2`
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch subscription %s: %w", id, err)
	}
	return sub, nil
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, userID string) ([]model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, userID)
}

func (r *subscriptionRepo) ListRemindable(ctx context.Context) ([]model.Subscription, error) {
	const q = `
        SELECT s.id, s.user_id, s.service_name, s.price, s.currency, s.renewal_period,
            s.billing_date, s.next_billing_date, s.trial_end_date, s.payment_method, s.category,
            s.auto_renew, s.notifications_enabled, s.notes, s.service_url, s.detected_from_email,
            s.email_source_id, s.created_at, s.updated_at
        FROM subscriptions s
        JOIN user_profiles u ON u.user_id = s.user_id
        WHERE s.notifications_enabled
          AND u.phone IS NOT NULL AND u.phone <> ''
    `
	return r.list(ctx, q)
}

func (r *subscriptionRepo) list(ctx context.Context, q string, args ...any) ([]model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions rows: %w", err)
	}
	return subs, nil
}

// Update replaces the editable fields of sub. Provenance columns are left alone.
func (r *subscriptionRepo) Update(ctx context.Context, sub *model.Subscription) error {
	if !isSubscriptionID(sub.ID) {
		return ErrNotFound
	}
	const q = `
        UPDATE subscriptions SET
            service_name = $3, price = $4, currency = $5, renewal_period = $6,
            billing_date = $7, next_billing_date = $8, trial_end_date = $9,
            payment_method = $10, category = $11, auto_renew = $12,
            notifications_enabled = $13, notes = $14, service_url = $15,
            updated_at = NOW()
        WHERE id = $1 AND user_id = $2
        RETURNING detected_from_email, email_source_id, created_at, updated_at
    `
	err := r.db.QueryRowContext(ctx, q,
		sub.ID,
		sub.UserID,
		sub.ServiceName,
		sub.Price,
		sub.Currency,
		sub.RenewalPeriod,
		sub.BillingDate,
		sub.NextBillingDate,
		sub.TrialEndDate,
		sub.PaymentMethod,
		sub.Category,
		sub.AutoRenew,
		sub.NotificationsEnabled,
		sub.Notes,
		sub.ServiceURL,
	).Scan(&sub.DetectedFromEmail, &sub.EmailSourceID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, userID, id string) error {
	if !isSubscriptionID(id) {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) SetNotifications(ctx context.Context, userID, id string, enabled bool) (*model.Subscription, error) {
	if !isSubscriptionID(id) {
		return nil, ErrNotFound
	}
	q := `UPDATE subscriptions SET notifications_enabled = $3, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
        RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, q, id, userID, enabled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("toggle notifications for subscription %s: %w", id, err)
	}
	return sub, nil
}

func (r *subscriptionRepo) ClaimReminder(ctx context.Context, id, day string) (bool, error) {
	if !isSubscriptionID(id) {
		return false, ErrNotFound
	}
	const q = `
        UPDATE subscriptions SET last_reminded_on = $2::date
        WHERE id = $1 AND (last_reminded_on IS NULL OR last_reminded_on < $2::date)
        RETURNING id
    `
	var claimed string
	err := r.db.QueryRowContext(ctx, q, id, day).Scan(&claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim reminder for subscription %s: %w", id, err)
	}
	return true, nil
}

func (r *subscriptionRepo) ReleaseReminder(ctx context.Context, id, day string) error {
	if !isSubscriptionID(id) {
		return ErrNotFound
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_reminded_on = NULL WHERE id = $1 AND last_reminded_on = $2::date`, id, day)
	if err != nil {
		return fmt.Errorf("release reminder for subscription %s: %w", id, err)
	}
	return nil
}
