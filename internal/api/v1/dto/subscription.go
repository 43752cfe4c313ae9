package dto

import (
	"time"

	"subscribe/internal/model"
	"subscribe/internal/status"
)

// SubscriptionResponseDTO is a stored subscription plus its evaluated status.
type SubscriptionResponseDTO struct {
	ID                   string              `json:"id"`
	ServiceName          string              `json:"service_name"`
	Price                float64             `json:"price"`
	Currency             string              `json:"currency"`
	RenewalPeriod        model.RenewalPeriod `json:"renewal_period"`
	BillingDate          *string             `json:"billing_date,omitempty"`
	NextBillingDate      *string             `json:"next_billing_date,omitempty"`
	TrialEndDate         *string             `json:"trial_end_date,omitempty"`
	PaymentMethod        model.PaymentMethod `json:"payment_method"`
	Category             model.Category      `json:"category"`
	AutoRenew            bool                `json:"auto_renew"`
	NotificationsEnabled bool                `json:"notifications_enabled"`
	Notes                *string             `json:"notes,omitempty"`
	ServiceURL           *string             `json:"service_url,omitempty"`
	DetectedFromEmail    bool                `json:"detected_from_email"`
	Status               status.Status       `json:"status"`
	DisplayPrice         string              `json:"display_price"`
	AnnualizedPrice      string              `json:"annualized_price"`
	NextBillingDisplay   string              `json:"next_billing_display"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// NewSubscriptionResponse evaluates sub at now.
func NewSubscriptionResponse(sub *model.Subscription, now time.Time) SubscriptionResponseDTO {
	return SubscriptionResponseDTO{
		ID:                   sub.ID,
		ServiceName:          sub.ServiceName,
		Price:                sub.Price,
		Currency:             sub.Currency,
		RenewalPeriod:        sub.RenewalPeriod,
		BillingDate:          sub.BillingDate,
		NextBillingDate:      sub.NextBillingDate,
		TrialEndDate:         sub.TrialEndDate,
		PaymentMethod:        sub.PaymentMethod,
		Category:             sub.Category,
		AutoRenew:            sub.AutoRenew,
		NotificationsEnabled: sub.NotificationsEnabled,
		Notes:                sub.Notes,
		ServiceURL:           sub.ServiceURL,
		DetectedFromEmail:    sub.DetectedFromEmail,
		Status:               status.Evaluate(sub, now),
		DisplayPrice:         status.DisplayPrice(sub, false),
		AnnualizedPrice:      status.DisplayPrice(sub, true),
		NextBillingDisplay:   status.FormatDate(sub.NextBillingDate),
		CreatedAt:            sub.CreatedAt,
		UpdatedAt:            sub.UpdatedAt,
	}
}

// NotificationsToggleDTO is the body of PATCH /subscriptions/{id}/notifications.
type NotificationsToggleDTO struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// CategorizeRequestDTO asks for a category suggestion.
type CategorizeRequestDTO struct {
	ServiceName string `json:"service_name"`
	Description string `json:"description"`
}

// CategorizeResponseDTO is the suggested category.
type CategorizeResponseDTO struct {
	Category   model.Category `json:"category"`
	Confidence float64        `json:"confidence"`
}

// ReminderTestResponseDTO reports the message ID of a sent test reminder.
type ReminderTestResponseDTO struct {
	MessageSID string `json:"message_sid"`
}
