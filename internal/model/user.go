package model

import "time"

// UserProfile is the application-side profile of an authenticated user.
type UserProfile struct {
	UserID           string    `db:"user_id" json:"user_id"`
	Email            string    `db:"email" json:"email"`
	Name             string    `db:"name" json:"name"`
	AvatarURL        string    `db:"avatar_url" json:"avatar_url"`
	Phone            *string   `db:"phone" json:"phone,omitempty"`
	IsPremium        bool      `db:"is_premium" json:"is_premium"`
	FreeScansUsed    int       `db:"free_scans_used" json:"free_scans_used"`
	StripeCustomerID *string   `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// QuotaState gates free-tier use of email detection.
type QuotaState struct {
	IsPremium     bool
	FreeScansUsed int
}

// Quota returns the user's scan quota state.
func (u *UserProfile) Quota() QuotaState {
	return QuotaState{IsPremium: u.IsPremium, FreeScansUsed: u.FreeScansUsed}
}
