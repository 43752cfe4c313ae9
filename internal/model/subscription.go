package model

import (
	"strings"
	"time"
)

// Category groups subscriptions on the dashboard.
type Category string

const (
	CategoryNews          Category = "News"
	CategoryEntertainment Category = "Entertainment"
	CategoryMusic         Category = "Music"
	CategoryShopping      Category = "Shopping"
	CategoryProductivity  Category = "Productivity"
	CategoryUtilities     Category = "Utilities"
	CategoryHealthFitness Category = "Health & Fitness"
	CategoryEducation     Category = "Education"
	CategoryFinance       Category = "Finance"
	CategoryOther         Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryNews, CategoryEntertainment, CategoryMusic, CategoryShopping, CategoryProductivity,
	CategoryUtilities, CategoryHealthFitness, CategoryEducation, CategoryFinance, CategoryOther,
}

// ParseCategory matches s against the category names, ignoring case and surrounding space.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "Card"
	PaymentPayPal       PaymentMethod = "PayPal"
	PaymentFree         PaymentMethod = "Free"
	PaymentApplePay     PaymentMethod = "Apple Pay"
	PaymentGooglePay    PaymentMethod = "Google Pay"
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
	PaymentUnknown      PaymentMethod = "Unknown"
)

var PaymentMethods = []PaymentMethod{
	PaymentCard, PaymentPayPal, PaymentFree, PaymentApplePay, PaymentGooglePay, PaymentBankTransfer, PaymentUnknown,
}

// ParsePaymentMethod matches s against the payment method names, ignoring case.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	s = strings.TrimSpace(s)
	for _, p := range PaymentMethods {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

type RenewalPeriod string

const (
	RenewalWeekly  RenewalPeriod = "weekly"
	RenewalMonthly RenewalPeriod = "monthly"
	RenewalYearly  RenewalPeriod = "yearly"
	RenewalCustom  RenewalPeriod = "custom"
)

var RenewalPeriods = []RenewalPeriod{RenewalWeekly, RenewalMonthly, RenewalYearly, RenewalCustom}

// Subscription is one tracked recurring or trial service.
// Date fields hold ISO-8601 text; nil means unknown.
type Subscription struct {
	ID                   string        `db:"id" json:"id"`
	UserID               string        `db:"user_id" json:"user_id"`
	ServiceName          string        `db:"service_name" json:"service_name"`
	Price                float64       `db:"price" json:"price"`
	Currency             string        `db:"currency" json:"currency"`
	RenewalPeriod        RenewalPeriod `db:"renewal_period" json:"renewal_period"`
	BillingDate          *string       `db:"billing_date" json:"billing_date,omitempty"`
	NextBillingDate      *string       `db:"next_billing_date" json:"next_billing_date,omitempty"`
	TrialEndDate         *string       `db:"trial_end_date" json:"trial_end_date,omitempty"`
	PaymentMethod        PaymentMethod `db:"payment_method" json:"payment_method"`
	Category             Category      `db:"category" json:"category"`
	AutoRenew            bool          `db:"auto_renew" json:"auto_renew"`
	NotificationsEnabled bool          `db:"notifications_enabled" json:"notifications_enabled"`
	Notes                *string       `db:"notes" json:"notes,omitempty"`
	ServiceURL           *string       `db:"service_url" json:"service_url,omitempty"`
	DetectedFromEmail    bool          `db:"detected_from_email" json:"detected_from_email"`
	EmailSourceID        *string       `db:"email_source_id" json:"email_source_id,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}
