package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"subscribe/internal/ai"
	"subscribe/internal/model"
	"subscribe/internal/status"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ValidationError reports field-level problems keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SubscriptionInput is a manual create or full replace of a subscription.
// Unset optional fields take the manual-entry defaults.
type SubscriptionInput struct {
	ServiceName          string  `json:"service_name" validate:"required,min=2,max=200"`
	Price                float64 `json:"price" validate:"gte=0"`
	Currency             string  `json:"currency" validate:"omitempty,min=2,max=10"`
	RenewalPeriod        string  `json:"renewal_period" validate:"omitempty,renewal_period"`
	BillingDate          *string `json:"billing_date"`
	NextBillingDate      *string `json:"next_billing_date"`
	TrialEndDate         *string `json:"trial_end_date"`
	PaymentMethod        string  `json:"payment_method" validate:"omitempty,payment_method"`
	Category             string  `json:"category" validate:"omitempty,category"`
	AutoRenew            *bool   `json:"auto_renew"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	Notes                *string `json:"notes" validate:"omitempty,max=2000"`
	ServiceURL           *string `json:"service_url" validate:"omitempty,url"`
}

// NewValidator returns a validator that knows the subscription enumerations
// and reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseCategory(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		_, ok := model.ParsePaymentMethod(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("renewal_period", func(fl validator.FieldLevel) bool {
		_, ok := parseRenewalPeriod(fl.Field().String())
		return ok
	})
	return v
}

func parseRenewalPeriod(s string) (model.RenewalPeriod, bool) {
	s = strings.TrimSpace(s)
	for _, p := range model.RenewalPeriods {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

// ValidationErrorFrom converts validator errors into a ValidationError.
// Other errors are returned unchanged.
func ValidationErrorFrom(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "category":
		return "must be one of " + joinEnum(model.Categories)
	case "payment_method":
		return "must be one of " + joinEnum(model.PaymentMethods)
	case "renewal_period":
		return "must be one of " + joinEnum(model.RenewalPeriods)
	default:
		return "is invalid"
	}
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// Normalize validates a manual entry and returns the record it describes,
// with defaults applied and unparseable dates dropped. ID and provenance
// are left for the caller.
func Normalize(v *validator.Validate, userID string, in *SubscriptionInput) (*model.Subscription, error) {
	in.ServiceName = strings.TrimSpace(in.ServiceName)
	in.Currency = strings.TrimSpace(in.Currency)
	in.ServiceURL = trimmedOrNil(in.ServiceURL)
	in.Notes = trimmedOrNil(in.Notes)

	if err := v.Struct(in); err != nil {
		return nil, ValidationErrorFrom(err)
	}

	sub := &model.Subscription{
		UserID:               userID,
		ServiceName:          in.ServiceName,
		Price:                in.Price,
		Currency:             strings.ToUpper(in.Currency),
		RenewalPeriod:        model.RenewalMonthly,
		BillingDate:          normalizeDate(in.BillingDate),
		NextBillingDate:      normalizeDate(in.NextBillingDate),
		TrialEndDate:         normalizeDate(in.TrialEndDate),
		PaymentMethod:        model.PaymentCard,
		Category:             model.CategoryOther,
		AutoRenew:            true,
		NotificationsEnabled: true,
		Notes:                in.Notes,
		ServiceURL:           in.ServiceURL,
	}
	if sub.Currency == "" {
		sub.Currency = "USD"
	}
	if p, ok := parseRenewalPeriod(in.RenewalPeriod); ok {
		sub.RenewalPeriod = p
	}
	if p, ok := model.ParsePaymentMethod(in.PaymentMethod); ok {
		sub.PaymentMethod = p
	}
	if c, ok := model.ParseCategory(in.Category); ok {
		sub.Category = c
	}
	if in.AutoRenew != nil {
		sub.AutoRenew = *in.AutoRenew
	}
	if in.NotificationsEnabled != nil {
		sub.NotificationsEnabled = *in.NotificationsEnabled
	}
	return sub, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// normalizeDate keeps parseable ISO-8601 text and drops anything else.
func normalizeDate(s *string) *string {
	t := trimmedOrNil(s)
	if t == nil {
		return nil
	}
	if _, ok := status.ParseDate(*t); !ok {
		return nil
	}
	return t
}

const detectedNotes = "Detected from email."

// Bounds of SubscriptionInput.ServiceName, applied to detected names too.
const (
	minServiceNameLen = 2
	maxServiceNameLen = 200
)

// DetectedServiceName returns the trimmed service name of c when it would
// pass the same length rule as a manual entry.
func DetectedServiceName(c *ai.Classification) (string, bool) {
	if c == nil || c.ServiceName == nil {
		return "", false
	}
	name := strings.TrimSpace(*c.ServiceName)
	n := utf8.RuneCountInString(name)
	return name, n >= minServiceNameLen && n <= maxServiceNameLen
}

// NewDetectedDraft assembles a record from an email classification. Fields
// the email did not state take the detection defaults: a free monthly plan
// with an unknown payment method.
func NewDetectedDraft(userID string, c *ai.Classification, category model.Category) *model.Subscription {
	if category == "" {
		category = model.CategoryOther
	}
	notes := detectedNotes
	sub := &model.Subscription{
		ID:                   uuid.NewString(),
		UserID:               userID,
		Price:                0,
		Currency:             "USD",
		RenewalPeriod:        model.RenewalMonthly,
		BillingDate:          normalizeDate(c.BillingDate),
		NextBillingDate:      normalizeDate(c.BillingDate),
		TrialEndDate:         normalizeDate(c.TrialEndDate),
		PaymentMethod:        MapPaymentMethod(c.PaymentMethod),
		Category:             category,
		AutoRenew:            true,
		NotificationsEnabled: true,
		Notes:                &notes,
		DetectedFromEmail:    true,
	}
	if c.ServiceName != nil {
		sub.ServiceName = strings.TrimSpace(*c.ServiceName)
	}
	return sub
}

// MapPaymentMethod maps free text such as "Visa ending 4242" onto the
// payment method enumeration. Unrecognized or missing text is Unknown.
func MapPaymentMethod(text *string) model.PaymentMethod {
	if text == nil {
		return model.PaymentUnknown
	}
	if p, ok := model.ParsePaymentMethod(*text); ok {
		return p
	}
	s := strings.ToLower(*text)
	switch {
	case strings.Contains(s, "paypal"):
		return model.PaymentPayPal
	case strings.Contains(s, "apple"):
		return model.PaymentApplePay
	case strings.Contains(s, "google"):
		return model.PaymentGooglePay
	case containsAny(s, "bank", "transfer", "direct debit", "sepa", "ach"):
		return model.PaymentBankTransfer
	case containsAny(s, "visa", "mastercard", "master card", "amex", "american express", "discover", "card", "credit", "debit"):
		return model.PaymentCard
	default:
		return model.PaymentUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
