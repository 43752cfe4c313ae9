package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Classification is the structured reading of one email. Optional fields are
// nil when the model did not report them, never zero values.
type Classification struct {
	IsSubscriptionRelated bool    `json:"isSubscriptionRelated"`
	ServiceName           *string `json:"serviceName,omitempty"`
	BillingDate           *string `json:"billingDate,omitempty"`
	PaymentMethod         *string `json:"paymentMethod,omitempty"`
	TrialEndDate          *string `json:"trialEndDate,omitempty"`
	IsMarketingEmail      *bool   `json:"isMarketingEmail,omitempty"`
	IsReceipt             *bool   `json:"isReceipt,omitempty"`
	IsTermsChange         *bool   `json:"isTermsChange,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, emailText string) (*Classification, error)
}

type classifier struct {
	gen Generator
}

func NewClassifier(gen Generator) Classifier {
	return &classifier{gen: gen}
}

const classificationInstructions = `You analyze emails for a subscription tracking app.
Decide whether the email below concerns a recurring subscription (a receipt,
renewal notice, trial notice, plan or terms change, or subscription marketing).

Reply with a single JSON object with these keys:
  "isSubscriptionRelated": boolean, required
  "serviceName": string, the name of the service, or null
  "billingDate": string, the next billing or charge date as YYYY-MM-DD, or null
  "paymentMethod": string, the payment method mentioned (for example "Visa ending 4242"), or null
  "trialEndDate": string, the date the free trial ends as YYYY-MM-DD, or null
  "isMarketingEmail": boolean, or null if unknown
  "isReceipt": boolean, or null if unknown
  "isTermsChange": boolean, or null if unknown

Use null for anything the email does not state. Do not guess dates.`

// BuildClassificationPrompt returns the prompt sent for emailText. The same
// text always produces the same prompt.
func BuildClassificationPrompt(emailText string) string {
	var b strings.Builder
	b.WriteString(classificationInstructions)
	b.WriteString("\n\nEmail:\n<<<\n")
	b.WriteString(emailText)
	b.WriteString("\n>>>")
	return b.String()
}

type classificationPayload struct {
	IsSubscriptionRelated *bool           `json:"isSubscriptionRelated"`
	ServiceName           json.RawMessage `json:"serviceName"`
	BillingDate           json.RawMessage `json:"billingDate"`
	PaymentMethod         json.RawMessage `json:"paymentMethod"`
	TrialEndDate          json.RawMessage `json:"trialEndDate"`
	IsMarketingEmail      json.RawMessage `json:"isMarketingEmail"`
	IsReceipt             json.RawMessage `json:"isReceipt"`
	IsTermsChange         json.RawMessage `json:"isTermsChange"`
}

func (c *classifier) Classify(ctx context.Context, emailText string) (*Classification, error) {
	raw, err := c.gen.GenerateJSON(ctx, BuildClassificationPrompt(emailText))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}
	result, err := ParseClassification(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}
	return result, nil
}

// ParseClassification decodes a model reply. isSubscriptionRelated must be a
// boolean; the remaining keys are optional.
func ParseClassification(raw []byte) (*Classification, error) {
	var p classificationPayload
	if err := json.Unmarshal(stripCodeFence(raw), &p); err != nil {
		return nil, fmt.Errorf("malformed classification: %w", err)
	}
	if p.IsSubscriptionRelated == nil {
		return nil, errors.New("malformed classification: isSubscriptionRelated missing")
	}

	out := &Classification{IsSubscriptionRelated: *p.IsSubscriptionRelated}
	var err error
	if out.ServiceName, err = optionalString("serviceName", p.ServiceName); err != nil {
		return nil, err
	}
	if out.BillingDate, err = optionalString("billingDate", p.BillingDate); err != nil {
		return nil, err
	}
	if out.PaymentMethod, err = optionalString("paymentMethod", p.PaymentMethod); err != nil {
		return nil, err
	}
	if out.TrialEndDate, err = optionalString("trialEndDate", p.TrialEndDate); err != nil {
		return nil, err
	}
	if out.IsMarketingEmail, err = optionalBool("isMarketingEmail", p.IsMarketingEmail); err != nil {
		return nil, err
	}
	if out.IsReceipt, err = optionalBool("isReceipt", p.IsReceipt); err != nil {
		return nil, err
	}
	if out.IsTermsChange, err = optionalBool("isTermsChange", p.IsTermsChange); err != nil {
		return nil, err
	}
	return out, nil
}

func isAbsent(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func optionalString(key string, raw json.RawMessage) (*string, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("malformed classification: %s is not a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}
	return &s, nil
}

func optionalBool(key string, raw json.RawMessage) (*bool, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("malformed classification: %s is not a boolean", key)
	}
	return &b, nil
}
