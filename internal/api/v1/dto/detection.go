package dto

import "subscribe/internal/ai"

// DetectRequestDTO carries the raw text of one email.
type DetectRequestDTO struct {
	EmailContent string `json:"email_content"`
}

// DetectResponseDTO is the result of a scan. Subscription is set only when
// one was created.
type DetectResponseDTO struct {
	Detected       bool                     `json:"detected"`
	Classification *ai.Classification       `json:"classification,omitempty"`
	Subscription   *SubscriptionResponseDTO `json:"subscription,omitempty"`
	Confidence     *float64                 `json:"confidence,omitempty"`
	ScansRemaining int                      `json:"scans_remaining"`
}
