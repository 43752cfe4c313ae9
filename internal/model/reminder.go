package model

// ReminderJob is the payload queued for the reminder orchestrator.
type ReminderJob struct {
	UserID         string `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
	// Reason is "trial" or "billing".
	Reason string `json:"reason"`
}
