package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"debug"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Language model settings. LLMProvider is "gemini" or "anthropic".
	LLMProvider       string `envconfig:"LLM_PROVIDER" default:"gemini"`
	LLMModel          string `envconfig:"LLM_MODEL"`
	GoogleAPIKey      string `envconfig:"GOOGLE_API_KEY"`
	AnthropicAPIKey   string `envconfig:"ANTHROPIC_API_KEY"`
	LLMTimeoutSec     int    `envconfig:"LLM_TIMEOUT_SEC" default:"30"`
	CategoryCacheTTLH int    `envconfig:"CATEGORY_CACHE_TTL_HOURS" default:"168"`

	// Free-tier scan allowance for non-premium users.
	FreeScanLimit int `envconfig:"FREE_SCAN_LIMIT" default:"1"`

	// Redis (optional, enables the categorization cache)
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// S3-compatible storage for scanned emails (optional)
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`

	// Pub/Sub (optional)
	GCPProjectID         string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost   string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubDetectionTopic string `envconfig:"PUBSUB_DETECTION_TOPIC"`

	// Secret Manager (optional). When set, provider keys missing from the
	// environment are read from this project.
	SecretsProjectID string `envconfig:"SECRETS_PROJECT_ID"`

	// Twilio
	TwilioAccountSID  string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `envconfig:"TWILIO_PHONE_NUMBER"`

	// Stripe
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceMonthly    string `envconfig:"STRIPE_PRICE_MONTHLY"`
	StripePriceAnnual     string `envconfig:"STRIPE_PRICE_ANNUAL"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:3000/billing"`

	// Reminder orchestrator settings
	ReminderQueueName      string `envconfig:"REMINDER_QUEUE_NAME" default:"reminder_queue"`
	ReminderPollTimeoutSec int    `envconfig:"REMINDER_POLL_TIMEOUT_SEC" default:"30"`
	ReminderPollMaxMsg     int    `envconfig:"REMINDER_POLL_MAX_MSG" default:"10"`
	ReminderVisibilitySec  int    `envconfig:"REMINDER_VISIBILITY_SEC" default:"60"`
	ReminderMaxAttempts    int    `envconfig:"REMINDER_MAX_ATTEMPTS" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs against local infrastructure.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LLMAPIKey returns the key for the configured provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.GoogleAPIKey
}

// LLMAPIKeyEnv returns the environment variable (and secret name) holding the
// configured provider's key.
func (c *Config) LLMAPIKeyEnv() string {
	if c.LLMProvider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "GOOGLE_API_KEY"
}
