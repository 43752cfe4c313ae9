package service

import (
	"context"
	"fmt"

	"subscribe/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

type SecretManagerService interface {
	// GetSecret returns the latest version of the named secret.
	GetSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type secretManagerService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	if cfg.SecretsProjectID == "" {
		return nil, fmt.Errorf("SECRETS_PROJECT_ID is not set")
	}

	opts := []option.ClientOption{option.WithUserAgent("subscribe-api")}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: cfg.SecretsProjectID,
	}, nil
}

func (s *secretManagerService) GetSecret(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)

	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	}

	result, err := s.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", name, err)
	}

	return string(result.Payload.Data), nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}

// ResolveSecrets fills provider credentials missing from the environment
// with secrets of the same name. Lookups that fail are logged and skipped.
func ResolveSecrets(ctx context.Context, sm SecretManagerService, cfg *config.Config, logger zerolog.Logger) {
	targets := []struct {
		name  string
		value *string
	}{
		{"GOOGLE_API_KEY", &cfg.GoogleAPIKey},
		{"ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey},
		{"TWILIO_AUTH_TOKEN", &cfg.TwilioAuthToken},
		{"STRIPE_SECRET_KEY", &cfg.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", &cfg.StripeWebhookSecret},
	}
	for _, t := range targets {
		if *t.value != "" {
			continue
		}
		v, err := sm.GetSecret(ctx, t.name)
		if err != nil {
			logger.Debug().Err(err).Str("secret", t.name).Msg("Secret not resolved")
			continue
		}
		*t.value = v
		logger.Info().Str("secret", t.name).Msg("Secret resolved from Secret Manager")
	}
}
