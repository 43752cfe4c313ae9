package service

import (
	"context"
	"errors"
	"strings"

	"subscribe/internal/ai"
	"subscribe/internal/model"
	"subscribe/internal/repository"
	"subscribe/internal/status"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// ListFilter narrows a subscription listing. An empty Category or "all"
// matches every category; Query matches service names case-insensitively.
type ListFilter struct {
	Category string
	Query    string
}

// SubscriptionService defines business logic methods for tracked subscriptions.
type SubscriptionService interface {
	List(ctx context.Context, userID string, filter ListFilter) ([]model.Subscription, error)
	Get(ctx context.Context, userID, id string) (*model.Subscription, error)
	Create(ctx context.Context, userID string, in *SubscriptionInput) (*model.Subscription, error)
	Replace(ctx context.Context, userID, id string, in *SubscriptionInput) (*model.Subscription, error)
	Delete(ctx context.Context, userID, id string) error
	SetNotifications(ctx context.Context, userID, id string, enabled bool) (*model.Subscription, error)
	Categorize(ctx context.Context, serviceName, description string) (*ai.Categorization, error)
}

type subscriptionService struct {
	repo        repository.SubscriptionRepository
	categorizer ai.Categorizer
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, categorizer ai.Categorizer, validate *validator.Validate, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:        repo,
		categorizer: categorizer,
		validate:    validate,
		logger:      logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

// List returns the user's subscriptions, filtered and ordered by next billing date.
func (s *subscriptionService) List(ctx context.Context, userID string, filter ListFilter) ([]model.Subscription, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list subscriptions")
		return nil, err
	}

	category := strings.TrimSpace(filter.Category)
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]model.Subscription, 0, len(subs))
	for _, sub := range subs {
		if category != "" && !strings.EqualFold(category, "all") && !strings.EqualFold(category, string(sub.Category)) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(sub.ServiceName), query) {
			continue
		}
		out = append(out, sub)
	}
	status.SortByNextBilling(out)
	return out, nil
}

func (s *subscriptionService) Get(ctx context.Context, userID, id string) (*model.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Str("subscription_id", id).Msg("Failed to fetch subscription")
		return nil, err
	}
	return sub, nil
}

// Create stores a manually entered subscription.
func (s *subscriptionService) Create(ctx context.Context, userID string, in *SubscriptionInput) (*model.Subscription, error) {
	sub, err := Normalize(s.validate, userID, in)
	if err != nil {
		return nil, err
	}
	sub.ID = uuid.NewString()
	sub.DetectedFromEmail = false

	if err := s.repo.Create(ctx, sub); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create subscription")
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("subscription_id", sub.ID).Str("service_name", sub.ServiceName).Msg("Subscription created")
	return sub, nil
}

// Replace overwrites every editable field of an existing subscription.
// The ID and provenance of the record are kept.
func (s *subscriptionService) Replace(ctx context.Context, userID, id string, in *SubscriptionInput) (*model.Subscription, error) {
	sub, err := Normalize(s.validate, userID, in)
	if err != nil {
		return nil, err
	}
	sub.ID = id

	if err := s.repo.Update(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Str("subscription_id", id).Msg("Failed to update subscription")
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSubscriptionNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Str("subscription_id", id).Msg("Failed to delete subscription")
		return err
	}
	return nil
}

func (s *subscriptionService) SetNotifications(ctx context.Context, userID, id string, enabled bool) (*model.Subscription, error) {
	sub, err := s.repo.SetNotifications(ctx, userID, id, enabled)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		s.logger.Error().Err(err).Str("user_id", userID).Str("subscription_id", id).Msg("Failed to toggle notifications")
		return nil, err
	}
	return sub, nil
}

// Categorize suggests a category for a service the user is entering by hand.
func (s *subscriptionService) Categorize(ctx context.Context, serviceName, description string) (*ai.Categorization, error) {
	serviceName = strings.TrimSpace(serviceName)
	if len([]rune(serviceName)) < 2 {
		return nil, &ValidationError{Fields: map[string]string{"service_name": "must be at least 2 characters"}}
	}
	result, err := s.categorizer.Categorize(ctx, serviceName, strings.TrimSpace(description))
	if err != nil {
		s.logger.Warn().Err(err).Str("service_name", serviceName).Msg("Categorization failed")
		return nil, err
	}
	return result, nil
}
