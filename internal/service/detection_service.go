package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"subscribe/internal/ai"
	"subscribe/internal/model"
	"subscribe/internal/pubsub"
	"subscribe/internal/repository"
	"subscribe/internal/status"
	"subscribe/internal/storage"

	"github.com/rs/zerolog"
)

var (
	ErrQuotaExceeded     = errors.New("free scan quota exceeded")
	ErrPersistenceFailed = errors.New("failed to save detected subscription")
)

// DetectedEventType is the type field of events published after a detection.
const DetectedEventType = "subscription.detected"

// DetectionResult is the outcome of one scan. Detected is false when the
// email is not about a subscription or names no service; that is not an error.
type DetectionResult struct {
	Detected       bool                `json:"detected"`
	Classification *ai.Classification  `json:"classification"`
	Categorization *ai.Categorization  `json:"categorization,omitempty"`
	Subscription   *model.Subscription `json:"subscription,omitempty"`
	// ScanRecorded is set when a free scan was charged to the user's profile.
	ScanRecorded bool `json:"-"`
}

// DetectionEvent is published when a subscription is created from an email.
type DetectionEvent struct {
	Type           string         `json:"type"`
	UserID         string         `json:"user_id"`
	SubscriptionID string         `json:"subscription_id"`
	ServiceName    string         `json:"service_name"`
	Category       model.Category `json:"category"`
	DetectedAt     time.Time      `json:"detected_at"`
}

type DetectionService interface {
	DetectFromEmail(ctx context.Context, userID, emailText string, quota model.QuotaState) (*DetectionResult, error)
}

type detectionService struct {
	classifier    ai.Classifier
	categorizer   ai.Categorizer
	subRepo       repository.SubscriptionRepository
	userRepo      repository.UserRepository
	archive       storage.EmailArchive
	publisher     pubsub.Publisher
	topic         string
	freeScanLimit int
	logger        zerolog.Logger
}

// DetectionOptions carries the optional collaborators of a DetectionService.
// A nil Archive skips archiving; a nil Publisher or empty Topic skips events.
type DetectionOptions struct {
	Archive       storage.EmailArchive
	Publisher     pubsub.Publisher
	Topic         string
	FreeScanLimit int
}

func NewDetectionService(
	classifier ai.Classifier,
	categorizer ai.Categorizer,
	subRepo repository.SubscriptionRepository,
	userRepo repository.UserRepository,
	opts DetectionOptions,
	logger zerolog.Logger,
) DetectionService {
	if opts.FreeScanLimit <= 0 {
		opts.FreeScanLimit = 1
	}
	return &detectionService{
		classifier:    classifier,
		categorizer:   categorizer,
		subRepo:       subRepo,
		userRepo:      userRepo,
		archive:       opts.Archive,
		publisher:     opts.Publisher,
		topic:         opts.Topic,
		freeScanLimit: opts.FreeScanLimit,
		logger:        logger.With().Str("service", "DetectionService").Logger(),
	}
}

// CategorizationDescription is the context passed to the categorizer for a
// detected service.
func CategorizationDescription(billingDate *string) string {
	date := "N/A"
	if billingDate != nil && *billingDate != "" {
		date = *billingDate
	}
	return fmt.Sprintf("Detected from email. Billing: %s.", date)
}

// DetectFromEmail classifies an email and, when it describes a subscription,
// stores a new record for the user.
//
// Two concurrent scans by the same free user may both pass the quota check;
// the counter is incremented once per stored record.
func (s *detectionService) DetectFromEmail(ctx context.Context, userID, emailText string, quota model.QuotaState) (*DetectionResult, error) {
	log := s.logger.With().Str("user_id", userID).Logger()

	if !quota.IsPremium && quota.FreeScansUsed >= s.freeScanLimit {
		log.Info().Int("free_scans_used", quota.FreeScansUsed).Msg("Scan rejected, free quota used")
		return nil, ErrQuotaExceeded
	}
	if strings.TrimSpace(emailText) == "" {
		return nil, &ValidationError{Fields: map[string]string{"email_content": "is required"}}
	}

	classification, err := s.classifier.Classify(ctx, emailText)
	if err != nil {
		log.Error().Err(err).Msg("Email classification failed")
		if !errors.Is(err, ai.ErrClassificationFailed) {
			err = fmt.Errorf("%w: %w", ai.ErrClassificationFailed, err)
		}
		return nil, err
	}
	serviceName, usable := DetectedServiceName(classification)
	if !classification.IsSubscriptionRelated || !usable {
		log.Info().
			Bool("subscription_related", classification.IsSubscriptionRelated).
			Bool("usable_service_name", usable).
			Msg("No subscription detected")
		return &DetectionResult{Detected: false, Classification: classification}, nil
	}

	category := model.CategoryOther
	categorization, err := s.categorizer.Categorize(ctx, serviceName, CategorizationDescription(classification.BillingDate))
	if err != nil {
		log.Warn().Err(err).Str("service_name", serviceName).Msg("Categorization failed, using Other")
		categorization = nil
	} else {
		category = categorization.Category
	}

	sub := NewDetectedDraft(userID, classification, category)

	if s.archive != nil {
		key, err := s.archive.Put(ctx, userID, emailText)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to archive scanned email")
		} else {
			sub.EmailSourceID = &key
		}
	}

	if err := s.subRepo.Create(ctx, sub); err != nil {
		log.Error().Err(err).Str("service_name", sub.ServiceName).Msg("Failed to persist detected subscription")
		s.discardArchive(ctx, sub.EmailSourceID)
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	scanRecorded := false
	if !quota.IsPremium {
		if err := s.userRepo.IncrementFreeScans(ctx, userID); err != nil {
			log.Error().Err(err).Msg("Failed to record free scan usage")
		} else {
			scanRecorded = true
		}
	}

	s.publishDetected(ctx, sub)

	log.Info().
		Str("subscription_id", sub.ID).
		Str("service_name", sub.ServiceName).
		Str("category", string(sub.Category)).
		Str("status", string(status.Evaluate(sub, time.Now()).Label)).
		Msg("Subscription detected from email")

	return &DetectionResult{
		Detected:       true,
		Classification: classification,
		Categorization: categorization,
		Subscription:   sub,
		ScanRecorded:   scanRecorded,
	}, nil
}

func (s *detectionService) discardArchive(ctx context.Context, key *string) {
	if s.archive == nil || key == nil {
		return
	}
	if err := s.archive.Delete(ctx, *key); err != nil {
		s.logger.Warn().Err(err).Str("key", *key).Msg("Failed to remove archived email")
	}
}

func (s *detectionService) publishDetected(ctx context.Context, sub *model.Subscription) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	event := DetectionEvent{
		Type:           DetectedEventType,
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		ServiceName:    sub.ServiceName,
		Category:       sub.Category,
		DetectedAt:     time.Now().UTC(),
	}
	if _, err := pubsub.PublishJSON(ctx, s.publisher, s.topic, event); err != nil {
		s.logger.Warn().Err(err).Str("subscription_id", sub.ID).Msg("Failed to publish detection event")
	}
}
