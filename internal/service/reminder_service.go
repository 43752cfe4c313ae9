package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"subscribe/internal/model"
	"subscribe/internal/notify"
	"subscribe/internal/repository"
	"subscribe/internal/status"

	"github.com/rs/zerolog"
)

var ErrNoPhone = errors.New("user does not have a phone number configured")

const (
	ReasonTrial   = "trial"
	ReasonBilling = "billing"
)

// QueueSender enqueues a JSON payload. pgmq.Client satisfies it.
type QueueSender interface {
	Send(ctx context.Context, queue string, payload []byte) error
}

type ReminderService interface {
	// SendTest sends a test reminder for one subscription and returns the message ID.
	SendTest(ctx context.Context, userID, subscriptionID string) (string, error)
	// Sweep enqueues a job for every subscription due a reminder and returns how many were queued.
	Sweep(ctx context.Context, now time.Time) (int, error)
	// Dispatch sends the reminder described by job if it is still due.
	Dispatch(ctx context.Context, job model.ReminderJob, now time.Time) error
}

type reminderService struct {
	subRepo   repository.SubscriptionRepository
	userRepo  repository.UserRepository
	notifier  notify.Notifier
	queue     QueueSender
	queueName string
	logger    zerolog.Logger
}

func NewReminderService(
	subRepo repository.SubscriptionRepository,
	userRepo repository.UserRepository,
	notifier notify.Notifier,
	queue QueueSender,
	queueName string,
	logger zerolog.Logger,
) ReminderService {
	return &reminderService{
		subRepo:   subRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		queue:     queue,
		queueName: queueName,
		logger:    logger.With().Str("service", "ReminderService").Logger(),
	}
}

// ShouldRemind reports whether sub is due a reminder at now and why. A
// reminder is due when notifications are on and the status is urgent, except
// for payments already past due.
func ShouldRemind(sub *model.Subscription, now time.Time) (string, bool) {
	if !sub.NotificationsEnabled {
		return "", false
	}
	st := status.Evaluate(sub, now)
	if st.Urgency != status.UrgencyHigh || st.RemainingText == status.PastDue {
		return "", false
	}
	if st.Label == status.LabelTrial {
		return ReasonTrial, true
	}
	return ReasonBilling, true
}

// TestReminderMessage is the text of a test reminder.
func TestReminderMessage(name, serviceName string) string {
	return fmt.Sprintf("Hi %s, this is a test reminder from SubScribe for your %s subscription.", name, serviceName)
}

// ReminderMessage is the text of a scheduled reminder.
func ReminderMessage(name string, sub *model.Subscription, st status.Status) string {
	when := lowerFirst(st.RemainingText)
	if st.Label == status.LabelTrial {
		return fmt.Sprintf("Hi %s, your %s free trial %s. Cancel before then if you don't want to be charged.", name, sub.ServiceName, when)
	}
	if st.RemainingText == "Due today" {
		when = "today"
	}
	return fmt.Sprintf("Hi %s, your %s payment of %s is due %s.", name, sub.ServiceName, status.DisplayPrice(sub, false), when)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func (s *reminderService) recipient(ctx context.Context, userID string) (*model.UserProfile, error) {
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if u.Phone == nil || *u.Phone == "" {
		return nil, ErrNoPhone
	}
	return u, nil
}

func (s *reminderService) SendTest(ctx context.Context, userID, subscriptionID string) (string, error) {
	sub, err := s.subRepo.GetByID(ctx, userID, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrSubscriptionNotFound
		}
		return "", err
	}
	u, err := s.recipient(ctx, userID)
	if err != nil {
		return "", err
	}
	sid, err := s.notifier.SendSMS(ctx, *u.Phone, TestReminderMessage(u.Name, sub.ServiceName))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("subscription_id", subscriptionID).Msg("Failed to send test reminder")
		return "", err
	}
	return sid, nil
}

func (s *reminderService) Sweep(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.subRepo.ListRemindable(ctx)
	if err != nil {
		return 0, fmt.Errorf("list remindable subscriptions: %w", err)
	}
	queued := 0
	for i := range subs {
		reason, ok := ShouldRemind(&subs[i], now)
		if !ok {
			continue
		}
		payload, err := json.Marshal(model.ReminderJob{
			UserID:         subs[i].UserID,
			SubscriptionID: subs[i].ID,
			Reason:         reason,
		})
		if err != nil {
			return queued, err
		}
		if err := s.queue.Send(ctx, s.queueName, payload); err != nil {
			return queued, fmt.Errorf("enqueue reminder for subscription %s: %w", subs[i].ID, err)
		}
		queued++
	}
	s.logger.Info().Int("candidates", len(subs)).Int("queued", queued).Msg("Reminder sweep finished")
	return queued, nil
}

func (s *reminderService) Dispatch(ctx context.Context, job model.ReminderJob, now time.Time) error {
	log := s.logger.With().Str("user_id", job.UserID).Str("subscription_id", job.SubscriptionID).Logger()

	sub, err := s.subRepo.GetByID(ctx, job.UserID, job.SubscriptionID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Info().Msg("Subscription removed before reminder, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	if _, ok := ShouldRemind(sub, now); !ok {
		log.Info().Msg("Reminder no longer due, skipping")
		return nil
	}
	u, err := s.recipient(ctx, job.UserID)
	if errors.Is(err, ErrNoPhone) || errors.Is(err, ErrUserNotFound) {
		log.Info().Err(err).Msg("No recipient for reminder, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	// One reminder per subscription per day, however often the sweep runs
	// or the job is redelivered.
	day := now.Format(time.DateOnly)
	claimed, err := s.subRepo.ClaimReminder(ctx, sub.ID, day)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info().Str("day", day).Msg("Already reminded today, skipping")
		return nil
	}

	msg := ReminderMessage(u.Name, sub, status.Evaluate(sub, now))
	if _, err := s.notifier.SendSMS(ctx, *u.Phone, msg); err != nil {
		if relErr := s.subRepo.ReleaseReminder(ctx, sub.ID, day); relErr != nil {
			log.Error().Err(relErr).Msg("Failed to release reminder claim")
		}
		return fmt.Errorf("send reminder: %w", err)
	}
	log.Info().Str("reason", job.Reason).Msg("Reminder sent")
	return nil
}
