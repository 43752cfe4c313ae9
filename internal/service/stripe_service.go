package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"subscribe/internal/config"
	"subscribe/internal/model"
	"subscribe/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrBillingNotConfigured = errors.New("billing is not configured")
	ErrInvalidPlan          = errors.New("invalid plan")
	ErrNoStripeCustomer     = errors.New("no stripe customer for user")
	// ErrInvalidWebhook covers unsigned, mis-signed and undecodable webhook payloads.
	ErrInvalidWebhook = errors.New("invalid webhook payload")
)

// StripeService manages premium upgrades through Stripe.
type StripeService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

// NewStripeService initializes Stripe key and returns service with a scoped logger
func NewStripeService(cfg *config.Config, userRepo repository.UserRepository, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{cfg: cfg, userRepo: userRepo, logger: lg}
}

// getUserIDFromEvent resolves the user from webhook metadata, falling back to the customer ID.
func (s *StripeService) getUserIDFromEvent(ctx context.Context, metadata map[string]string, customerID string) (string, error) {
	if userID, ok := metadata["user_id"]; ok && userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", errors.New("cannot determine user: missing metadata and customer id")
	}
	s.logger.Warn().Str("stripe_customer_id", customerID).Msg("Missing user_id metadata; looking up user by customer ID")
	u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("failed to lookup user by Stripe customer ID: %w", err)
	}
	return u.UserID, nil
}

// GetOrCreateCustomer ensures a Stripe Customer exists for a user.
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.UserProfile) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.Name),
		Metadata: map[string]string{"user_id": user.UserID},
	}
	cust, err := customerpkg.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.UserID, cust.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to store stripe customer id in user_profiles")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

func (s *StripeService) priceForPlan(plan string) (string, error) {
	var priceID string
	switch plan {
	case "monthly":
		priceID = s.cfg.StripePriceMonthly
	case "annual":
		priceID = s.cfg.StripePriceAnnual
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidPlan, plan)
	}
	if priceID == "" {
		return "", fmt.Errorf("%w: no price for plan %s", ErrBillingNotConfigured, plan)
	}
	return priceID, nil
}

// CreateCheckoutSession creates a Stripe Checkout session for the premium plan.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error) {
	if s.cfg.StripeSecretKey == "" {
		return "", ErrBillingNotConfigured
	}
	priceID, err := s.priceForPlan(plan)
	if err != nil {
		return "", err
	}
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for checkout session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	sessParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:         stripe.String(s.cfg.StripePortalReturnURL + "?status=success"),
		CancelURL:          stripe.String(s.cfg.StripePortalReturnURL + "?status=cancel"),
		Metadata:           map[string]string{"user_id": userID},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		},
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session.
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	if s.cfg.StripeSecretKey == "" {
		return "", ErrBillingNotConfigured
	}
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for portal session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil || user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", ErrNoStripeCustomer
	}
	params := &stripe.BillingPortalSessionParams{Customer: stripe.String(*user.StripeCustomerID), ReturnURL: stripe.String(s.cfg.StripePortalReturnURL)}
	sess, err := billingsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies a Stripe webhook and applies it to the user's premium flag.
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		return fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("%w: checkout.session: %w", ErrInvalidWebhook, err)
		}
		customerID := ""
		if cs.Customer != nil {
			customerID = cs.Customer.ID
		}
		userID, err := s.getUserIDFromEvent(ctx, cs.Metadata, customerID)
		if err != nil {
			return err
		}
		if customerID != "" {
			if err := s.userRepo.UpdateStripeCustomerID(ctx, userID, customerID); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to store stripe customer id")
			}
		}
		return s.setPremium(ctx, userID, true)
	case "customer.subscription.updated":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			return fmt.Errorf("%w: subscription: %w", ErrInvalidWebhook, err)
		}
		userID, err := s.userIDForSubscription(ctx, &ss)
		if err != nil {
			return err
		}
		switch ss.Status {
		case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
			return s.setPremium(ctx, userID, true)
		case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
			return s.setPremium(ctx, userID, false)
		default:
			s.logger.Info().Str("user_id", userID).Str("status", string(ss.Status)).Msg("Subscription status leaves premium unchanged")
			return nil
		}
	case "customer.subscription.deleted":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			return fmt.Errorf("%w: subscription: %w", ErrInvalidWebhook, err)
		}
		userID, err := s.userIDForSubscription(ctx, &ss)
		if err != nil {
			return err
		}
		return s.setPremium(ctx, userID, false)
	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
		return nil
	}
}

func (s *StripeService) userIDForSubscription(ctx context.Context, ss *stripe.Subscription) (string, error) {
	customerID := ""
	if ss.Customer != nil {
		customerID = ss.Customer.ID
	}
	return s.getUserIDFromEvent(ctx, ss.Metadata, customerID)
}

func (s *StripeService) setPremium(ctx context.Context, userID string, premium bool) error {
	if err := s.userRepo.SetPremium(ctx, userID, premium); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Bool("premium", premium).Msg("Failed to update premium status")
		return fmt.Errorf("set premium for user %s: %w", userID, err)
	}
	s.logger.Info().Str("user_id", userID).Bool("premium", premium).Msg("Premium status updated")
	return nil
}
