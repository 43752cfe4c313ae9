package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"subscribe/internal/api/v1/dto"
	"subscribe/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// stripe-go recommends capping webhook bodies at 64KB.
const maxWebhookBytes = 65536

// BillingService is the part of service.StripeService the handler needs.
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// BillingHandler handles premium plan checkout and Stripe webhooks.
type BillingHandler struct {
	billing  BillingService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing BillingService, validate *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, validate: validate, logger: logger.With().Str("handler", "BillingHandler").Logger()}
}

// RegisterRoutes registers the billing endpoints. The webhook is
// authenticated by its Stripe signature, not a bearer token.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /billing/checkout", authMiddleware(http.HandlerFunc(h.Checkout)))
	mux.Handle("GET /billing/portal", authMiddleware(http.HandlerFunc(h.Portal)))
	mux.HandleFunc("POST /billing/webhook", h.Webhook)
}

// Checkout godoc
// @Summary Initiate a Stripe Checkout session for the premium plan
// @Description Creates a Stripe Checkout session and returns its URL.
// @Tags billing
// @Accept json
// @Produce json
// @Param body body dto.CheckoutRequestDTO true "Plan: monthly or annual"
// @Success 200 {object} dto.URLResponseDTO "URL of the Stripe Checkout session"
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to create checkout session"
// @Failure 503 {string} string "billing is not configured"
// @Router /billing/checkout [post]
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.CheckoutRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "plan must be monthly or annual", http.StatusBadRequest)
		return
	}
	url, err := h.billing.CreateCheckoutSession(r.Context(), userID, req.Plan)
	if err != nil {
		h.writeBillingError(w, err, "failed to create checkout session")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.URLResponseDTO{URL: url})
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Description Generates a Stripe Customer Portal session URL for the authenticated user.
// @Tags billing
// @Produce json
// @Success 200 {object} dto.URLResponseDTO "URL of the Customer Portal session"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "no stripe customer for user"
// @Failure 500 {string} string "failed to create portal session"
// @Router /billing/portal [get]
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	url, err := h.billing.CreatePortalSession(r.Context(), userID)
	if err != nil {
		h.writeBillingError(w, err, "failed to create portal session")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.URLResponseDTO{URL: url})
}

// Webhook godoc
// @Summary Receive Stripe events
// @Description Verifies the Stripe-Signature header and updates the user's premium status.
// @Tags billing
// @Accept json
// @Success 200
// @Failure 400 {string} string "invalid webhook"
// @Failure 500 {string} string "failed to process webhook"
// @Router /billing/webhook [post]
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusServiceUnavailable)
		return
	}
	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, service.ErrInvalidWebhook) {
			http.Error(w, "invalid webhook", http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Msg("failed to process stripe webhook")
		http.Error(w, "failed to process webhook", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *BillingHandler) writeBillingError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrBillingNotConfigured):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, service.ErrInvalidPlan):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNoStripeCustomer), errors.Is(err, service.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
