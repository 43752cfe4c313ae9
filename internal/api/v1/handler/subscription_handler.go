package handler

import (
	"errors"
	"net/http"
	"time"

	"subscribe/internal/ai"
	"subscribe/internal/api/v1/dto"
	"subscribe/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SubscriptionHandler serves the subscription list and manual entry endpoints.
type SubscriptionHandler struct {
	subService  service.SubscriptionService
	userService service.UserService
	validate    *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

func NewSubscriptionHandler(subService service.SubscriptionService, userService service.UserService, validate *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subService:  subService,
		userService: userService,
		validate:    validate,
		logger:      logger.With().Str("handler", "SubscriptionHandler").Logger(),
		now:         time.Now,
	}
}

// RegisterRoutes mounts subscription routes
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("GET /subscriptions", authMw(http.HandlerFunc(h.listSubscriptions)))
	mux.Handle("POST /subscriptions", authMw(http.HandlerFunc(h.createSubscription)))
	mux.Handle("POST /subscriptions/categorize", authMw(http.HandlerFunc(h.categorize)))
	mux.Handle("GET /subscriptions/{id}", authMw(http.HandlerFunc(h.getSubscription)))
	mux.Handle("PUT /subscriptions/{id}", authMw(http.HandlerFunc(h.replaceSubscription)))
	mux.Handle("DELETE /subscriptions/{id}", authMw(http.HandlerFunc(h.deleteSubscription)))
	mux.Handle("PATCH /subscriptions/{id}/notifications", authMw(http.HandlerFunc(h.toggleNotifications)))
}

// listSubscriptions godoc
// @Summary List subscriptions
// @Description Lists the caller's subscriptions sorted by next billing date, each with its evaluated status.
// @Tags subscriptions
// @Produce json
// @Param category query string false "Category filter, or all"
// @Param q query string false "Service name search"
// @Success 200 {array} dto.SubscriptionResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 500 {string} string "Failed to list subscriptions"
// @Router /subscriptions [get]
func (h *SubscriptionHandler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	filter := service.ListFilter{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
	}
	subs, err := h.subService.List(r.Context(), userID, filter)
	if err != nil {
		http.Error(w, "Failed to list subscriptions", http.StatusInternalServerError)
		return
	}
	now := h.now()
	resp := make([]dto.SubscriptionResponseDTO, 0, len(subs))
	for i := range subs {
		resp = append(resp, dto.NewSubscriptionResponse(&subs[i], now))
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// createSubscription godoc
// @Summary Add a subscription
// @Description Stores a manually entered subscription. Unset fields take defaults.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param subscription body service.SubscriptionInput true "Subscription"
// @Success 201 {object} dto.SubscriptionResponseDTO
// @Failure 400 {object} dto.ErrorResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 500 {string} string "Failed to load user profile or create subscription"
// @Router /subscriptions [post]
func (h *SubscriptionHandler) createSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req service.SubscriptionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := ensureProfile(w, r, h.userService, userID); !ok {
		return
	}
	sub, err := h.subService.Create(r.Context(), userID, &req)
	if err != nil {
		if writeValidationError(w, h.logger, err) {
			return
		}
		http.Error(w, "Failed to create subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, dto.NewSubscriptionResponse(sub, h.now()))
}

// getSubscription godoc
// @Summary Get a subscription
// @Tags subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponseDTO
// @Failure 404 {string} string "Subscription not found"
// @Router /subscriptions/{id} [get]
func (h *SubscriptionHandler) getSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sub, err := h.subService.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "Failed to retrieve subscription")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.NewSubscriptionResponse(sub, h.now()))
}

// replaceSubscription godoc
// @Summary Replace a subscription
// @Description Overwrites every editable field. Provenance is kept.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param subscription body service.SubscriptionInput true "Subscription"
// @Success 200 {object} dto.SubscriptionResponseDTO
// @Failure 400 {object} dto.ErrorResponseDTO
// @Failure 404 {string} string "Subscription not found"
// @Router /subscriptions/{id} [put]
func (h *SubscriptionHandler) replaceSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req service.SubscriptionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.subService.Replace(r.Context(), userID, r.PathValue("id"), &req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to update subscription")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.NewSubscriptionResponse(sub, h.now()))
}

// deleteSubscription godoc
// @Summary Delete a subscription
// @Tags subscriptions
// @Param id path string true "Subscription ID"
// @Success 204
// @Failure 404 {string} string "Subscription not found"
// @Router /subscriptions/{id} [delete]
func (h *SubscriptionHandler) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.subService.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		h.writeServiceError(w, err, "Failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toggleNotifications godoc
// @Summary Enable or disable reminders for a subscription
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param body body dto.NotificationsToggleDTO true "Toggle"
// @Success 200 {object} dto.SubscriptionResponseDTO
// @Failure 400 {string} string "Validation failed"
// @Failure 404 {string} string "Subscription not found"
// @Router /subscriptions/{id}/notifications [patch]
func (h *SubscriptionHandler) toggleNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.NotificationsToggleDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		if !writeValidationError(w, h.logger, service.ValidationErrorFrom(err)) {
			http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		}
		return
	}
	sub, err := h.subService.SetNotifications(r.Context(), userID, r.PathValue("id"), *req.Enabled)
	if err != nil {
		h.writeServiceError(w, err, "Failed to update notifications")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.NewSubscriptionResponse(sub, h.now()))
}

// categorize godoc
// @Summary Suggest a category
// @Description Asks the language model which category a service belongs to.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param body body dto.CategorizeRequestDTO true "Service"
// @Success 200 {object} dto.CategorizeResponseDTO
// @Failure 400 {object} dto.ErrorResponseDTO
// @Failure 502 {string} string "Categorization failed"
// @Router /subscriptions/categorize [post]
func (h *SubscriptionHandler) categorize(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req dto.CategorizeRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.subService.Categorize(r.Context(), req.ServiceName, req.Description)
	if err != nil {
		if writeValidationError(w, h.logger, err) {
			return
		}
		if errors.Is(err, ai.ErrCategorizationFailed) {
			http.Error(w, "Categorization failed", http.StatusBadGateway)
			return
		}
		http.Error(w, "Failed to categorize subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.CategorizeResponseDTO{Category: result.Category, Confidence: result.Confidence})
}

func (h *SubscriptionHandler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case writeValidationError(w, h.logger, err):
	case errors.Is(err, service.ErrSubscriptionNotFound):
		http.Error(w, "Subscription not found", http.StatusNotFound)
	default:
		h.logger.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
