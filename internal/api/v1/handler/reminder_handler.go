package handler

import (
	"errors"
	"net/http"

	"subscribe/internal/api/v1/dto"
	"subscribe/internal/notify"
	"subscribe/internal/service"

	"github.com/rs/zerolog"
)

// ReminderHandler sends on-demand reminders.
type ReminderHandler struct {
	reminderService service.ReminderService
	logger          zerolog.Logger
}

func NewReminderHandler(reminderService service.ReminderService, logger zerolog.Logger) *ReminderHandler {
	return &ReminderHandler{reminderService: reminderService, logger: logger.With().Str("handler", "ReminderHandler").Logger()}
}

// RegisterRoutes mounts reminder routes
func (h *ReminderHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /subscriptions/{id}/reminders/test", authMw(http.HandlerFunc(h.sendTest)))
}

// sendTest godoc
// @Summary Send a test reminder
// @Description Texts the caller a test reminder for the subscription.
// @Tags reminders
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.ReminderTestResponseDTO
// @Failure 400 {string} string "user does not have a phone number configured"
// @Failure 404 {string} string "Subscription not found"
// @Failure 503 {string} string "SMS reminders are not available"
// @Router /subscriptions/{id}/reminders/test [post]
func (h *ReminderHandler) sendTest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sid, err := h.reminderService.SendTest(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoPhone):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, service.ErrSubscriptionNotFound):
			http.Error(w, "Subscription not found", http.StatusNotFound)
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, "User profile not found", http.StatusNotFound)
		case errors.Is(err, notify.ErrNotConfigured):
			http.Error(w, "SMS reminders are not available", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Failed to send test reminder", http.StatusBadGateway)
		}
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.ReminderTestResponseDTO{MessageSID: sid})
}
