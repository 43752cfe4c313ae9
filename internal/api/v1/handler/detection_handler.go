package handler

import (
	"errors"
	"net/http"
	"time"

	"subscribe/internal/ai"
	"subscribe/internal/api/v1/dto"
	"subscribe/internal/service"

	"github.com/rs/zerolog"
)

// DetectionHandler serves email scanning.
type DetectionHandler struct {
	detectService service.DetectionService
	userService   service.UserService
	logger        zerolog.Logger
	now           func() time.Time
}

func NewDetectionHandler(detectService service.DetectionService, userService service.UserService, logger zerolog.Logger) *DetectionHandler {
	return &DetectionHandler{
		detectService: detectService,
		userService:   userService,
		logger:        logger.With().Str("handler", "DetectionHandler").Logger(),
		now:           time.Now,
	}
}

// RegisterRoutes mounts detection routes
func (h *DetectionHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /subscriptions/detect", authMw(http.HandlerFunc(h.detect)))
}

// detect godoc
// @Summary Detect a subscription from an email
// @Description Classifies pasted email text and, when it describes a subscription, stores it.
// @Description Free users get a limited number of scans.
// @Tags detection
// @Accept json
// @Produce json
// @Param body body dto.DetectRequestDTO true "Email"
// @Success 200 {object} dto.DetectResponseDTO "No subscription found"
// @Success 201 {object} dto.DetectResponseDTO "Subscription created"
// @Failure 400 {object} dto.ErrorResponseDTO
// @Failure 402 {string} string "Free scan quota exceeded"
// @Failure 500 {string} string "Failed to save detected subscription"
// @Failure 502 {string} string "Email classification failed"
// @Router /subscriptions/detect [post]
func (h *DetectionHandler) detect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.DetectRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	user, ok := ensureProfile(w, r, h.userService, userID)
	if !ok {
		return
	}

	result, err := h.detectService.DetectFromEmail(r.Context(), userID, req.EmailContent, user.Quota())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuotaExceeded):
			http.Error(w, "Free scan quota exceeded, upgrade to premium for unlimited scans", http.StatusPaymentRequired)
		case writeValidationError(w, h.logger, err):
		case errors.Is(err, ai.ErrClassificationFailed):
			http.Error(w, "Email classification failed", http.StatusBadGateway)
		case errors.Is(err, service.ErrPersistenceFailed):
			http.Error(w, "Failed to save detected subscription", http.StatusInternalServerError)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("detection failed")
			http.Error(w, "Detection failed", http.StatusInternalServerError)
		}
		return
	}

	resp := dto.DetectResponseDTO{Detected: result.Detected, Classification: result.Classification}
	if !result.Detected {
		resp.ScansRemaining = h.userService.ScansRemaining(user)
		writeJSON(w, h.logger, http.StatusOK, resp)
		return
	}

	if result.ScanRecorded {
		user.FreeScansUsed++
	}
	resp.ScansRemaining = h.userService.ScansRemaining(user)
	sub := dto.NewSubscriptionResponse(result.Subscription, h.now())
	resp.Subscription = &sub
	if result.Categorization != nil {
		resp.Confidence = &result.Categorization.Confidence
	}
	writeJSON(w, h.logger, http.StatusCreated, resp)
}
