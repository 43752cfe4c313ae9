package handler

import (
	"errors"
	"net/http"

	"subscribe/internal/api/v1/dto"
	"subscribe/internal/model"
	"subscribe/internal/service"

	"github.com/rs/zerolog"
)

type UserHandler struct {
	userService service.UserService
	logger      zerolog.Logger
}

func NewUserHandler(userService service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger.With().Str("handler", "UserHandler").Logger()}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("GET /users/me", authMw(http.HandlerFunc(h.getUser)))
	mux.Handle("PATCH /users/me", authMw(http.HandlerFunc(h.updateUser)))
}

func (h *UserHandler) toResponse(u *model.UserProfile) dto.UserResponseDTO {
	return dto.UserResponseDTO{
		UserID:         u.UserID,
		Name:           u.Name,
		Email:          u.Email,
		AvatarURL:      u.AvatarURL,
		Phone:          u.Phone,
		IsPremium:      u.IsPremium,
		FreeScansUsed:  u.FreeScansUsed,
		ScansRemaining: h.userService.ScansRemaining(u),
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// getUser godoc
// @Summary Get the caller's profile
// @Description Returns the profile, creating it from the token claims on first use.
// @Tags users
// @Produce json
// @Success 200 {object} dto.UserResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 500 {string} string "Failed to load user profile"
// @Router /users/me [get]
func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, ok := ensureProfile(w, r, h.userService, userID)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.toResponse(user))
}

// updateUser godoc
// @Summary Update the caller's profile
// @Description Changes name, phone (E.164, empty to clear) or avatar.
// @Tags users
// @Accept json
// @Produce json
// @Param body body dto.UserUpdateDTO true "Profile fields"
// @Success 200 {object} dto.UserResponseDTO
// @Failure 400 {object} dto.ErrorResponseDTO
// @Failure 404 {string} string "user not found"
// @Router /users/me [patch]
func (h *UserHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.UserUpdateDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.userService.Update(r.Context(), userID, &service.ProfileUpdate{
		Name:      req.Name,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		switch {
		case writeValidationError(w, h.logger, err):
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, "Failed to update user profile", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.toResponse(user))
}
