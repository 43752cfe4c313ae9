package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"subscribe/internal/api/v1/dto"
	"subscribe/internal/middleware"
	"subscribe/internal/model"
	"subscribe/internal/service"

	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies. Emails pasted for scanning are the largest.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// requireUser writes 401 and returns false when the request carries no user.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// writeValidationError reports field errors as JSON and returns true when err
// is a *service.ValidationError.
func writeValidationError(w http.ResponseWriter, logger zerolog.Logger, err error) bool {
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	writeJSON(w, logger, http.StatusBadRequest, dto.ErrorResponseDTO{Error: "validation failed", Fields: verr.Fields})
	return true
}

// ensureProfile returns the caller's profile, creating it from the token
// claims on first use. Subscriptions reference the profile row, so anything
// that inserts one calls this first.
func ensureProfile(w http.ResponseWriter, r *http.Request, users service.UserService, userID string) (*model.UserProfile, bool) {
	seed := service.ProfileSeed{UserID: userID}
	if claims := middleware.ClaimsFrom(r.Context()); claims != nil {
		seed.Email, seed.Name = claims.Email, claims.Name
	}
	user, err := users.GetOrCreate(r.Context(), seed)
	if err != nil {
		http.Error(w, "Failed to load user profile", http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}
