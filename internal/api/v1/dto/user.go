package dto

import "time"

// UserResponseDTO is returned by the profile endpoints.
type UserResponseDTO struct {
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	AvatarURL      string    `json:"avatar_url"`
	Phone          *string   `json:"phone,omitempty"`
	IsPremium      bool      `json:"is_premium"`
	FreeScansUsed  int       `json:"free_scans_used"`
	ScansRemaining int       `json:"scans_remaining"` // -1 means unlimited
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserUpdateDTO is the body of PATCH /users/me. Omitted fields are unchanged.
type UserUpdateDTO struct {
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatar_url"`
}
