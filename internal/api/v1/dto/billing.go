package dto

// CheckoutRequestDTO selects the premium plan to buy.
type CheckoutRequestDTO struct {
	Plan string `json:"plan" validate:"required,oneof=monthly annual"`
}

// URLResponseDTO carries a redirect URL to a hosted Stripe page.
type URLResponseDTO struct {
	URL string `json:"url"`
}

// ErrorResponseDTO is returned for validation failures.
type ErrorResponseDTO struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
