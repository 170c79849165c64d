// Package transport defines the request/response DTOs for the auth API.
package transport

// LoginRequest authenticates an operator.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

// RegisterRequest creates an operator account.
type RegisterRequest struct {
	Email    string   `json:"email" binding:"required" validate:"required,email"`
	Password string   `json:"password" binding:"required" validate:"required,min=8"`
	Roles    []string `json:"roles" validate:"omitempty,dive,oneof=admin operator"`
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required" validate:"required"`
}

// TokenResponse carries an issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserResponse is the API shape of an operator account.
type UserResponse struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}
