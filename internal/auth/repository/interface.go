package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is an operator account for the admin API.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository is the storage port for users and refresh tokens.
type Repository interface {
	CreateUser(ctx context.Context, email, passwordHash string, roles []string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	// CreateRefreshToken stores the SHA-256 hash of a refresh token.
	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	// GetRefreshToken resolves a token hash to its owner and expiry.
	GetRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, time.Time, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error
}
