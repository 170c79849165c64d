package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadrouter_backend/platform/apperr"
)

const userColumns = "id, email, password_hash, roles, created_at, updated_at"

// Repo implements the auth repository backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new auth repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

func (r *Repo) CreateUser(ctx context.Context, email, passwordHash string, roles []string) (User, error) {
	query := `
		INSERT INTO users (email, password_hash, roles)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	user, err := r.scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(email), passwordHash, roles))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, apperr.Conflict("email already registered")
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := r.scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *Repo) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := r.scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *Repo) CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, query, userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func (r *Repo) GetRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, time.Time, error) {
	query := `SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash = $1 AND revoked_at IS NULL`

	var userID uuid.UUID
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, time.Time{}, apperr.NotFound("refresh token not found")
		}
		return uuid.Nil, time.Time{}, fmt.Errorf("get refresh token: %w", err)
	}
	return userID, expiresAt, nil
}

func (r *Repo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	query := `UPDATE refresh_tokens SET revoked_at = now() WHERE token_hash = $1 AND revoked_at IS NULL`
	if _, err := r.pool.Exec(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *Repo) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (r *Repo) scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Roles,
		&user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}
