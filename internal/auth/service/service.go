// Package service implements operator authentication: password login
// issuing JWT access tokens plus opaque refresh tokens stored hashed.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"leadrouter_backend/internal/auth/repository"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
)

const accessTokenType = "access"

// Service provides authentication operations.
type Service struct {
	repo repository.Repository
	cfg  config.AuthServiceConfig
	log  *logger.Logger
}

// New creates a new auth service.
func New(repo repository.Repository, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log}
}

// Register creates an operator account. Only admins can reach this.
func (s *Service) Register(ctx context.Context, email, plainPassword string, roles []string) (repository.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return repository.User{}, err
	}
	if len(roles) == 0 {
		roles = []string{"operator"}
	}

	user, err := s.repo.CreateUser(ctx, email, string(hash), roles)
	if err != nil {
		return repository.User{}, err
	}

	s.log.AuthEvent("register", email, true, "")
	return user, nil
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (string, string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		s.log.AuthEvent("login", email, false, "unknown email")
		return "", "", apperr.Unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plainPassword)); err != nil {
		s.log.AuthEvent("login", email, false, "wrong password")
		return "", "", apperr.Unauthorized("invalid credentials")
	}

	s.log.AuthEvent("login", email, true, "")
	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token into a fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	hash := hashToken(refreshToken)
	userID, expiresAt, err := s.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		return "", "", apperr.Unauthorized("invalid refresh token")
	}
	if time.Now().After(expiresAt) {
		_ = s.repo.RevokeRefreshToken(ctx, hash)
		return "", "", apperr.Unauthorized("refresh token expired")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", apperr.Unauthorized("invalid refresh token")
	}

	// Single use; the old token dies with the rotation.
	_ = s.repo.RevokeRefreshToken(ctx, hash)
	return s.issueTokens(ctx, user)
}

// Logout revokes the refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.RevokeRefreshToken(ctx, hashToken(refreshToken))
}

// GetUser loads an operator account.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (repository.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) issueTokens(ctx context.Context, user repository.User) (string, string, error) {
	accessToken, err := s.signJWT(user.ID, user.Roles)
	if err != nil {
		return "", "", err
	}

	refreshToken, err := randomToken(48)
	if err != nil {
		return "", "", err
	}
	expiresAt := time.Now().Add(s.cfg.GetRefreshTokenTTL())
	if err := s.repo.CreateRefreshToken(ctx, user.ID, hashToken(refreshToken), expiresAt); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (s *Service) signJWT(userID uuid.UUID, roles []string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"type":  accessTokenType,
		"roles": roles,
		"exp":   now.Add(s.cfg.GetAccessTokenTTL()).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
