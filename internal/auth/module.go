// Package auth provides the authentication bounded context module.
package auth

import (
	"leadrouter_backend/internal/auth/handler"
	"leadrouter_backend/internal/auth/repository"
	"leadrouter_backend/internal/auth/service"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts auth routes on the provided router context. Login
// endpoints carry the stricter auth rate limiter.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("/auth")
	if ctx.AuthRateLimiter != nil {
		public.Use(ctx.AuthRateLimiter.RateLimit())
	}
	m.handler.RegisterPublicRoutes(public)

	protected := ctx.Protected.Group("/auth")
	m.handler.RegisterProtectedRoutes(protected)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
