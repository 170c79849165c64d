// Package leads provides the leads bounded context module: the assignment
// state machine plus the admin listing API.
package leads

import (
	"leadrouter_backend/internal/events"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/internal/leads/handler"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/service"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	service    *service.Service
	repository *repository.Repo
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(
	pool *pgxpool.Pool,
	queue service.BrokerQueue,
	messenger service.Messenger,
	timers service.TimerArena,
	bus events.Bus,
	cfg config.EngineConfig,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, queue, messenger, timers, bus, cfg, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc, repository: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the storage layer; the brokers module uses it for the
// phone collision check.
func (m *Module) Repository() *repository.Repo {
	return m.repository
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
