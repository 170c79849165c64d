// Package brokers provides the brokers bounded context module: broker
// management and the rotation queue.
package brokers

import (
	"leadrouter_backend/internal/brokers/handler"
	"leadrouter_backend/internal/brokers/repository"
	"leadrouter_backend/internal/brokers/service"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the brokers bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the brokers module with all its dependencies.
func NewModule(pool *pgxpool.Pool, leadPhones service.LeadPhoneChecker, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leadPhones, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "brokers"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts broker routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/brokers")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
