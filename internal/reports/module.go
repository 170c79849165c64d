// Package reports provides the reporting bounded context module.
package reports

import (
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/internal/reports/handler"
	"leadrouter_backend/internal/reports/repository"
	"leadrouter_backend/internal/reports/service"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the reports bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the reports module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)

	return &Module{handler: h}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reports"
}

// RegisterRoutes mounts report routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/reports")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
