package webhook

import (
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
)

// Module is the webhook module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the webhook module.
func NewModule(
	brokers BrokerDirectory,
	engine LeadEngine,
	messenger Messenger,
	dedup Deduper,
	cfg config.EngineConfig,
	log *logger.Logger,
) *Module {
	svc := New(brokers, engine, messenger, dedup, cfg, log)
	return &Module{handler: NewHandler(svc)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the webhook routes on the token-guarded group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Webhook)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
