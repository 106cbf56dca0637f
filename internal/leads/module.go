// Package leads receives dialer webhook deliveries, normalizes them into
// canonical leads, deduplicates against existing rows, and routes new leads
// to the least-recently-assigned agent.
package leads

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"agency_backoffice_backend/internal/events"
	apphttp "agency_backoffice_backend/internal/http"
	"agency_backoffice_backend/platform/archive"
	"agency_backoffice_backend/platform/config"
	"agency_backoffice_backend/platform/logger"
)

// Module bundles the leads bounded context.
type Module struct {
	handler *Handler
	service *Service
	cfg     config.WebhookConfig
}

// NewModule wires the leads repository, service, and handler.
func NewModule(pool *pgxpool.Pool, cfg config.WebhookConfig, defaultAgencyID uuid.UUID, bus events.Bus, archiver archive.Store, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, bus, archiver, log)
	handler := NewHandler(service, cfg, defaultAgencyID)

	return &Module{handler: handler, service: service, cfg: cfg}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "leads" }

// Service exposes the leads service for other modules.
func (m *Module) Service() *Service { return m.service }

// RegisterRoutes mounts the public webhook endpoint and the protected
// lead lookup endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	webhooks := ctx.V1.Group("/webhook")
	webhooks.Use(ctx.WebhookRateLimiter.RateLimit(), WebhookAuthMiddleware(m.cfg))
	webhooks.POST("/convoso", m.handler.HandleConvosoWebhook)

	ctx.Protected.GET("/leads/:leadId", m.handler.HandleGetLead)
}
