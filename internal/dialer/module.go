// Package dialer pushes leads into the third-party dialer: it resolves the
// agency's integration, picks a destination list, delivers with bounded
// retry, and mirrors the dialer-side lead locally.
package dialer

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"agency_backoffice_backend/internal/events"
	apphttp "agency_backoffice_backend/internal/http"
	"agency_backoffice_backend/platform/config"
	"agency_backoffice_backend/platform/logger"
	"agency_backoffice_backend/platform/validator"
)

// Module bundles the dialer bounded context.
type Module struct {
	handler *Handler
}

// NewModule wires the dialer repository, API client, service, and handler.
func NewModule(pool *pgxpool.Pool, cfg config.DialerConfig, bus events.Bus, validate *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	client := NewClient(cfg, log)
	service := NewService(repo, client, bus, log)

	return &Module{handler: NewHandler(service, validate)}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "dialer" }

// RegisterRoutes mounts the authenticated push endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/dialer/leads", m.handler.HandlePushLead)
}
