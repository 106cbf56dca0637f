// Package reconcile repairs referential drift among users, agencies,
// sales, and commissions: orphaned users get a fallback agency, sales get
// their agency backfilled from their agent, and missing commission rows
// are created from the sale's stored amounts.
package reconcile

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"agency_backoffice_backend/internal/events"
	apphttp "agency_backoffice_backend/internal/http"
	"agency_backoffice_backend/platform/config"
	"agency_backoffice_backend/platform/logger"
)

// Module bundles the reconciliation bounded context.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule wires the reconcile repository, service, and handler. The
// fallback agency identity comes from configuration; a malformed value is
// a deployment error surfaced at startup by config validation, so the
// parse here only guards against the zero value.
func NewModule(pool *pgxpool.Pool, cfg config.ReconcileConfig, bus events.Bus, log *logger.Logger) *Module {
	fallbackID, err := uuid.Parse(cfg.GetFallbackAgencyID())
	if err != nil {
		fallbackID = uuid.Nil
	}

	repo := NewRepository(pool)
	service := NewService(repo, bus, log, fallbackID, cfg.GetFallbackAgencyName())

	return &Module{handler: NewHandler(service), service: service}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "reconcile" }

// Service exposes the sweep for the scheduler worker.
func (m *Module) Service() *Service { return m.service }

// RegisterRoutes mounts the admin-only sweep trigger.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.POST("/reconcile", m.handler.HandleSweep)
}
