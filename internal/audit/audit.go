// Package audit records domain events into the audit log so operators can
// trace what the system did and why.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"agency_backoffice_backend/internal/events"
	"agency_backoffice_backend/platform/logger"
)

// Module subscribes to domain events and writes one audit row per event.
type Module struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewModule creates the audit module.
func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	return &Module{pool: pool, log: log}
}

// RegisterHandlers subscribes the module to the events it records. The
// reconciliation sweep writes its own audit entry with richer detail, so
// SweepCompleted is deliberately not subscribed here.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadReceived{}.EventName(), m)
	bus.Subscribe(events.LeadAssigned{}.EventName(), m)
	bus.Subscribe(events.LeadPushed{}.EventName(), m)
}

// Handle writes one audit row for the event.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	var actor, action, entityType, entityID string

	switch e := event.(type) {
	case events.LeadReceived:
		actor, action = "webhook", "lead_received"
		if e.IsUpdate {
			action = "lead_updated"
		}
		entityType, entityID = "lead", e.LeadID.String()
	case events.LeadAssigned:
		actor, action = "system", "lead_assigned"
		entityType, entityID = "lead", e.LeadID.String()
	case events.LeadPushed:
		actor, action = "system", "lead_pushed_to_dialer"
		entityType, entityID = "convoso_lead", e.ConvosoLeadID
	default:
		return nil
	}

	details, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	const query = `
		INSERT INTO audit_logs (actor, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := m.pool.Exec(ctx, query, actor, action, entityType, entityID, details); err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

var _ events.Handler = (*Module)(nil)
