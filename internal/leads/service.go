package leads

import (
	"context"
	"encoding/json"
	"time"

	"agency_backoffice_backend/internal/events"
	"agency_backoffice_backend/platform/apperr"
	"agency_backoffice_backend/platform/archive"
	"agency_backoffice_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the ingestion service needs.
// Satisfied by *Repository.
type Store interface {
	Ingest(ctx context.Context, agencyID uuid.UUID, lead CanonicalLead) (IngestResult, error)
	BumpAnalytics(ctx context.Context, agencyID uuid.UUID, assigned bool) error
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (Lead, error)
}

// WebhookResult is the outcome of processing one webhook delivery.
type WebhookResult struct {
	LeadID          string     `json:"lead_id"`
	Status          string     `json:"status"`
	AgentAssignment *uuid.UUID `json:"agent_assignment"`
	ProcessedAt     time.Time  `json:"processed_at"`
	IsUpdate        bool       `json:"-"`
}

// Service orchestrates webhook lead ingestion.
type Service struct {
	store    Store
	bus      events.Bus
	archiver archive.Store
	log      *logger.Logger
}

// NewService creates a new leads service.
func NewService(store Store, bus events.Bus, archiver archive.Store, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, archiver: archiver, log: log}
}

// ProcessWebhook normalizes, deduplicates, and persists one raw delivery,
// assigning an agent on the new-lead path.
func (s *Service) ProcessWebhook(ctx context.Context, agencyID uuid.UUID, raw []byte) (WebhookResult, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return WebhookResult{}, apperr.BadRequest("invalid JSON payload")
	}

	lead := Normalize(payload)
	if !lead.HasRequiredFields() {
		return WebhookResult{}, apperr.Validation("payload must include a lead_id and a valid phone_number")
	}

	result, err := s.store.Ingest(ctx, agencyID, lead)
	if err != nil {
		s.log.DatabaseError("leads.ingest", err)
		return WebhookResult{}, apperr.Wrap(apperr.KindInternal, "failed to persist lead", err)
	}

	if err := s.store.BumpAnalytics(ctx, agencyID, result.AssignedAgent != nil); err != nil {
		// Counter drift is tolerable; the lead is already safe.
		s.log.DatabaseError("leads.bump_analytics", err)
	}

	if key, err := s.archiver.ArchivePayload(ctx, lead.Source, lead.LeadID, raw); err != nil {
		s.log.Error("failed to archive raw payload", "error", err, "leadId", lead.LeadID)
	} else if key != "" {
		s.log.Debug("raw payload archived", "key", key)
	}

	s.bus.Publish(ctx, events.LeadReceived{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         result.Lead.ID,
		AgencyID:       agencyID,
		ExternalLeadID: lead.LeadID,
		PhoneNumber:    lead.PhoneNumber,
		Source:         lead.Source,
		IsUpdate:       result.IsUpdate,
	})
	if result.AssignedAgent != nil {
		s.bus.Publish(ctx, events.LeadAssigned{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         result.Lead.ID,
			AgencyID:       agencyID,
			AgentID:        *result.AssignedAgent,
			ExternalLeadID: lead.LeadID,
			LeadName:       lead.FullName(),
			PhoneNumber:    lead.PhoneNumber,
			Source:         lead.Source,
		})
	}

	s.log.WebhookEvent(lead.Source, lead.LeadID, true, "")

	return WebhookResult{
		LeadID:          lead.LeadID,
		Status:          result.Lead.Status,
		AgentAssignment: result.AssignedAgent,
		ProcessedAt:     time.Now().UTC(),
		IsUpdate:        result.IsUpdate,
	}, nil
}

// GetLead fetches a lead scoped to the caller's agency.
func (s *Service) GetLead(ctx context.Context, agencyID, id uuid.UUID) (Lead, error) {
	lead, err := s.store.GetByID(ctx, agencyID, id)
	if err == ErrLeadNotFound {
		return Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		s.log.DatabaseError("leads.get_by_id", err)
		return Lead{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	return lead, nil
}
