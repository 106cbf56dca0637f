package dialer

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"agency_backoffice_backend/internal/events"
	"agency_backoffice_backend/platform/apperr"
	"agency_backoffice_backend/platform/logger"
)

// IntegrationStore is the persistence surface the push flow needs.
// Satisfied by *Repository.
type IntegrationStore interface {
	GetIntegration(ctx context.Context, agencyID uuid.UUID) (Integration, error)
	UpsertTracking(ctx context.Context, record TrackingRecord) error
}

// Inserter delivers a lead to the dialer. Satisfied by *Client.
type Inserter interface {
	InsertLead(ctx context.Context, authToken, listID string, lead PushLead) (string, error)
}

// PushResult is the outcome of one outbound push.
type PushResult struct {
	ConvosoLeadID string `json:"convoso_lead_id"`
	ListID        string `json:"list_id"`
	Message       string `json:"message"`
}

// Service orchestrates outbound lead pushes to the dialer.
type Service struct {
	store    IntegrationStore
	inserter Inserter
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates a new dialer service.
func NewService(store IntegrationStore, inserter Inserter, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, inserter: inserter, bus: bus, log: log}
}

// PushLead routes a lead into the agency's dialer: validate the tenant
// identifier, load the integration, pick a destination list, deliver with
// retry, and record the delivery locally.
//
// The UUID check runs before any lookup so a malformed identifier surfaces
// as a 400 instead of a store error dressed up as a 500.
func (s *Service) PushLead(ctx context.Context, rawAgencyID string, leadData map[string]any, internalLeadID *uuid.UUID) (PushResult, error) {
	agencyID, err := uuid.Parse(rawAgencyID)
	if err != nil {
		return PushResult{}, apperr.BadRequest("agency_id must be a valid UUID")
	}

	lead := ExtractPushLead(leadData)
	if lead.PhoneNumber == "" {
		return PushResult{}, apperr.Validation("lead_data must include a phone number")
	}

	integration, err := s.store.GetIntegration(ctx, agencyID)
	if err == ErrIntegrationNotFound {
		return PushResult{}, apperr.NotFound("no active dialer integration for this agency")
	}
	if err != nil {
		s.log.DatabaseError("dialer.get_integration", err)
		return PushResult{}, apperr.Wrap(apperr.KindInternal, "failed to load dialer integration", err)
	}

	list := SelectList(lead, integration.Lists)
	if list == nil {
		return PushResult{}, apperr.NotFound("agency has no dialer lists configured")
	}

	convosoLeadID, err := s.inserter.InsertLead(ctx, integration.AuthToken, list.ID, lead)
	if err != nil {
		return PushResult{}, s.mapDeliveryError(err)
	}

	record := TrackingRecord{
		AgencyID:       agencyID,
		ConvosoLeadID:  convosoLeadID,
		InternalLeadID: internalLeadID,
		ListID:         list.ID,
		CampaignID:     list.CampaignID,
		Status:         "inserted",
	}
	if err := s.store.UpsertTracking(ctx, record); err != nil {
		// The lead is already on the dialer; losing the local mirror is
		// recoverable by the reconciliation sweep, failing the request is not.
		s.log.DatabaseError("dialer.upsert_tracking", err)
	}

	s.bus.Publish(ctx, events.LeadPushed{
		BaseEvent:      events.NewBaseEvent(),
		AgencyID:       agencyID,
		ConvosoLeadID:  convosoLeadID,
		ListID:         list.ID,
		InternalLeadID: internalLeadID,
	})

	s.log.Info("lead pushed to dialer",
		"agencyId", agencyID, "convosoLeadId", convosoLeadID, "listId", list.ID, "listName", list.Name)

	return PushResult{
		ConvosoLeadID: convosoLeadID,
		ListID:        list.ID,
		Message:       "lead inserted into list " + list.Name,
	}, nil
}

// mapDeliveryError translates transport failures into the caller-facing
// taxonomy: duplicate 409, timeout 504, connectivity 502, the rest 500.
// Timeout wins over connectivity because the transport wraps deadline
// errors in its own envelope.
func (s *Service) mapDeliveryError(err error) error {
	switch {
	case errors.Is(err, ErrDuplicateLead):
		return apperr.Wrap(apperr.KindConflict, "lead already exists on the dialer", err)
	case IsTimeout(err):
		return apperr.Wrap(apperr.KindGatewayTimeout, "dialer did not respond in time", err)
	case IsConnectivity(err):
		return apperr.Wrap(apperr.KindBadGateway, "could not reach the dialer", err)
	default:
		s.log.Error("dialer insert failed", "error", err)
		return apperr.Wrap(apperr.KindInternal, "dialer insert failed", err)
	}
}
