package dialer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration is an agency's dialer configuration: credentials plus the
// list catalog.
type Integration struct {
	ID        uuid.UUID
	AgencyID  uuid.UUID
	AuthToken string
	Lists     []List
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrackingRecord mirrors one dialer-side lead locally.
type TrackingRecord struct {
	AgencyID       uuid.UUID
	ConvosoLeadID  string
	InternalLeadID *uuid.UUID
	ListID         string
	CampaignID     string
	Status         string
}

// ErrIntegrationNotFound is returned when an agency has no active dialer
// integration.
var ErrIntegrationNotFound = errors.New("dialer integration not found")

// Repository provides data access for dialer integrations and tracking
// records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new dialer repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetIntegration loads an agency's active dialer integration. Missing and
// inactive integrations are indistinguishable to the caller; both mean the
// agency cannot push leads.
func (r *Repository) GetIntegration(ctx context.Context, agencyID uuid.UUID) (Integration, error) {
	const query = `
		SELECT id, agency_id, convoso_auth_token, lists, is_active, created_at, updated_at
		FROM agency_integrations
		WHERE agency_id = $1 AND is_active = TRUE`

	var integration Integration
	var listsJSON []byte
	err := r.pool.QueryRow(ctx, query, agencyID).Scan(
		&integration.ID,
		&integration.AgencyID,
		&integration.AuthToken,
		&listsJSON,
		&integration.IsActive,
		&integration.CreatedAt,
		&integration.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return Integration{}, ErrIntegrationNotFound
	}
	if err != nil {
		return Integration{}, fmt.Errorf("load integration: %w", err)
	}

	if err := json.Unmarshal(listsJSON, &integration.Lists); err != nil {
		return Integration{}, fmt.Errorf("decode list catalog: %w", err)
	}

	return integration, nil
}

// UpsertTracking records a delivered lead, updating in place when the same
// (agency_id, convoso_lead_id) pair is delivered again.
func (r *Repository) UpsertTracking(ctx context.Context, record TrackingRecord) error {
	const query = `
		INSERT INTO convoso_leads
			(agency_id, convoso_lead_id, internal_lead_id, list_id, campaign_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT convoso_leads_agency_lead_key DO UPDATE SET
			internal_lead_id = COALESCE(EXCLUDED.internal_lead_id, convoso_leads.internal_lead_id),
			list_id          = EXCLUDED.list_id,
			campaign_id      = EXCLUDED.campaign_id,
			status           = EXCLUDED.status,
			updated_at       = now()`

	_, err := r.pool.Exec(ctx, query,
		record.AgencyID,
		record.ConvosoLeadID,
		record.InternalLeadID,
		nullIfEmpty(record.ListID),
		nullIfEmpty(record.CampaignID),
		record.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert tracking record: %w", err)
	}
	return nil
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
