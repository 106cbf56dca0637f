package leads

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lead is a persisted lead row.
type Lead struct {
	ID              uuid.UUID
	AgencyID        uuid.UUID
	LeadID          string
	ExternalID      *string
	PhoneNumber     string
	FirstName       *string
	LastName        *string
	Email           *string
	State           *string
	City            *string
	ZipCode         *string
	Source          string
	CampaignID      *string
	CampaignName    *string
	InsuranceType   *string
	CoverageType    *string
	Priority        string
	LeadScore       int
	Cost            float64
	Age             *int
	AgentAssignment *uuid.UUID
	Status          string
	CallAttempts    int
	AdditionalData  []byte
	ReceivedAt      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IngestResult describes the outcome of persisting one webhook delivery.
type IngestResult struct {
	Lead          Lead
	IsUpdate      bool
	AssignedAgent *uuid.UUID
}

// ErrLeadNotFound is returned when a lead lookup matches no row.
var ErrLeadNotFound = errors.New("lead not found")

const leadColumns = `
	id, agency_id, lead_id, external_id, phone_number, first_name, last_name,
	email, state, city, zip_code, source, campaign_id, campaign_name,
	insurance_type, coverage_type, priority, lead_score, cost, age,
	agent_assignment, status, call_attempts, additional_data,
	received_at, created_at, updated_at`

// Repository provides data access for leads and agent assignment.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new leads repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ingest persists one normalized delivery atomically: resolve duplicates by
// external lead ID or phone number, update in place when matched, otherwise
// insert and route the new lead to the least-recently-assigned active agent.
// The whole unit runs in a single transaction so concurrent deliveries for
// the same lead key cannot produce two rows, and concurrent new-lead
// assignments cannot both claim the same agent.
func (r *Repository) Ingest(ctx context.Context, agencyID uuid.UUID, lead CanonicalLead) (IngestResult, error) {
	var result IngestResult

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		existing, err := lockExisting(ctx, tx, agencyID, lead)
		if err != nil {
			return err
		}

		if existing != nil {
			updated, err := updateLead(ctx, tx, existing.ID, lead)
			if err != nil {
				return err
			}
			result = IngestResult{Lead: updated, IsUpdate: true}
			return nil
		}

		inserted, wasInsert, err := insertLead(ctx, tx, agencyID, lead)
		if err != nil {
			return err
		}
		result = IngestResult{Lead: inserted, IsUpdate: !wasInsert}

		if wasInsert {
			agentID, err := assignNextAgent(ctx, tx, agencyID, inserted.ID)
			if err != nil {
				return err
			}
			result.AssignedAgent = agentID
			result.Lead.AgentAssignment = agentID
		}
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}
	return result, nil
}

// lockExisting finds and row-locks any lead matching the external lead ID or
// the normalized phone number. A phone match with a different external ID is
// treated as the same lead (shared or re-dialed numbers update in place
// rather than forking a second record).
func lockExisting(ctx context.Context, tx pgx.Tx, agencyID uuid.UUID, lead CanonicalLead) (*Lead, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE agency_id = $1 AND (lead_id = $2 OR phone_number = $3)
		ORDER BY (lead_id = $2) DESC
		LIMIT 1
		FOR UPDATE
	`, agencyID, lead.LeadID, lead.PhoneNumber)

	existing, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func updateLead(ctx context.Context, tx pgx.Tx, id uuid.UUID, lead CanonicalLead) (Lead, error) {
	additional, err := json.Marshal(lead.AdditionalData)
	if err != nil {
		return Lead{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE leads SET
			lead_id = $2, external_id = NULLIF($3, ''), phone_number = $4,
			first_name = NULLIF($5, ''), last_name = NULLIF($6, ''),
			email = NULLIF($7, ''), state = NULLIF($8, ''), city = NULLIF($9, ''),
			zip_code = NULLIF($10, ''), source = $11,
			campaign_id = NULLIF($12, ''), campaign_name = NULLIF($13, ''),
			insurance_type = NULLIF($14, ''), coverage_type = NULLIF($15, ''),
			priority = $16, lead_score = $17, cost = $18, age = $19,
			additional_data = $20, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns+`
	`, id, lead.LeadID, lead.ExternalID, lead.PhoneNumber, lead.FirstName,
		lead.LastName, lead.Email, lead.State, lead.City, lead.ZipCode,
		lead.Source, lead.CampaignID, lead.CampaignName, lead.InsuranceType,
		lead.CoverageType, lead.Priority, lead.LeadScore, lead.Cost, lead.Age,
		additional)

	return scanLead(row)
}

// insertLead inserts, resolving races on the external-ID key with ON
// CONFLICT DO UPDATE. A concurrent insert can still trip the phone-number
// unique constraint when the same number arrives under two external IDs.
// The insert runs inside a savepoint so that failure leaves the enclosing
// transaction usable; the conflict then resolves as an update against the
// row that won.
func insertLead(ctx context.Context, tx pgx.Tx, agencyID uuid.UUID, lead CanonicalLead) (Lead, bool, error) {
	inserted, wasInsert, err := insertLeadSavepoint(ctx, tx, agencyID, lead)
	if err == nil {
		return inserted, wasInsert, nil
	}
	if !isPhoneConflict(err) {
		return Lead{}, false, err
	}

	row := tx.QueryRow(ctx, `
		SELECT id FROM leads
		WHERE agency_id = $1 AND phone_number = $2
		FOR UPDATE
	`, agencyID, lead.PhoneNumber)
	var existingID uuid.UUID
	if scanErr := row.Scan(&existingID); scanErr != nil {
		return Lead{}, false, err
	}
	updated, updateErr := updateLead(ctx, tx, existingID, lead)
	return updated, false, updateErr
}

// insertLeadSavepoint runs the insert inside a nested transaction and rolls
// it back on failure. Without the savepoint, a unique violation would abort
// the outer transaction and no recovery statement could run on it.
func insertLeadSavepoint(ctx context.Context, tx pgx.Tx, agencyID uuid.UUID, lead CanonicalLead) (Lead, bool, error) {
	additional, err := json.Marshal(lead.AdditionalData)
	if err != nil {
		return Lead{}, false, err
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return Lead{}, false, err
	}

	row := sp.QueryRow(ctx, `
		INSERT INTO leads (
			agency_id, lead_id, external_id, phone_number, first_name, last_name,
			email, state, city, zip_code, source, campaign_id, campaign_name,
			insurance_type, coverage_type, priority, lead_score, cost, age,
			additional_data
		) VALUES (
			$1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''),
			NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''),
			$11, NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''),
			NULLIF($15, ''), $16, $17, $18, $19, $20
		)
		ON CONFLICT ON CONSTRAINT leads_agency_lead_id_key DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			state = EXCLUDED.state,
			city = EXCLUDED.city,
			zip_code = EXCLUDED.zip_code,
			source = EXCLUDED.source,
			campaign_id = EXCLUDED.campaign_id,
			campaign_name = EXCLUDED.campaign_name,
			insurance_type = EXCLUDED.insurance_type,
			coverage_type = EXCLUDED.coverage_type,
			priority = EXCLUDED.priority,
			lead_score = EXCLUDED.lead_score,
			cost = EXCLUDED.cost,
			age = EXCLUDED.age,
			additional_data = EXCLUDED.additional_data,
			updated_at = now()
		RETURNING `+leadColumns+`, (xmax = 0) AS inserted
	`, agencyID, lead.LeadID, lead.ExternalID, lead.PhoneNumber,
		lead.FirstName, lead.LastName, lead.Email, lead.State, lead.City,
		lead.ZipCode, lead.Source, lead.CampaignID, lead.CampaignName,
		lead.InsuranceType, lead.CoverageType, lead.Priority, lead.LeadScore,
		lead.Cost, lead.Age, additional)

	inserted, wasInsert, err := scanLeadWithInsertFlag(row)
	if err != nil {
		_ = sp.Rollback(ctx)
		return Lead{}, false, err
	}
	if err := sp.Commit(ctx); err != nil {
		return Lead{}, false, err
	}
	return inserted, wasInsert, nil
}

func isPhoneConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == "leads_agency_phone_key"
}

// assignNextAgent claims the eligible agent that has gone longest without a
// new lead and stamps last_lead_assigned in the same statement, then records
// the assignment on the lead. SKIP LOCKED keeps concurrent new-lead
// transactions from both selecting the same agent. Returns nil when the
// agency has no eligible agent; the lead stays unassigned, which is valid.
func assignNextAgent(ctx context.Context, tx pgx.Tx, agencyID, leadID uuid.UUID) (*uuid.UUID, error) {
	var agentID uuid.UUID
	err := tx.QueryRow(ctx, `
		UPDATE users SET last_lead_assigned = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM users
			WHERE agency_id = $1 AND role = 'agent' AND is_active = TRUE
				AND status = 'active'
			ORDER BY last_lead_assigned ASC NULLS FIRST, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`, agencyID).Scan(&agentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE leads SET agent_assignment = $2, updated_at = now()
		WHERE id = $1
	`, leadID, agentID); err != nil {
		return nil, err
	}
	return &agentID, nil
}

// BumpAnalytics increments the agency's daily ingestion counters.
func (r *Repository) BumpAnalytics(ctx context.Context, agencyID uuid.UUID, assigned bool) error {
	assignedBump := 0
	if assigned {
		assignedBump = 1
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_analytics (agency_id, date, leads_received, leads_assigned)
		VALUES ($1, CURRENT_DATE, 1, $2)
		ON CONFLICT (agency_id, date) DO UPDATE SET
			leads_received = lead_analytics.leads_received + 1,
			leads_assigned = lead_analytics.leads_assigned + $2
	`, agencyID, assignedBump)
	return err
}

// GetByID fetches a lead scoped to its agency.
func (r *Repository) GetByID(ctx context.Context, agencyID, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND agency_id = $2
	`, id, agencyID)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	return lead, err
}

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.AgencyID, &l.LeadID, &l.ExternalID, &l.PhoneNumber,
		&l.FirstName, &l.LastName, &l.Email, &l.State, &l.City, &l.ZipCode,
		&l.Source, &l.CampaignID, &l.CampaignName, &l.InsuranceType,
		&l.CoverageType, &l.Priority, &l.LeadScore, &l.Cost, &l.Age,
		&l.AgentAssignment, &l.Status, &l.CallAttempts, &l.AdditionalData,
		&l.ReceivedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

func scanLeadWithInsertFlag(row pgx.Row) (Lead, bool, error) {
	var l Lead
	var inserted bool
	err := row.Scan(
		&l.ID, &l.AgencyID, &l.LeadID, &l.ExternalID, &l.PhoneNumber,
		&l.FirstName, &l.LastName, &l.Email, &l.State, &l.City, &l.ZipCode,
		&l.Source, &l.CampaignID, &l.CampaignName, &l.InsuranceType,
		&l.CoverageType, &l.Priority, &l.LeadScore, &l.Cost, &l.Age,
		&l.AgentAssignment, &l.Status, &l.CallAttempts, &l.AdditionalData,
		&l.ReceivedAt, &l.CreatedAt, &l.UpdatedAt, &inserted,
	)
	return l, inserted, err
}
