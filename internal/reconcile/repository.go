package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrphanSale is a sale missing its agency, paired with the agent whose
// agency is the source of truth for the backfill.
type OrphanSale struct {
	SaleID  uuid.UUID
	AgentID uuid.UUID
}

// MissingCommission is a sale owed a commission row.
type MissingCommission struct {
	SaleID           uuid.UUID
	AgentID          *uuid.UUID
	AgencyID         *uuid.UUID
	PremiumAmount    float64
	CommissionAmount float64
	SaleStatus       string
}

// Repository provides data access for the reconciliation sweep.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new reconcile repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureFallbackAgency upserts the designated fallback agency so orphan
// repair always has a valid target. Returns true when the row was created
// rather than already present.
func (r *Repository) EnsureFallbackAgency(ctx context.Context, id uuid.UUID, name string) (bool, error) {
	const query = `
		INSERT INTO agencies (id, name, status, is_active)
		VALUES ($1, $2, 'active', TRUE)
		ON CONFLICT (id) DO UPDATE SET
			status     = 'active',
			is_active  = TRUE,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	if err := r.pool.QueryRow(ctx, query, id, name).Scan(&inserted); err != nil {
		return false, fmt.Errorf("ensure fallback agency: %w", err)
	}
	return inserted, nil
}

// ReassignOrphanUsers moves users whose agency is missing or inactive to
// the fallback agency. Returns the number of users moved.
func (r *Repository) ReassignOrphanUsers(ctx context.Context, fallbackID uuid.UUID) (int64, error) {
	const query = `
		UPDATE users SET agency_id = $1, updated_at = now()
		WHERE id IN (
			SELECT u.id FROM users u
			LEFT JOIN agencies a ON a.id = u.agency_id AND a.is_active = TRUE
			WHERE a.id IS NULL AND (u.agency_id IS NULL OR u.agency_id <> $1)
		)`

	tag, err := r.pool.Exec(ctx, query, fallbackID)
	if err != nil {
		return 0, fmt.Errorf("reassign orphan users: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListSalesMissingAgency finds sales with no agency but an assigned agent
// whose agency can supply it.
func (r *Repository) ListSalesMissingAgency(ctx context.Context) ([]OrphanSale, error) {
	const query = `
		SELECT s.id, s.agent_id
		FROM sales s
		JOIN users u ON u.id = s.agent_id
		WHERE s.agency_id IS NULL AND u.agency_id IS NOT NULL`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list orphan sales: %w", err)
	}
	defer rows.Close()

	var orphans []OrphanSale
	for rows.Next() {
		var orphan OrphanSale
		if err := rows.Scan(&orphan.SaleID, &orphan.AgentID); err != nil {
			return nil, fmt.Errorf("scan orphan sale: %w", err)
		}
		orphans = append(orphans, orphan)
	}
	return orphans, rows.Err()
}

// BackfillSaleAgency copies the agent's current agency onto one sale. The
// agency_id IS NULL guard keeps re-runs and concurrent sweeps from
// overwriting a value some other writer set in the meantime.
func (r *Repository) BackfillSaleAgency(ctx context.Context, saleID, agentID uuid.UUID) (bool, error) {
	const query = `
		UPDATE sales SET
			agency_id  = (SELECT agency_id FROM users WHERE id = $2),
			updated_at = now()
		WHERE id = $1 AND agency_id IS NULL`

	tag, err := r.pool.Exec(ctx, query, saleID, agentID)
	if err != nil {
		return false, fmt.Errorf("backfill sale agency: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListMissingCommissions finds sales carrying a positive commission amount
// with no commission row, via set difference on sale_id.
func (r *Repository) ListMissingCommissions(ctx context.Context) ([]MissingCommission, error) {
	const query = `
		SELECT s.id, s.agent_id, s.agency_id, s.premium_amount, s.commission_amount, s.status
		FROM sales s
		WHERE s.commission_amount > 0
		  AND s.id NOT IN (SELECT sale_id FROM commissions)`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list missing commissions: %w", err)
	}
	defer rows.Close()

	var missing []MissingCommission
	for rows.Next() {
		var m MissingCommission
		if err := rows.Scan(&m.SaleID, &m.AgentID, &m.AgencyID, &m.PremiumAmount, &m.CommissionAmount, &m.SaleStatus); err != nil {
			return nil, fmt.Errorf("scan missing commission: %w", err)
		}
		missing = append(missing, m)
	}
	return missing, rows.Err()
}

// InsertCommissions bulk-inserts the missing commission rows. The unique
// constraint on sale_id plus DO NOTHING makes the insert safe against a
// concurrent sweep or a live sale-completion writer.
func (r *Repository) InsertCommissions(ctx context.Context, missing []MissingCommission) (int64, error) {
	if len(missing) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO commissions (sale_id, agent_id, agency_id, base_amount, commission_amount, payment_status)
		SELECT * FROM unnest($1::uuid[], $2::uuid[], $3::uuid[], $4::numeric[], $5::numeric[], $6::text[])
		ON CONFLICT (sale_id) DO NOTHING`

	saleIDs := make([]uuid.UUID, len(missing))
	agentIDs := make([]*uuid.UUID, len(missing))
	agencyIDs := make([]*uuid.UUID, len(missing))
	baseAmounts := make([]float64, len(missing))
	amounts := make([]float64, len(missing))
	statuses := make([]string, len(missing))
	for i, m := range missing {
		saleIDs[i] = m.SaleID
		agentIDs[i] = m.AgentID
		agencyIDs[i] = m.AgencyID
		baseAmounts[i] = m.PremiumAmount
		amounts[i] = m.CommissionAmount
		statuses[i] = paymentStatusFor(m.SaleStatus)
	}

	tag, err := r.pool.Exec(ctx, query, saleIDs, agentIDs, agencyIDs, baseAmounts, amounts, statuses)
	if err != nil {
		return 0, fmt.Errorf("insert commissions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// paymentStatusFor derives a commission's payment status from its sale.
func paymentStatusFor(saleStatus string) string {
	switch saleStatus {
	case "paid", "completed":
		return "approved"
	case "cancelled":
		return "cancelled"
	default:
		return "pending"
	}
}

// RecordSweep writes the audit entry for one sweep run.
func (r *Repository) RecordSweep(ctx context.Context, actor string, fixes, errs []string) error {
	details, err := json.Marshal(map[string]any{
		"fixes_applied": fixes,
		"errors":        errs,
	})
	if err != nil {
		return fmt.Errorf("encode sweep details: %w", err)
	}

	const query = `
		INSERT INTO audit_logs (actor, action, entity_type, details)
		VALUES ($1, 'reconciliation_sweep', 'system', $2)`

	if _, err := r.pool.Exec(ctx, query, actor, details); err != nil {
		return fmt.Errorf("record sweep audit entry: %w", err)
	}
	return nil
}
