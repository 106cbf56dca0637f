package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AgentContact is the minimum needed to address an agent notification.
type AgentContact struct {
	Email     string
	FirstName string
	LastName  string
}

// Repository resolves notification recipients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new notification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetAgentContact loads an agent's email and name. Returns ok=false when
// the agent does not exist or has no email on file.
func (r *Repository) GetAgentContact(ctx context.Context, agentID uuid.UUID) (AgentContact, bool, error) {
	const query = `
		SELECT email, first_name, last_name
		FROM users
		WHERE id = $1 AND email <> ''`

	var contact AgentContact
	err := r.pool.QueryRow(ctx, query, agentID).Scan(&contact.Email, &contact.FirstName, &contact.LastName)
	if err == pgx.ErrNoRows {
		return AgentContact{}, false, nil
	}
	if err != nil {
		return AgentContact{}, false, fmt.Errorf("load agent contact: %w", err)
	}
	return contact, true, nil
}
