// Package notification sends emails in response to domain events, so the
// domain modules never touch email providers or templates directly.
package notification

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"agency_backoffice_backend/internal/email"
	"agency_backoffice_backend/internal/events"
	"agency_backoffice_backend/platform/logger"
)

// ContactReader resolves an agent's email address. Satisfied by
// *Repository.
type ContactReader interface {
	GetAgentContact(ctx context.Context, agentID uuid.UUID) (AgentContact, bool, error)
}

// Module subscribes to domain events and sends the corresponding emails.
type Module struct {
	repo     ContactReader
	sender   email.Sender
	opsInbox string
	log      *logger.Logger
}

// NewModule wires the notification module. opsInbox receives sweep reports;
// when empty, sweep reports are logged but not mailed.
func NewModule(pool *pgxpool.Pool, sender email.Sender, opsInbox string, log *logger.Logger) *Module {
	return &Module{
		repo:     NewRepository(pool),
		sender:   sender,
		opsInbox: opsInbox,
		log:      log,
	}
}

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), m)
	bus.Subscribe(events.SweepCompleted{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadAssigned:
		return m.handleLeadAssigned(ctx, e)
	case events.SweepCompleted:
		return m.handleSweepCompleted(ctx, e)
	}
	return nil
}

func (m *Module) handleLeadAssigned(ctx context.Context, event events.LeadAssigned) error {
	contact, ok, err := m.repo.GetAgentContact(ctx, event.AgentID)
	if err != nil {
		return err
	}
	if !ok {
		m.log.Warn("lead assigned to agent with no email on file", "agentId", event.AgentID)
		return nil
	}

	agentName := strings.TrimSpace(contact.FirstName + " " + contact.LastName)
	if agentName == "" {
		agentName = contact.Email
	}
	leadName := event.LeadName
	if leadName == "" {
		leadName = event.ExternalLeadID
	}

	return m.sender.SendLeadAssignedEmail(ctx, contact.Email, email.LeadAssignedData{
		AgentName:   agentName,
		LeadName:    leadName,
		PhoneNumber: event.PhoneNumber,
		Source:      event.Source,
	})
}

// handleSweepCompleted mails the run summary to the operations inbox, but
// only when the sweep actually did something or failed; clean runs happen
// every few hours and would just be noise.
func (m *Module) handleSweepCompleted(ctx context.Context, event events.SweepCompleted) error {
	if m.opsInbox == "" {
		return nil
	}
	if len(event.FixesApplied) == 0 && len(event.Errors) == 0 {
		return nil
	}

	return m.sender.SendSweepReportEmail(ctx, m.opsInbox, email.SweepReportData{
		FixesApplied: event.FixesApplied,
		Errors:       event.Errors,
		TriggeredBy:  event.TriggeredBy,
	})
}

var _ events.Handler = (*Module)(nil)
