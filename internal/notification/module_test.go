package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"agency_backoffice_backend/internal/email"
	"agency_backoffice_backend/internal/events"
	"agency_backoffice_backend/platform/logger"
)

type fakeContacts struct {
	contacts map[uuid.UUID]AgentContact
}

func (f *fakeContacts) GetAgentContact(_ context.Context, agentID uuid.UUID) (AgentContact, bool, error) {
	contact, ok := f.contacts[agentID]
	return contact, ok, nil
}

type capturingSender struct {
	leadMails  []email.LeadAssignedData
	leadTo     []string
	sweepMails []email.SweepReportData
}

func (s *capturingSender) SendLeadAssignedEmail(_ context.Context, toEmail string, data email.LeadAssignedData) error {
	s.leadTo = append(s.leadTo, toEmail)
	s.leadMails = append(s.leadMails, data)
	return nil
}

func (s *capturingSender) SendSweepReportEmail(_ context.Context, _ string, data email.SweepReportData) error {
	s.sweepMails = append(s.sweepMails, data)
	return nil
}

func newTestModule(contacts *fakeContacts, sender *capturingSender, opsInbox string) *Module {
	return &Module{
		repo:     contacts,
		sender:   sender,
		opsInbox: opsInbox,
		log:      logger.New("test"),
	}
}

func TestLeadAssignedSendsAgentEmail(t *testing.T) {
	agentID := uuid.New()
	contacts := &fakeContacts{contacts: map[uuid.UUID]AgentContact{
		agentID: {Email: "agent@example.com", FirstName: "Pat", LastName: "Lee"},
	}}
	sender := &capturingSender{}
	m := newTestModule(contacts, sender, "")

	err := m.Handle(context.Background(), events.LeadAssigned{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         uuid.New(),
		AgencyID:       uuid.New(),
		AgentID:        agentID,
		ExternalLeadID: "L-1",
		LeadName:       "Jane Doe",
		PhoneNumber:    "5551234567",
		Source:         "convoso_webhook",
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(sender.leadMails) != 1 {
		t.Fatalf("sent %d lead emails, want 1", len(sender.leadMails))
	}
	if sender.leadTo[0] != "agent@example.com" {
		t.Errorf("recipient = %q, want agent@example.com", sender.leadTo[0])
	}
	if sender.leadMails[0].AgentName != "Pat Lee" {
		t.Errorf("AgentName = %q, want Pat Lee", sender.leadMails[0].AgentName)
	}
	if sender.leadMails[0].PhoneNumber != "5551234567" {
		t.Errorf("PhoneNumber = %q", sender.leadMails[0].PhoneNumber)
	}
}

func TestLeadAssignedUnknownAgentIsSkipped(t *testing.T) {
	sender := &capturingSender{}
	m := newTestModule(&fakeContacts{contacts: map[uuid.UUID]AgentContact{}}, sender, "")

	err := m.Handle(context.Background(), events.LeadAssigned{
		BaseEvent: events.NewBaseEvent(),
		AgentID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(sender.leadMails) != 0 {
		t.Errorf("sent %d emails for unknown agent, want 0", len(sender.leadMails))
	}
}

func TestSweepReportMailedOnlyWhenInteresting(t *testing.T) {
	sender := &capturingSender{}
	m := newTestModule(&fakeContacts{}, sender, "ops@example.com")

	clean := events.SweepCompleted{BaseEvent: events.NewBaseEvent(), TriggeredBy: "scheduler"}
	if err := m.Handle(context.Background(), clean); err != nil {
		t.Fatalf("Handle(clean) error = %v", err)
	}
	if len(sender.sweepMails) != 0 {
		t.Errorf("clean run mailed a report")
	}

	dirty := events.SweepCompleted{
		BaseEvent:    events.NewBaseEvent(),
		FixesApplied: []string{"reassigned 2 orphaned users to fallback agency"},
		Errors:       []string{"insert commissions: deadlock"},
		TriggeredBy:  "admin",
	}
	if err := m.Handle(context.Background(), dirty); err != nil {
		t.Fatalf("Handle(dirty) error = %v", err)
	}
	if len(sender.sweepMails) != 1 {
		t.Fatalf("sent %d sweep reports, want 1", len(sender.sweepMails))
	}
	if sender.sweepMails[0].TriggeredBy != "admin" {
		t.Errorf("TriggeredBy = %q, want admin", sender.sweepMails[0].TriggeredBy)
	}
}

func TestSweepReportSkippedWithoutOpsInbox(t *testing.T) {
	sender := &capturingSender{}
	m := newTestModule(&fakeContacts{}, sender, "")

	event := events.SweepCompleted{
		BaseEvent: events.NewBaseEvent(),
		Errors:    []string{"boom"},
	}
	if err := m.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(sender.sweepMails) != 0 {
		t.Errorf("sent %d sweep reports with no ops inbox, want 0", len(sender.sweepMails))
	}
}
