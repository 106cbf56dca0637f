// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"agency_backoffice_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadReceived is published after a webhook delivery is persisted.
type LeadReceived struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	AgencyID       uuid.UUID `json:"agencyId"`
	ExternalLeadID string    `json:"externalLeadId"`
	PhoneNumber    string    `json:"phoneNumber"`
	Source         string    `json:"source"`
	IsUpdate       bool      `json:"isUpdate"`
}

func (e LeadReceived) EventName() string { return "leads.lead.received" }

// LeadAssigned is published when a new lead is routed to an agent.
type LeadAssigned struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	AgencyID       uuid.UUID `json:"agencyId"`
	AgentID        uuid.UUID `json:"agentId"`
	ExternalLeadID string    `json:"externalLeadId"`
	LeadName       string    `json:"leadName"`
	PhoneNumber    string    `json:"phoneNumber"`
	Source         string    `json:"source"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// =============================================================================
// Dialer Domain Events
// =============================================================================

// LeadPushed is published when a lead is delivered to the dialer.
type LeadPushed struct {
	BaseEvent
	AgencyID       uuid.UUID  `json:"agencyId"`
	ConvosoLeadID  string     `json:"convosoLeadId"`
	ListID         string     `json:"listId"`
	InternalLeadID *uuid.UUID `json:"internalLeadId,omitempty"`
}

func (e LeadPushed) EventName() string { return "dialer.lead.pushed" }

// =============================================================================
// Reconciliation Domain Events
// =============================================================================

// SweepCompleted is published after a reconciliation sweep run.
type SweepCompleted struct {
	BaseEvent
	FixesApplied []string `json:"fixesApplied"`
	Errors       []string `json:"errors"`
	TriggeredBy  string   `json:"triggeredBy"` // "admin" or "scheduler"
}

func (e SweepCompleted) EventName() string { return "reconcile.sweep.completed" }
