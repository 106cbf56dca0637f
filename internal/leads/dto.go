package leads

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LeadResponse is the JSON shape returned to API clients.
type LeadResponse struct {
	ID              uuid.UUID      `json:"id"`
	LeadID          string         `json:"leadId"`
	ExternalID      *string        `json:"externalId,omitempty"`
	PhoneNumber     string         `json:"phoneNumber"`
	FirstName       *string        `json:"firstName,omitempty"`
	LastName        *string        `json:"lastName,omitempty"`
	Email           *string        `json:"email,omitempty"`
	State           *string        `json:"state,omitempty"`
	City            *string        `json:"city,omitempty"`
	ZipCode         *string        `json:"zipCode,omitempty"`
	Source          string         `json:"source"`
	CampaignID      *string        `json:"campaignId,omitempty"`
	CampaignName    *string        `json:"campaignName,omitempty"`
	InsuranceType   *string        `json:"insuranceType,omitempty"`
	CoverageType    *string        `json:"coverageType,omitempty"`
	Priority        string         `json:"priority"`
	LeadScore       int            `json:"leadScore"`
	Cost            float64        `json:"cost"`
	Age             *int           `json:"age,omitempty"`
	AgentAssignment *uuid.UUID     `json:"agentAssignment"`
	Status          string         `json:"status"`
	CallAttempts    int            `json:"callAttempts"`
	AdditionalData  map[string]any `json:"additionalData,omitempty"`
	ReceivedAt      time.Time      `json:"receivedAt"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func toLeadResponse(lead Lead) LeadResponse {
	var additional map[string]any
	if len(lead.AdditionalData) > 0 {
		_ = json.Unmarshal(lead.AdditionalData, &additional)
	}

	return LeadResponse{
		ID:              lead.ID,
		LeadID:          lead.LeadID,
		ExternalID:      lead.ExternalID,
		PhoneNumber:     lead.PhoneNumber,
		FirstName:       lead.FirstName,
		LastName:        lead.LastName,
		Email:           lead.Email,
		State:           lead.State,
		City:            lead.City,
		ZipCode:         lead.ZipCode,
		Source:          lead.Source,
		CampaignID:      lead.CampaignID,
		CampaignName:    lead.CampaignName,
		InsuranceType:   lead.InsuranceType,
		CoverageType:    lead.CoverageType,
		Priority:        lead.Priority,
		LeadScore:       lead.LeadScore,
		Cost:            lead.Cost,
		Age:             lead.Age,
		AgentAssignment: lead.AgentAssignment,
		Status:          lead.Status,
		CallAttempts:    lead.CallAttempts,
		AdditionalData:  additional,
		ReceivedAt:      lead.ReceivedAt,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
	}
}
