package leads

import (
	"fmt"
	"strconv"
	"strings"

	"agency_backoffice_backend/platform/phone"
)

// CanonicalLead is the normalized shape of an inbound dialer payload.
// Fields the payload lacks stay at their zero value; everything the payload
// carried that is not mapped to a named field is preserved in AdditionalData.
type CanonicalLead struct {
	LeadID        string
	ExternalID    string
	PhoneNumber   string
	FirstName     string
	LastName      string
	Email         string
	State         string
	City          string
	ZipCode       string
	Source        string
	CampaignID    string
	CampaignName  string
	InsuranceType string
	CoverageType  string
	Priority      string
	LeadScore     int
	Cost          float64
	Age           *int

	AdditionalData map[string]any
}

// HasRequiredFields reports whether the lead can be ingested: an external
// identifier plus a phone number of plausible length.
func (l CanonicalLead) HasRequiredFields() bool {
	return l.LeadID != "" && phone.Valid(l.PhoneNumber)
}

// FullName joins the name parts for display.
func (l CanonicalLead) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(l.FirstName) + " " + strings.TrimSpace(l.LastName))
}

// Field alias tables. Order matters: the first present, non-empty alias wins.
// The dialer has shipped every one of these spellings at some point.
var (
	leadIDAliases        = []string{"lead_id", "leadId", "id"}
	externalIDAliases    = []string{"external_id", "externalId", "external_lead_id"}
	phoneAliases         = []string{"phone_number", "phone", "phoneNumber", "primary_phone"}
	firstNameAliases     = []string{"first_name", "firstName", "first"}
	lastNameAliases      = []string{"last_name", "lastName", "last"}
	emailAliases         = []string{"email", "email_address", "emailAddress"}
	stateAliases         = []string{"state", "province"}
	cityAliases          = []string{"city"}
	zipAliases           = []string{"zip_code", "zip", "postal_code", "postalCode"}
	sourceAliases        = []string{"source", "lead_source", "leadSource"}
	campaignIDAliases    = []string{"campaign_id", "campaignId"}
	campaignNameAliases  = []string{"campaign_name", "campaignName", "campaign"}
	insuranceTypeAliases = []string{"insurance_type", "insuranceType", "product_type"}
	coverageTypeAliases  = []string{"coverage_type", "coverageType"}
	priorityAliases      = []string{"priority"}
	leadScoreAliases     = []string{"lead_score", "leadScore", "score"}
	costAliases          = []string{"cost", "price", "lead_cost"}
	ageAliases           = []string{"age"}
)

const (
	defaultSource    = "convoso_webhook"
	defaultPriority  = "normal"
	defaultLeadScore = 50
)

var validPriorities = map[string]bool{
	"low": true, "normal": true, "high": true, "urgent": true,
}

// Normalize maps a raw dialer payload into a CanonicalLead. It is a pure
// function with no failure mode: unusable values fall back to defaults and
// unmapped keys pass through losslessly in AdditionalData.
func Normalize(raw map[string]any) CanonicalLead {
	consumed := make(map[string]bool, len(raw))

	pick := func(aliases []string) string {
		for _, alias := range aliases {
			if value, ok := raw[alias]; ok {
				if text := asString(value); text != "" {
					consumed[alias] = true
					return text
				}
				consumed[alias] = true
			}
		}
		return ""
	}

	lead := CanonicalLead{
		LeadID:        pick(leadIDAliases),
		ExternalID:    pick(externalIDAliases),
		PhoneNumber:   phone.NormalizeDigits(pick(phoneAliases)),
		FirstName:     pick(firstNameAliases),
		LastName:      pick(lastNameAliases),
		Email:         pick(emailAliases),
		State:         strings.ToUpper(pick(stateAliases)),
		City:          pick(cityAliases),
		ZipCode:       pick(zipAliases),
		Source:        pick(sourceAliases),
		CampaignID:    pick(campaignIDAliases),
		CampaignName:  pick(campaignNameAliases),
		InsuranceType: pick(insuranceTypeAliases),
		CoverageType:  pick(coverageTypeAliases),
		Priority:      strings.ToLower(pick(priorityAliases)),
		LeadScore:     coerceInt(pick(leadScoreAliases), defaultLeadScore),
		Cost:          coerceFloat(pick(costAliases)),
		Age:           coerceOptionalInt(pick(ageAliases)),
	}

	if lead.Source == "" {
		lead.Source = defaultSource
	}
	if !validPriorities[lead.Priority] {
		lead.Priority = defaultPriority
	}

	lead.AdditionalData = make(map[string]any)
	for key, value := range raw {
		if !consumed[key] {
			lead.AdditionalData[key] = value
		}
	}

	return lead
}

// asString renders scalar payload values as strings. JSON numbers arrive as
// float64; integral ones are printed without the decimal point.
func asString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func coerceInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func coerceFloat(value string) float64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func coerceOptionalInt(value string) *int {
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &parsed
}
