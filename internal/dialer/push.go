package dialer

import (
	"strings"

	"agency_backoffice_backend/internal/leads"
)

// PushLead is the routing view of an outbound lead: the canonical fields
// plus the attributes list selection keys on.
type PushLead struct {
	leads.CanonicalLead
	IsTransfer bool
	Carrier    string
}

var carrierAliases = []string{"current_carrier", "currentCarrier", "carrier", "target_carrier", "desired_carrier"}

// transferValueKeywords match free-text call/lead type values that indicate
// a live transfer.
var transferValueKeywords = []string{"transfer", "warm", "live"}

// ExtractPushLead builds the routing view from a raw lead_data payload. It
// piggybacks on the webhook normalizer for the canonical fields and pulls
// the transfer flag and carrier out of the leftover keys.
func ExtractPushLead(raw map[string]any) PushLead {
	lead := PushLead{CanonicalLead: leads.Normalize(raw)}

	for _, alias := range carrierAliases {
		if value, ok := stringField(raw, alias); ok && value != "" {
			lead.Carrier = value
			break
		}
	}

	lead.IsTransfer = isTransferPayload(raw)

	return lead
}

func isTransferPayload(raw map[string]any) bool {
	switch v := raw["is_transfer"].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case float64:
		return v == 1
	}

	for _, key := range []string{"call_type", "lead_type", "callType", "leadType"} {
		if value, ok := stringField(raw, key); ok {
			lowered := strings.ToLower(value)
			for _, keyword := range transferValueKeywords {
				if strings.Contains(lowered, keyword) {
					return true
				}
			}
		}
	}

	return false
}

func stringField(raw map[string]any, key string) (string, bool) {
	value, ok := raw[key]
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(text), true
}
