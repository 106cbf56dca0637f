package dialer

import (
	"testing"

	"agency_backoffice_backend/internal/leads"
)

func catalog() []List {
	return []List{
		{ID: "10", Name: "Aged Data", Status: "Active", CampaignID: "c-1"},
		{ID: "20", Name: "Warm Transfers", Status: "Active", CampaignID: "c-2"},
		{ID: "30", Name: "Progressive Callbacks", Status: "Active", CampaignID: "c-3"},
		{ID: "40", Name: "Texas Leads", Status: "Active", CampaignID: "c-4"},
		{ID: "50", Name: "Paused Overflow", Status: "Paused", CampaignID: "c-5"},
	}
}

func TestSelectListTransferBeatsCarrier(t *testing.T) {
	lead := PushLead{
		CanonicalLead: leads.CanonicalLead{State: "TX"},
		IsTransfer:    true,
		Carrier:       "Progressive",
	}

	got := SelectList(lead, catalog())
	if got == nil || got.ID != "20" {
		t.Fatalf("SelectList() = %+v, want Warm Transfers (20)", got)
	}
}

func TestSelectListCarrierBeatsState(t *testing.T) {
	lead := PushLead{
		CanonicalLead: leads.CanonicalLead{State: "TX"},
		Carrier:       "Progressive",
	}

	got := SelectList(lead, catalog())
	if got == nil || got.ID != "30" {
		t.Fatalf("SelectList() = %+v, want Progressive Callbacks (30)", got)
	}
}

func TestSelectListStateMatch(t *testing.T) {
	lead := PushLead{CanonicalLead: leads.CanonicalLead{State: "TX"}}

	got := SelectList(lead, catalog())
	if got == nil || got.ID != "40" {
		t.Fatalf("SelectList() = %+v, want Texas Leads (40)", got)
	}
}

func TestSelectListStateCodeMatchesFullName(t *testing.T) {
	lists := []List{
		{ID: "1", Name: "Aged Data", Status: "Active"},
		{ID: "2", Name: "Florida Internet", Status: "Active"},
	}
	lead := PushLead{CanonicalLead: leads.CanonicalLead{State: "FL"}}

	got := SelectList(lead, lists)
	if got == nil || got.ID != "2" {
		t.Fatalf("SelectList() = %+v, want Florida Internet (2)", got)
	}
}

func TestSelectListDataFallback(t *testing.T) {
	lead := PushLead{CanonicalLead: leads.CanonicalLead{State: "WY"}}
	lists := []List{
		{ID: "1", Name: "Paused Junk", Status: "Paused"},
		{ID: "2", Name: "Fresh Data", Status: "Active"},
		{ID: "3", Name: "Everything Else", Status: "Active"},
	}

	got := SelectList(lead, lists)
	if got == nil || got.ID != "2" {
		t.Fatalf("SelectList() = %+v, want Fresh Data (2)", got)
	}
}

func TestSelectListAnyActiveFallback(t *testing.T) {
	lists := []List{
		{ID: "1", Name: "Paused Junk", Status: "Paused"},
		{ID: "2", Name: "General Pool", Status: "Active"},
	}

	got := SelectList(PushLead{}, lists)
	if got == nil || got.ID != "2" {
		t.Fatalf("SelectList() = %+v, want General Pool (2)", got)
	}
}

func TestSelectListLastResortIgnoresStatus(t *testing.T) {
	lists := []List{
		{ID: "1", Name: "Everything Paused", Status: "Paused"},
		{ID: "2", Name: "Also Paused", Status: "Paused"},
	}

	got := SelectList(PushLead{}, lists)
	if got == nil || got.ID != "1" {
		t.Fatalf("SelectList() = %+v, want first list (1)", got)
	}
}

func TestSelectListEmptyCatalog(t *testing.T) {
	if got := SelectList(PushLead{IsTransfer: true}, nil); got != nil {
		t.Fatalf("SelectList(empty) = %+v, want nil", got)
	}
}

func TestExtractPushLeadTransferDetection(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{"bool flag", map[string]any{"is_transfer": true}, true},
		{"string flag", map[string]any{"is_transfer": "true"}, true},
		{"numeric flag", map[string]any{"is_transfer": float64(1)}, true},
		{"call type", map[string]any{"call_type": "Warm Transfer"}, true},
		{"lead type", map[string]any{"lead_type": "live"}, true},
		{"absent", map[string]any{"phone": "5551234567"}, false},
		{"false flag", map[string]any{"is_transfer": false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPushLead(tt.raw).IsTransfer; got != tt.want {
				t.Errorf("IsTransfer = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractPushLeadCarrier(t *testing.T) {
	lead := ExtractPushLead(map[string]any{
		"phone":           "5551234567",
		"current_carrier": "Geico",
	})
	if lead.Carrier != "Geico" {
		t.Errorf("Carrier = %q, want Geico", lead.Carrier)
	}
	if lead.PhoneNumber != "5551234567" {
		t.Errorf("PhoneNumber = %q, want 5551234567", lead.PhoneNumber)
	}
}
