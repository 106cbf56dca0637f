package dialer

import "strings"

// List is one destination bucket in an agency's dialer list catalog,
// stored as JSONB on the integration record.
type List struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	CampaignID string `json:"campaign_id"`
}

// transferKeywords mark lists meant for live/warm transfer traffic.
var transferKeywords = []string{"call", "transfer", "warm"}

// SelectList picks the destination list for a lead from the agency's
// catalog. The rules form a strict priority chain; the first rule that
// matches wins:
//
//  1. transfer/warm leads go to a transfer-style list
//  2. a named carrier routes to a list mentioning that carrier
//  3. the lead's state routes to a state-named list
//  4. an active list whose name contains "data"
//  5. any list with status "Active"
//  6. the first list in the catalog
//
// Returns nil only when the catalog is empty. Pure function, no side
// effects.
func SelectList(lead PushLead, lists []List) *List {
	if len(lists) == 0 {
		return nil
	}

	if lead.IsTransfer {
		if match := firstByName(lists, transferKeywords...); match != nil {
			return match
		}
	}

	if carrier := strings.TrimSpace(lead.Carrier); carrier != "" {
		if match := firstByName(lists, carrier); match != nil {
			return match
		}
	}

	if state := strings.TrimSpace(lead.State); state != "" {
		candidates := []string{state}
		if full, ok := stateNames[strings.ToUpper(state)]; ok {
			candidates = append(candidates, full)
		}
		if match := firstByName(lists, candidates...); match != nil {
			return match
		}
	}

	for i, list := range lists {
		if isActive(list) && strings.Contains(strings.ToLower(list.Name), "data") {
			return &lists[i]
		}
	}

	for i, list := range lists {
		if isActive(list) {
			return &lists[i]
		}
	}

	return &lists[0]
}

// firstByName returns the first list whose name contains any of the given
// substrings, case-insensitively.
func firstByName(lists []List, substrings ...string) *List {
	for i, list := range lists {
		name := strings.ToLower(list.Name)
		for _, sub := range substrings {
			if sub == "" {
				continue
			}
			if strings.Contains(name, strings.ToLower(sub)) {
				return &lists[i]
			}
		}
	}
	return nil
}

func isActive(list List) bool {
	return strings.EqualFold(list.Status, "Active")
}

// stateNames lets a two-letter state code match lists named after the full
// state, since agencies name lists both ways.
var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming",
}
