package leads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"agency_backoffice_backend/internal/events"
	"agency_backoffice_backend/platform/apperr"
	"agency_backoffice_backend/platform/archive"
	"agency_backoffice_backend/platform/logger"
)

// fakeAgent mirrors the assignment-relevant columns of a user row.
type fakeAgent struct {
	id           uuid.UUID
	lastAssigned *time.Time
	createdAt    time.Time
}

// fakeStore is an in-memory Store that reproduces the repository's
// duplicate-resolution and assignment-ordering contract.
type fakeStore struct {
	leads  map[uuid.UUID]Lead
	agents []*fakeAgent
	clock  time.Time

	ingestCalls int
	ingestErr   error
}

func newFakeStore(agents ...*fakeAgent) *fakeStore {
	return &fakeStore{
		leads:  make(map[uuid.UUID]Lead),
		agents: agents,
		clock:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) Ingest(_ context.Context, agencyID uuid.UUID, lead CanonicalLead) (IngestResult, error) {
	f.ingestCalls++
	if f.ingestErr != nil {
		return IngestResult{}, f.ingestErr
	}

	f.clock = f.clock.Add(time.Second)

	for id, existing := range f.leads {
		if existing.AgencyID != agencyID {
			continue
		}
		if existing.LeadID == lead.LeadID || existing.PhoneNumber == lead.PhoneNumber {
			existing.LeadID = lead.LeadID
			existing.PhoneNumber = lead.PhoneNumber
			existing.UpdatedAt = f.clock
			f.leads[id] = existing
			return IngestResult{Lead: existing, IsUpdate: true}, nil
		}
	}

	row := Lead{
		ID:          uuid.New(),
		AgencyID:    agencyID,
		LeadID:      lead.LeadID,
		PhoneNumber: lead.PhoneNumber,
		Status:      "new",
		CreatedAt:   f.clock,
		UpdatedAt:   f.clock,
	}
	if agent := f.claimAgent(); agent != nil {
		row.AgentAssignment = &agent.id
	}
	f.leads[row.ID] = row

	return IngestResult{Lead: row, AssignedAgent: row.AgentAssignment}, nil
}

// claimAgent picks the least-recently-assigned agent, never-assigned first,
// ties broken by account age, the same ordering the SQL claim uses.
func (f *fakeStore) claimAgent() *fakeAgent {
	if len(f.agents) == 0 {
		return nil
	}
	sorted := make([]*fakeAgent, len(f.agents))
	copy(sorted, f.agents)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case a.lastAssigned == nil && b.lastAssigned != nil:
			return true
		case a.lastAssigned != nil && b.lastAssigned == nil:
			return false
		case a.lastAssigned == nil && b.lastAssigned == nil:
			return a.createdAt.Before(b.createdAt)
		default:
			return a.lastAssigned.Before(*b.lastAssigned)
		}
	})
	chosen := sorted[0]
	now := f.clock
	chosen.lastAssigned = &now
	return chosen
}

func (f *fakeStore) BumpAnalytics(context.Context, uuid.UUID, bool) error { return nil }

func (f *fakeStore) GetByID(_ context.Context, agencyID, id uuid.UUID) (Lead, error) {
	lead, ok := f.leads[id]
	if !ok || lead.AgencyID != agencyID {
		return Lead{}, ErrLeadNotFound
	}
	return lead, nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}
func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	out := make([]string, len(b.published))
	for i, e := range b.published {
		out[i] = e.EventName()
	}
	return out
}

func newTestService(store Store, bus events.Bus) *Service {
	return NewService(store, bus, archive.NopStore{}, logger.New("test"))
}

func TestProcessWebhookNewLead(t *testing.T) {
	agencyID := uuid.New()
	agent := &fakeAgent{id: uuid.New(), createdAt: time.Now()}
	store := newFakeStore(agent)
	bus := &recordingBus{}
	svc := newTestService(store, bus)

	result, err := svc.ProcessWebhook(context.Background(), agencyID,
		[]byte(`{"lead_id":"L-100","phone_number":"5551234567","first_name":"Jane"}`))
	if err != nil {
		t.Fatalf("ProcessWebhook() error = %v", err)
	}

	if result.LeadID != "L-100" {
		t.Errorf("LeadID = %q, want L-100", result.LeadID)
	}
	if result.IsUpdate {
		t.Error("IsUpdate = true for a first delivery")
	}
	if result.AgentAssignment == nil || *result.AgentAssignment != agent.id {
		t.Errorf("AgentAssignment = %v, want %v", result.AgentAssignment, agent.id)
	}

	names := bus.names()
	if len(names) != 2 || names[0] != "leads.lead.received" || names[1] != "leads.lead.assigned" {
		t.Errorf("published events = %v, want [leads.lead.received leads.lead.assigned]", names)
	}
}

func TestProcessWebhookDuplicateByLeadID(t *testing.T) {
	agencyID := uuid.New()
	store := newFakeStore(&fakeAgent{id: uuid.New(), createdAt: time.Now()})
	bus := &recordingBus{}
	svc := newTestService(store, bus)

	ctx := context.Background()
	if _, err := svc.ProcessWebhook(ctx, agencyID, []byte(`{"lead_id":"L-200","phone":"5551234567"}`)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := svc.ProcessWebhook(ctx, agencyID, []byte(`{"lead_id":"L-200","phone":"5559990000"}`))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if !result.IsUpdate {
		t.Error("IsUpdate = false for a repeated lead_id")
	}
	if result.AgentAssignment != nil {
		t.Errorf("AgentAssignment = %v on update path, want nil", result.AgentAssignment)
	}
	if len(store.leads) != 1 {
		t.Errorf("store holds %d leads, want 1", len(store.leads))
	}
}

func TestProcessWebhookDuplicateByPhone(t *testing.T) {
	agencyID := uuid.New()
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})

	ctx := context.Background()
	if _, err := svc.ProcessWebhook(ctx, agencyID, []byte(`{"lead_id":"L-300","phone":"5551230001"}`)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := svc.ProcessWebhook(ctx, agencyID, []byte(`{"lead_id":"L-301","phone":"(555) 123-0001"}`))
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if !result.IsUpdate {
		t.Error("IsUpdate = false for a matching phone number")
	}
	if len(store.leads) != 1 {
		t.Errorf("store holds %d leads, want 1", len(store.leads))
	}
}

func TestProcessWebhookRoundRobinFairness(t *testing.T) {
	agencyID := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	agents := []*fakeAgent{
		{id: uuid.New(), createdAt: base},
		{id: uuid.New(), createdAt: base.Add(time.Minute)},
		{id: uuid.New(), createdAt: base.Add(2 * time.Minute)},
	}
	store := newFakeStore(agents...)
	svc := newTestService(store, &recordingBus{})

	counts := make(map[uuid.UUID]int)
	for i := 0; i < 9; i++ {
		payload := fmt.Sprintf(`{"lead_id":"L-%d","phone":"55512300%02d"}`, i, i)
		result, err := svc.ProcessWebhook(context.Background(), agencyID, []byte(payload))
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if result.AgentAssignment == nil {
			t.Fatalf("delivery %d: no agent assigned", i)
		}
		counts[*result.AgentAssignment]++
	}

	for _, agent := range agents {
		if counts[agent.id] != 3 {
			t.Errorf("agent %s received %d leads, want 3 (distribution %v)", agent.id, counts[agent.id], counts)
		}
	}
}

func TestProcessWebhookNeverAssignedAgentFirst(t *testing.T) {
	agencyID := uuid.New()
	recent := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	veteran := &fakeAgent{id: uuid.New(), createdAt: recent.AddDate(-1, 0, 0), lastAssigned: &recent}
	newcomer := &fakeAgent{id: uuid.New(), createdAt: recent}
	store := newFakeStore(veteran, newcomer)
	svc := newTestService(store, &recordingBus{})

	result, err := svc.ProcessWebhook(context.Background(), agencyID,
		[]byte(`{"lead_id":"L-400","phone":"5551239999"}`))
	if err != nil {
		t.Fatalf("ProcessWebhook() error = %v", err)
	}
	if result.AgentAssignment == nil || *result.AgentAssignment != newcomer.id {
		t.Errorf("assigned %v, want never-assigned agent %v", result.AgentAssignment, newcomer.id)
	}
}

func TestProcessWebhookNoAgentsAvailable(t *testing.T) {
	agencyID := uuid.New()
	store := newFakeStore()
	bus := &recordingBus{}
	svc := newTestService(store, bus)

	result, err := svc.ProcessWebhook(context.Background(), agencyID,
		[]byte(`{"lead_id":"L-500","phone":"5551238888"}`))
	if err != nil {
		t.Fatalf("ProcessWebhook() error = %v", err)
	}
	if result.AgentAssignment != nil {
		t.Errorf("AgentAssignment = %v, want nil", result.AgentAssignment)
	}

	names := bus.names()
	if len(names) != 1 || names[0] != "leads.lead.received" {
		t.Errorf("published events = %v, want only leads.lead.received", names)
	}
}

func TestProcessWebhookRejectsMalformedJSON(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})

	_, err := svc.ProcessWebhook(context.Background(), uuid.New(), []byte(`{"lead_id":`))
	if err == nil {
		t.Fatal("ProcessWebhook() accepted malformed JSON")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindBadRequest {
		t.Errorf("error = %v, want KindBadRequest", err)
	}
	if store.ingestCalls != 0 {
		t.Errorf("Ingest called %d times for malformed JSON", store.ingestCalls)
	}
}

func TestProcessWebhookRejectsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing lead_id", `{"phone_number":"5551234567"}`},
		{"missing phone", `{"lead_id":"L-600"}`},
		{"phone too short", `{"lead_id":"L-601","phone":"12345"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(store, &recordingBus{})

			_, err := svc.ProcessWebhook(context.Background(), uuid.New(), []byte(tt.payload))
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
				t.Errorf("error = %v, want KindValidation", err)
			}
			if store.ingestCalls != 0 {
				t.Errorf("Ingest called %d times for unusable payload", store.ingestCalls)
			}
		})
	}
}

func TestProcessWebhookStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.ingestErr = errors.New("connection refused")
	bus := &recordingBus{}
	svc := newTestService(store, bus)

	_, err := svc.ProcessWebhook(context.Background(), uuid.New(),
		[]byte(`{"lead_id":"L-700","phone":"5551237777"}`))
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindInternal {
		t.Errorf("error = %v, want KindInternal", err)
	}
	if len(bus.published) != 0 {
		t.Errorf("published %d events after a failed ingest", len(bus.published))
	}
}

func TestGetLeadScopedToAgency(t *testing.T) {
	agencyID := uuid.New()
	store := newFakeStore()
	svc := newTestService(store, &recordingBus{})

	if _, err := svc.ProcessWebhook(context.Background(), agencyID,
		[]byte(`{"lead_id":"L-800","phone":"5551236666"}`)); err != nil {
		t.Fatalf("seed delivery: %v", err)
	}
	var leadID uuid.UUID
	for id := range store.leads {
		leadID = id
	}

	if _, err := svc.GetLead(context.Background(), agencyID, leadID); err != nil {
		t.Errorf("GetLead(own agency) error = %v", err)
	}

	_, err := svc.GetLead(context.Background(), uuid.New(), leadID)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Errorf("GetLead(other agency) error = %v, want KindNotFound", err)
	}
}
