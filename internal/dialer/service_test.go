package dialer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"agency_backoffice_backend/internal/events"
	"agency_backoffice_backend/platform/apperr"
	"agency_backoffice_backend/platform/logger"
)

type fakeIntegrationStore struct {
	integration Integration
	lookupErr   error

	lookupCalls   int
	trackingCalls int
	lastTracking  TrackingRecord
}

func (f *fakeIntegrationStore) GetIntegration(context.Context, uuid.UUID) (Integration, error) {
	f.lookupCalls++
	if f.lookupErr != nil {
		return Integration{}, f.lookupErr
	}
	return f.integration, nil
}

func (f *fakeIntegrationStore) UpsertTracking(_ context.Context, record TrackingRecord) error {
	f.trackingCalls++
	f.lastTracking = record
	return nil
}

type fakeInserter struct {
	leadID string
	err    error

	calls    int
	lastList string
}

func (f *fakeInserter) InsertLead(_ context.Context, _, listID string, _ PushLead) (string, error) {
	f.calls++
	f.lastList = listID
	if f.err != nil {
		return "", f.err
	}
	return f.leadID, nil
}

type noopBus struct{}

func (noopBus) Publish(context.Context, events.Event) {}
func (noopBus) PublishSync(context.Context, events.Event) error { return nil }
func (noopBus) Subscribe(string, events.Handler) {}

func activeIntegration() Integration {
	return Integration{
		ID:        uuid.New(),
		AgencyID:  uuid.New(),
		AuthToken: "tok",
		IsActive:  true,
		Lists: []List{
			{ID: "7", Name: "Fresh Data", Status: "Active", CampaignID: "c-7"},
		},
	}
}

func newPushService(store *fakeIntegrationStore, inserter *fakeInserter) *Service {
	return NewService(store, inserter, &noopBus{}, logger.New("test"))
}

func TestPushLeadUUIDGuardShortCircuits(t *testing.T) {
	store := &fakeIntegrationStore{integration: activeIntegration()}
	inserter := &fakeInserter{leadID: "1"}
	svc := newPushService(store, inserter)

	_, err := svc.PushLead(context.Background(), "not-a-uuid",
		map[string]any{"phone": "5551234567"}, nil)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindBadRequest {
		t.Fatalf("error = %v, want KindBadRequest", err)
	}
	if store.lookupCalls != 0 {
		t.Errorf("GetIntegration called %d times before UUID validation", store.lookupCalls)
	}
	if inserter.calls != 0 {
		t.Errorf("InsertLead called %d times before UUID validation", inserter.calls)
	}
}

func TestPushLeadMissingIntegration(t *testing.T) {
	store := &fakeIntegrationStore{lookupErr: ErrIntegrationNotFound}
	inserter := &fakeInserter{}
	svc := newPushService(store, inserter)

	_, err := svc.PushLead(context.Background(), uuid.NewString(),
		map[string]any{"phone": "5551234567"}, nil)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("error = %v, want KindNotFound", err)
	}
	if inserter.calls != 0 {
		t.Errorf("InsertLead called %d times with no integration", inserter.calls)
	}
}

func TestPushLeadSuccessRecordsTracking(t *testing.T) {
	store := &fakeIntegrationStore{integration: activeIntegration()}
	inserter := &fakeInserter{leadID: "987"}
	svc := newPushService(store, inserter)

	internalID := uuid.New()
	result, err := svc.PushLead(context.Background(), uuid.NewString(),
		map[string]any{"phone": "5551234567", "first_name": "Jane"}, &internalID)
	if err != nil {
		t.Fatalf("PushLead() error = %v", err)
	}

	if result.ConvosoLeadID != "987" {
		t.Errorf("ConvosoLeadID = %q, want 987", result.ConvosoLeadID)
	}
	if result.ListID != "7" {
		t.Errorf("ListID = %q, want 7", result.ListID)
	}
	if inserter.lastList != "7" {
		t.Errorf("insert targeted list %q, want 7", inserter.lastList)
	}
	if store.trackingCalls != 1 {
		t.Fatalf("UpsertTracking called %d times, want 1", store.trackingCalls)
	}
	if store.lastTracking.ConvosoLeadID != "987" || store.lastTracking.Status != "inserted" {
		t.Errorf("tracking record = %+v", store.lastTracking)
	}
	if store.lastTracking.InternalLeadID == nil || *store.lastTracking.InternalLeadID != internalID {
		t.Errorf("tracking internal lead = %v, want %v", store.lastTracking.InternalLeadID, internalID)
	}
}

func TestPushLeadDeliveryErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
	}{
		{"duplicate", ErrDuplicateLead, apperr.KindConflict},
		{"timeout", context.DeadlineExceeded, apperr.KindGatewayTimeout},
		{"other", errors.New("malformed response"), apperr.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeIntegrationStore{integration: activeIntegration()}
			inserter := &fakeInserter{err: tt.err}
			svc := newPushService(store, inserter)

			_, err := svc.PushLead(context.Background(), uuid.NewString(),
				map[string]any{"phone": "5551234567"}, nil)

			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != tt.wantKind {
				t.Errorf("error = %v, want kind %v", err, tt.wantKind)
			}
			if store.trackingCalls != 0 {
				t.Errorf("UpsertTracking called %d times after failed delivery", store.trackingCalls)
			}
		})
	}
}

func TestPushLeadRequiresPhone(t *testing.T) {
	store := &fakeIntegrationStore{integration: activeIntegration()}
	inserter := &fakeInserter{}
	svc := newPushService(store, inserter)

	_, err := svc.PushLead(context.Background(), uuid.NewString(),
		map[string]any{"first_name": "Jane"}, nil)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("error = %v, want KindValidation", err)
	}
	if store.lookupCalls != 0 {
		t.Errorf("GetIntegration called %d times for unusable payload", store.lookupCalls)
	}
}
