package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agency_backoffice_backend/internal/events"
	"agency_backoffice_backend/platform/logger"
)

// backfillConcurrency bounds the per-row sale backfill fan-out so a large
// orphan backlog does not monopolize the pool.
const backfillConcurrency = 4

// Store is the persistence surface the sweep needs. Satisfied by
// *Repository.
type Store interface {
	EnsureFallbackAgency(ctx context.Context, id uuid.UUID, name string) (bool, error)
	ReassignOrphanUsers(ctx context.Context, fallbackID uuid.UUID) (int64, error)
	ListSalesMissingAgency(ctx context.Context) ([]OrphanSale, error)
	BackfillSaleAgency(ctx context.Context, saleID, agentID uuid.UUID) (bool, error)
	ListMissingCommissions(ctx context.Context) ([]MissingCommission, error)
	InsertCommissions(ctx context.Context, missing []MissingCommission) (int64, error)
	RecordSweep(ctx context.Context, actor string, fixes, errs []string) error
}

// Result summarizes one sweep run.
type Result struct {
	Success      bool      `json:"success"`
	FixesApplied []string  `json:"fixes_applied"`
	Errors       []string  `json:"errors"`
	Timestamp    time.Time `json:"timestamp"`
}

// Service runs the reconciliation sweep: a sequence of referential-integrity
// repairs, each independently wrapped so one failing step never blocks the
// rest.
type Service struct {
	store            Store
	bus              events.Bus
	log              *logger.Logger
	fallbackAgencyID uuid.UUID
	fallbackName     string
}

// NewService creates a new reconcile service.
func NewService(store Store, bus events.Bus, log *logger.Logger, fallbackAgencyID uuid.UUID, fallbackName string) *Service {
	return &Service{
		store:            store,
		bus:              bus,
		log:              log,
		fallbackAgencyID: fallbackAgencyID,
		fallbackName:     fallbackName,
	}
}

// Run executes the sweep. triggeredBy records who asked ("admin" for the
// HTTP endpoint, "scheduler" for the periodic task). Idempotent: a run
// over a clean database applies zero fixes.
func (s *Service) Run(ctx context.Context, triggeredBy string) Result {
	result := Result{
		FixesApplied: []string{},
		Errors:       []string{},
		Timestamp:    time.Now().UTC(),
	}

	s.ensureFallbackAgency(ctx, &result)
	s.reassignOrphanUsers(ctx, &result)
	s.backfillSaleAgencies(ctx, &result)
	s.completeCommissions(ctx, &result)
	s.recordAudit(ctx, triggeredBy, &result)

	result.Success = len(result.Errors) == 0

	s.bus.Publish(ctx, events.SweepCompleted{
		BaseEvent:    events.NewBaseEvent(),
		FixesApplied: result.FixesApplied,
		Errors:       result.Errors,
		TriggeredBy:  triggeredBy,
	})
	s.log.Info("reconciliation sweep finished",
		"triggeredBy", triggeredBy,
		"fixes", len(result.FixesApplied),
		"errors", len(result.Errors))

	return result
}

func (s *Service) ensureFallbackAgency(ctx context.Context, result *Result) {
	created, err := s.store.EnsureFallbackAgency(ctx, s.fallbackAgencyID, s.fallbackName)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("ensure fallback agency: %v", err))
		return
	}
	if created {
		result.FixesApplied = append(result.FixesApplied,
			fmt.Sprintf("created fallback agency %s", s.fallbackAgencyID))
	}
}

func (s *Service) reassignOrphanUsers(ctx context.Context, result *Result) {
	moved, err := s.store.ReassignOrphanUsers(ctx, s.fallbackAgencyID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reassign orphan users: %v", err))
		return
	}
	if moved > 0 {
		result.FixesApplied = append(result.FixesApplied,
			fmt.Sprintf("reassigned %d orphaned users to fallback agency", moved))
	}
}

// backfillSaleAgencies fixes sales with a null agency, one row at a time
// because each sale's agency comes from its own agent. Rows are processed
// with bounded concurrency; per-row failures are collected, not fatal.
func (s *Service) backfillSaleAgencies(ctx context.Context, result *Result) {
	orphans, err := s.store.ListSalesMissingAgency(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list sales missing agency: %v", err))
		return
	}
	if len(orphans) == 0 {
		return
	}

	var mu sync.Mutex
	var fixed int
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(backfillConcurrency)

	for _, orphan := range orphans {
		group.Go(func() error {
			changed, err := s.store.BackfillSaleAgency(groupCtx, orphan.SaleID, orphan.AgentID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("backfill sale %s: %v", orphan.SaleID, err))
				return nil
			}
			if changed {
				fixed++
			}
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	_ = group.Wait()

	if fixed > 0 {
		result.FixesApplied = append(result.FixesApplied,
			fmt.Sprintf("backfilled agency on %d sales", fixed))
	}
}

func (s *Service) completeCommissions(ctx context.Context, result *Result) {
	missing, err := s.store.ListMissingCommissions(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list missing commissions: %v", err))
		return
	}
	if len(missing) == 0 {
		return
	}

	inserted, err := s.store.InsertCommissions(ctx, missing)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("insert commissions: %v", err))
		return
	}
	if inserted > 0 {
		result.FixesApplied = append(result.FixesApplied,
			fmt.Sprintf("created %d missing commission records", inserted))
	}
}

func (s *Service) recordAudit(ctx context.Context, triggeredBy string, result *Result) {
	if err := s.store.RecordSweep(ctx, triggeredBy, result.FixesApplied, result.Errors); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("record audit entry: %v", err))
	}
}
