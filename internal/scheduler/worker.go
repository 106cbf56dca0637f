package scheduler

import (
	"context"
	"fmt"

	"agency_backoffice_backend/internal/reconcile"
	"agency_backoffice_backend/platform/config"
	"agency_backoffice_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Worker consumes background tasks and also owns the periodic schedule
// that enqueues them.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	sweeper   *reconcile.Service
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper *reconcile.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	periodic := asynq.NewScheduler(opt, nil)
	sweepTask, err := NewReconcileSweepTask(ReconcileSweepPayload{TriggeredBy: "scheduler"})
	if err != nil {
		return nil, err
	}
	spec := fmt.Sprintf("@every %s", cfg.GetSweepInterval())
	if _, err := periodic.Register(spec, sweepTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register periodic sweep: %w", err)
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: periodic,
		mux:       mux,
		sweeper:   sweeper,
		log:       log,
	}

	mux.HandleFunc(TaskReconcileSweep, w.handleReconcileSweep)

	return w, nil
}

func (w *Worker) handleReconcileSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReconcileSweepPayload(task)
	if err != nil {
		return err
	}

	triggeredBy := payload.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "scheduler"
	}

	result := w.sweeper.Run(ctx, triggeredBy)
	if !result.Success {
		// Partial runs are reported, not retried: the steps that failed
		// will be attempted again on the next periodic run anyway.
		w.log.Warn("reconciliation sweep finished with errors",
			"errors", result.Errors, "fixes", result.FixesApplied)
	}
	return nil
}

// Run starts the periodic scheduler and the task server, blocking until
// the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.log.Error("periodic scheduler stopped", "error", err)
		}
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
