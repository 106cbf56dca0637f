package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type schedulerConfigStub struct {
	redisURL string
	queue    string
}

func (s schedulerConfigStub) GetRedisURL() string             { return s.redisURL }
func (s schedulerConfigStub) GetRedisTLSInsecure() bool       { return false }
func (s schedulerConfigStub) GetAsynqQueueName() string       { return s.queue }
func (s schedulerConfigStub) GetAsynqConcurrency() int        { return 1 }
func (s schedulerConfigStub) GetSweepInterval() time.Duration { return time.Hour }

func TestEnqueueReconcileSweep(t *testing.T) {
	redis := miniredis.RunT(t)

	cfg := schedulerConfigStub{redisURL: "redis://" + redis.Addr(), queue: "backoffice"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	err = client.EnqueueReconcileSweep(context.Background(), ReconcileSweepPayload{TriggeredBy: "test"})
	if err != nil {
		t.Fatalf("EnqueueReconcileSweep() error = %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redis.Addr()})
	defer inspector.Close()

	pending, err := inspector.ListPendingTasks("backoffice")
	if err != nil {
		t.Fatalf("ListPendingTasks() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(pending))
	}
	if pending[0].Type != TaskReconcileSweep {
		t.Errorf("task type = %q, want %q", pending[0].Type, TaskReconcileSweep)
	}

	payload, err := ParseReconcileSweepPayload(asynq.NewTask(pending[0].Type, pending[0].Payload))
	if err != nil {
		t.Fatalf("ParseReconcileSweepPayload() error = %v", err)
	}
	if payload.TriggeredBy != "test" {
		t.Errorf("TriggeredBy = %q, want test", payload.TriggeredBy)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(schedulerConfigStub{}); err == nil {
		t.Fatal("NewClient() accepted empty redis url")
	}
}
