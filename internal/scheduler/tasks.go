package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskReconcileSweep = "reconcile.sweep"

// ReconcileSweepPayload identifies who scheduled the sweep run.
type ReconcileSweepPayload struct {
	TriggeredBy string `json:"triggeredBy"`
}

func NewReconcileSweepTask(payload ReconcileSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileSweep, data), nil
}

func ParseReconcileSweepPayload(task *asynq.Task) (ReconcileSweepPayload, error) {
	var payload ReconcileSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReconcileSweepPayload{}, err
	}
	return payload, nil
}
