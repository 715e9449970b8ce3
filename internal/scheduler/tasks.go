package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskAutoResumeSweep = "nurturing.auto_resume"

const TaskSendSweep = "nurturing.send"

// SweepPayload bounds one sweep run. Zero means the configured batch size.
type SweepPayload struct {
	Limit int `json:"limit,omitempty"`
}

func NewSweepTask(taskType string, payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func ParseSweepPayload(task *asynq.Task) (SweepPayload, error) {
	var payload SweepPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SweepPayload{}, err
	}
	return payload, nil
}
