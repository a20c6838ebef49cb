package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskReentryNotify alerts managers that a known contact came back.
const TaskReentryNotify = "leads.reentry_notify"

type ReentryNotifyPayload struct {
	TenantID   string `json:"tenantId"`
	LeadID     string `json:"leadId"`
	EventID    string `json:"eventId"`
	LeadName   string `json:"leadName"`
	Channel    string `json:"channel"`
	OccurredAt string `json:"occurredAt"`
}

func NewReentryNotifyTask(payload ReentryNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReentryNotify, data), nil
}

func ParseReentryNotifyPayload(task *asynq.Task) (ReentryNotifyPayload, error) {
	var payload ReentryNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReentryNotifyPayload{}, err
	}
	return payload, nil
}
