package tasks

import (
	"encoding/json"

	"bloomdispatch/models"

	"github.com/hibiken/asynq"
)

const (
	TypeSendNotification = "notification:send"
	TypeTimeoutSweep     = "booking:timeout_sweep"
)

const (
	QueueNotifications = "notifications"
	QueueSweep         = "sweep"
)

// NewNotificationTask wraps one outbound message. Delivery is attempted once;
// a failed send is logged by the worker and never retried.
func NewNotificationTask(payload models.NotificationPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSendNotification, b, asynq.MaxRetry(0), asynq.Queue(QueueNotifications)), nil
}

// ParseNotificationTask decodes a task built by NewNotificationTask.
func ParseNotificationTask(task *asynq.Task) (models.NotificationPayload, error) {
	var p models.NotificationPayload
	err := json.Unmarshal(task.Payload(), &p)
	return p, err
}

// NewTimeoutSweepTask is registered on the periodic scheduler. A missed or
// failed run is not retried; the next tick covers it.
func NewTimeoutSweepTask() *asynq.Task {
	return asynq.NewTask(TypeTimeoutSweep, nil, asynq.MaxRetry(0), asynq.Queue(QueueSweep))
}
