package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"tappay/internal/queue"

	"github.com/hibiken/asynq"
)

// Producer publishes notification events onto the queues. The pipeline and
// the scheduler depend only on this interface.
type Producer interface {
	Publish(ctx context.Context, eventType string, evt Event) error
}

// Enqueuer is the enqueue surface of the queue client. Satisfied by
// *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type producer struct {
	client Enqueuer
}

// NewProducer creates a queue-backed event producer.
func NewProducer(client Enqueuer) Producer {
	if client == nil {
		panic("queue client is required")
	}
	return &producer{client: client}
}

// Publish enqueues one event. Manual-review escalations go to the alerts
// queue so feed traffic cannot starve them.
func (p *producer) Publish(ctx context.Context, eventType string, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode notification event: %w", err)
	}

	queueName := queue.QueueNotifications
	if eventType == queue.TaskAlertFailedTransaction {
		queueName = queue.QueueAlerts
	}

	_, err = p.client.EnqueueContext(ctx, asynq.NewTask(eventType, payload),
		asynq.Queue(queueName),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", eventType, err)
	}
	return nil
}
