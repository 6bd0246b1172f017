// Package queue wires the Redis-backed job queues. The payment pipeline and
// the notification dispatcher are independent consumers with their own
// concurrency bounds; excess jobs wait in queue rather than spawning
// unbounded work.
package queue

import (
	"time"

	"tappay/internal/config"

	"github.com/hibiken/asynq"
)

// Queue names.
const (
	QueuePayments      = "payments"
	QueueNotifications = "notifications"
	QueueAlerts        = "alerts"
)

// Task type names. Notification types match the event taxonomy consumed by
// the dispatcher.
const (
	TaskPaymentProcess = "payment:process"

	TaskPaymentProcessing      = "notify:paymentProcessing"
	TaskPaymentSuccess         = "notify:paymentSuccess"
	TaskPaymentFailed          = "notify:paymentFailed"
	TaskAlertFailedTransaction = "notify:alertFailedTransaction"
	TaskDailySpendingSummary   = "notify:dailySpendingSummary"
)

// NewRedisOpt builds the asynq Redis connection options from the environment.
func NewRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.GetEnv("REDIS_HOST", "localhost") + ":" + config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_QUEUE_DB", 1),
	}
}

// NewClient creates the enqueue-side client shared by submitters.
func NewClient(opt asynq.RedisClientOpt) *asynq.Client {
	return asynq.NewClient(opt)
}

// NewPaymentServer creates the payment worker. Retries back off as
// baseDelay * attempt; the bound itself is set per task at enqueue time.
func NewPaymentServer(opt asynq.RedisClientOpt, cfg config.PipelineConfig) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.PaymentConcurrency,
		Queues: map[string]int{
			QueuePayments: 1,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return cfg.RetryBaseDelay * time.Duration(n+1)
		},
	})
}

// NewNotifierServer creates the notification worker. Alerts get a heavier
// queue weight so manual-review escalations are never starved by the
// user-facing feed traffic.
func NewNotifierServer(opt asynq.RedisClientOpt) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: config.GetIntEnv("NOTIFIER_CONCURRENCY", 10),
		Queues: map[string]int{
			QueueAlerts:        3,
			QueueNotifications: 7,
		},
	})
}
