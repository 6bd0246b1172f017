// Package pipeline is the asynchronous settlement workflow: verify
// conditions, mark processing, submit to the chain with bounded retries,
// finalize, and keep the caches consistent with every commit.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"tappay/internal/config"
	"tappay/internal/queue"

	"github.com/hibiken/asynq"
)

type service struct {
	enqueuer Enqueuer
	config   config.PipelineConfig
}

// NewService creates the job-submission side of the pipeline.
func NewService(enqueuer Enqueuer, cfg config.PipelineConfig) Service {
	if enqueuer == nil {
		panic("enqueuer is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 60 * time.Second
	}
	return &service{enqueuer: enqueuer, config: cfg}
}

// Submit enqueues the settlement job keyed by transaction id. The queue
// enforces at-most-one live job per id, so a duplicate submission while the
// first is queued or running coalesces instead of double-processing.
func (s *service) Submit(ctx context.Context, transactionID string, data PaymentData) (string, error) {
	payload, err := json.Marshal(JobPayload{
		TransactionID: transactionID,
		PaymentData:   data,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	task := asynq.NewTask(queue.TaskPaymentProcess, payload)
	info, err := s.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(queue.QueuePayments),
		asynq.TaskID(transactionID),
		asynq.MaxRetry(s.config.MaxAttempts-1),
		asynq.Timeout(s.config.SubmitTimeout),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			log.Printf("pipeline: duplicate submit coalesced for %s", transactionID)
			return transactionID, nil
		}
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	return info.ID, nil
}
