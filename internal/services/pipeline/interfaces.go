package pipeline

import (
	"context"
	"time"

	"tappay/internal/models"

	"github.com/hibiken/asynq"
)

// Service is the job-submission side of the pipeline, called by the HTTP
// layer after fast validation accepts a tap.
type Service interface {
	// Submit enqueues settlement work for a transaction. Idempotent per
	// transactionID: duplicate submissions coalesce onto the existing job.
	Submit(ctx context.Context, transactionID string, data PaymentData) (string, error)
}

// Enqueuer is the enqueue surface of the queue client. Satisfied by
// *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TransactionStore is the transaction lifecycle surface the worker drives.
type TransactionStore interface {
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	MarkProcessing(ctx context.Context, transactionID string, at time.Time) error
	MarkCompleted(ctx context.Context, transactionID, txHash string, gasUsed, blockNumber uint64, at time.Time) error
	MarkFailed(ctx context.Context, transactionID, reason string, at time.Time) error
}

// CardStore provides the authoritative card reads and the commit-time debit.
type CardStore interface {
	GetByUUID(ctx context.Context, cardUUID string) (*models.Card, error)
	ApplyDebit(ctx context.Context, cardUUID string, amount float64, now time.Time) (*models.Card, error)
}

// UserStore resolves the paying user during verification.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Cache is the cache surface the worker maintains: the atomic daily
// accumulator plus the invalidations that keep fast validation honest.
type Cache interface {
	GetFloat(ctx context.Context, key string) (float64, bool, error)
	IncrByFloat(ctx context.Context, key string, delta float64, expireAt time.Time) (float64, error)
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}
