package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"tappay/internal/config"
	"tappay/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

func TestSubmit_EnqueuesPaymentJob(t *testing.T) {
	enqueuer := new(MockEnqueuer)
	svc := NewService(enqueuer, config.PipelineConfig{MaxAttempts: 3})

	enqueuer.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).
		Return(&asynq.TaskInfo{ID: "TX-1"}, nil)

	id, err := svc.Submit(context.Background(), "TX-1", PaymentData{
		CardUUID: "card-1",
		Amount:   100000,
		UserID:   1,
	})

	assert.NoError(t, err)
	assert.Equal(t, "TX-1", id)

	task := enqueuer.Calls[0].Arguments.Get(1).(*asynq.Task)
	assert.Equal(t, queue.TaskPaymentProcess, task.Type())

	var payload JobPayload
	assert.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "TX-1", payload.TransactionID)
	assert.Equal(t, "card-1", payload.PaymentData.CardUUID)
	assert.Equal(t, float64(100000), payload.PaymentData.Amount)
}

func TestSubmit_DuplicateCoalesces(t *testing.T) {
	enqueuer := new(MockEnqueuer)
	svc := NewService(enqueuer, config.PipelineConfig{MaxAttempts: 3})

	enqueuer.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, asynq.ErrTaskIDConflict)

	// A second submit for a live transaction id is not an error; it rides the
	// existing job.
	id, err := svc.Submit(context.Background(), "TX-1", PaymentData{CardUUID: "card-1"})

	assert.NoError(t, err)
	assert.Equal(t, "TX-1", id)
}

func TestSubmit_EnqueueFailure(t *testing.T) {
	enqueuer := new(MockEnqueuer)
	svc := NewService(enqueuer, config.PipelineConfig{MaxAttempts: 3})

	enqueuer.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	_, err := svc.Submit(context.Background(), "TX-1", PaymentData{})

	assert.ErrorIs(t, err, ErrSubmitFailed)
}
