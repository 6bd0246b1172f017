package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tappay/internal/chain"
	"tappay/internal/config"
	"tappay/internal/models"
	"tappay/internal/queue"
	"tappay/internal/services/notifier"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionStore) MarkProcessing(ctx context.Context, transactionID string, at time.Time) error {
	args := m.Called(ctx, transactionID, at)
	return args.Error(0)
}

func (m *MockTransactionStore) MarkCompleted(ctx context.Context, transactionID, txHash string, gasUsed, blockNumber uint64, at time.Time) error {
	args := m.Called(ctx, transactionID, txHash, gasUsed, blockNumber, at)
	return args.Error(0)
}

func (m *MockTransactionStore) MarkFailed(ctx context.Context, transactionID, reason string, at time.Time) error {
	args := m.Called(ctx, transactionID, reason, at)
	return args.Error(0)
}

type MockCardStore struct {
	mock.Mock
}

func (m *MockCardStore) GetByUUID(ctx context.Context, cardUUID string) (*models.Card, error) {
	args := m.Called(ctx, cardUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

func (m *MockCardStore) ApplyDebit(ctx context.Context, cardUUID string, amount float64, now time.Time) (*models.Card, error) {
	args := m.Called(ctx, cardUUID, amount, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockPipelineCache struct {
	mock.Mock
}

func (m *MockPipelineCache) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

func (m *MockPipelineCache) IncrByFloat(ctx context.Context, key string, delta float64, expireAt time.Time) (float64, error) {
	args := m.Called(ctx, key, delta, expireAt)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockPipelineCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockPipelineCache) DeleteByPattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) Submit(ctx context.Context, req chain.SubmitRequest) (*chain.Receipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Receipt), args.Error(1)
}

func (m *MockChainClient) EstimateGasFee(amount float64) float64 {
	args := m.Called(amount)
	return args.Get(0).(float64)
}

func (m *MockChainClient) ExplorerURL(txHash string) string {
	return "https://explorer.local/tx/" + txHash
}

// recordingBroadcaster captures emitted realtime events in order.
type recordingBroadcaster struct {
	userEvents []emitted
	roomEvents []emitted
}

type emitted struct {
	target  string
	event   string
	payload interface{}
}

func (b *recordingBroadcaster) EmitToUser(userID uint, event string, payload interface{}) {
	b.userEvents = append(b.userEvents, emitted{event: event, payload: payload})
}

func (b *recordingBroadcaster) EmitToRoom(room, event string, payload interface{}) {
	b.roomEvents = append(b.roomEvents, emitted{target: room, event: event, payload: payload})
}

func (b *recordingBroadcaster) Broadcast(event string, payload interface{}) {}

// recordingProducer captures published notification events in order.
type recordingProducer struct {
	published []publishedEvent
	err       error
}

type publishedEvent struct {
	eventType string
	evt       notifier.Event
}

func (p *recordingProducer) Publish(ctx context.Context, eventType string, evt notifier.Event) error {
	p.published = append(p.published, publishedEvent{eventType: eventType, evt: evt})
	return p.err
}

func (p *recordingProducer) byType(eventType string) []notifier.Event {
	var out []notifier.Event
	for _, e := range p.published {
		if e.eventType == eventType {
			out = append(out, e.evt)
		}
	}
	return out
}

type workerFixture struct {
	transactions *MockTransactionStore
	cards        *MockCardStore
	users        *MockUserStore
	cache        *MockPipelineCache
	chainClient  *MockChainClient
	broadcaster  *recordingBroadcaster
	producer     *recordingProducer
	worker       *Worker
}

func newWorkerFixture() *workerFixture {
	f := &workerFixture{
		transactions: new(MockTransactionStore),
		cards:        new(MockCardStore),
		users:        new(MockUserStore),
		cache:        new(MockPipelineCache),
		chainClient:  new(MockChainClient),
		broadcaster:  &recordingBroadcaster{},
		producer:     &recordingProducer{},
	}
	f.worker = NewWorker(f.transactions, f.cards, f.users, f.cache, f.chainClient,
		f.broadcaster, f.producer, config.PipelineConfig{MaxAttempts: 3})
	return f
}

func pendingTransaction() *models.Transaction {
	return &models.Transaction{
		ID:            1,
		TransactionID: "TX-1",
		CardUUID:      "card-1",
		UserID:        1,
		MerchantID:    7,
		Amount:        100000,
		GasFee:        100,
		TotalAmount:   100100,
		Status:        models.TransactionStatusPending,
	}
}

func testPayload() JobPayload {
	return JobPayload{
		TransactionID: "TX-1",
		PaymentData: PaymentData{
			CardUUID:              "card-1",
			Amount:                100000,
			MerchantID:            7,
			MerchantWalletAddress: "0xmerchant",
			UserID:                1,
			UserWalletAddress:     "0xuser",
			GasFee:                100,
			TotalAmount:           100100,
		},
	}
}

func TestProcess_HappyPath(t *testing.T) {
	f := newWorkerFixture()
	ctx := context.Background()

	f.transactions.On("GetByTransactionID", ctx, "TX-1").Return(pendingTransaction(), nil)
	f.cards.On("GetByUUID", ctx, "card-1").Return(&models.Card{
		CardUUID: "card-1", UserID: 1, IsActive: true, DailyLimit: 2000000, MonthlyLimit: 20000000,
	}, nil)
	f.users.On("GetByID", ctx, uint(1)).Return(&models.User{ID: 1}, nil)
	f.cache.On("GetFloat", ctx, mock.Anything).Return(float64(0), false, nil)
	f.transactions.On("MarkProcessing", ctx, "TX-1", mock.Anything).Return(nil)
	f.chainClient.On("Submit", ctx, mock.Anything).Return(&chain.Receipt{
		TxHash: "0xhash", GasUsed: 21000, BlockNumber: 42,
	}, nil)
	f.transactions.On("MarkCompleted", ctx, "TX-1", "0xhash", uint64(21000), uint64(42), mock.Anything).Return(nil)
	f.cards.On("ApplyDebit", ctx, "card-1", float64(100000), mock.Anything).Return(&models.Card{}, nil)
	f.cache.On("IncrByFloat", ctx, mock.Anything, float64(100000), mock.Anything).Return(float64(100000), nil)
	f.cache.On("Delete", ctx, mock.Anything).Return(nil)
	f.cache.On("DeleteByPattern", ctx, mock.Anything).Return(nil)

	err := f.worker.Process(ctx, testPayload(), 1, 3)

	assert.NoError(t, err)
	f.transactions.AssertExpectations(t)
	f.cards.AssertExpectations(t)
	f.cache.AssertExpectations(t)

	// processing then completed, in order
	assert.Len(t, f.broadcaster.userEvents, 2)
	processing := f.broadcaster.userEvents[0].payload.(StatusEvent)
	assert.Equal(t, models.TransactionStatusProcessing, processing.Status)
	completed := f.broadcaster.userEvents[1].payload.(StatusEvent)
	assert.Equal(t, models.TransactionStatusCompleted, completed.Status)
	assert.Equal(t, "0xhash", completed.TxHash)
	assert.NotEmpty(t, completed.ExplorerURL)

	assert.Len(t, f.producer.byType(queue.TaskPaymentProcessing), 1)
	success := f.producer.byType(queue.TaskPaymentSuccess)
	assert.Len(t, success, 1)
	assert.Equal(t, "0xhash", success[0].TxHash)
	assert.Empty(t, f.producer.byType(queue.TaskAlertFailedTransaction))
}

func TestProcess_VerificationFailureIsTerminal(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(f *workerFixture, ctx context.Context)
		wantReason string
	}{
		{
			name: "card missing",
			setup: func(f *workerFixture, ctx context.Context) {
				f.cards.On("GetByUUID", ctx, "card-1").Return(nil, errors.New("record not found"))
			},
			wantReason: ReasonCardNotFound,
		},
		{
			name: "card inactive",
			setup: func(f *workerFixture, ctx context.Context) {
				f.cards.On("GetByUUID", ctx, "card-1").Return(&models.Card{CardUUID: "card-1", IsActive: false}, nil)
			},
			wantReason: ReasonCardInactive,
		},
		{
			name: "daily limit exceeded at commit time",
			setup: func(f *workerFixture, ctx context.Context) {
				f.cards.On("GetByUUID", ctx, "card-1").Return(&models.Card{
					CardUUID: "card-1", UserID: 1, IsActive: true, DailyLimit: 2000000, MonthlyLimit: 20000000,
				}, nil)
				f.users.On("GetByID", ctx, uint(1)).Return(&models.User{ID: 1}, nil)
				f.cache.On("GetFloat", ctx, mock.Anything).Return(float64(1950000), true, nil)
			},
			wantReason: ReasonDailyLimit,
		},
		{
			name: "monthly limit exceeded at commit time",
			setup: func(f *workerFixture, ctx context.Context) {
				f.cards.On("GetByUUID", ctx, "card-1").Return(&models.Card{
					CardUUID: "card-1", UserID: 1, IsActive: true, DailyLimit: 2000000,
					MonthlyLimit: 10000000, MonthlySpent: 9950000,
				}, nil)
				f.users.On("GetByID", ctx, uint(1)).Return(&models.User{ID: 1}, nil)
				f.cache.On("GetFloat", ctx, mock.Anything).Return(float64(0), false, nil)
			},
			wantReason: ReasonMonthlyLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWorkerFixture()
			ctx := context.Background()

			f.transactions.On("GetByTransactionID", ctx, "TX-1").Return(pendingTransaction(), nil)
			tt.setup(f, ctx)
			f.transactions.On("MarkFailed", ctx, "TX-1", tt.wantReason, mock.Anything).Return(nil)
			f.cache.On("DeleteByPattern", ctx, mock.Anything).Return(nil)

			// Terminal rejection: the job must not be retried.
			err := f.worker.Process(ctx, testPayload(), 1, 3)

			assert.NoError(t, err)
			f.transactions.AssertExpectations(t)
			f.transactions.AssertNotCalled(t, "MarkProcessing", mock.Anything, mock.Anything, mock.Anything)
			f.chainClient.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)

			failed := f.producer.byType(queue.TaskPaymentFailed)
			assert.Len(t, failed, 1)
			assert.Equal(t, tt.wantReason, failed[0].Reason)
			// Verification failures are final but not escalations.
			assert.Empty(t, f.producer.byType(queue.TaskAlertFailedTransaction))
		})
	}
}

func TestProcess_TransientChainErrorRetries(t *testing.T) {
	f := newWorkerFixture()
	ctx := context.Background()

	f.transactions.On("GetByTransactionID", ctx, "TX-1").Return(pendingTransaction(), nil)
	f.cards.On("GetByUUID", ctx, "card-1").Return(&models.Card{
		CardUUID: "card-1", UserID: 1, IsActive: true, DailyLimit: 2000000, MonthlyLimit: 20000000,
	}, nil)
	f.users.On("GetByID", ctx, uint(1)).Return(&models.User{ID: 1}, nil)
	f.cache.On("GetFloat", ctx, mock.Anything).Return(float64(0), false, nil)
	f.transactions.On("MarkProcessing", ctx, "TX-1", mock.Anything).Return(nil)
	f.chainClient.On("Submit", ctx, mock.Anything).Return(nil, errors.New("rpc timeout"))

	err := f.worker.Process(ctx, testPayload(), 1, 3)

	// A plain error re-enqueues with backoff.
	assert.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	f.transactions.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.producer.byType(queue.TaskPaymentFailed))
}

func TestProcess_ExhaustedRetriesEscalate(t *testing.T) {
	f := newWorkerFixture()
	ctx := context.Background()

	// Final attempt: stages 1-2 already ran, the transaction is processing.
	tx := pendingTransaction()
	tx.Status = models.TransactionStatusProcessing
	f.transactions.On("GetByTransactionID", ctx, "TX-1").Return(tx, nil)
	f.chainClient.On("Submit", ctx, mock.Anything).Return(nil, errors.New("rpc timeout"))
	f.transactions.On("MarkFailed", ctx, "TX-1", mock.Anything, mock.Anything).Return(nil)
	f.cache.On("DeleteByPattern", ctx, mock.Anything).Return(nil)

	err := f.worker.Process(ctx, testPayload(), 3, 3)

	assert.ErrorIs(t, err, asynq.SkipRetry)
	reason := f.transactions.Calls[1].Arguments.String(2)
	assert.Equal(t, BlockchainErrorPrefix+"rpc timeout", reason)

	failed := f.producer.byType(queue.TaskPaymentFailed)
	assert.Len(t, failed, 1)

	alerts := f.producer.byType(queue.TaskAlertFailedTransaction)
	assert.Len(t, alerts, 1)
	assert.True(t, alerts[0].RequiresManualReview)
	assert.Equal(t, BlockchainErrorPrefix+"rpc timeout", alerts[0].Reason)
}

func TestProcess_ChainRejectionFailsImmediately(t *testing.T) {
	f := newWorkerFixture()
	ctx := context.Background()

	f.transactions.On("GetByTransactionID", ctx, "TX-1").Return(pendingTransaction(), nil)
	f.cards.On("GetByUUID", ctx, "card-1").Return(&models.Card{
		CardUUID: "card-1", UserID: 1, IsActive: true, DailyLimit: 2000000, MonthlyLimit: 20000000,
	}, nil)
	f.users.On("GetByID", ctx, uint(1)).Return(&models.User{ID: 1}, nil)
	f.cache.On("GetFloat", ctx, mock.Anything).Return(float64(0), false, nil)
	f.transactions.On("MarkProcessing", ctx, "TX-1", mock.Anything).Return(nil)
	f.chainClient.On("Submit", ctx, mock.Anything).
		Return(nil, fmt.Errorf("%w: insufficient funds", chain.ErrRejected))
	f.transactions.On("MarkFailed", ctx, "TX-1", mock.Anything, mock.Anything).Return(nil)
	f.cache.On("DeleteByPattern", ctx, mock.Anything).Return(nil)

	// First attempt of three, but a rejection never retries.
	err := f.worker.Process(ctx, testPayload(), 1, 3)

	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Len(t, f.producer.byType(queue.TaskAlertFailedTransaction), 1)
}

func TestProcess_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newWorkerFixture()
	ctx := context.Background()

	tx := pendingTransaction()
	tx.Status = models.TransactionStatusCompleted
	f.transactions.On("GetByTransactionID", ctx, "TX-1").Return(tx, nil)

	err := f.worker.Process(ctx, testPayload(), 2, 3)

	assert.NoError(t, err)
	f.chainClient.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	assert.Empty(t, f.producer.published)
	assert.Empty(t, f.broadcaster.userEvents)
}

func TestProcess_MissingTransactionSkipsRetry(t *testing.T) {
	f := newWorkerFixture()
	ctx := context.Background()

	f.transactions.On("GetByTransactionID", ctx, "TX-1").Return(nil, errors.New("record not found"))

	err := f.worker.Process(ctx, testPayload(), 1, 3)

	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcess_StoreFailureAfterChainSuccess(t *testing.T) {
	f := newWorkerFixture()
	ctx := context.Background()

	tx := pendingTransaction()
	tx.Status = models.TransactionStatusProcessing
	f.transactions.On("GetByTransactionID", ctx, "TX-1").Return(tx, nil)
	f.chainClient.On("Submit", ctx, mock.Anything).Return(&chain.Receipt{TxHash: "0xhash"}, nil)
	f.transactions.On("MarkCompleted", ctx, "TX-1", "0xhash", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("db down"))
	f.cards.On("ApplyDebit", ctx, "card-1", float64(100000), mock.Anything).Return(&models.Card{}, nil)
	f.cache.On("IncrByFloat", ctx, mock.Anything, float64(100000), mock.Anything).Return(float64(100000), nil)
	f.cache.On("Delete", ctx, mock.Anything).Return(nil)
	f.cache.On("DeleteByPattern", ctx, mock.Anything).Return(nil)

	err := f.worker.Process(ctx, testPayload(), 2, 3)

	// The chain settled; the job must not re-submit, whatever the store said.
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Len(t, f.producer.byType(queue.TaskPaymentSuccess), 1)
}
