package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"tappay/internal/models"
	cachekeys "tappay/internal/utils/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCardReader struct {
	mock.Mock
}

func (m *MockCardReader) GetByUUID(ctx context.Context, cardUUID string) (*models.Card, error) {
	args := m.Called(ctx, cardUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

type MockMerchantReader struct {
	mock.Mock
}

func (m *MockMerchantReader) GetByID(ctx context.Context, id uint) (*models.Merchant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Merchant), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	args := m.Called(ctx, key, dest)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) GetFloat(ctx context.Context, key string) (float64, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

type MockPolicy struct {
	mock.Mock
}

func (m *MockPolicy) Score(ctx context.Context, cardUUID string, amount float64) (float64, error) {
	args := m.Called(ctx, cardUUID, amount)
	return args.Get(0).(float64), args.Error(1)
}

type stubFees struct{ fee float64 }

func (s stubFees) EstimateGasFee(amount float64) float64 { return s.fee }

func activeCard() *models.Card {
	return &models.Card{
		ID:                     1,
		CardUUID:               "card-1",
		UserID:                 1,
		IsActive:               true,
		DailySpent:             0,
		DailyLimit:             2000000,
		MonthlyLimit:           20000000,
		SingleTransactionLimit: 500000,
	}
}

func newTestService(cards *MockCardReader, merchants *MockMerchantReader, cache *MockCache, policy *MockPolicy) Service {
	return NewService(cards, merchants, cache, policy, stubFees{fee: 100}, DefaultConfig())
}

func TestValidate_Approves(t *testing.T) {
	cards := new(MockCardReader)
	merchants := new(MockMerchantReader)
	cache := new(MockCache)
	policy := new(MockPolicy)
	svc := newTestService(cards, merchants, cache, policy)

	card := activeCard()
	cache.On("Get", mock.Anything, cachekeys.FastValidationKey("card-1", 100000), mock.Anything).Return(false, nil)
	cache.On("Get", mock.Anything, cachekeys.CardStatusKey("card-1"), mock.Anything).Return(false, nil)
	cards.On("GetByUUID", mock.Anything, "card-1").Return(card, nil)
	cache.On("SetWithTTL", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	cache.On("GetFloat", mock.Anything, mock.Anything).Return(float64(0), false, nil)
	policy.On("Score", mock.Anything, "card-1", float64(100000)).Return(0.1, nil)
	merchants.On("GetByID", mock.Anything, uint(7)).Return(&models.Merchant{ID: 7, BusinessName: "Corner Cafe"}, nil)

	result, err := svc.Validate(context.Background(), "card-1", 100000, 7)

	assert.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Reason)
	assert.Equal(t, "card-1", result.CardInfo.CardUUID)
	assert.Equal(t, float64(2000000), result.CardInfo.DailyRemaining)
	assert.Equal(t, "Corner Cafe", result.MerchantInfo.BusinessName)
	assert.Equal(t, float64(100), result.EstimatedFees)
	assert.Len(t, result.AuthCode, 8)
	cards.AssertExpectations(t)
}

func TestValidate_Rejections(t *testing.T) {
	expired := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name       string
		amount     float64
		card       func() *models.Card
		dailySpent float64
		score      float64
		wantReason string
	}{
		{
			name:   "inactive card",
			amount: 1000,
			card: func() *models.Card {
				c := activeCard()
				c.IsActive = false
				return c
			},
			wantReason: ReasonCardInactive,
		},
		{
			name:   "expired card",
			amount: 1000,
			card: func() *models.Card {
				c := activeCard()
				c.ExpiresAt = &expired
				return c
			},
			wantReason: ReasonCardExpired,
		},
		{
			name:       "single transaction limit",
			amount:     600000,
			card:       activeCard,
			wantReason: ReasonSingleLimit,
		},
		{
			name:       "daily limit from accumulator",
			amount:     100000,
			card:       activeCard,
			dailySpent: 1950000,
			wantReason: ReasonDailyLimit,
		},
		{
			name:       "high risk score",
			amount:     1000,
			card:       activeCard,
			score:      0.95,
			wantReason: ReasonHighRisk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := new(MockCardReader)
			merchants := new(MockMerchantReader)
			cache := new(MockCache)
			policy := new(MockPolicy)
			svc := newTestService(cards, merchants, cache, policy)

			cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
			cards.On("GetByUUID", mock.Anything, "card-1").Return(tt.card(), nil)
			cache.On("SetWithTTL", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			cache.On("GetFloat", mock.Anything, mock.Anything).Return(tt.dailySpent, tt.dailySpent > 0, nil)
			policy.On("Score", mock.Anything, "card-1", tt.amount).Return(tt.score, nil)

			result, err := svc.Validate(context.Background(), "card-1", tt.amount, 7)

			assert.NoError(t, err)
			assert.False(t, result.Valid)
			assert.Equal(t, tt.wantReason, result.Reason)
			assert.Empty(t, result.AuthCode)
			merchants.AssertNotCalled(t, "GetByID")
		})
	}
}

func TestValidate_InvalidAmount(t *testing.T) {
	svc := newTestService(new(MockCardReader), new(MockMerchantReader), new(MockCache), new(MockPolicy))

	_, err := svc.Validate(context.Background(), "card-1", 0, 7)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Validate(context.Background(), "card-1", -5, 7)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestValidate_CachedVerdictReplayed(t *testing.T) {
	cards := new(MockCardReader)
	merchants := new(MockMerchantReader)
	cache := new(MockCache)
	policy := new(MockPolicy)
	svc := newTestService(cards, merchants, cache, policy)

	key := cachekeys.FastValidationKey("card-1", 5000)
	cache.On("Get", mock.Anything, key, mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(2).(*Result)
			dest.Valid = true
			dest.EstimatedFees = 100
		}).
		Return(true, nil)

	result, err := svc.Validate(context.Background(), "card-1", 5000, 7)

	assert.NoError(t, err)
	assert.True(t, result.Valid)
	// Replays mint a fresh one-shot code instead of reusing a cached one.
	assert.Len(t, result.AuthCode, 8)
	cards.AssertNotCalled(t, "GetByUUID")
	policy.AssertNotCalled(t, "Score")
}

func TestValidate_CacheFailureFallsBackToStore(t *testing.T) {
	cards := new(MockCardReader)
	merchants := new(MockMerchantReader)
	cache := new(MockCache)
	policy := new(MockPolicy)
	svc := newTestService(cards, merchants, cache, policy)

	cacheDown := errors.New("connection refused")
	cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, cacheDown)
	cards.On("GetByUUID", mock.Anything, "card-1").Return(activeCard(), nil)
	cache.On("SetWithTTL", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(cacheDown)
	cache.On("GetFloat", mock.Anything, mock.Anything).Return(float64(0), false, cacheDown)
	policy.On("Score", mock.Anything, "card-1", float64(1000)).Return(0.0, nil)
	merchants.On("GetByID", mock.Anything, uint(7)).Return(&models.Merchant{ID: 7, BusinessName: "Corner Cafe"}, nil)

	result, err := svc.Validate(context.Background(), "card-1", 1000, 7)

	assert.NoError(t, err)
	assert.True(t, result.Valid)
	cards.AssertExpectations(t)
}

func TestValidate_AccumulatorAbsentUsesCardCounter(t *testing.T) {
	cards := new(MockCardReader)
	merchants := new(MockMerchantReader)
	cache := new(MockCache)
	policy := new(MockPolicy)
	svc := newTestService(cards, merchants, cache, policy)

	card := activeCard()
	card.DailySpent = 1950000
	cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	cards.On("GetByUUID", mock.Anything, "card-1").Return(card, nil)
	cache.On("SetWithTTL", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	cache.On("GetFloat", mock.Anything, mock.Anything).Return(float64(0), false, nil)

	result, err := svc.Validate(context.Background(), "card-1", 100000, 7)

	assert.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonDailyLimit, result.Reason)
}
