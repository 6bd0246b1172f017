package validation

import (
	"context"
	"time"

	"tappay/internal/models"
)

// Service is the fast validation interface answering NFC tap pre-checks.
type Service interface {
	Validate(ctx context.Context, cardUUID string, amount float64, merchantID uint) (*Result, error)
}

// CardReader resolves cards from the ledger store on cache miss.
type CardReader interface {
	GetByUUID(ctx context.Context, cardUUID string) (*models.Card, error)
}

// MerchantReader resolves the receiving merchant.
type MerchantReader interface {
	GetByID(ctx context.Context, id uint) (*models.Merchant, error)
}

// Cache is the subset of cache operations the validator needs. A cache error
// degrades to a store read, never to an auto-approve.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetFloat(ctx context.Context, key string) (float64, bool, error)
}

// FeeEstimator prices the gas fee quoted back to the terminal.
type FeeEstimator interface {
	EstimateGasFee(amount float64) float64
}
