package repositories

import (
	"context"
	"errors"
	"fmt"

	"tappay/internal/models"

	"gorm.io/gorm"
)

var ErrMerchantNotFound = errors.New("merchant not found")

// MerchantRepository reads merchant rows for validation and settlement.
type MerchantRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Merchant, error)
}

type merchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository creates a merchant repository backed by gorm.
func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	if db == nil {
		panic("db is required")
	}
	return &merchantRepository{db: db}
}

func (r *merchantRepository) GetByID(ctx context.Context, id uint) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).First(&merchant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return &merchant, nil
}
