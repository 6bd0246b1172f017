package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tappay/internal/models"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidTransition is returned when an update would move a
	// transaction backwards; status transitions are forward-only.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransactionRepository owns the transaction lifecycle writes. The Mark*
// methods encode the allowed predecessor states so a terminal transaction can
// never regress, regardless of caller ordering.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	MarkProcessing(ctx context.Context, transactionID string, at time.Time) error
	MarkCompleted(ctx context.Context, transactionID, txHash string, gasUsed, blockNumber uint64, at time.Time) error
	MarkFailed(ctx context.Context, transactionID, reason string, at time.Time) error
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a transaction repository backed by gorm.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	if db == nil {
		panic("db is required")
	}
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) MarkProcessing(ctx context.Context, transactionID string, at time.Time) error {
	return r.guardedUpdate(ctx, transactionID,
		[]string{models.TransactionStatusPending},
		map[string]interface{}{
			"status":                models.TransactionStatusProcessing,
			"processing_started_at": &at,
		})
}

func (r *transactionRepository) MarkCompleted(ctx context.Context, transactionID, txHash string, gasUsed, blockNumber uint64, at time.Time) error {
	return r.guardedUpdate(ctx, transactionID,
		[]string{models.TransactionStatusProcessing},
		map[string]interface{}{
			"status":       models.TransactionStatusCompleted,
			"tx_hash":      txHash,
			"gas_used":     gasUsed,
			"block_number": blockNumber,
			"completed_at": &at,
		})
}

func (r *transactionRepository) MarkFailed(ctx context.Context, transactionID, reason string, at time.Time) error {
	return r.guardedUpdate(ctx, transactionID,
		[]string{models.TransactionStatusPending, models.TransactionStatusProcessing},
		map[string]interface{}{
			"status":         models.TransactionStatusFailed,
			"failure_reason": reason,
			"completed_at":   &at,
		})
}

// guardedUpdate applies updates only when the current status is one of the
// allowed predecessors. Zero rows affected means either a missing row or a
// backwards transition; the two are distinguished with a follow-up read.
func (r *transactionRepository) guardedUpdate(ctx context.Context, transactionID string, from []string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("transaction_id = ? AND status IN ?", transactionID, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByTransactionID(ctx, transactionID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}
