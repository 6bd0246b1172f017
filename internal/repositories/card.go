package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tappay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCardNotFound  = errors.New("card not found")
	ErrLimitExceeded = errors.New("card limit exceeded")
)

// CardRepository owns every read and write of card rows, including the lazy
// rollover of spend counters. Counters never change outside ApplyDebit.
type CardRepository interface {
	GetByUUID(ctx context.Context, cardUUID string) (*models.Card, error)
	Create(ctx context.Context, card *models.Card) error
	Block(ctx context.Context, cardUUID, reason string) error
	Unblock(ctx context.Context, cardUUID string) error
	// ApplyDebit adds amount to the daily and monthly counters after a
	// successful settlement, enforcing dailySpent <= dailyLimit and
	// monthlySpent <= monthlyLimit under row-level locking.
	ApplyDebit(ctx context.Context, cardUUID string, amount float64, now time.Time) (*models.Card, error)
	ListActive(ctx context.Context) ([]models.Card, error)
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a card repository backed by gorm.
func NewCardRepository(db *gorm.DB) CardRepository {
	if db == nil {
		panic("db is required")
	}
	return &cardRepository{db: db}
}

func (r *cardRepository) GetByUUID(ctx context.Context, cardUUID string) (*models.Card, error) {
	var card models.Card
	err := r.db.WithContext(ctx).Where("card_uuid = ?", cardUUID).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	rolloverCounters(&card, time.Now())
	return &card, nil
}

func (r *cardRepository) Create(ctx context.Context, card *models.Card) error {
	if card.LastResetDate.IsZero() {
		card.LastResetDate = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(card).Error; err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

func (r *cardRepository) Block(ctx context.Context, cardUUID, reason string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Card{}).
		Where("card_uuid = ?", cardUUID).
		Updates(map[string]interface{}{
			"is_active":      false,
			"blocked_reason": reason,
			"blocked_at":     &now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to block card: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}

func (r *cardRepository) Unblock(ctx context.Context, cardUUID string) error {
	res := r.db.WithContext(ctx).Model(&models.Card{}).
		Where("card_uuid = ?", cardUUID).
		Updates(map[string]interface{}{
			"is_active":      true,
			"blocked_reason": "",
			"blocked_at":     nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to unblock card: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}

func (r *cardRepository) ApplyDebit(ctx context.Context, cardUUID string, amount float64, now time.Time) (*models.Card, error) {
	var card models.Card
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("card_uuid = ?", cardUUID).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCardNotFound
			}
			return err
		}

		rolloverCounters(&card, now)

		if card.DailySpent+amount > card.DailyLimit {
			return fmt.Errorf("%w: daily", ErrLimitExceeded)
		}
		if card.MonthlySpent+amount > card.MonthlyLimit {
			return fmt.Errorf("%w: monthly", ErrLimitExceeded)
		}

		card.DailySpent += amount
		card.MonthlySpent += amount
		return tx.Save(&card).Error
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *cardRepository) ListActive(ctx context.Context) ([]models.Card, error) {
	var cards []models.Card
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

// rolloverCounters resets spend counters when the calendar day or month has
// rolled over since the last touch.
func rolloverCounters(card *models.Card, now time.Time) {
	last := card.LastResetDate
	if last.Year() != now.Year() || last.YearDay() != now.YearDay() {
		card.DailySpent = 0
	}
	if last.Year() != now.Year() || last.Month() != now.Month() {
		card.MonthlySpent = 0
	}
	card.LastResetDate = now
}
