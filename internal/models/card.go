package models

import "time"

// Card statuses
const (
	CardStatusActive  = "active"
	CardStatusBlocked = "blocked"
)

// Card represents a registered NFC payment card.
// Spend counters are mutated only through repositories.CardRepository so the
// limit invariants live in one place.
type Card struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	CardUUID string `gorm:"uniqueIndex;not null" json:"cardUuid"`
	UserID   uint   `gorm:"not null;index" json:"userId"`

	IsActive      bool       `gorm:"default:true" json:"isActive"`
	BlockedReason string     `json:"blockedReason,omitempty"`
	BlockedAt     *time.Time `json:"blockedAt,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`

	DailySpent   float64 `gorm:"default:0" json:"dailySpent"`
	MonthlySpent float64 `gorm:"default:0" json:"monthlySpent"`

	DailyLimit             float64 `gorm:"not null" json:"dailyLimit"`
	MonthlyLimit           float64 `gorm:"not null" json:"monthlyLimit"`
	SingleTransactionLimit float64 `gorm:"not null" json:"singleTransactionLimit"`

	// LastResetDate marks the day the daily counter was last reset.
	// Counters roll over lazily on first touch of a new day/month.
	LastResetDate time.Time `json:"lastResetDate"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expired reports whether the card is past its expiry date.
func (c *Card) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// CardSummary is the trimmed card view returned by fast validation.
type CardSummary struct {
	CardUUID       string  `json:"cardUuid"`
	DailyLimit     float64 `json:"dailyLimit"`
	DailyRemaining float64 `json:"dailyRemaining"`
}
