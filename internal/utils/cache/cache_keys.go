// Package cache centralizes cache key construction so every component uses
// the same key strings. The formats are part of the external contract and
// must not change between releases.
package cache

import (
	"fmt"
	"strconv"
	"time"
)

// CardStatusKey caches the card's status snapshot for fast validation.
func CardStatusKey(cardUUID string) string {
	return fmt.Sprintf("cardStatus:%s", cardUUID)
}

// DailySpendingKey holds the atomic daily spend accumulator for a card.
// The day component pins the entry to one calendar day.
func DailySpendingKey(cardUUID string, day time.Time) string {
	return fmt.Sprintf("dailySpending:%s:%s", cardUUID, day.Format("2006-01-02"))
}

// FastValidationKey caches a fast-validation verdict per card+amount
// fingerprint. Invalidated after every committed payment on the card.
func FastValidationKey(cardUUID string, amount float64) string {
	return fmt.Sprintf("fastValidation:%s:%s", cardUUID, strconv.FormatFloat(amount, 'f', -1, 64))
}

// FastValidationPattern matches every fast-validation entry for a card.
func FastValidationPattern(cardUUID string) string {
	return fmt.Sprintf("fastValidation:%s:*", cardUUID)
}

// UserNotificationsKey holds a user's capped notification feed.
func UserNotificationsKey(userID uint) string {
	return fmt.Sprintf("user:notifications:%d", userID)
}

// AdminAlertsKey holds the shared manual-review alert list.
func AdminAlertsKey() string {
	return "admin:failed_transactions"
}

// FraudVelocityKey counts recent payment attempts per card for the
// rate-of-use heuristic.
func FraudVelocityKey(cardUUID string) string {
	return fmt.Sprintf("fraudVelocity:%s", cardUUID)
}

// EndOfDay returns the first instant of the next calendar day, the expiry
// point for daily accumulators. Computed via date arithmetic rather than
// adding 24 hours so DST transitions still land on local midnight.
func EndOfDay(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
}
