package models

import "time"

// Notification is a single entry on a user's cache-backed feed.
// Feeds are capped ring buffers, not durable rows.
type Notification struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"userId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Metadata  JSON      `json:"metadata,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminAlert is an entry on the shared manual-review list.
type AdminAlert struct {
	TransactionID        string    `json:"transactionId"`
	UserID               uint      `json:"userId"`
	Amount               float64   `json:"amount"`
	Reason               string    `json:"reason"`
	RequiresManualReview bool      `json:"requiresManualReview"`
	CreatedAt            time.Time `json:"createdAt"`
}
