package models

import "time"

// Transaction statuses. Transitions are forward-only:
// pending -> processing -> completed | failed.
const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusFailed     = "failed"
)

// Transaction is the durable record of a payment. It is created when a
// payment is initiated and mutated exclusively by the settlement pipeline.
// Rows are never deleted; they are the audit trail.
type Transaction struct {
	ID            uint   `gorm:"primarykey" json:"id"`
	TransactionID string `gorm:"uniqueIndex;not null" json:"transactionId"`

	CardID     uint   `gorm:"not null;index" json:"cardId"`
	CardUUID   string `gorm:"not null;index" json:"cardUuid"`
	UserID     uint   `gorm:"not null;index" json:"userId"`
	MerchantID uint   `gorm:"not null;index" json:"merchantId"`
	TerminalID string `json:"terminalId,omitempty"`

	Amount      float64 `gorm:"not null" json:"amount"`
	GasFee      float64 `gorm:"default:0" json:"gasFee"`
	TotalAmount float64 `gorm:"not null" json:"totalAmount"`

	Status        string `gorm:"not null;default:'pending';index" json:"status"`
	FailureReason string `json:"failureReason,omitempty"`

	TxHash      string `json:"txHash,omitempty"`
	GasUsed     uint64 `gorm:"default:0" json:"gasUsed,omitempty"`
	BlockNumber uint64 `gorm:"default:0" json:"blockNumber,omitempty"`

	Metadata JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt           time.Time  `json:"createdAt"`
	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Terminal reports whether the transaction reached a final state.
func (t *Transaction) Terminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}
