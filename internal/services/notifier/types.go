package notifier

// Event is the payload carried by every notification task. The task type
// selects the handler; unused fields stay empty.
type Event struct {
	UserID               uint    `json:"userId"`
	TransactionID        string  `json:"transactionId,omitempty"`
	Amount               float64 `json:"amount,omitempty"`
	TxHash               string  `json:"txHash,omitempty"`
	ExplorerURL          string  `json:"explorerUrl,omitempty"`
	Reason               string  `json:"reason,omitempty"`
	RequiresManualReview bool    `json:"requiresManualReview,omitempty"`
	Date                 string  `json:"date,omitempty"`
	TotalSpent           float64 `json:"totalSpent,omitempty"`
}
