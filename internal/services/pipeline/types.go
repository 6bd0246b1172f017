package pipeline

// PaymentData is everything the worker needs to settle one payment. It is
// captured at submit time so the job is self-contained on the queue.
type PaymentData struct {
	CardUUID              string  `json:"cardUuid"`
	Amount                float64 `json:"amount"`
	MerchantID            uint    `json:"merchantId"`
	MerchantWalletAddress string  `json:"merchantWalletAddress"`
	TerminalID            string  `json:"terminalId"`
	UserID                uint    `json:"userId"`
	UserWalletAddress     string  `json:"userWalletAddress"`
	GasFee                float64 `json:"gasFee"`
	TotalAmount           float64 `json:"totalAmount"`
}

// JobPayload is the wire shape of a payment job.
type JobPayload struct {
	TransactionID string      `json:"transactionId"`
	PaymentData   PaymentData `json:"paymentData"`
	RetryCount    int         `json:"retryCount"`
}

// StatusEvent is the realtime transaction:update payload pushed to the
// owning user at each stage transition.
type StatusEvent struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	TxHash        string `json:"txHash,omitempty"`
	ExplorerURL   string `json:"explorerUrl,omitempty"`
	Error         string `json:"error,omitempty"`
}
