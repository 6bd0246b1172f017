// Package chain talks to the settlement ledger. The rest of the system sees
// only the Client interface; failures from Submit are treated as transient by
// the pipeline unless wrapped in ErrRejected.
package chain

import (
	"context"
	"errors"
	"fmt"
)

// ErrRejected marks a submission the chain refused outright. Rejections are
// not retried; everything else from Submit is considered transient.
var ErrRejected = errors.New("transaction rejected by chain")

// SubmitRequest carries a transfer to the chain.
type SubmitRequest struct {
	TransactionID string  `json:"transactionId"`
	FromAddress   string  `json:"fromAddress"`
	ToAddress     string  `json:"toAddress"`
	Amount        float64 `json:"amount"`
	GasFee        float64 `json:"gasFee"`
}

// Receipt is a confirmed submission.
type Receipt struct {
	TxHash      string `json:"txHash"`
	GasUsed     uint64 `json:"gasUsed"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Client submits transactions and prices their fees.
type Client interface {
	// Submit sends the transfer and blocks until confirmation or error.
	Submit(ctx context.Context, req SubmitRequest) (*Receipt, error)
	// EstimateGasFee prices the fee for a given amount.
	EstimateGasFee(amount float64) float64
	// ExplorerURL returns the public explorer link for a settled hash.
	ExplorerURL(txHash string) string
}

// FormatExplorerURL joins an explorer base with a transaction hash.
func FormatExplorerURL(base, txHash string) string {
	return fmt.Sprintf("%s/%s", base, txHash)
}
