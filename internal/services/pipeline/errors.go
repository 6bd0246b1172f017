package pipeline

import "errors"

var (
	ErrSubmitFailed = errors.New("failed to submit payment job")
)

// Failure reasons written to the transaction record. Blockchain failures are
// prefixed so downstream tooling can classify them.
const (
	ReasonCardNotFound    = "Card not found"
	ReasonCardInactive    = "Card is not active"
	ReasonUserNotFound    = "User not found"
	ReasonDailyLimit      = "Daily spending limit exceeded"
	ReasonMonthlyLimit    = "Monthly spending limit exceeded"
	BlockchainErrorPrefix = "Blockchain error: "
)
