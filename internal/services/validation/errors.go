package validation

import "errors"

var (
	ErrInvalidAmount = errors.New("invalid amount")
)

// Rejection reasons surfaced to the terminal. The strings are part of the
// API contract.
const (
	ReasonCardInactive = "card inactive"
	ReasonCardExpired  = "card expired"
	ReasonSingleLimit  = "Amount exceeds single transaction limit"
	ReasonDailyLimit   = "Daily spending limit exceeded"
	ReasonHighRisk     = "Transaction flagged as high risk"
)
