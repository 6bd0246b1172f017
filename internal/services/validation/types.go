package validation

import (
	"time"

	"tappay/internal/models"
)

// Result is the fast-validation verdict. Verdicts are cached per card+amount
// fingerprint; the authorization code is generated fresh per call and never
// cached.
type Result struct {
	Valid         bool                    `json:"isValid"`
	Reason        string                  `json:"reason,omitempty"`
	CardInfo      *models.CardSummary     `json:"cardInfo,omitempty"`
	MerchantInfo  *models.MerchantSummary `json:"merchantInfo,omitempty"`
	EstimatedFees float64                 `json:"estimatedFees,omitempty"`
	AuthCode      string                  `json:"authCode,omitempty"`
}

// Config tunes the validator.
type Config struct {
	CardStatusTTL     time.Duration
	FastValidationTTL time.Duration
	RiskThreshold     float64
}

// DefaultConfig returns the validator defaults.
func DefaultConfig() Config {
	return Config{
		CardStatusTTL:     5 * time.Minute,
		FastValidationTTL: time.Minute,
		RiskThreshold:     0.8,
	}
}
