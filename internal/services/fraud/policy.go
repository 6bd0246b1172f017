// Package fraud scores payment attempts. The scoring algorithm is a
// pluggable policy; the pipeline only compares the score to a threshold.
package fraud

import (
	"context"
	"log"
	"time"

	cachekeys "tappay/internal/utils/cache"
)

// Policy returns a risk score in [0,1] for a payment attempt.
type Policy interface {
	Score(ctx context.Context, cardUUID string, amount float64) (float64, error)
}

// Counter is the cache primitive the default heuristic uses to track
// per-card attempt velocity.
type Counter interface {
	IncrByFloat(ctx context.Context, key string, delta float64, expireAt time.Time) (float64, error)
}

// Config tunes the default heuristic.
type Config struct {
	// LargeAmount adds AmountWeight to the score when exceeded.
	LargeAmount  float64
	AmountWeight float64
	// VelocityWindow bounds the attempt counter; VelocityLimit is the attempt
	// count at which VelocityWeight is fully applied.
	VelocityWindow time.Duration
	VelocityLimit  float64
	VelocityWeight float64
}

// DefaultConfig mirrors the historical tuning.
func DefaultConfig() Config {
	return Config{
		LargeAmount:    1000000,
		AmountWeight:   0.3,
		VelocityWindow: 10 * time.Minute,
		VelocityLimit:  10,
		VelocityWeight: 0.7,
	}
}

// RateOfUsePolicy is the default heuristic: large amounts and bursts of
// attempts on the same card raise the score.
type RateOfUsePolicy struct {
	counter Counter
	cfg     Config
}

// NewRateOfUsePolicy creates the default policy.
func NewRateOfUsePolicy(counter Counter, cfg Config) *RateOfUsePolicy {
	if counter == nil {
		panic("counter is required")
	}
	return &RateOfUsePolicy{counter: counter, cfg: cfg}
}

func (p *RateOfUsePolicy) Score(ctx context.Context, cardUUID string, amount float64) (float64, error) {
	var score float64

	if amount > p.cfg.LargeAmount {
		score += p.cfg.AmountWeight
	}

	attempts, err := p.counter.IncrByFloat(ctx, cachekeys.FraudVelocityKey(cardUUID),
		1, time.Now().Add(p.cfg.VelocityWindow))
	if err != nil {
		// Counter unavailable: score on amount alone rather than blocking
		// the tap path.
		log.Printf("fraud: velocity counter unavailable for %s: %v", cardUUID, err)
		return score, nil
	}

	ratio := attempts / p.cfg.VelocityLimit
	if ratio > 1 {
		ratio = 1
	}
	score += ratio * p.cfg.VelocityWeight

	if score > 1 {
		score = 1
	}
	return score, nil
}
