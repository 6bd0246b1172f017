// Package validation implements the synchronous pre-check answered to an NFC
// tap. The latency budget is sub-100ms, so reads are cache-first with a
// store fallback. Spend counters are never mutated here; that happens at
// commit time in the pipeline.
package validation

import (
	"context"
	"fmt"
	"log"
	"time"

	"tappay/internal/models"
	"tappay/internal/services/fraud"
	cachekeys "tappay/internal/utils/cache"

	"github.com/google/uuid"
)

type service struct {
	cards     CardReader
	merchants MerchantReader
	cache     Cache
	policy    fraud.Policy
	fees      FeeEstimator
	config    Config
}

// NewService creates a fast validation service.
func NewService(cards CardReader, merchants MerchantReader, cache Cache, policy fraud.Policy, fees FeeEstimator, cfg Config) Service {
	if cards == nil {
		panic("card reader is required")
	}
	if merchants == nil {
		panic("merchant reader is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if policy == nil {
		panic("fraud policy is required")
	}
	if fees == nil {
		panic("fee estimator is required")
	}
	if cfg.RiskThreshold == 0 {
		cfg.RiskThreshold = DefaultConfig().RiskThreshold
	}
	if cfg.CardStatusTTL == 0 {
		cfg.CardStatusTTL = DefaultConfig().CardStatusTTL
	}
	if cfg.FastValidationTTL == 0 {
		cfg.FastValidationTTL = DefaultConfig().FastValidationTTL
	}
	return &service{
		cards:     cards,
		merchants: merchants,
		cache:     cache,
		policy:    policy,
		fees:      fees,
		config:    cfg,
	}
}

// Validate runs the tap pre-checks in order, short-circuiting on the first
// failure: card status, expiry, single-transaction limit, daily accumulator,
// fraud score.
func (s *service) Validate(ctx context.Context, cardUUID string, amount float64, merchantID uint) (*Result, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	// Replay a cached verdict for the same card+amount fingerprint if one
	// exists. Rejections and approvals both cache; the entry is invalidated
	// by the pipeline after every commit on the card.
	verdictKey := cachekeys.FastValidationKey(cardUUID, amount)
	var cached Result
	if found, err := s.cache.Get(ctx, verdictKey, &cached); err == nil && found {
		if cached.Valid {
			cached.AuthCode = newAuthCode()
		}
		return &cached, nil
	}

	card, err := s.getCard(ctx, cardUUID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !card.IsActive {
		return s.reject(ctx, verdictKey, ReasonCardInactive), nil
	}
	if card.Expired(now) {
		return s.reject(ctx, verdictKey, ReasonCardExpired), nil
	}
	if amount > card.SingleTransactionLimit {
		return s.reject(ctx, verdictKey, ReasonSingleLimit), nil
	}

	spent := s.dailySpent(ctx, card, now)
	if spent+amount > card.DailyLimit {
		return s.reject(ctx, verdictKey, ReasonDailyLimit), nil
	}

	score, err := s.policy.Score(ctx, cardUUID, amount)
	if err != nil {
		return nil, fmt.Errorf("fraud check failed: %w", err)
	}
	if score >= s.config.RiskThreshold {
		return s.reject(ctx, verdictKey, ReasonHighRisk), nil
	}

	merchant, err := s.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve merchant: %w", err)
	}

	result := &Result{
		Valid: true,
		CardInfo: &models.CardSummary{
			CardUUID:       card.CardUUID,
			DailyLimit:     card.DailyLimit,
			DailyRemaining: card.DailyLimit - spent,
		},
		MerchantInfo: &models.MerchantSummary{
			ID:           merchant.ID,
			BusinessName: merchant.BusinessName,
		},
		EstimatedFees: s.fees.EstimateGasFee(amount),
	}

	// Cache the verdict without the one-shot authorization code.
	if err := s.cache.SetWithTTL(ctx, verdictKey, result, s.config.FastValidationTTL); err != nil {
		log.Printf("validation: failed to cache verdict for %s: %v", cardUUID, err)
	}

	result.AuthCode = newAuthCode()
	return result, nil
}

// getCard reads the card status snapshot cache-first. A cache failure falls
// through to the store read; it never approves by default.
func (s *service) getCard(ctx context.Context, cardUUID string) (*models.Card, error) {
	key := cachekeys.CardStatusKey(cardUUID)
	var card models.Card
	found, err := s.cache.Get(ctx, key, &card)
	if err != nil {
		log.Printf("validation: card status cache unavailable: %v", err)
	} else if found {
		return &card, nil
	}

	fresh, err := s.cards.GetByUUID(ctx, cardUUID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetWithTTL(ctx, key, fresh, s.config.CardStatusTTL); err != nil {
		log.Printf("validation: failed to cache card status for %s: %v", cardUUID, err)
	}
	return fresh, nil
}

// dailySpent reads the daily accumulator for (card, today). An absent entry
// reads as the card row's own counter: the accumulator is a fast shadow of
// the store, not the authority.
func (s *service) dailySpent(ctx context.Context, card *models.Card, now time.Time) float64 {
	val, found, err := s.cache.GetFloat(ctx, cachekeys.DailySpendingKey(card.CardUUID, now))
	if err != nil {
		log.Printf("validation: daily accumulator unavailable for %s: %v", card.CardUUID, err)
		return card.DailySpent
	}
	if !found {
		return card.DailySpent
	}
	if card.DailySpent > val {
		return card.DailySpent
	}
	return val
}

func (s *service) reject(ctx context.Context, verdictKey, reason string) *Result {
	result := &Result{Valid: false, Reason: reason}
	if err := s.cache.SetWithTTL(ctx, verdictKey, result, s.config.FastValidationTTL); err != nil {
		log.Printf("validation: failed to cache rejection: %v", err)
	}
	return result
}

func newAuthCode() string {
	return uuid.NewString()[:8]
}
