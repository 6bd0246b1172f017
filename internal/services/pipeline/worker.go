package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"tappay/internal/chain"
	"tappay/internal/config"
	"tappay/internal/models"
	"tappay/internal/queue"
	"tappay/internal/realtime"
	"tappay/internal/services/notifier"
	cachekeys "tappay/internal/utils/cache"

	"github.com/hibiken/asynq"
)

// Worker executes the settlement stages for one payment job. One job
// instance owns its transaction for the whole run; the idempotent submit
// contract guarantees no concurrent writer for the same transaction id.
type Worker struct {
	transactions TransactionStore
	cards        CardStore
	users        UserStore
	cache        Cache
	chainClient  chain.Client
	broadcaster  realtime.Broadcaster
	events       notifier.Producer
	config       config.PipelineConfig
}

// NewWorker creates the payment worker.
func NewWorker(
	transactions TransactionStore,
	cards CardStore,
	users UserStore,
	cache Cache,
	chainClient chain.Client,
	broadcaster realtime.Broadcaster,
	events notifier.Producer,
	cfg config.PipelineConfig,
) *Worker {
	if transactions == nil {
		panic("transaction store is required")
	}
	if cards == nil {
		panic("card store is required")
	}
	if users == nil {
		panic("user store is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if chainClient == nil {
		panic("chain client is required")
	}
	if broadcaster == nil {
		panic("broadcaster is required")
	}
	if events == nil {
		panic("event producer is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Worker{
		transactions: transactions,
		cards:        cards,
		users:        users,
		cache:        cache,
		chainClient:  chainClient,
		broadcaster:  broadcaster,
		events:       events,
		config:       cfg,
	}
}

// ProcessTask adapts the worker to the queue handler contract. A returned
// error that does not wrap SkipRetry re-enqueues the job with backoff.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("malformed payment payload: %v: %w", err, asynq.SkipRetry)
	}

	retryCount, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	payload.RetryCount = retryCount
	return w.Process(ctx, payload, retryCount+1, maxRetry+1)
}

// Process runs the stages for one attempt. attempt is 1-based; the final
// attempt escalates chain failures instead of retrying.
func (w *Worker) Process(ctx context.Context, payload JobPayload, attempt, maxAttempts int) error {
	tx, err := w.transactions.GetByTransactionID(ctx, payload.TransactionID)
	if err != nil {
		// Without a transaction row there is nothing to settle or mark; this
		// is a data integrity failure, not a transient one.
		return fmt.Errorf("payment job %s: %v: %w", payload.TransactionID, err, asynq.SkipRetry)
	}
	if tx.Terminal() {
		log.Printf("pipeline: %s already %s, skipping duplicate delivery", tx.TransactionID, tx.Status)
		return nil
	}

	// Stages 1-2 run once; retries re-enter at the chain submission.
	if attempt == 1 {
		if reason, ok := w.verifyConditions(ctx, payload); !ok {
			w.finalizeFailure(ctx, tx, payload, reason, false)
			return nil
		}

		now := time.Now()
		if err := w.transactions.MarkProcessing(ctx, tx.TransactionID, now); err != nil {
			return fmt.Errorf("failed to mark %s processing: %v: %w", tx.TransactionID, err, asynq.SkipRetry)
		}

		w.broadcaster.EmitToUser(payload.PaymentData.UserID, realtime.EventTransactionUpdate, StatusEvent{
			TransactionID: tx.TransactionID,
			Status:        models.TransactionStatusProcessing,
			Message:       "Payment is being processed",
		})
		w.publishEvent(ctx, queue.TaskPaymentProcessing, notifier.Event{
			UserID:        payload.PaymentData.UserID,
			TransactionID: tx.TransactionID,
			Amount:        payload.PaymentData.Amount,
		})
	}

	receipt, err := w.chainClient.Submit(ctx, chain.SubmitRequest{
		TransactionID: tx.TransactionID,
		FromAddress:   payload.PaymentData.UserWalletAddress,
		ToAddress:     payload.PaymentData.MerchantWalletAddress,
		Amount:        payload.PaymentData.Amount,
		GasFee:        payload.PaymentData.GasFee,
	})
	if err != nil {
		if errors.Is(err, chain.ErrRejected) || attempt >= maxAttempts {
			reason := BlockchainErrorPrefix + err.Error()
			w.finalizeFailure(ctx, tx, payload, reason, true)
			return fmt.Errorf("%s: %w", reason, asynq.SkipRetry)
		}
		log.Printf("pipeline: chain submit failed for %s (attempt %d/%d): %v",
			tx.TransactionID, attempt, maxAttempts, err)
		return fmt.Errorf("chain submit failed: %w", err)
	}

	return w.finalizeSuccess(ctx, tx, payload, receipt)
}

// verifyConditions re-checks card and user against the ledger store. This is
// the authoritative debit path, so the cache alone is not trusted here.
func (w *Worker) verifyConditions(ctx context.Context, payload JobPayload) (string, bool) {
	card, err := w.cards.GetByUUID(ctx, payload.PaymentData.CardUUID)
	if err != nil {
		return ReasonCardNotFound, false
	}
	if !card.IsActive {
		return ReasonCardInactive, false
	}

	if _, err := w.users.GetByID(ctx, payload.PaymentData.UserID); err != nil {
		return ReasonUserNotFound, false
	}

	now := time.Now()
	spent, found, err := w.cache.GetFloat(ctx, cachekeys.DailySpendingKey(card.CardUUID, now))
	if err != nil || !found {
		// Accumulator absent or cache down: the card row is the fallback.
		spent = card.DailySpent
	}
	if spent < card.DailySpent {
		spent = card.DailySpent
	}
	if spent+payload.PaymentData.Amount > card.DailyLimit {
		return ReasonDailyLimit, false
	}

	// Monthly counter lives on the card row only; the store read above has
	// already rolled it over if the month changed.
	if card.MonthlySpent+payload.PaymentData.Amount > card.MonthlyLimit {
		return ReasonMonthlyLimit, false
	}

	return "", true
}

// finalizeSuccess commits the terminal completed state, then updates the
// caches within the same logical operation so a subsequent fast validation
// cannot see pre-payment figures.
func (w *Worker) finalizeSuccess(ctx context.Context, tx *models.Transaction, payload JobPayload, receipt *chain.Receipt) error {
	now := time.Now()
	markErr := w.transactions.MarkCompleted(ctx, tx.TransactionID, receipt.TxHash,
		receipt.GasUsed, receipt.BlockNumber, now)
	if markErr != nil {
		// The chain settled; retrying the job would double-submit. Record
		// loudly and continue the cache/notification fan-out.
		log.Printf("pipeline: CRITICAL failed to record completion of %s: %v", tx.TransactionID, markErr)
	}

	cardUUID := payload.PaymentData.CardUUID
	amount := payload.PaymentData.Amount

	if _, err := w.cards.ApplyDebit(ctx, cardUUID, amount, now); err != nil {
		log.Printf("pipeline: failed to apply debit for %s: %v", tx.TransactionID, err)
	}

	if _, err := w.cache.IncrByFloat(ctx, cachekeys.DailySpendingKey(cardUUID, now),
		amount, cachekeys.EndOfDay(now)); err != nil {
		log.Printf("pipeline: failed to bump daily accumulator for %s: %v", cardUUID, err)
	}
	if err := w.cache.Delete(ctx, cachekeys.CardStatusKey(cardUUID)); err != nil {
		log.Printf("pipeline: failed to invalidate card status for %s: %v", cardUUID, err)
	}
	if err := w.cache.DeleteByPattern(ctx, cachekeys.FastValidationPattern(cardUUID)); err != nil {
		log.Printf("pipeline: failed to invalidate fast-validation entries for %s: %v", cardUUID, err)
	}

	explorerURL := w.chainClient.ExplorerURL(receipt.TxHash)
	w.broadcaster.EmitToUser(payload.PaymentData.UserID, realtime.EventTransactionUpdate, StatusEvent{
		TransactionID: tx.TransactionID,
		Status:        models.TransactionStatusCompleted,
		Message:       "Payment completed",
		TxHash:        receipt.TxHash,
		ExplorerURL:   explorerURL,
	})
	w.publishEvent(ctx, queue.TaskPaymentSuccess, notifier.Event{
		UserID:        payload.PaymentData.UserID,
		TransactionID: tx.TransactionID,
		Amount:        amount,
		TxHash:        receipt.TxHash,
		ExplorerURL:   explorerURL,
	})

	if markErr != nil {
		return fmt.Errorf("completion recorded on chain but not in store: %v: %w", markErr, asynq.SkipRetry)
	}
	return nil
}

// finalizeFailure commits the terminal failed state. Notification fan-out is
// best-effort; a delivery failure never rolls back the transaction.
func (w *Worker) finalizeFailure(ctx context.Context, tx *models.Transaction, payload JobPayload, reason string, escalate bool) {
	now := time.Now()
	if err := w.transactions.MarkFailed(ctx, tx.TransactionID, reason, now); err != nil {
		log.Printf("pipeline: failed to mark %s failed: %v", tx.TransactionID, err)
	}

	if err := w.cache.DeleteByPattern(ctx, cachekeys.FastValidationPattern(payload.PaymentData.CardUUID)); err != nil {
		log.Printf("pipeline: failed to invalidate fast-validation entries for %s: %v",
			payload.PaymentData.CardUUID, err)
	}

	w.broadcaster.EmitToUser(payload.PaymentData.UserID, realtime.EventTransactionUpdate, StatusEvent{
		TransactionID: tx.TransactionID,
		Status:        models.TransactionStatusFailed,
		Message:       "Payment failed",
		Error:         reason,
	})
	w.publishEvent(ctx, queue.TaskPaymentFailed, notifier.Event{
		UserID:        payload.PaymentData.UserID,
		TransactionID: tx.TransactionID,
		Amount:        payload.PaymentData.Amount,
		Reason:        reason,
	})

	if escalate {
		// Manual-review alert is a separate job from the user-facing failure
		// notice and rides the dedicated alerts queue.
		w.publishEvent(ctx, queue.TaskAlertFailedTransaction, notifier.Event{
			UserID:               payload.PaymentData.UserID,
			TransactionID:        tx.TransactionID,
			Amount:               payload.PaymentData.Amount,
			Reason:               reason,
			RequiresManualReview: true,
		})
	}
}

func (w *Worker) publishEvent(ctx context.Context, eventType string, evt notifier.Event) {
	if err := w.events.Publish(ctx, eventType, evt); err != nil {
		log.Printf("pipeline: failed to publish %s for %s: %v", eventType, evt.TransactionID, err)
	}
}
