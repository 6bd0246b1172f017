// Package notifier consumes the typed notification events emitted by the
// settlement pipeline and the scheduler: it maintains the per-user feeds,
// pushes realtime events, and fans out to best-effort side channels.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tappay/internal/models"
	"tappay/internal/queue"
	"tappay/internal/realtime"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// EventNotification is the realtime event pushed when a feed entry lands.
const EventNotification = "notification"

// Dispatcher handles notification tasks. Each event type has its own
// handler; the queue server bounds their concurrency independently of the
// payment pipeline.
type Dispatcher struct {
	users       UserStore
	feed        *Feed
	broadcaster realtime.Broadcaster
	side        SideChannel
}

// NewDispatcher creates the notification dispatcher.
func NewDispatcher(users UserStore, feed *Feed, broadcaster realtime.Broadcaster, side SideChannel) *Dispatcher {
	if users == nil {
		panic("user store is required")
	}
	if feed == nil {
		panic("feed is required")
	}
	if broadcaster == nil {
		panic("broadcaster is required")
	}
	if side == nil {
		side = NewLogSideChannel()
	}
	return &Dispatcher{
		users:       users,
		feed:        feed,
		broadcaster: broadcaster,
		side:        side,
	}
}

// Register attaches the handlers to the queue mux.
func (d *Dispatcher) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TaskPaymentProcessing, d.HandlePaymentProcessing)
	mux.HandleFunc(queue.TaskPaymentSuccess, d.HandlePaymentSuccess)
	mux.HandleFunc(queue.TaskPaymentFailed, d.HandlePaymentFailed)
	mux.HandleFunc(queue.TaskAlertFailedTransaction, d.HandleAlertFailedTransaction)
	mux.HandleFunc(queue.TaskDailySpendingSummary, d.HandleDailySpendingSummary)
}

func (d *Dispatcher) HandlePaymentProcessing(ctx context.Context, t *asynq.Task) error {
	evt, err := decodeEvent(t)
	if err != nil {
		return err
	}
	return d.deliver(ctx, evt, "Payment processing",
		fmt.Sprintf("Your payment of %.0f is being processed.", evt.Amount))
}

func (d *Dispatcher) HandlePaymentSuccess(ctx context.Context, t *asynq.Task) error {
	evt, err := decodeEvent(t)
	if err != nil {
		return err
	}
	return d.deliver(ctx, evt, "Payment successful",
		fmt.Sprintf("Your payment of %.0f has been confirmed.", evt.Amount))
}

func (d *Dispatcher) HandlePaymentFailed(ctx context.Context, t *asynq.Task) error {
	evt, err := decodeEvent(t)
	if err != nil {
		return err
	}
	return d.deliver(ctx, evt, "Payment failed",
		fmt.Sprintf("Your payment of %.0f failed: %s", evt.Amount, evt.Reason))
}

// HandleAlertFailedTransaction records a manual-review escalation on the
// admin list and broadcasts it to connected admins. This is distinct from
// the user-facing failure notice.
func (d *Dispatcher) HandleAlertFailedTransaction(ctx context.Context, t *asynq.Task) error {
	evt, err := decodeEvent(t)
	if err != nil {
		return err
	}

	alert := models.AdminAlert{
		TransactionID:        evt.TransactionID,
		UserID:               evt.UserID,
		Amount:               evt.Amount,
		Reason:               evt.Reason,
		RequiresManualReview: evt.RequiresManualReview,
		CreatedAt:            time.Now(),
	}
	if err := d.feed.PushAdminAlert(ctx, alert); err != nil {
		return err
	}

	d.broadcaster.EmitToRoom("admins", realtime.EventAdminAlert, alert)

	if err := d.side.OpenSupportTicket(ctx, alert); err != nil {
		log.Printf("notifier: support ticket failed for %s: %v", evt.TransactionID, err)
	}
	return nil
}

func (d *Dispatcher) HandleDailySpendingSummary(ctx context.Context, t *asynq.Task) error {
	evt, err := decodeEvent(t)
	if err != nil {
		return err
	}
	return d.deliver(ctx, evt, "Daily spending summary",
		fmt.Sprintf("You spent %.0f on %s.", evt.TotalSpent, evt.Date))
}

// deliver is the common path for user-keyed events: resolve the user, push
// the feed entry, emit realtime, then the best-effort email.
func (d *Dispatcher) deliver(ctx context.Context, evt Event, title, body string) error {
	user, err := d.users.GetByID(ctx, evt.UserID)
	if err != nil {
		// A notification for a missing user is a data integrity problem;
		// fail the job rather than swallowing it.
		return fmt.Errorf("notification for unknown user %d: %v: %w", evt.UserID, err, asynq.SkipRetry)
	}

	n := models.Notification{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Title:  title,
		Body:   body,
		Metadata: models.JSON{
			"transactionId": evt.TransactionID,
			"txHash":        evt.TxHash,
			"explorerUrl":   evt.ExplorerURL,
		},
		CreatedAt: time.Now(),
	}
	if err := d.feed.Push(ctx, n); err != nil {
		return err
	}

	d.broadcaster.EmitToUser(user.ID, EventNotification, n)

	if err := d.side.SendEmail(ctx, user.Email, title, body); err != nil {
		log.Printf("notifier: email delivery failed for user %d: %v", user.ID, err)
	}
	return nil
}

func decodeEvent(t *asynq.Task) (Event, error) {
	var evt Event
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return Event{}, fmt.Errorf("malformed notification payload: %v: %w", err, asynq.SkipRetry)
	}
	return evt, nil
}
