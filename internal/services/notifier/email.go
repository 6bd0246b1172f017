package notifier

import (
	"context"
	"log"

	"tappay/internal/models"
)

// logSideChannel is the development side-channel: it logs instead of
// delivering. Swap in a real mailer/ticketing client in production wiring.
type logSideChannel struct{}

// NewLogSideChannel creates the logging side channel.
func NewLogSideChannel() SideChannel {
	return &logSideChannel{}
}

func (c *logSideChannel) SendEmail(ctx context.Context, to, subject, body string) error {
	log.Printf("email to %s: %s: %s", to, subject, body)
	return nil
}

func (c *logSideChannel) OpenSupportTicket(ctx context.Context, alert models.AdminAlert) error {
	log.Printf("support ticket: transaction %s requires manual review (%s)",
		alert.TransactionID, alert.Reason)
	return nil
}
