package notifier

import (
	"context"
	"time"

	"tappay/internal/models"
)

// UserStore resolves notification recipients.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Cache is the capped-list surface backing the notification feeds.
type Cache interface {
	PushCapped(ctx context.Context, key string, value interface{}, cap int, ttl time.Duration) error
	ListRange(ctx context.Context, key string, limit int) ([]string, error)
	// UpdateList atomically rewrites a list; a nil return from the callback
	// leaves the list untouched.
	UpdateList(ctx context.Context, key string, ttl time.Duration, rewrite func(entries []string) ([]interface{}, error)) error
}

// SideChannel delivers best-effort external notices. Failures are logged
// and swallowed; these are side channels, never the source of truth.
type SideChannel interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	OpenSupportTicket(ctx context.Context, alert models.AdminAlert) error
}
