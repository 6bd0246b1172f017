package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"tappay/internal/config"
	"tappay/internal/models"
	cachekeys "tappay/internal/utils/cache"
)

// Feed maintains the per-user notification ring buffers and the shared
// admin alert list. Entries live only in the cache; the caps and TTLs bound
// their footprint.
type Feed struct {
	cache Cache
	cfg   config.CacheTTLConfig
}

// NewFeed creates a feed over the cache.
func NewFeed(cache Cache, cfg config.CacheTTLConfig) *Feed {
	if cache == nil {
		panic("cache is required")
	}
	if cfg.NotificationCap <= 0 {
		cfg = config.DefaultCacheTTLConfig()
	}
	return &Feed{cache: cache, cfg: cfg}
}

// Push prepends a notification onto the user's feed, truncating to the cap.
func (f *Feed) Push(ctx context.Context, n models.Notification) error {
	key := cachekeys.UserNotificationsKey(n.UserID)
	if err := f.cache.PushCapped(ctx, key, n, f.cfg.NotificationCap, f.cfg.NotificationFeed); err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	return nil
}

// List returns the user's feed, newest first.
func (f *Feed) List(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	raw, err := f.cache.ListRange(ctx, cachekeys.UserNotificationsKey(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	out := make([]models.Notification, 0, len(raw))
	for _, entry := range raw {
		var n models.Notification
		if err := json.Unmarshal([]byte(entry), &n); err != nil {
			log.Printf("notifier: dropping corrupt feed entry for user %d: %v", userID, err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkRead flags the given notification ids as read; with no ids, the whole
// feed is marked. The rewrite runs atomically so a notification pushed while
// it is in flight is never dropped.
func (f *Feed) MarkRead(ctx context.Context, userID uint, ids []string) error {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	key := cachekeys.UserNotificationsKey(userID)
	return f.cache.UpdateList(ctx, key, f.cfg.NotificationFeed, func(entries []string) ([]interface{}, error) {
		if len(entries) == 0 {
			return nil, nil
		}
		values := make([]interface{}, 0, len(entries))
		for _, entry := range entries {
			var n models.Notification
			if err := json.Unmarshal([]byte(entry), &n); err != nil {
				log.Printf("notifier: dropping corrupt feed entry for user %d: %v", userID, err)
				continue
			}
			if len(ids) == 0 || wanted[n.ID] {
				n.Read = true
			}
			values = append(values, n)
		}
		return values, nil
	})
}

// PushAdminAlert appends to the shared manual-review list.
func (f *Feed) PushAdminAlert(ctx context.Context, alert models.AdminAlert) error {
	key := cachekeys.AdminAlertsKey()
	if err := f.cache.PushCapped(ctx, key, alert, f.cfg.AdminAlertCap, f.cfg.AdminAlerts); err != nil {
		return fmt.Errorf("failed to push admin alert: %w", err)
	}
	return nil
}

// ListAdminAlerts returns the manual-review backlog, newest first.
func (f *Feed) ListAdminAlerts(ctx context.Context, limit int) ([]models.AdminAlert, error) {
	raw, err := f.cache.ListRange(ctx, cachekeys.AdminAlertsKey(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read admin alerts: %w", err)
	}
	out := make([]models.AdminAlert, 0, len(raw))
	for _, entry := range raw {
		var alert models.AdminAlert
		if err := json.Unmarshal([]byte(entry), &alert); err != nil {
			log.Printf("notifier: dropping corrupt admin alert: %v", err)
			continue
		}
		out = append(out, alert)
	}
	return out, nil
}
