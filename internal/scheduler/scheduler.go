// Package scheduler runs the cron jobs that feed the notification queues,
// currently the end-of-day spending summaries.
package scheduler

import (
	"context"
	"log"
	"time"

	"tappay/internal/config"
	"tappay/internal/models"
	"tappay/internal/queue"
	"tappay/internal/services/notifier"
	cachekeys "tappay/internal/utils/cache"

	"github.com/robfig/cron/v3"
)

// CardLister enumerates the cards to summarize.
type CardLister interface {
	ListActive(ctx context.Context) ([]models.Card, error)
}

// AccumulatorReader reads the daily spend accumulators.
type AccumulatorReader interface {
	GetFloat(ctx context.Context, key string) (float64, bool, error)
}

// Scheduler owns the cron instance and the jobs it drives.
type Scheduler struct {
	cron   *cron.Cron
	cards  CardLister
	cache  AccumulatorReader
	events notifier.Producer
	spec   string
}

// New creates a scheduler. The schedule spec comes from the environment
// (DAILY_SUMMARY_SCHEDULE, default 21:00 every day).
func New(cards CardLister, cache AccumulatorReader, events notifier.Producer) *Scheduler {
	if cards == nil {
		panic("card lister is required")
	}
	if cache == nil {
		panic("cache is required")
	}
	if events == nil {
		panic("event producer is required")
	}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		cards:  cards,
		cache:  cache,
		events: events,
		spec:   config.GetEnv("DAILY_SUMMARY_SCHEDULE", "0 21 * * *"),
	}
}

// Start registers and starts the cron jobs.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.spec, s.EnqueueDailySummaries); err != nil {
		log.Printf("scheduler: failed to schedule daily summary job: %v", err)
		return
	}
	log.Printf("scheduler: daily summary job scheduled (%s)", s.spec)
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// EnqueueDailySummaries publishes one dailySpendingSummary event per card
// owner, aggregating across a user's cards.
func (s *Scheduler) EnqueueDailySummaries() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cards, err := s.cards.ListActive(ctx)
	if err != nil {
		log.Printf("scheduler: failed to list cards: %v", err)
		return
	}

	now := time.Now()
	day := now.Format("2006-01-02")
	totals := make(map[uint]float64)
	for _, card := range cards {
		spent, found, err := s.cache.GetFloat(ctx, cachekeys.DailySpendingKey(card.CardUUID, now))
		if err != nil || !found {
			// The row counter is only today's spend if it was touched today;
			// an untouched card still carries yesterday's figure.
			spent = card.DailySpent
			last := card.LastResetDate
			if last.Year() != now.Year() || last.YearDay() != now.YearDay() {
				spent = 0
			}
		}
		totals[card.UserID] += spent
	}

	for userID, total := range totals {
		if total <= 0 {
			continue
		}
		err := s.events.Publish(ctx, queue.TaskDailySpendingSummary, notifier.Event{
			UserID:     userID,
			Date:       day,
			TotalSpent: total,
		})
		if err != nil {
			log.Printf("scheduler: failed to enqueue summary for user %d: %v", userID, err)
		}
	}
	log.Printf("scheduler: enqueued %d daily summaries", len(totals))
}
