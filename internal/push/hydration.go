package push

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"recipe-server/internal/logging"
	"recipe-server/internal/model"
)

const KindHydration = "hydration"

type ReminderStore interface {
	ListHydrationReminders() []model.HydrationReminder
	DeviceTokens(userID string) []string
	MarkHydrationNotified(userID string, nowMillis int64)
}

// HydrationScheduler periodically reminds users to drink water inside their configured
// local-time window.
type HydrationScheduler struct {
	Store    ReminderStore
	Sender   Sender
	Interval time.Duration
	Now      func() time.Time

	log zerolog.Logger
}

func NewHydrationScheduler(store ReminderStore, sender Sender, interval time.Duration) *HydrationScheduler {
	return &HydrationScheduler{
		Store:    store,
		Sender:   sender,
		Interval: interval,
		Now:      time.Now,
		log:      logging.Component("hydration"),
	}
}

// Run ticks until ctx is done.
func (h *HydrationScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.log.Debug().Msg("running hydration reminder job")
			h.RunOnce(ctx)
		}
	}
}

// RunOnce sends every due reminder and returns how many users were notified.
func (h *HydrationScheduler) RunOnce(ctx context.Context) int {
	now := h.Now()
	sent := 0
	for _, r := range h.Store.ListHydrationReminders() {
		if !due(r, now) {
			continue
		}
		tokens := h.Store.DeviceTokens(r.UserID)
		if len(tokens) == 0 {
			continue
		}
		err := h.Sender.Send(ctx, tokens, Notification{
			Kind:  KindHydration,
			Title: "💧 Time to Hydrate!",
			Body:  "Stay fresh and drink some water!",
		})
		if err != nil {
			h.log.Error().Err(err).Str("user", r.UserID).Msg("hydration reminder failed")
			continue
		}
		h.Store.MarkHydrationNotified(r.UserID, now.UnixMilli())
		sent++
	}
	return sent
}

func due(r model.HydrationReminder, now time.Time) bool {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		loc = time.UTC
	}
	hour := now.In(loc).Hour()
	if hour < r.StartHour || hour > r.EndHour {
		return false
	}
	sinceLast := now.Sub(time.UnixMilli(r.LastNotifiedAt))
	return sinceLast.Hours() >= r.IntervalHours
}
