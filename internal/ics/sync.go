package ics

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// SourceReplacer swaps the imported activities of one subscription.
type SourceReplacer interface {
	ReplaceSource(source string, activities []model.Activity)
}

// Syncer imports every subscription into a store.
type Syncer struct {
	fetcher *Fetcher
	subs    []Subscription
	store   SourceReplacer
}

func NewSyncer(f *Fetcher, subs []Subscription, store SourceReplacer) *Syncer {
	return &Syncer{fetcher: f, subs: subs, store: store}
}

// Sync fetches and parses each subscription and replaces its activities.
// A failing subscription keeps its previously imported activities; the
// returned error joins all failures.
func (s *Syncer) Sync(ctx context.Context) error {
	var errs []error
	for _, sub := range s.subs {
		res, err := s.fetcher.Fetch(ctx, sub)
		if err != nil {
			appLog.Error("ics sync: fetch failed", err, "id", sub.ID, "url", redactURL(sub.URL))
			errs = append(errs, fmt.Errorf("%s: %w", sub.ID, err))
			continue
		}
		activities, err := Parse(sub, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.ID, err))
			continue
		}
		s.store.ReplaceSource(sub.ID, activities)
		appLog.Info("ics sync: subscription imported", "id", sub.ID, "activities", len(activities), "from_cache", res.FromCache)
	}
	return errors.Join(errs...)
}

// Schedule registers Sync on a standard 5-field cron schedule and starts the
// scheduler. Stop the returned cron to end refreshes.
func (s *Syncer) Schedule(ctx context.Context, schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := s.Sync(ctx); err != nil {
			appLog.Error("ics sync: scheduled run had failures", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	appLog.Info("ics sync: refresh scheduled", "cron", schedule, "subscriptions", len(s.subs))
	return c, nil
}
