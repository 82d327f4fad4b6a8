package main

import (
	"context"
	"time"

	"plancal/internal/chat"
	"plancal/internal/config"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/seed"
	"plancal/internal/store"
)

// app bundles the stores and collaborators shared by the subcommands.
type app struct {
	conf       *config.Config
	loc        *time.Location
	activities *store.ActivityStore
	categories *store.CategoryStore
	syncer     *ics.Syncer
}

func newApp(conf *config.Config) *app {
	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
	}

	a := &app{
		conf:       conf,
		loc:        loc,
		activities: store.NewActivityStore(),
		categories: store.NewCategoryStore(),
	}
	a.categories.Seed(seed.Categories())
	if conf.SeedSample {
		a.activities.Seed(seed.Activities(loc))
	}

	subs := subscriptions(conf)
	if len(subs) > 0 {
		a.syncer = ics.NewSyncer(ics.NewFetcher(conf.CacheDir, 0), subs, a.activities)
	}
	return a
}

// sync imports the configured subscriptions once. Failures are logged; the
// activities of failing feeds are left as they were.
func (a *app) sync(ctx context.Context) {
	if a.syncer == nil {
		return
	}
	if err := a.syncer.Sync(ctx); err != nil {
		appLog.Error("initial ics sync had failures", err)
	}
}

// chatService builds the chat service. Without an API key every reply is
// the degraded message.
func (a *app) chatService() *chat.Service {
	opts := []chat.ServiceOption{
		chat.WithLocation(a.loc),
		chat.WithCategories(a.categories.List),
	}

	client, err := chat.NewClient(chat.ClientConfig{
		Endpoint:   a.conf.Chat.Endpoint,
		APIKey:     a.conf.Chat.APIKey(),
		Model:      a.conf.Chat.Model,
		Timeout:    a.conf.Chat.Timeout(),
		MaxRetries: a.conf.Chat.Retries(),
	})
	if err != nil {
		appLog.Warn("chat backend disabled", "reason", err.Error(), "api_key_env", a.conf.Chat.APIKeyEnv)
		return chat.NewService(nil, opts...)
	}
	return chat.NewService(client, opts...)
}

// subscriptions relies on Normalize having filled every ICS id.
func subscriptions(conf *config.Config) []ics.Subscription {
	subs := make([]ics.Subscription, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		if c.URL == "" {
			continue
		}
		subs = append(subs, ics.Subscription{ID: c.ID, URL: c.URL, CategoryID: c.CategoryID})
	}
	return subs
}
