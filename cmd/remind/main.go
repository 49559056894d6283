package main

import (
	"context"
	"log"

	"vocadrill/internal/config"
	"vocadrill/internal/repository"
	"vocadrill/internal/service"
	"vocadrill/internal/store"
)

// remind sends the daily practice reminder email. Intended to run from
// cron or a scheduled task.
func main() {
	cfg := config.Load()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg, repository.StorageKeys()...)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	items := repository.NewItemRepository(st)
	practiceLog := repository.NewPracticeLogRepository(st)

	reminder, err := service.NewReminderService(ctx,
		cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.ReminderToEmail,
		cfg.WeakThreshold, items, practiceLog)
	if err != nil {
		log.Fatalf("Failed to initialize reminder service: %v", err)
	}

	if err := reminder.Send(ctx); err != nil {
		log.Fatalf("Failed to send reminder: %v", err)
	}
}
