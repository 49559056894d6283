package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vocadrill/internal/models"
	"vocadrill/internal/store"
)

const logSchemaVersion = 1

// storedLog is the versioned on-disk shape of the practice log
type storedLog struct {
	Version int                                `json:"version"`
	Days    map[string]models.PracticeLogEntry `json:"days"`
}

// PracticeLogRepository tracks per-day drill activity. Day entries are
// created lazily on first drill, mutated additively afterwards, and
// only ever deleted by a wholesale import or reset.
type PracticeLogRepository struct {
	store store.Store

	// Now is swappable for tests
	Now func() time.Time
}

// NewPracticeLogRepository creates a practice log repository over the given store
func NewPracticeLogRepository(s store.Store) *PracticeLogRepository {
	return &PracticeLogRepository{store: s, Now: time.Now}
}

func (r *PracticeLogRepository) load(ctx context.Context) (map[string]models.PracticeLogEntry, error) {
	raw, ok, err := r.store.Read(ctx, KeyPracticeLog)
	if err != nil {
		return nil, fmt.Errorf("failed to read practice log: %w", err)
	}
	if !ok {
		return map[string]models.PracticeLogEntry{}, nil
	}

	var stored storedLog
	if err := json.Unmarshal(raw, &stored); err != nil || stored.Version == 0 {
		// Legacy shape: a bare date-keyed map without a version envelope
		if err := json.Unmarshal(raw, &stored.Days); err != nil {
			return nil, fmt.Errorf("failed to decode practice log: %w", err)
		}
	}
	if stored.Days == nil {
		stored.Days = map[string]models.PracticeLogEntry{}
	}

	// Materialize each day's id sequence through a set so duplicates
	// from older data collapse
	for key, entry := range stored.Days {
		seen := make(map[string]struct{}, len(entry.ItemIDs))
		deduped := entry.ItemIDs[:0]
		for _, id := range entry.ItemIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			deduped = append(deduped, id)
		}
		entry.ItemIDs = deduped
		stored.Days[key] = entry
	}
	return stored.Days, nil
}

func (r *PracticeLogRepository) save(ctx context.Context, days map[string]models.PracticeLogEntry) error {
	raw, err := json.Marshal(storedLog{Version: logSchemaVersion, Days: days})
	if err != nil {
		return fmt.Errorf("failed to encode practice log: %w", err)
	}
	if err := r.store.Write(ctx, KeyPracticeLog, raw); err != nil {
		return fmt.Errorf("failed to write practice log: %w", err)
	}
	return nil
}

// Record notes that an item was drilled today. The day's item-id set
// is idempotent; the correct tally accumulates regardless.
func (r *PracticeLogRepository) Record(ctx context.Context, itemID string, isCorrect bool) error {
	days, err := r.load(ctx)
	if err != nil {
		return err
	}

	key := models.DateKey(r.Now())
	entry := days[key]
	if !entry.Contains(itemID) {
		entry.ItemIDs = append(entry.ItemIDs, itemID)
	}
	if isCorrect {
		entry.CorrectCount++
	}
	days[key] = entry

	return r.save(ctx, days)
}

// All returns the full date-keyed log
func (r *PracticeLogRepository) All(ctx context.Context) (map[string]models.PracticeLogEntry, error) {
	return r.load(ctx)
}

// Today returns today's entry; a day with no drills yields a zero entry
func (r *PracticeLogRepository) Today(ctx context.Context) (models.PracticeLogEntry, error) {
	days, err := r.load(ctx)
	if err != nil {
		return models.PracticeLogEntry{}, err
	}
	return days[models.DateKey(r.Now())], nil
}

// ReplaceAll overwrites the log wholesale, as snapshot import does
func (r *PracticeLogRepository) ReplaceAll(ctx context.Context, days map[string]models.PracticeLogEntry) error {
	if days == nil {
		days = map[string]models.PracticeLogEntry{}
	}
	return r.save(ctx, days)
}
