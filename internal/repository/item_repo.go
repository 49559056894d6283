package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"vocadrill/internal/models"
	"vocadrill/internal/store"
)

// Storage keys for the persisted collections
const (
	KeyItems       = "vocadrill_items"
	KeyPracticeLog = "vocadrill_practice_log"
	KeySettings    = "vocadrill_settings"
)

// StorageKeys lists every collection the store reconciles at startup
func StorageKeys() []string {
	return []string{KeyItems, KeyPracticeLog, KeySettings}
}

// StartingProficiency is assigned to new items, and restored when an
// existing item is deliberately reset.
const StartingProficiency = -100

const itemsSchemaVersion = 1

// storedItems is the versioned on-disk shape of the item collection
type storedItems struct {
	Version int          `json:"version"`
	Items   []storedItem `json:"items"`
}

// storedItem keeps optional substructures as pointers so records from
// older installs can be detected and backfilled on read
type storedItem struct {
	ID           string            `json:"id"`
	Kind         models.ItemKind   `json:"kind"`
	Text         string            `json:"text"`
	Translations []string          `json:"translations"`
	Tags         *[]string         `json:"tags"`
	Proficiency  int               `json:"proficiency"`
	AddedAt      time.Time         `json:"added_at"`
	Stats        *models.ItemStats `json:"stats"`
}

// ItemRepository provides typed CRUD and queries over the persisted
// item collection. Every call materializes the collection fresh from
// the store; there is no long-lived cache, so mutations always act on
// the latest persisted state.
type ItemRepository struct {
	store store.Store

	// Now is swappable for tests
	Now func() time.Time
}

// NewItemRepository creates an item repository over the given store
func NewItemRepository(s store.Store) *ItemRepository {
	return &ItemRepository{store: s, Now: time.Now}
}

// load reads, migrates and returns the full collection. Records
// missing stats or tags are backfilled with zeroed defaults; if any
// record needed backfilling the whole collection is re-persisted
// before being returned, so the migration is idempotent.
func (r *ItemRepository) load(ctx context.Context) ([]models.Item, error) {
	raw, ok, err := r.store.Read(ctx, KeyItems)
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var stored storedItems
	healed := false
	if err := json.Unmarshal(raw, &stored); err != nil || stored.Version == 0 {
		// Legacy shape: a bare array without a version envelope
		if err := json.Unmarshal(raw, &stored.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items: %w", err)
		}
		stored.Version = itemsSchemaVersion
		healed = true
	}

	items := make([]models.Item, 0, len(stored.Items))
	for _, s := range stored.Items {
		item := models.Item{
			ID:           s.ID,
			Kind:         s.Kind,
			Text:         s.Text,
			Translations: s.Translations,
			Proficiency:  s.Proficiency,
			AddedAt:      s.AddedAt,
		}
		if s.Kind == "" {
			item.Kind = models.KindWord
			healed = true
		}
		if s.Tags != nil {
			item.Tags = *s.Tags
		} else {
			item.Tags = []string{}
			healed = true
		}
		if s.Stats != nil {
			item.Stats = *s.Stats
		} else {
			healed = true
		}
		items = append(items, item)
	}

	if healed {
		if err := r.save(ctx, items); err != nil {
			return nil, fmt.Errorf("failed to re-persist migrated items: %w", err)
		}
	}
	return items, nil
}

func (r *ItemRepository) save(ctx context.Context, items []models.Item) error {
	stored := storedItems{Version: itemsSchemaVersion, Items: make([]storedItem, 0, len(items))}
	for _, item := range items {
		it := item
		stored.Items = append(stored.Items, storedItem{
			ID:           it.ID,
			Kind:         it.Kind,
			Text:         it.Text,
			Translations: it.Translations,
			Tags:         &it.Tags,
			Proficiency:  it.Proficiency,
			AddedAt:      it.AddedAt,
			Stats:        &it.Stats,
		})
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}
	if err := r.store.Write(ctx, KeyItems, raw); err != nil {
		return fmt.Errorf("failed to write items: %w", err)
	}
	return nil
}

// NormalizeText trims the text and case-folds word spellings
func NormalizeText(kind models.ItemKind, text string) string {
	text = strings.TrimSpace(text)
	if kind == models.KindWord {
		text = strings.ToLower(text)
	}
	return text
}

// NormalizeTags trims, drops empties and deduplicates, keeping first
// occurrence order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := []string{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// newID assigns an identifier no existing record uses
func newID(items []models.Item) string {
	for {
		id := uuid.New().String()
		collision := false
		for _, item := range items {
			if item.ID == id {
				collision = true
				break
			}
		}
		if !collision {
			return id
		}
	}
}

// Create normalizes, assigns a unique id, initializes proficiency at
// the starting value with zeroed stats, appends and persists. Returns
// the created record.
func (r *ItemRepository) Create(ctx context.Context, kind models.ItemKind, text string, translations, tags []string) (*models.Item, error) {
	text = NormalizeText(kind, text)
	if text == "" {
		return nil, models.ValidationError{Field: "text", Message: "text is required"}
	}

	cleaned := make([]string, 0, len(translations))
	for _, tr := range translations {
		if tr = strings.TrimSpace(tr); tr != "" {
			cleaned = append(cleaned, tr)
		}
	}
	if len(cleaned) == 0 {
		return nil, models.ValidationError{Field: "translations", Message: "at least one translation is required"}
	}

	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	item := models.Item{
		ID:           newID(items),
		Kind:         kind,
		Text:         text,
		Translations: cleaned,
		Tags:         NormalizeTags(tags),
		Proficiency:  StartingProficiency,
		AddedAt:      r.Now(),
	}
	items = append(items, item)
	if err := r.save(ctx, items); err != nil {
		return nil, err
	}
	return &item, nil
}

// Update applies a mutation to the record with the given id and
// persists the collection. Nested structures must be written whole;
// the mutation sees the full record. A missing id yields (nil, nil).
func (r *ItemRepository) Update(ctx context.Context, id string, apply func(*models.Item)) (*models.Item, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].ID != id {
			continue
		}
		apply(&items[i])
		if err := r.save(ctx, items); err != nil {
			return nil, err
		}
		updated := items[i]
		return &updated, nil
	}
	return nil, nil
}

// Delete removes the record with the given id; deleting an absent id
// is a no-op
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	items, err := r.load(ctx)
	if err != nil {
		return err
	}

	filtered := items[:0]
	for _, item := range items {
		if item.ID != id {
			filtered = append(filtered, item)
		}
	}
	return r.save(ctx, filtered)
}

// GetByID returns the record with the given id, or nil if absent
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, nil
}

// All returns the full collection
func (r *ItemRepository) All(ctx context.Context) ([]models.Item, error) {
	return r.load(ctx)
}

// FindByText returns the record whose normalized text matches, or nil.
// Callers use this for the duplicate-name upsert convention.
func (r *ItemRepository) FindByText(ctx context.Context, kind models.ItemKind, text string) (*models.Item, error) {
	text = NormalizeText(kind, text)
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Kind == kind && NormalizeText(kind, item.Text) == text {
			found := item
			return &found, nil
		}
	}
	return nil, nil
}

// LowestByProficiency returns the n weakest items, ascending by
// proficiency. The sort is stable, so ties keep insertion order.
func (r *ItemRepository) LowestByProficiency(ctx context.Context, n int) ([]models.Item, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Proficiency < items[j].Proficiency
	})
	if n < 0 {
		n = 0
	}
	if n > len(items) {
		n = len(items)
	}
	return items[:n], nil
}

// ByProficiencyRange returns items whose proficiency lies in
// [min, max] inclusive
func (r *ItemRepository) ByProficiencyRange(ctx context.Context, min, max int) ([]models.Item, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	matched := []models.Item{}
	for _, item := range items {
		if item.Proficiency >= min && item.Proficiency <= max {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

// ByAddedToday returns items created on the current local calendar day
func (r *ItemRepository) ByAddedToday(ctx context.Context) ([]models.Item, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	now := r.Now()
	matched := []models.Item{}
	for _, item := range items {
		if item.AddedOn(now) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

// ByTags returns items overlapping the requested tag set; an empty
// set means no filter
func (r *ItemRepository) ByTags(ctx context.Context, tags []string) ([]models.Item, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	matched := []models.Item{}
	for _, item := range items {
		if item.HasAnyTag(tags) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

// ReplaceAll overwrites the collection wholesale, as snapshot import does
func (r *ItemRepository) ReplaceAll(ctx context.Context, items []models.Item) error {
	return r.save(ctx, items)
}

// RepairStatsFromLog is optional best-effort recovery for items whose
// counters were lost: an item with all-zero stats that appears in the
// practice log gets its practice count set to its log appearances,
// split 60/40 between correct and error. The split is invented, not
// ground truth.
func (r *ItemRepository) RepairStatsFromLog(ctx context.Context, logDays map[string]models.PracticeLogEntry) (int, error) {
	items, err := r.load(ctx)
	if err != nil {
		return 0, err
	}

	appearances := make(map[string]int)
	for _, entry := range logDays {
		for _, id := range entry.ItemIDs {
			appearances[id]++
		}
	}

	repaired := 0
	for i := range items {
		s := items[i].Stats
		if s.PracticeCount != 0 || s.CorrectCount != 0 || s.ErrorCount != 0 {
			continue
		}
		n := appearances[items[i].ID]
		if n == 0 {
			continue
		}
		correct := (n * 6) / 10
		items[i].Stats = models.ItemStats{
			PracticeCount: n,
			CorrectCount:  correct,
			ErrorCount:    n - correct,
		}
		repaired++
	}

	if repaired > 0 {
		if err := r.save(ctx, items); err != nil {
			return 0, err
		}
	}
	return repaired, nil
}
