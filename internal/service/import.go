package service

import (
	"context"
	"fmt"
	"strings"

	"vocadrill/internal/models"
	"vocadrill/internal/repository"
)

// BulkEntry is one parsed line of a bulk import payload.
type BulkEntry struct {
	Text         string
	Translations []string
	Tags         []string
}

// BulkReport summarizes a bulk import run.
type BulkReport struct {
	Added  int
	Reset  int
	Failed int
	Errors []string
}

// ImportService adds items one at a time or in bulk. Adding a name that
// already exists is treated as a deliberate restart of that item: its
// proficiency drops back to the starting value and its translations and
// tags are replaced, while the identity and lifetime stats survive.
type ImportService struct {
	items *repository.ItemRepository
}

// NewImportService creates an import service.
func NewImportService(items *repository.ItemRepository) *ImportService {
	return &ImportService{items: items}
}

// Upsert adds a new item, or resets an existing one that has the same
// normalized text. The returned flag is true when a new item was created.
func (s *ImportService) Upsert(ctx context.Context, kind models.ItemKind, text string, translations, tags []string) (*models.Item, bool, error) {
	existing, err := s.items.FindByText(ctx, kind, text)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		item, err := s.items.Create(ctx, kind, text, translations, tags)
		if err != nil {
			return nil, false, err
		}
		return item, true, nil
	}

	cleaned := make([]string, 0, len(translations))
	for _, tr := range translations {
		if tr = strings.TrimSpace(tr); tr != "" {
			cleaned = append(cleaned, tr)
		}
	}
	if len(cleaned) == 0 {
		return nil, false, models.ValidationError{Field: "translations", Message: "at least one translation is required"}
	}

	updated, err := s.items.Update(ctx, existing.ID, func(item *models.Item) {
		item.Proficiency = repository.StartingProficiency
		item.Translations = cleaned
		item.Tags = repository.NormalizeTags(tags)
	})
	if err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

// BulkAdd upserts every entry and reports per-line outcomes. A bad line
// does not stop the rest of the batch.
func (s *ImportService) BulkAdd(ctx context.Context, kind models.ItemKind, entries []BulkEntry) (*BulkReport, error) {
	report := &BulkReport{}
	for i, entry := range entries {
		_, created, err := s.Upsert(ctx, kind, entry.Text, entry.Translations, entry.Tags)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("line %d (%s): %v", i+1, entry.Text, err))
			continue
		}
		if created {
			report.Added++
		} else {
			report.Reset++
		}
	}
	return report, nil
}

// ParseBulkLines parses a bulk payload of one word per line. The first
// space separates the word from its translations, translations split on
// ASCII or fullwidth commas, and trailing "#tag" tokens become tags:
//
//	apple fruit,pome #food
//	银行 bank
//
// Blank lines are skipped. Lines without a translation part are reported
// as errors alongside the entries that did parse.
func ParseBulkLines(payload string) ([]BulkEntry, []string) {
	var (
		entries   []BulkEntry
		parseErrs []string
	)
	for i, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		text, rest, found := strings.Cut(line, " ")
		meanings, tags := extractTags(rest)
		if !found || meanings == "" {
			parseErrs = append(parseErrs, fmt.Sprintf("line %d: missing translation after %q", i+1, text))
			continue
		}
		entries = append(entries, BulkEntry{
			Text:         text,
			Translations: splitTranslations(meanings),
			Tags:         tags,
		})
	}
	return entries, parseErrs
}

// ParseSentence parses one "sentence | translations #tags" line. The
// pipe keeps the sentence intact, spaces and all, so sentences never go
// through the word-oriented first-space split.
func ParseSentence(line string) (BulkEntry, error) {
	text, rest, found := strings.Cut(line, "|")
	text = strings.TrimSpace(text)
	if !found || text == "" {
		return BulkEntry{}, models.ValidationError{Field: "text", Message: "expected \"sentence | translations\""}
	}
	meanings, tags := extractTags(rest)
	if meanings == "" {
		return BulkEntry{}, models.ValidationError{Field: "translations", Message: "at least one translation is required"}
	}
	return BulkEntry{
		Text:         text,
		Translations: splitTranslations(meanings),
		Tags:         tags,
	}, nil
}

// extractTags pulls "#tag" tokens out of a translation segment and
// returns the remaining text with its spacing collapsed.
func extractTags(raw string) (string, []string) {
	var (
		rest []string
		tags []string
	)
	for _, field := range strings.Fields(raw) {
		if strings.HasPrefix(field, "#") && len(field) > 1 {
			tags = append(tags, strings.TrimPrefix(field, "#"))
			continue
		}
		rest = append(rest, field)
	}
	return strings.Join(rest, " "), tags
}

// splitTranslations splits a translation list on ASCII and fullwidth
// commas, dropping empty segments.
func splitTranslations(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
