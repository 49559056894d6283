package models

import "time"

// DateKeyFormat is the local-calendar-day key for practice log entries
const DateKeyFormat = "2006-01-02"

// PracticeLogEntry aggregates one calendar day of drilling.
// ItemIDs is stored as an ordered, deduplicated sequence and
// materialized into a set for membership checks; CorrectCount counts
// correct submissions and is not deduplicated by item.
type PracticeLogEntry struct {
	ItemIDs      []string `json:"item_ids"`
	CorrectCount int      `json:"correct_count"`
}

// Contains reports whether the entry already records the item
func (e *PracticeLogEntry) Contains(itemID string) bool {
	for _, id := range e.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// DateKey formats a time as a practice log key in local time
func DateKey(t time.Time) string {
	return t.Local().Format(DateKeyFormat)
}

// Intensity buckets a day's distinct-item count for calendar rendering
type Intensity string

const (
	IntensityNone   Intensity = "none"
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// IntensityFor maps a distinct-item count to a calendar bucket
func IntensityFor(distinctItems int) Intensity {
	switch {
	case distinctItems <= 0:
		return IntensityNone
	case distinctItems <= 5:
		return IntensityLow
	case distinctItems <= 15:
		return IntensityMedium
	default:
		return IntensityHigh
	}
}
