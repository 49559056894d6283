package models

import "time"

// ItemKind distinguishes the two practiced unit types
type ItemKind string

const (
	KindWord     ItemKind = "word"
	KindSentence ItemKind = "sentence"
)

// Item is a practiced unit: a word spelling or a normalized sentence.
// Proficiency starts at -100 and moves one point per full submission;
// it is the sole ranking signal the scheduler uses.
type Item struct {
	ID           string    `json:"id"`
	Kind         ItemKind  `json:"kind"`
	Text         string    `json:"text"`
	Translations []string  `json:"translations"`
	Tags         []string  `json:"tags"`
	Proficiency  int       `json:"proficiency"`
	AddedAt      time.Time `json:"added_at"`
	Stats        ItemStats `json:"stats"`
}

// ItemStats holds cumulative practice counters for one item.
// PracticeCount must always equal CorrectCount + ErrorCount; the two
// are never incremented independently.
type ItemStats struct {
	PracticeCount  int        `json:"practice_count"`
	CorrectCount   int        `json:"correct_count"`
	ErrorCount     int        `json:"error_count"`
	LastPracticeAt *time.Time `json:"last_practice_at"`
}

// HasTag reports whether the item carries the given tag
func (i *Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasAnyTag reports whether the item overlaps the given tag set.
// An empty set matches every item.
func (i *Item) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if i.HasTag(t) {
			return true
		}
	}
	return false
}

// AddedOn reports whether the item was created on the same local
// calendar day as the given time
func (i *Item) AddedOn(now time.Time) bool {
	ay, am, ad := i.AddedAt.Local().Date()
	ny, nm, nd := now.Local().Date()
	return ay == ny && am == nm && ad == nd
}
