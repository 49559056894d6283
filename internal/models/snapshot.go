package models

import "time"

// SnapshotVersion is written into every export payload
const SnapshotVersion = "1.0"

// Snapshot is the full export/import payload: the whole item
// collection plus the day-keyed practice log. Import replaces the
// current data wholesale.
type Snapshot struct {
	Version     string                      `json:"version"`
	ExportedAt  time.Time                   `json:"exported_at"`
	Items       []Item                      `json:"items"`
	PracticeLog map[string]PracticeLogEntry `json:"practice_log"`
}
