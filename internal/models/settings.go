package models

import "fmt"

// DrillMode is the presentation style of a practice prompt
type DrillMode string

const (
	ModeAudio       DrillMode = "audio"
	ModeTranslation DrillMode = "translation"
	ModeSentence    DrillMode = "sentence"
)

// Proficiency range bounds accepted from the settings form
const (
	ProficiencyFloor   = -9999
	ProficiencyCeiling = 9999
)

// ValidationError flags malformed settings or input
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Settings is the collaborator-facing drill configuration
type Settings struct {
	AudioMode       bool   `json:"audio_mode"`
	TranslationMode bool   `json:"translation_mode"`
	MinProficiency  int    `json:"min_proficiency"`
	MaxProficiency  int    `json:"max_proficiency"`
	TodayNewOnly    bool   `json:"today_new_only"`
	TagFilter       string `json:"tag_filter"` // empty means no filter
}

// DefaultSettings returns the settings a fresh install starts with
func DefaultSettings() Settings {
	return Settings{
		AudioMode:       true,
		TranslationMode: true,
		MinProficiency:  ProficiencyFloor,
		MaxProficiency:  ProficiencyCeiling,
	}
}

// Validate checks range bounds and ordering
func (s Settings) Validate() error {
	if s.MinProficiency < ProficiencyFloor || s.MinProficiency > ProficiencyCeiling {
		return ValidationError{Field: "min_proficiency", Message: fmt.Sprintf("must be in [%d, %d]", ProficiencyFloor, ProficiencyCeiling)}
	}
	if s.MaxProficiency < ProficiencyFloor || s.MaxProficiency > ProficiencyCeiling {
		return ValidationError{Field: "max_proficiency", Message: fmt.Sprintf("must be in [%d, %d]", ProficiencyFloor, ProficiencyCeiling)}
	}
	if s.MinProficiency > s.MaxProficiency {
		return ValidationError{Field: "min_proficiency", Message: "min must not exceed max"}
	}
	return nil
}

// EnabledModes lists the word drill modes currently switched on
func (s Settings) EnabledModes() []DrillMode {
	var modes []DrillMode
	if s.AudioMode {
		modes = append(modes, ModeAudio)
	}
	if s.TranslationMode {
		modes = append(modes, ModeTranslation)
	}
	return modes
}
