package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode"

	"vocadrill/internal/models"
	"vocadrill/internal/repository"
)

// candidatePoolSize bounds how many of the weakest items compete for the
// next drill slot.
const candidatePoolSize = 20

// RevealThreshold is the number of consecutive errors on one item before
// the correct answer is shown.
const RevealThreshold = 5

// ErrNoEligibleItems is returned when the current settings filter out
// every item in the collection.
var ErrNoEligibleItems = errors.New("no items match the current practice settings")

// ErrNoActiveDrill is returned when an answer is submitted before an item
// has been selected.
var ErrNoActiveDrill = errors.New("no drill in progress")

// Drill is one selected practice prompt: the item to drill and the mode
// it should be presented in.
type Drill struct {
	Item models.Item
	Mode models.DrillMode
}

// AnswerResult describes the outcome of a full answer submission.
type AnswerResult struct {
	IsCorrect         bool
	ConsecutiveErrors int
	ShouldReveal      bool
	CorrectText       string
}

// Scheduler picks which item to practice next and scores full answer
// submissions. Selection favors the weakest items: the candidate pool is
// the lowest-proficiency slice of whatever the settings allow, and the
// pick within the pool is uniform so drilling does not fixate on a single
// word.
type Scheduler struct {
	items    *repository.ItemRepository
	log      *repository.PracticeLogRepository
	settings models.Settings
	rng      *rand.Rand

	// Now is the clock used for stats timestamps. Overridable in tests.
	Now func() time.Time

	current           *models.Item
	currentMode       models.DrillMode
	consecutiveErrors int
}

// NewScheduler creates a scheduler with default settings.
func NewScheduler(items *repository.ItemRepository, practiceLog *repository.PracticeLogRepository) *Scheduler {
	return &Scheduler{
		items:    items,
		log:      practiceLog,
		settings: models.DefaultSettings(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		Now:      time.Now,
	}
}

// Configure validates and applies new practice settings. Changing
// settings abandons any drill in progress.
func (s *Scheduler) Configure(settings models.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.settings = settings
	s.current = nil
	s.consecutiveErrors = 0
	return nil
}

// Settings returns the scheduler's active settings.
func (s *Scheduler) Settings() models.Settings {
	return s.settings
}

// Current returns the drill in progress, or nil if none is active.
func (s *Scheduler) Current() *Drill {
	if s.current == nil {
		return nil
	}
	return &Drill{Item: *s.current, Mode: s.currentMode}
}

// ConsecutiveErrors returns the running error count for the active drill.
func (s *Scheduler) ConsecutiveErrors() int {
	return s.consecutiveErrors
}

// SelectNext chooses the next item and mode to drill. Candidates are
// resolved from settings, the lowest-proficiency pool is carved out, and
// one member is picked at random. Session counters reset on every call.
func (s *Scheduler) SelectNext(ctx context.Context) (*Drill, error) {
	candidates, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoEligibleItems
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Proficiency < candidates[j].Proficiency
	})
	pool := candidates
	if len(pool) > candidatePoolSize {
		pool = pool[:candidatePoolSize]
	}
	pick := pool[s.rng.Intn(len(pool))]

	mode := s.pickMode(pick)

	s.current = &pick
	s.currentMode = mode
	s.consecutiveErrors = 0
	return &Drill{Item: pick, Mode: mode}, nil
}

// SubmitAnswer scores a full answer against the active drill. The item's
// proficiency moves by one in the answer's direction, its stats record
// exactly one attempt, and the day's practice log is updated. When the
// consecutive error count reaches the reveal threshold the result carries
// the correct text and the counter resets.
func (s *Scheduler) SubmitAnswer(ctx context.Context, answer string) (*AnswerResult, error) {
	if s.current == nil {
		return nil, ErrNoActiveDrill
	}

	isCorrect := AnswersMatch(s.current.Kind, answer, s.current.Text)
	now := s.Now()

	updated, err := s.items.Update(ctx, s.current.ID, func(item *models.Item) {
		item.Stats.PracticeCount++
		item.Stats.LastPracticeAt = &now
		if isCorrect {
			item.Proficiency++
			item.Stats.CorrectCount++
		} else {
			item.Proficiency--
			item.Stats.ErrorCount++
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}
	if updated == nil {
		s.current = nil
		return nil, ErrNoActiveDrill
	}

	if err := s.log.Record(ctx, updated.ID, isCorrect); err != nil {
		return nil, fmt.Errorf("failed to update practice log: %w", err)
	}

	if isCorrect {
		s.consecutiveErrors = 0
	} else {
		s.consecutiveErrors++
	}

	result := &AnswerResult{
		IsCorrect:         isCorrect,
		ConsecutiveErrors: s.consecutiveErrors,
		ShouldReveal:      s.consecutiveErrors >= RevealThreshold,
		CorrectText:       updated.Text,
	}
	if result.ShouldReveal {
		s.consecutiveErrors = 0
	}
	return result, nil
}

// candidates resolves the eligible item set from the active settings.
func (s *Scheduler) candidates(ctx context.Context) ([]models.Item, error) {
	var (
		items []models.Item
		err   error
	)
	if s.settings.TodayNewOnly {
		items, err = s.items.ByAddedToday(ctx)
	} else {
		items, err = s.items.ByProficiencyRange(ctx, s.settings.MinProficiency, s.settings.MaxProficiency)
	}
	if err != nil {
		return nil, err
	}

	if s.settings.TagFilter == "" {
		return items, nil
	}
	filtered := items[:0]
	for _, item := range items {
		if item.HasTag(s.settings.TagFilter) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// pickMode chooses the presentation mode for a selected item. Sentence
// items always drill as sentences. When no mode is enabled, audio is
// force-enabled so selection can always proceed.
func (s *Scheduler) pickMode(item models.Item) models.DrillMode {
	if item.Kind == models.KindSentence {
		return models.ModeSentence
	}
	enabled := s.settings.EnabledModes()
	if len(enabled) == 0 {
		s.settings.AudioMode = true
		enabled = []models.DrillMode{models.ModeAudio}
	}
	return enabled[s.rng.Intn(len(enabled))]
}

// AnswersMatch reports whether an answer counts as correct for the given
// item kind. Matching is case-insensitive after trimming. Sentence
// answers additionally ignore punctuation and whitespace runs so that
// "Hello, world!" and "hello world" compare equal.
func AnswersMatch(kind models.ItemKind, answer, target string) bool {
	a := normalizeAnswer(kind, answer)
	t := normalizeAnswer(kind, target)
	if a == "" {
		return false
	}
	return a == t
}

// IsAnswerPrefix reports whether a partial answer is still on track to
// match the target. Used for per-keystroke validation.
func IsAnswerPrefix(partial, target string) bool {
	return strings.HasPrefix(strings.ToLower(target), strings.ToLower(partial))
}

func normalizeAnswer(kind models.ItemKind, text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if kind != models.KindSentence {
		return text
	}
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(stripped), " ")
}
