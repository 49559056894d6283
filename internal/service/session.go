package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"vocadrill/internal/models"
	"vocadrill/internal/repository"
)

// SessionState is the phase of a per-keystroke drill attempt.
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateAwaitingInput SessionState = "awaiting_input"
	StateMidEntryError SessionState = "mid_entry_error"
	StateCorrect       SessionState = "correct"
	StateRevealed      SessionState = "revealed"
)

// SessionDelays configures the machine's automatic transitions.
type SessionDelays struct {
	// ErrorClear is how long a mid-entry error is displayed before the
	// attempt is abandoned and the input cleared for a retry.
	ErrorClear time.Duration
	// RevealHold is how long the revealed answer stays on screen before
	// the session advances.
	RevealHold time.Duration
	// CorrectHold is how long a correct result is shown before advancing.
	CorrectHold time.Duration
}

// DefaultSessionDelays returns the standard transition timings.
func DefaultSessionDelays() SessionDelays {
	return SessionDelays{
		ErrorClear:  1500 * time.Millisecond,
		RevealHold:  3 * time.Second,
		CorrectHold: time.Second,
	}
}

// KeystrokeResult reports the machine's reaction to one input change.
type KeystrokeResult struct {
	State             SessionState
	OnTrack           bool
	Complete          bool
	ConsecutiveErrors int
	ShouldReveal      bool
	CorrectText       string
}

// SessionMachine drives character-by-character drilling of a single
// item. Each divergence from the target costs one proficiency point the
// moment it happens, but the attempt's stats are committed exactly once,
// when the attempt ends: on a correct completion, on an abandoned retry,
// or on reveal. A latch keeps continued typing after a divergence from
// stacking further penalties within the same attempt.
type SessionMachine struct {
	items *repository.ItemRepository
	log   *repository.PracticeLogRepository

	delays SessionDelays

	// Now is the clock used for stats timestamps. Overridable in tests.
	Now func() time.Time

	// OnAdvance, when set, is called after a completed item's hold delay
	// expires. The caller typically selects the next drill there.
	OnAdvance func()

	mu                sync.Mutex
	state             SessionState
	item              *models.Item
	mode              models.DrillMode
	input             string
	consecutiveErrors int
	errorLatched      bool
	timer             *time.Timer
}

// NewSessionMachine creates an idle machine.
func NewSessionMachine(items *repository.ItemRepository, practiceLog *repository.PracticeLogRepository, delays SessionDelays) *SessionMachine {
	return &SessionMachine{
		items:  items,
		log:    practiceLog,
		delays: delays,
		Now:    time.Now,
		state:  StateIdle,
	}
}

// State returns the machine's current phase.
func (m *SessionMachine) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Input returns the partial answer typed so far.
func (m *SessionMachine) Input() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

// Begin starts drilling an item. Any previous attempt is discarded and
// all session counters reset.
func (m *SessionMachine) Begin(drill Drill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelTimerLocked()
	item := drill.Item
	m.item = &item
	m.mode = drill.Mode
	m.input = ""
	m.consecutiveErrors = 0
	m.errorLatched = false
	m.state = StateAwaitingInput
}

// Abort discards the current attempt without committing anything.
func (m *SessionMachine) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelTimerLocked()
	m.item = nil
	m.input = ""
	m.consecutiveErrors = 0
	m.errorLatched = false
	m.state = StateIdle
}

// Close stops any pending transition timer.
func (m *SessionMachine) Close() {
	m.Abort()
}

// HandleInput processes the full current contents of the answer field.
// While the input remains a case-insensitive prefix of the target the
// machine stays receptive. The first divergence in an attempt costs one
// proficiency point and arms the clear timer. An exact match completes
// the attempt as correct immediately.
func (m *SessionMachine) HandleInput(ctx context.Context, input string) (*KeystrokeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.item == nil || m.state != StateAwaitingInput {
		return m.resultLocked(), nil
	}
	m.input = input
	if input == "" {
		return m.resultLocked(), nil
	}

	if AnswersMatch(m.item.Kind, input, m.item.Text) {
		if err := m.finalizeCorrectLocked(ctx); err != nil {
			return nil, err
		}
		res := m.resultLocked()
		res.Complete = true
		return res, nil
	}

	if IsAnswerPrefix(input, m.item.Text) {
		res := m.resultLocked()
		res.OnTrack = true
		return res, nil
	}

	return m.enterErrorLocked(ctx)
}

// enterErrorLocked handles a divergence from the target. Repeated wrong
// keystrokes within one attempt are latched to a single penalty.
func (m *SessionMachine) enterErrorLocked(ctx context.Context) (*KeystrokeResult, error) {
	if !m.errorLatched {
		m.errorLatched = true
		m.consecutiveErrors++
		_, err := m.items.Update(ctx, m.item.ID, func(item *models.Item) {
			item.Proficiency--
		})
		if err != nil {
			return nil, fmt.Errorf("failed to apply error penalty: %w", err)
		}
	}

	if m.consecutiveErrors >= RevealThreshold {
		count := m.consecutiveErrors
		if err := m.revealLocked(ctx); err != nil {
			return nil, err
		}
		res := m.resultLocked()
		res.ConsecutiveErrors = count
		res.ShouldReveal = true
		res.CorrectText = m.item.Text
		return res, nil
	}

	m.state = StateMidEntryError
	m.armTimerLocked(m.delays.ErrorClear, func() {
		if err := m.clearAttempt(context.Background()); err != nil {
			log.Printf("Failed to clear drill attempt: %v", err)
		}
	})
	return m.resultLocked(), nil
}

// finalizeCorrectLocked commits a correct completion: proficiency up,
// stats and log updated, then a short hold before advancing.
func (m *SessionMachine) finalizeCorrectLocked(ctx context.Context) error {
	now := m.Now()
	updated, err := m.items.Update(ctx, m.item.ID, func(item *models.Item) {
		item.Proficiency++
		item.Stats.PracticeCount++
		item.Stats.CorrectCount++
		item.Stats.LastPracticeAt = &now
	})
	if err != nil {
		return fmt.Errorf("failed to record correct attempt: %w", err)
	}
	if updated == nil {
		m.state = StateIdle
		m.item = nil
		return nil
	}
	if err := m.log.Record(ctx, updated.ID, true); err != nil {
		return fmt.Errorf("failed to update practice log: %w", err)
	}
	m.consecutiveErrors = 0
	m.errorLatched = false
	m.state = StateCorrect
	m.armTimerLocked(m.delays.CorrectHold, m.advance)
	return nil
}

// clearAttempt abandons a failed attempt: the error is committed to the
// item's stats and the log, the input empties, and the machine returns
// to accepting a fresh try at the same item.
func (m *SessionMachine) clearAttempt(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateMidEntryError || m.item == nil {
		return nil
	}
	if err := m.commitErrorLocked(ctx); err != nil {
		return err
	}
	m.input = ""
	m.errorLatched = false
	m.state = StateAwaitingInput
	return nil
}

// revealLocked shows the answer after too many consecutive errors. The
// final failed attempt is committed here like any abandoned attempt, and
// the error streak resets so the next item starts clean.
func (m *SessionMachine) revealLocked(ctx context.Context) error {
	if err := m.commitErrorLocked(ctx); err != nil {
		return err
	}
	m.consecutiveErrors = 0
	m.errorLatched = false
	m.state = StateRevealed
	m.armTimerLocked(m.delays.RevealHold, m.advance)
	return nil
}

// commitErrorLocked records one failed attempt against the item's stats
// and the day's log. The proficiency penalty was already applied when
// the divergence happened.
func (m *SessionMachine) commitErrorLocked(ctx context.Context) error {
	now := m.Now()
	updated, err := m.items.Update(ctx, m.item.ID, func(item *models.Item) {
		item.Stats.PracticeCount++
		item.Stats.ErrorCount++
		item.Stats.LastPracticeAt = &now
	})
	if err != nil {
		return fmt.Errorf("failed to record failed attempt: %w", err)
	}
	if updated == nil {
		return nil
	}
	if err := m.log.Record(ctx, updated.ID, false); err != nil {
		return fmt.Errorf("failed to update practice log: %w", err)
	}
	return nil
}

func (m *SessionMachine) advance() {
	m.mu.Lock()
	m.item = nil
	m.input = ""
	m.state = StateIdle
	onAdvance := m.OnAdvance
	m.mu.Unlock()
	if onAdvance != nil {
		onAdvance()
	}
}

func (m *SessionMachine) armTimerLocked(d time.Duration, fn func()) {
	m.cancelTimerLocked()
	m.timer = time.AfterFunc(d, fn)
}

func (m *SessionMachine) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *SessionMachine) resultLocked() *KeystrokeResult {
	return &KeystrokeResult{
		State:             m.state,
		ConsecutiveErrors: m.consecutiveErrors,
	}
}
