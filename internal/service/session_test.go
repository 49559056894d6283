package service

import (
	"context"
	"testing"
	"time"

	"vocadrill/internal/models"
)

// held delays keep timers from firing so transitions can be driven
// explicitly.
func heldDelays() SessionDelays {
	return SessionDelays{
		ErrorClear:  time.Hour,
		RevealHold:  time.Hour,
		CorrectHold: time.Hour,
	}
}

func beginDrill(t *testing.T, m *SessionMachine, item *models.Item) {
	t.Helper()
	m.Begin(Drill{Item: *item, Mode: models.ModeTranslation})
	if m.State() != StateAwaitingInput {
		t.Fatalf("State() after Begin = %q, want %q", m.State(), StateAwaitingInput)
	}
}

func TestSessionPrefixKeepsAccepting(t *testing.T) {
	items, practiceLog := newTestRepos(t)
	m := NewSessionMachine(items, practiceLog, heldDelays())
	t.Cleanup(m.Close)
	ctx := context.Background()

	item := addItem(t, items, "hello", -100)
	beginDrill(t, m, item)

	for _, partial := range []string{"h", "He", "hEl", "hell"} {
		res, err := m.HandleInput(ctx, partial)
		if err != nil {
			t.Fatalf("HandleInput(%q) error = %v", partial, err)
		}
		if !res.OnTrack {
			t.Errorf("HandleInput(%q).OnTrack = false, want true", partial)
		}
		if res.State != StateAwaitingInput {
			t.Errorf("HandleInput(%q).State = %q, want %q", partial, res.State, StateAwaitingInput)
		}
	}

	got, err := items.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Proficiency != -100 || got.Stats.PracticeCount != 0 {
		t.Errorf("on-track typing changed the item: proficiency=%d stats=%+v", got.Proficiency, got.Stats)
	}
}

func TestSessionCompletesOnExactMatch(t *testing.T) {
	items, practiceLog := newTestRepos(t)
	m := NewSessionMachine(items, practiceLog, heldDelays())
	t.Cleanup(m.Close)
	ctx := context.Background()

	item := addItem(t, items, "hello", -100)
	beginDrill(t, m, item)

	res, err := m.HandleInput(ctx, "Hello")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if !res.Complete {
		t.Fatal("Complete = false for exact match, want true")
	}
	if res.State != StateCorrect {
		t.Errorf("State = %q, want %q", res.State, StateCorrect)
	}

	got, err := items.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Proficiency != -99 {
		t.Errorf("Proficiency = %d, want -99", got.Proficiency)
	}
	if got.Stats.PracticeCount != 1 || got.Stats.CorrectCount != 1 || got.Stats.ErrorCount != 0 {
		t.Errorf("Stats = %+v, want practice=1 correct=1 error=0", got.Stats)
	}

	today, err := practiceLog.Today(ctx)
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if !today.Contains(item.ID) || today.CorrectCount != 1 {
		t.Errorf("today = %+v, want item logged with one correct answer", today)
	}
}

func TestSessionMidEntryErrorLatch(t *testing.T) {
	items, practiceLog := newTestRepos(t)
	m := NewSessionMachine(items, practiceLog, heldDelays())
	t.Cleanup(m.Close)
	ctx := context.Background()

	item := addItem(t, items, "hello", -100)
	beginDrill(t, m, item)

	res, err := m.HandleInput(ctx, "hx")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if res.State != StateMidEntryError {
		t.Fatalf("State = %q, want %q", res.State, StateMidEntryError)
	}
	if res.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", res.ConsecutiveErrors)
	}

	// penalty lands immediately, stats wait for the attempt to end
	got, err := items.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Proficiency != -101 {
		t.Errorf("Proficiency = %d, want -101", got.Proficiency)
	}
	if got.Stats.PracticeCount != 0 {
		t.Errorf("Stats.PracticeCount = %d before the attempt ends, want 0", got.Stats.PracticeCount)
	}

	// further typing in the error window changes nothing
	if _, err := m.HandleInput(ctx, "hxy"); err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	got, _ = items.GetByID(ctx, item.ID)
	if got.Proficiency != -101 {
		t.Errorf("Proficiency = %d after latched keystroke, want -101", got.Proficiency)
	}

	if err := m.clearAttempt(ctx); err != nil {
		t.Fatalf("clearAttempt() error = %v", err)
	}
	if m.State() != StateAwaitingInput {
		t.Errorf("State() after clear = %q, want %q", m.State(), StateAwaitingInput)
	}
	if m.Input() != "" {
		t.Errorf("Input() after clear = %q, want empty", m.Input())
	}

	got, _ = items.GetByID(ctx, item.ID)
	if got.Stats.PracticeCount != 1 || got.Stats.ErrorCount != 1 {
		t.Errorf("Stats = %+v after abandoned attempt, want practice=1 error=1", got.Stats)
	}

	today, err := practiceLog.Today(ctx)
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if !today.Contains(item.ID) || today.CorrectCount != 0 {
		t.Errorf("today = %+v, want item logged with no correct answers", today)
	}

	// latch released, the next divergence costs another point
	res, err = m.HandleInput(ctx, "z")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if res.ConsecutiveErrors != 2 {
		t.Errorf("ConsecutiveErrors = %d, want 2", res.ConsecutiveErrors)
	}
	got, _ = items.GetByID(ctx, item.ID)
	if got.Proficiency != -102 {
		t.Errorf("Proficiency = %d, want -102", got.Proficiency)
	}
}

func TestSessionRevealsAtThreshold(t *testing.T) {
	items, practiceLog := newTestRepos(t)
	m := NewSessionMachine(items, practiceLog, heldDelays())
	t.Cleanup(m.Close)
	ctx := context.Background()

	item := addItem(t, items, "hello", -100)
	beginDrill(t, m, item)

	for i := 1; i < RevealThreshold; i++ {
		res, err := m.HandleInput(ctx, "x")
		if err != nil {
			t.Fatalf("HandleInput() #%d error = %v", i, err)
		}
		if res.ShouldReveal {
			t.Fatalf("ShouldReveal = true after %d errors, want threshold %d", i, RevealThreshold)
		}
		if err := m.clearAttempt(ctx); err != nil {
			t.Fatalf("clearAttempt() #%d error = %v", i, err)
		}
	}

	res, err := m.HandleInput(ctx, "x")
	if err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}
	if !res.ShouldReveal {
		t.Fatal("ShouldReveal = false at threshold, want true")
	}
	if res.State != StateRevealed {
		t.Errorf("State = %q, want %q", res.State, StateRevealed)
	}
	if res.ConsecutiveErrors != RevealThreshold {
		t.Errorf("ConsecutiveErrors = %d, want %d", res.ConsecutiveErrors, RevealThreshold)
	}
	if res.CorrectText != "hello" {
		t.Errorf("CorrectText = %q, want %q", res.CorrectText, "hello")
	}

	got, err := items.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Proficiency != -100-RevealThreshold {
		t.Errorf("Proficiency = %d, want %d", got.Proficiency, -100-RevealThreshold)
	}
	if got.Stats.PracticeCount != RevealThreshold || got.Stats.ErrorCount != RevealThreshold {
		t.Errorf("Stats = %+v, want %d failed attempts", got.Stats, RevealThreshold)
	}
	if got.Stats.PracticeCount != got.Stats.CorrectCount+got.Stats.ErrorCount {
		t.Errorf("Stats = %+v, practice count must equal correct plus error", got.Stats)
	}

	advanced := false
	m.OnAdvance = func() { advanced = true }
	m.advance()
	if m.State() != StateIdle {
		t.Errorf("State() after advance = %q, want %q", m.State(), StateIdle)
	}
	if !advanced {
		t.Error("OnAdvance was not called")
	}
}

func TestSessionTimersFire(t *testing.T) {
	items, practiceLog := newTestRepos(t)
	m := NewSessionMachine(items, practiceLog, SessionDelays{
		ErrorClear:  10 * time.Millisecond,
		RevealHold:  10 * time.Millisecond,
		CorrectHold: 10 * time.Millisecond,
	})
	t.Cleanup(m.Close)
	ctx := context.Background()

	item := addItem(t, items, "hello", -100)
	beginDrill(t, m, item)

	if _, err := m.HandleInput(ctx, "x"); err != nil {
		t.Fatalf("HandleInput() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.State() != StateAwaitingInput {
		if time.Now().After(deadline) {
			t.Fatalf("State() = %q, error never cleared", m.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if m.Input() != "" {
		t.Errorf("Input() = %q after timed clear, want empty", m.Input())
	}
}
