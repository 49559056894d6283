package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"vocadrill/internal/models"
	"vocadrill/internal/repository"
	"vocadrill/internal/store"
)

func newTestRepos(t *testing.T) (*repository.ItemRepository, *repository.PracticeLogRepository) {
	t.Helper()
	tier, err := store.OpenSQLiteTier(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	s := store.NewLocalStore(tier, store.NewNotices(time.Second))
	t.Cleanup(func() { s.Close() })
	return repository.NewItemRepository(s), repository.NewPracticeLogRepository(s)
}

func newTestScheduler(t *testing.T) (*Scheduler, *repository.ItemRepository, *repository.PracticeLogRepository) {
	t.Helper()
	items, practiceLog := newTestRepos(t)
	sched := NewScheduler(items, practiceLog)
	sched.rng = rand.New(rand.NewSource(1))
	return sched, items, practiceLog
}

func addItem(t *testing.T, items *repository.ItemRepository, text string, proficiency int, tags ...string) *models.Item {
	t.Helper()
	ctx := context.Background()
	item, err := items.Create(ctx, models.KindWord, text, []string{"meaning"}, tags)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", text, err)
	}
	item, err = items.Update(ctx, item.ID, func(it *models.Item) {
		it.Proficiency = proficiency
	})
	if err != nil {
		t.Fatalf("Update(%q) error = %v", text, err)
	}
	return item
}

func TestSelectNextDrawsFromWeakestPool(t *testing.T) {
	sched, items, _ := newTestScheduler(t)
	ctx := context.Background()

	strong := make(map[string]bool)
	for i := 0; i < 30; i++ {
		item := addItem(t, items, fmt.Sprintf("word%02d", i), i)
		if i >= candidatePoolSize {
			strong[item.ID] = true
		}
	}

	for i := 0; i < 50; i++ {
		drill, err := sched.SelectNext(ctx)
		if err != nil {
			t.Fatalf("SelectNext() error = %v", err)
		}
		if strong[drill.Item.ID] {
			t.Fatalf("SelectNext() picked %q with proficiency %d, outside the weakest pool",
				drill.Item.Text, drill.Item.Proficiency)
		}
	}
}

func TestSelectNextNoEligibleItems(t *testing.T) {
	sched, items, _ := newTestScheduler(t)
	ctx := context.Background()

	if _, err := sched.SelectNext(ctx); !errors.Is(err, ErrNoEligibleItems) {
		t.Errorf("SelectNext() on empty collection error = %v, want ErrNoEligibleItems", err)
	}

	addItem(t, items, "hello", -100)
	settings := models.DefaultSettings()
	settings.MinProficiency = 0
	settings.MaxProficiency = 10
	if err := sched.Configure(settings); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if _, err := sched.SelectNext(ctx); !errors.Is(err, ErrNoEligibleItems) {
		t.Errorf("SelectNext() with excluding range error = %v, want ErrNoEligibleItems", err)
	}
}

func TestSelectNextTagFilter(t *testing.T) {
	sched, items, _ := newTestScheduler(t)
	ctx := context.Background()

	addItem(t, items, "apple", -100, "fruit")
	addItem(t, items, "carrot", -100, "vegetable")

	settings := models.DefaultSettings()
	settings.TagFilter = "fruit"
	if err := sched.Configure(settings); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		drill, err := sched.SelectNext(ctx)
		if err != nil {
			t.Fatalf("SelectNext() error = %v", err)
		}
		if drill.Item.Text != "apple" {
			t.Fatalf("SelectNext() picked %q, want only tagged item %q", drill.Item.Text, "apple")
		}
	}
}

func TestSelectNextTodayNewOnly(t *testing.T) {
	sched, items, _ := newTestScheduler(t)
	ctx := context.Background()

	yesterday := time.Now().Add(-48 * time.Hour)
	items.Now = func() time.Time { return yesterday }
	addItem(t, items, "old", -100)
	items.Now = time.Now
	addItem(t, items, "new", -100)

	settings := models.DefaultSettings()
	settings.TodayNewOnly = true
	if err := sched.Configure(settings); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		drill, err := sched.SelectNext(ctx)
		if err != nil {
			t.Fatalf("SelectNext() error = %v", err)
		}
		if drill.Item.Text != "new" {
			t.Fatalf("SelectNext() picked %q, want only today's item %q", drill.Item.Text, "new")
		}
	}
}

func TestSelectNextForcesAudioWhenNoModeEnabled(t *testing.T) {
	sched, items, _ := newTestScheduler(t)
	ctx := context.Background()

	addItem(t, items, "hello", -100)

	settings := models.DefaultSettings()
	settings.AudioMode = false
	settings.TranslationMode = false
	if err := sched.Configure(settings); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	drill, err := sched.SelectNext(ctx)
	if err != nil {
		t.Fatalf("SelectNext() error = %v", err)
	}
	if drill.Mode != models.ModeAudio {
		t.Errorf("Mode = %q, want forced %q", drill.Mode, models.ModeAudio)
	}
	if !sched.Settings().AudioMode {
		t.Error("Settings().AudioMode = false after forced fallback, want true")
	}
}

func TestSelectNextSentenceItemsDrillAsSentences(t *testing.T) {
	sched, items, _ := newTestScheduler(t)
	ctx := context.Background()

	if _, err := items.Create(ctx, models.KindSentence, "How are you today", []string{"greeting"}, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		drill, err := sched.SelectNext(ctx)
		if err != nil {
			t.Fatalf("SelectNext() error = %v", err)
		}
		if drill.Mode != models.ModeSentence {
			t.Fatalf("Mode = %q, want %q", drill.Mode, models.ModeSentence)
		}
	}
}

func TestSubmitAnswerCorrect(t *testing.T) {
	sched, items, practiceLog := newTestScheduler(t)
	ctx := context.Background()

	created := addItem(t, items, "hello", -100)
	if _, err := sched.SelectNext(ctx); err != nil {
		t.Fatalf("SelectNext() error = %v", err)
	}

	result, err := sched.SubmitAnswer(ctx, "  Hello ")
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if !result.IsCorrect {
		t.Error("IsCorrect = false, want true for case-insensitive trimmed match")
	}
	if result.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", result.ConsecutiveErrors)
	}

	got, err := items.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Proficiency != -99 {
		t.Errorf("Proficiency = %d, want -99", got.Proficiency)
	}
	if got.Stats.PracticeCount != 1 || got.Stats.CorrectCount != 1 || got.Stats.ErrorCount != 0 {
		t.Errorf("Stats = %+v, want practice=1 correct=1 error=0", got.Stats)
	}
	if got.Stats.LastPracticeAt == nil {
		t.Error("LastPracticeAt = nil, want set")
	}

	today, err := practiceLog.Today(ctx)
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if !today.Contains(created.ID) {
		t.Error("practice log is missing today's item")
	}
	if today.CorrectCount != 1 {
		t.Errorf("today.CorrectCount = %d, want 1", today.CorrectCount)
	}
}

func TestSubmitAnswerRevealsAfterThreshold(t *testing.T) {
	sched, items, _ := newTestScheduler(t)
	ctx := context.Background()

	created := addItem(t, items, "hello", -100)
	if _, err := sched.SelectNext(ctx); err != nil {
		t.Fatalf("SelectNext() error = %v", err)
	}

	for i := 1; i < RevealThreshold; i++ {
		result, err := sched.SubmitAnswer(ctx, "wrong")
		if err != nil {
			t.Fatalf("SubmitAnswer() #%d error = %v", i, err)
		}
		if result.ShouldReveal {
			t.Fatalf("ShouldReveal = true after %d errors, want threshold %d", i, RevealThreshold)
		}
		if result.ConsecutiveErrors != i {
			t.Fatalf("ConsecutiveErrors = %d after %d errors", result.ConsecutiveErrors, i)
		}
	}

	result, err := sched.SubmitAnswer(ctx, "wrong")
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if !result.ShouldReveal {
		t.Fatal("ShouldReveal = false at threshold, want true")
	}
	if result.CorrectText != "hello" {
		t.Errorf("CorrectText = %q, want %q", result.CorrectText, "hello")
	}
	if sched.ConsecutiveErrors() != 0 {
		t.Errorf("ConsecutiveErrors() = %d after reveal, want reset to 0", sched.ConsecutiveErrors())
	}

	got, err := items.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Proficiency != -100-RevealThreshold {
		t.Errorf("Proficiency = %d, want %d", got.Proficiency, -100-RevealThreshold)
	}
	if got.Stats.PracticeCount != got.Stats.CorrectCount+got.Stats.ErrorCount {
		t.Errorf("Stats = %+v, practice count must equal correct plus error", got.Stats)
	}
}

func TestSubmitAnswerWithoutDrill(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	if _, err := sched.SubmitAnswer(context.Background(), "hello"); !errors.Is(err, ErrNoActiveDrill) {
		t.Errorf("SubmitAnswer() error = %v, want ErrNoActiveDrill", err)
	}
}

func TestAnswersMatch(t *testing.T) {
	tests := []struct {
		name   string
		kind   models.ItemKind
		answer string
		target string
		want   bool
	}{
		{"word exact", models.KindWord, "hello", "hello", true},
		{"word case and padding", models.KindWord, "  HeLLo ", "hello", true},
		{"word wrong", models.KindWord, "hallo", "hello", false},
		{"word empty", models.KindWord, "   ", "hello", false},
		{"sentence punctuation ignored", models.KindSentence, "hello world", "Hello, world!", true},
		{"sentence whitespace runs", models.KindSentence, "hello   world", "Hello, world!", true},
		{"sentence wrong word", models.KindSentence, "hello earth", "Hello, world!", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AnswersMatch(tt.kind, tt.answer, tt.target); got != tt.want {
				t.Errorf("AnswersMatch(%q, %q) = %v, want %v", tt.answer, tt.target, got, tt.want)
			}
		})
	}
}
