package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"vocadrill/internal/config"
	"vocadrill/internal/models"
	"vocadrill/internal/repository"
	"vocadrill/internal/service"
	"vocadrill/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg, repository.StorageKeys()...)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	items := repository.NewItemRepository(st)
	practiceLog := repository.NewPracticeLogRepository(st)
	scheduler := service.NewScheduler(items, practiceLog)
	importer := service.NewImportService(items)

	app := &app{
		store:     st,
		items:     items,
		log:       practiceLog,
		scheduler: scheduler,
		importer:  importer,
		in:        bufio.NewScanner(os.Stdin),
	}
	app.run(ctx)
}

type app struct {
	store     store.Store
	items     *repository.ItemRepository
	log       *repository.PracticeLogRepository
	scheduler *service.Scheduler
	importer  *service.ImportService
	in        *bufio.Scanner
}

func (a *app) run(ctx context.Context) {
	fmt.Println("vocadrill - type 'help' for commands")
	for {
		a.printNotices()
		fmt.Print("> ")
		if !a.in.Scan() {
			return
		}
		line := strings.TrimSpace(a.in.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "help":
			printHelp()
		case "add":
			a.handleAdd(ctx, models.KindWord, rest)
		case "addsentence":
			a.handleAdd(ctx, models.KindSentence, rest)
		case "bulk":
			a.handleBulk(ctx)
		case "list":
			a.handleList(ctx)
		case "today":
			a.handleToday(ctx)
		case "practice":
			a.handlePractice(ctx)
		case "settings":
			a.handleSettings(rest)
		case "repair":
			a.handleRepair(ctx)
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q, type 'help'\n", cmd)
		}
	}
}

func (a *app) printNotices() {
	for _, n := range a.store.Notices().Active() {
		fmt.Printf("[%s] %s\n", n.Level, n.Message)
	}
}

// handleAdd parses "word meaning1,meaning2 #tag" the same way a bulk
// line is parsed. Sentences keep their internal spaces, so they use a
// pipe: "addsentence How are you | greeting".
func (a *app) handleAdd(ctx context.Context, kind models.ItemKind, rest string) {
	var entry service.BulkEntry
	if kind == models.KindSentence {
		var err error
		entry, err = service.ParseSentence(rest)
		if err != nil {
			fmt.Println("usage: addsentence <sentence> | <meaning1,meaning2> [#tag ...]")
			return
		}
	} else {
		entries, parseErrs := service.ParseBulkLines(rest)
		if len(parseErrs) > 0 || len(entries) != 1 {
			fmt.Println("usage: add <word> <meaning1,meaning2> [#tag ...]")
			return
		}
		entry = entries[0]
	}

	item, created, err := a.importer.Upsert(ctx, kind, entry.Text, entry.Translations, entry.Tags)
	if err != nil {
		fmt.Printf("add failed: %v\n", err)
		return
	}
	if created {
		fmt.Printf("added %q\n", item.Text)
	} else {
		fmt.Printf("reset %q back to proficiency %d\n", item.Text, item.Proficiency)
	}
}

// handleBulk reads lines until a lone "." and imports them all.
func (a *app) handleBulk(ctx context.Context) {
	fmt.Println("one item per line (\"word meaning1,meaning2 #tag\"), finish with a single \".\"")
	var lines []string
	for a.in.Scan() {
		line := a.in.Text()
		if strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}

	entries, parseErrs := service.ParseBulkLines(strings.Join(lines, "\n"))
	for _, e := range parseErrs {
		fmt.Println(e)
	}
	if len(entries) == 0 {
		fmt.Println("nothing to import")
		return
	}

	report, err := a.importer.BulkAdd(ctx, models.KindWord, entries)
	if err != nil {
		fmt.Printf("bulk import failed: %v\n", err)
		return
	}
	fmt.Printf("added %d, reset %d, failed %d\n", report.Added, report.Reset, report.Failed)
	for _, e := range report.Errors {
		fmt.Println(e)
	}
}

func (a *app) handleList(ctx context.Context) {
	items, err := a.items.All(ctx)
	if err != nil {
		fmt.Printf("list failed: %v\n", err)
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Proficiency < items[j].Proficiency
	})
	for _, item := range items {
		fmt.Printf("%6d  %-20s %s\n", item.Proficiency, item.Text, strings.Join(item.Translations, ", "))
	}
	fmt.Printf("%d items\n", len(items))
}

func (a *app) handleToday(ctx context.Context) {
	today, err := a.log.Today(ctx)
	if err != nil {
		fmt.Printf("today failed: %v\n", err)
		return
	}
	count := len(today.ItemIDs)
	fmt.Printf("today: %d items practiced, %d correct answers, intensity %s\n",
		count, today.CorrectCount, models.IntensityFor(count))
}

// handlePractice runs the drill loop until the collection is exhausted
// or the user types !quit. !skip advances without answering.
func (a *app) handlePractice(ctx context.Context) {
	for {
		drill, err := a.scheduler.SelectNext(ctx)
		if errors.Is(err, service.ErrNoEligibleItems) {
			fmt.Println("no items match the current settings")
			return
		}
		if err != nil {
			fmt.Printf("selection failed: %v\n", err)
			return
		}

		fmt.Println(promptFor(drill))
	answer:
		for {
			fmt.Print("? ")
			if !a.in.Scan() {
				return
			}
			input := strings.TrimSpace(a.in.Text())
			switch input {
			case "!quit":
				return
			case "!skip":
				break answer
			}

			result, err := a.scheduler.SubmitAnswer(ctx, input)
			if err != nil {
				fmt.Printf("submit failed: %v\n", err)
				return
			}
			if result.IsCorrect {
				fmt.Println("correct!")
				break answer
			}
			if result.ShouldReveal {
				fmt.Printf("the answer was: %s\n", result.CorrectText)
				break answer
			}
			fmt.Printf("wrong (%d in a row)\n", result.ConsecutiveErrors)
		}
	}
}

// promptFor renders a drill prompt. Audio playback is a browser
// concern, so the terminal renders audio drills from the translations
// too, just marked differently.
func promptFor(drill *service.Drill) string {
	meanings := strings.Join(drill.Item.Translations, ", ")
	switch drill.Mode {
	case models.ModeSentence:
		return fmt.Sprintf("type the sentence for: %s", meanings)
	case models.ModeAudio:
		return fmt.Sprintf("[audio] type the word for: %s", meanings)
	default:
		return fmt.Sprintf("type the word for: %s", meanings)
	}
}

// handleSettings applies "key value" pairs, or shows the active
// settings when called bare.
func (a *app) handleSettings(rest string) {
	settings := a.scheduler.Settings()
	if strings.TrimSpace(rest) == "" {
		fmt.Printf("audio=%t translation=%t range=[%d,%d] today-only=%t tag=%q\n",
			settings.AudioMode, settings.TranslationMode,
			settings.MinProficiency, settings.MaxProficiency,
			settings.TodayNewOnly, settings.TagFilter)
		return
	}

	key, value, _ := strings.Cut(strings.TrimSpace(rest), " ")
	switch key {
	case "audio":
		settings.AudioMode = value == "on"
	case "translation":
		settings.TranslationMode = value == "on"
	case "today-only":
		settings.TodayNewOnly = value == "on"
	case "tag":
		settings.TagFilter = strings.TrimSpace(value)
	case "min":
		fmt.Sscanf(value, "%d", &settings.MinProficiency)
	case "max":
		fmt.Sscanf(value, "%d", &settings.MaxProficiency)
	default:
		fmt.Printf("unknown setting %q\n", key)
		return
	}

	if err := a.scheduler.Configure(settings); err != nil {
		fmt.Printf("invalid settings: %v\n", err)
	}
}

// handleRepair backfills stats for items with practice history but no
// counters, using the practice log.
func (a *app) handleRepair(ctx context.Context) {
	days, err := a.log.All(ctx)
	if err != nil {
		fmt.Printf("repair failed: %v\n", err)
		return
	}
	repaired, err := a.items.RepairStatsFromLog(ctx, days)
	if err != nil {
		fmt.Printf("repair failed: %v\n", err)
		return
	}
	fmt.Printf("repaired stats for %d items\n", repaired)
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  add <word> <meanings> [#tag ...]       add or reset a word")
	fmt.Println("  addsentence <sentence> | <meanings>    add or reset a sentence")
	fmt.Println("  bulk                                   import many words, one per line")
	fmt.Println("  list                                   show all items, weakest first")
	fmt.Println("  today                                  show today's practice summary")
	fmt.Println("  practice                               start drilling (!skip, !quit)")
	fmt.Println("  settings [key value]                   show or change drill settings")
	fmt.Println("  repair                                 rebuild missing stats from the log")
	fmt.Println("  quit                                   exit")
}
