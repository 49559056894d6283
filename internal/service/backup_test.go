package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"vocadrill/internal/models"
)

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()

	srcItems, srcLog := newTestRepos(t)
	created := addItem(t, srcItems, "hello", -42, "greetings")
	if err := srcLog.Record(ctx, created.ID, true); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	var buf bytes.Buffer
	if err := NewBackupService(srcItems, srcLog).ExportToWriter(ctx, &buf); err != nil {
		t.Fatalf("ExportToWriter() error = %v", err)
	}

	dstItems, dstLog := newTestRepos(t)
	addItem(t, dstItems, "stale", 0)
	if err := NewBackupService(dstItems, dstLog).ImportFromReader(ctx, &buf); err != nil {
		t.Fatalf("ImportFromReader() error = %v", err)
	}

	items, err := dstItems.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d after wholesale import, want 1", len(items))
	}
	got := items[0]
	if got.ID != created.ID || got.Text != "hello" || got.Proficiency != -42 {
		t.Errorf("imported item = %+v, want the exported record", got)
	}

	days, err := dstLog.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("len(days) = %d, want 1", len(days))
	}
	for _, entry := range days {
		if !entry.Contains(created.ID) || entry.CorrectCount != 1 {
			t.Errorf("imported entry = %+v, want the exported day", entry)
		}
	}
}

func TestBackupExportFileHasSnapshotShape(t *testing.T) {
	ctx := context.Background()
	items, practiceLog := newTestRepos(t)
	addItem(t, items, "hello", -100)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	svc := NewBackupService(items, practiceLog)
	if err := svc.Export(ctx, path); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if err := svc.Import(ctx, path); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	snapshot, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snapshot.Version != models.SnapshotVersion {
		t.Errorf("Version = %q, want %q", snapshot.Version, models.SnapshotVersion)
	}
	if len(snapshot.Items) != 1 {
		t.Errorf("len(Items) = %d, want 1", len(snapshot.Items))
	}
}
