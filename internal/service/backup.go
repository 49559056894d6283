package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"vocadrill/internal/models"
	"vocadrill/internal/repository"
)

// BackupService exports the full collection state to a portable JSON
// snapshot and restores from one. Import is wholesale: the snapshot's
// contents replace whatever is stored.
type BackupService struct {
	items *repository.ItemRepository
	log   *repository.PracticeLogRepository
}

// NewBackupService creates a new backup service.
func NewBackupService(items *repository.ItemRepository, practiceLog *repository.PracticeLogRepository) *BackupService {
	return &BackupService{items: items, log: practiceLog}
}

// Snapshot assembles the current state without writing it anywhere.
func (s *BackupService) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	items, err := s.items.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	days, err := s.log.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read practice log: %w", err)
	}
	return &models.Snapshot{
		Version:     models.SnapshotVersion,
		ExportedAt:  s.items.Now(),
		Items:       items,
		PracticeLog: days,
	}, nil
}

// ExportToWriter writes a snapshot as indented JSON.
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Export writes a snapshot of the full collection to a file.
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	log.Println("Starting collection export...")

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	log.Printf("Collection exported successfully to %s", outputPath)
	log.Printf("Exported: %d items, %d practice days", len(snapshot.Items), len(snapshot.PracticeLog))
	return nil
}

// Import restores the collection from a snapshot file. Existing items
// and the practice log are replaced entirely.
func (s *BackupService) Import(ctx context.Context, inputPath string) error {
	log.Printf("Starting collection import from %s...", inputPath)

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores the collection from a snapshot stream.
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader) error {
	var snapshot models.Snapshot
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	log.Printf("Snapshot version: %s, exported at: %s", snapshot.Version, snapshot.ExportedAt)

	if err := s.items.ReplaceAll(ctx, snapshot.Items); err != nil {
		return fmt.Errorf("failed to import items: %w", err)
	}
	if err := s.log.ReplaceAll(ctx, snapshot.PracticeLog); err != nil {
		return fmt.Errorf("failed to import practice log: %w", err)
	}

	log.Printf("Collection import completed: %d items, %d practice days", len(snapshot.Items), len(snapshot.PracticeLog))
	return nil
}
