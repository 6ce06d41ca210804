// Package backup exports the catalog to timestamped zip archives.
package backup

import (
	"archive/zip"
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shelfmark/shelfmark-server/internal/domain"
	"github.com/shelfmark/shelfmark-server/internal/store"
)

// Service manages backup creation.
type Service struct {
	store     *store.Store
	backupDir string
	version   string
	logger    *slog.Logger
}

// NewService creates a backup Service.
func NewService(s *store.Store, backupDir, version string, logger *slog.Logger) *Service {
	return &Service{
		store:     s,
		backupDir: backupDir,
		version:   version,
		logger:    logger,
	}
}

// Counts records how many entities of each kind a backup holds.
type Counts struct {
	Authors int `json:"authors"`
	Books   int `json:"books"`
	Users   int `json:"users"`
}

// Manifest describes a backup archive.
type Manifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	Counts    Counts    `json:"counts"`
}

// Result describes a completed backup.
type Result struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Counts   Counts        `json:"counts"`
	Duration time.Duration `json:"duration"`
}

// Create writes a new backup archive containing every author, book and user
// as JSON, plus a manifest.
func (s *Service) Create(ctx context.Context) (*Result, error) {
	start := time.Now()

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	timestamp := start.Format("2006-01-02-150405")
	outputPath := filepath.Join(s.backupDir, fmt.Sprintf("backup-%s.shelfmark.zip", timestamp))

	s.logger.Info("creating backup", "output", outputPath)

	authors, err := collect(ctx, s.store.Authors.List(ctx))
	if err != nil {
		return nil, fmt.Errorf("export authors: %w", err)
	}
	books, err := collect(ctx, s.store.Books.List(ctx))
	if err != nil {
		return nil, fmt.Errorf("export books: %w", err)
	}
	users, err := collect(ctx, s.store.Users.List(ctx))
	if err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}

	// Password hashes stay out of backups.
	for i := range users {
		users[i].PasswordHash = ""
	}

	counts := Counts{
		Authors: len(authors),
		Books:   len(books),
		Users:   len(users),
	}

	if err := s.writeArchive(outputPath, counts, authors, books, users); err != nil {
		// Leave no partial archive behind.
		_ = os.Remove(outputPath)
		return nil, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}

	result := &Result{
		Path:     outputPath,
		Size:     info.Size(),
		Counts:   counts,
		Duration: time.Since(start),
	}

	s.logger.Info("backup complete",
		"path", result.Path,
		"size", result.Size,
		"authors", counts.Authors,
		"books", counts.Books,
		"users", counts.Users,
		"duration", result.Duration)

	return result, nil
}

// writeArchive writes the manifest and entity files into a zip at path.
func (s *Service) writeArchive(path string, counts Counts, authors []domain.Author, books []domain.Book, users []domain.User) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	manifest := Manifest{
		Version:   s.version,
		CreatedAt: time.Now().UTC(),
		Counts:    counts,
	}

	entries := []struct {
		name string
		data any
	}{
		{"manifest.json", manifest},
		{"authors.json", authors},
		{"books.json", books},
		{"users.json", users},
	}

	for _, entry := range entries {
		w, err := zw.Create(entry.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", entry.name, err)
		}
		data, err := json.Marshal(entry.data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", entry.name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", entry.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return f.Close()
}

// collect drains an entity iterator into a slice of values.
func collect[T any](ctx context.Context, seq func(yield func(*T, error) bool)) ([]T, error) {
	var out []T
	var iterErr error

	seq(func(item *T, err error) bool {
		if err != nil {
			iterErr = err
			return false
		}
		out = append(out, *item)
		return true
	})

	if iterErr != nil {
		return nil, iterErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
