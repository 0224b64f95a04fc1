package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geodoc/app/upload"

	"go.uber.org/zap"
)

// Watcher monitors a drop folder and uploads every valid file to the active
// document. Processed files move to the archive dir, rejected ones to the
// quarantine dir so nothing is retried in a loop.
type Watcher struct {
	coordinator *upload.Coordinator
	documentID  func() (string, bool)
	sourceDir   string
	archiveDir  string
	badDir      string
	interval    time.Duration
	logger      *zap.Logger
}

func New(coordinator *upload.Coordinator, documentID func() (string, bool), logger *zap.Logger) *Watcher {
	interval := 10 * time.Second
	if v := os.Getenv("WATCH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			interval = d
		}
	}
	return &Watcher{
		coordinator: coordinator,
		documentID:  documentID,
		sourceDir:   os.Getenv("WATCH_SOURCE_DIR"),
		archiveDir:  os.Getenv("WATCH_ARCHIVE_DIR"),
		badDir:      os.Getenv("WATCH_BAD_DIR"),
		interval:    interval,
		logger:      logger,
	}
}

// CreateDirectories makes sure the source, archive and quarantine dirs exist.
func (w *Watcher) CreateDirectories() error {
	if w.archiveDir == "" {
		w.archiveDir = filepath.Join(w.sourceDir, "archive")
	}
	if w.badDir == "" {
		w.badDir = filepath.Join(w.sourceDir, "bad")
	}
	for _, dir := range []string{w.sourceDir, w.archiveDir, w.badDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create watch dir %s: %w", dir, err)
		}
	}
	return nil
}

// Run polls the source dir until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if w.sourceDir == "" {
		return
	}
	if err := w.CreateDirectories(); err != nil {
		w.logger.Error("watcher disabled", zap.Error(err))
		return
	}
	w.logger.Info("watching drop folder", zap.String("dir", w.sourceDir))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return
		case <-ticker.C:
			w.ProcessDir(ctx)
		}
	}
}

// ProcessDir handles every regular file currently in the source dir.
func (w *Watcher) ProcessDir(ctx context.Context) {
	entries, err := os.ReadDir(w.sourceDir)
	if err != nil {
		w.logger.Warn("failed to read watch dir", zap.Error(err))
		return
	}

	documentID, ok := w.documentID()
	if !ok {
		// No active document yet, leave the files in place.
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.sourceDir, entry.Name())
		if err := w.processFile(ctx, documentID, path); err != nil {
			w.logger.Warn("file rejected", zap.String("file", entry.Name()), zap.Error(err))
			w.moveTo(path, w.badDir)
			continue
		}
		w.logger.Info("file uploaded", zap.String("file", entry.Name()), zap.String("document_id", documentID))
		w.moveTo(path, w.archiveDir)
	}
}

func (w *Watcher) processFile(ctx context.Context, documentID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	filename := filepath.Base(path)
	_, err = w.coordinator.UploadToDocument(ctx, documentID, filename, contentTypeFor(filename), data, "", "", nil)
	return err
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}

func (w *Watcher) moveTo(path, dir string) {
	target := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		w.logger.Warn("failed to move file", zap.String("file", path), zap.Error(err))
	}
}
