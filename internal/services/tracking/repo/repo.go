// Package repo persists manual entries in a single JSON document on disk
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/tracking/domain"
)

// DefaultPath is where the store lands when nothing is configured
const DefaultPath = "data/time_entries.json"

// document is the on-disk shape
type document struct {
	LastUpdated time.Time      `json:"last_updated"`
	Entries     []domain.Entry `json:"entries"`
}

// File is a single-writer JSON file store
// writes go through a temp file plus rename so a crash never leaves a
// half-written document behind
type File struct {
	path string
	mu   sync.Mutex
	log  logger.Logger
	now  func() time.Time
}

// NewFile builds the store; path falls back to DefaultPath
func NewFile(path string) *File {
	if path == "" {
		path = DefaultPath
	}
	return &File{path: path, log: *logger.Named("tracking.repo"), now: time.Now}
}

// Load reads every entry; a missing file reads as an empty store
func (f *File) Load(_ context.Context) ([]domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() ([]domain.Entry, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "cannot read entry store %s", f.path)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeCorruptStore, "entry store %s is not valid JSON", f.path)
	}
	return doc.Entries, nil
}

// Save replaces the whole document atomically
func (f *File) Save(_ context.Context, entries []domain.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeIO, "cannot create store directory %s", dir)
		}
	}

	doc := document{LastUpdated: f.now().UTC(), Entries: entries}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "entry store encode failed")
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "cannot write %s", tmp)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "cannot replace %s", f.path)
	}

	f.log.Debug().Int("entries", len(entries)).Str("path", f.path).Msg("entry store saved")
	return nil
}
