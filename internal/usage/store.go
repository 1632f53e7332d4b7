// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package usage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pdiddy/adobe-helper/pkg/types"
)

const (
	// UsageFile is the JSON state file written by FileStore.
	UsageFile = "usage.json"
	// UsageDB is the SQLite database written by SQLiteStore.
	UsageDB = "usage.db"
)

// Store persists daily usage state.
type Store interface {
	// Load returns the stored usage for date. A store may return a different
	// day when it only keeps the most recent one; an empty store returns a
	// zero DailyUsage and no error.
	Load(date string) (types.DailyUsage, error)

	// Save replaces the stored state for usage.Date.
	Save(usage types.DailyUsage) error

	// Days returns every stored day, oldest first.
	Days() ([]types.DailyUsage, error)

	Close() error
}

// FileStore keeps the current day's usage in a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by dir/usage.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, UsageFile)}
}

// Path returns the state file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(string) (types.DailyUsage, error) {
	var u types.DailyUsage
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return u, nil
		}
		return u, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &u); err != nil {
		return types.DailyUsage{}, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return u, nil
}

func (s *FileStore) Save(u types.DailyUsage) error {
	if u.Conversions == nil {
		u.Conversions = []types.ConversionRecord{}
	}
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling usage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".usage-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", s.path, errors.Join(writeErr, closeErr))
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (s *FileStore) Days() ([]types.DailyUsage, error) {
	u, err := s.Load("")
	if err != nil {
		return nil, err
	}
	if u.Date == "" {
		return nil, nil
	}
	return []types.DailyUsage{u}, nil
}

func (s *FileStore) Close() error { return nil }
