// Package journal stores entries as JSON files, one file per entry.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/tsuzuri/internal/models"
)

// FileStore persists entries under a single directory as <id>.json files.
// Writes go through a temp file and rename so readers never see partial JSON.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the entries directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create entries directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string {
	return s.dir
}

// NewEntryID returns a fresh entry ID.
func NewEntryID() string {
	return uuid.New().String()
}

// Save writes the entry to disk, overwriting any existing file with the same ID.
func (s *FileStore) Save(entry *models.Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("entry has no ID")
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", entry.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	final := s.pathFor(entry.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write entry %s: %w", entry.ID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename entry %s: %w", entry.ID, err)
	}
	return nil
}

// Get loads a single entry by ID.
func (s *FileStore) Get(id string) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readEntryFile(s.pathFor(id))
}

// Delete removes an entry file. Deleting a missing entry is not an error.
func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.pathFor(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	return nil
}

// List returns all entries ordered by CreatedAt descending (newest first).
// Files that fail to parse are skipped rather than failing the whole listing.
func (s *FileStore) List() ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read entries directory: %w", err)
	}
	entries := make([]*models.Entry, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			continue
		}
		entry, err := readEntryFile(filepath.Join(s.dir, d.Name()))
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// ListRange returns entries with from <= CreatedAt < to, oldest first.
func (s *FileStore) ListRange(from, to time.Time) ([]*models.Entry, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	selected := make([]*models.Entry, 0, len(all))
	for _, e := range all {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			selected = append(selected, e)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].CreatedAt.Before(selected[j].CreatedAt)
	})
	return selected, nil
}

// Count returns the number of entry files on disk.
func (s *FileStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read entries directory: %w", err)
	}
	n := 0
	for _, d := range dirents {
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			n++
		}
	}
	return n, nil
}

func (s *FileStore) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// EntryIDFromPath extracts the entry ID from an entry file path, or "" if the
// path is not an entry file.
func EntryIDFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".json") || strings.HasSuffix(base, ".tmp") {
		return ""
	}
	return strings.TrimSuffix(base, ".json")
}

func readEntryFile(path string) (*models.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("entry not found: %s", filepath.Base(path))
		}
		return nil, fmt.Errorf("read entry file: %w", err)
	}
	var entry models.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse entry file %s: %w", filepath.Base(path), err)
	}
	return &entry, nil
}
