// Package store persists evaluations to the append-only memory log
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/model"
)

var (
	// ErrNotFound is returned by Get for an unknown entry id
	ErrNotFound = errors.New("memory entry not found")
	// ErrAmbiguousID is returned by Get when a prefix matches several entries
	ErrAmbiguousID = errors.New("ambiguous id prefix")
)

// Store is a JSON array of MemoryEntry kept in a single file. Every append
// reads the whole array, pushes the new entry and rewrites the file.
// Appends are serialized within one process only.
type Store struct {
	path   string
	mu     sync.Mutex
	now    func() time.Time
	logger *zap.Logger
}

// New creates a store backed by path; a nil logger discards output
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		now:    time.Now,
		logger: logger.Named("store"),
	}
}

// Path returns the memory log location
func (s *Store) Path() string {
	return s.path
}

// Initialize creates the log as an empty array when it does not exist
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat memory file: %w", err)
	}

	if err := s.write([]model.MemoryEntry{}); err != nil {
		return err
	}
	s.logger.Info("Created memory file", zap.String("path", s.path))
	return nil
}

// Append fills in the derived fields, assigns an id and timestamp when missing,
// and appends the entry to the log. The stored copy is returned.
func (s *Store) Append(entry model.MemoryEntry) (*model.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = s.now().UTC().Format(time.RFC3339)
	}
	Enhance(&entry)

	entries, err := s.read()
	if err != nil {
		return nil, err
	}
	entries = append(entries, entry)

	if err := s.write(entries); err != nil {
		return nil, err
	}

	s.logger.Info("Enhanced data saved",
		zap.String("id", entry.ID),
		zap.String("claim", truncate(entry.Claim, 50)),
		zap.Int("words", entry.ClaimWordCount),
		zap.String("persona", entry.PersonaUsed))

	return &entry, nil
}

// Load returns every entry in insertion order; a missing file is an empty log
func (s *Store) Load() ([]model.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Get returns the entry with the given id. A unique id prefix is accepted.
func (s *Store) Get(id string) (*model.MemoryEntry, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}

	var match *model.MemoryEntry
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
		if id != "" && strings.HasPrefix(entries[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("%w %q", ErrAmbiguousID, id)
			}
			match = &entries[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// Recent returns up to n entries, newest first; n <= 0 returns all
func (s *Store) Recent(n int) ([]model.MemoryEntry, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}

	if n <= 0 || n > len(entries) {
		n = len(entries)
	}
	out := make([]model.MemoryEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *Store) read() ([]model.MemoryEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.MemoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return []model.MemoryEntry{}, nil
	}

	var entries []model.MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode memory file %s: %w", s.path, err)
	}
	if entries == nil {
		entries = []model.MemoryEntry{}
	}
	return entries, nil
}

// write replaces the file through a temp file and rename
func (s *Store) write(entries []model.MemoryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".evalia-memory-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close memory file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
