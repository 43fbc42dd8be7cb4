// Package params persists the playground's shareable navigation state.
//
// The state is a stack of entries, each a flat string map. Push copies the
// current entry with one key changed and makes it current, Replace edits the
// current entry in place and Pop returns to the previous entry. A Store with
// a path writes the whole stack to a YAML file after every change.
package params

import (
	"fmt"
	"maps"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/playground/internal/fsutil"
	"github.com/Iron-Ham/playground/internal/logging"
)

// FileVersion is the state file format version.
const FileVersion = "1"

// DefaultMaxHistory bounds the number of entries kept.
const DefaultMaxHistory = 50

// stateFile is the on-disk layout.
type stateFile struct {
	Version string              `yaml:"version"`
	History []map[string]string `yaml:"history"`
}

// Store is a history of parameter entries. It is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	path       string
	entries    []map[string]string
	maxHistory int
	logger     *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxHistory bounds the history length. Values below 1 are ignored.
func WithMaxHistory(n int) Option {
	return func(s *Store) {
		if n >= 1 {
			s.maxHistory = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an in-memory Store with one empty entry.
func New(opts ...Option) *Store {
	s := &Store{
		entries:    []map[string]string{{}},
		maxHistory: DefaultMaxHistory,
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("params")
	return s
}

// Open creates a Store persisted at path, loading any existing state.
// A missing file starts with one empty entry.
func Open(path string, opts ...Option) (*Store, error) {
	s := New(opts...)
	s.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var file stateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if file.Version != "" && file.Version != FileVersion {
		return nil, fmt.Errorf("unsupported state file version %q", file.Version)
	}

	if len(file.History) > 0 {
		s.entries = s.entries[:0]
		for _, entry := range file.History {
			if entry == nil {
				entry = map[string]string{}
			}
			s.entries = append(s.entries, entry)
		}
		s.trim()
	}
	s.logger.Debug("state loaded", "path", path, "entries", len(s.entries))
	return s, nil
}

// Path returns the state file path, or "" for an in-memory Store.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value of key in the current entry.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.current()[key]
	return v, ok
}

// Current returns a copy of the current entry.
func (s *Store) Current() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.current())
}

// Len returns the number of history entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Push adds a history entry equal to the current one with key set to value.
func (s *Store) Push(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := maps.Clone(s.current())
	next[key] = value
	s.entries = append(s.entries, next)
	s.trim()
	return s.saveLocked()
}

// Replace sets key in the current entry without adding history.
func (s *Store) Replace(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current()[key] = value
	return s.saveLocked()
}

// Pop discards the current entry. It reports false, leaving the state
// unchanged, when only one entry remains.
func (s *Store) Pop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) <= 1 {
		return false
	}
	s.entries = s.entries[:len(s.entries)-1]
	if err := s.saveLocked(); err != nil {
		s.logger.Warn("failed to persist state", "error", err.Error())
	}
	return true
}

// Seed replaces the current entry's values with values, typically those of
// a share link being opened.
func (s *Store) Seed(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.current(), values)
	return s.saveLocked()
}

func (s *Store) current() map[string]string {
	return s.entries[len(s.entries)-1]
}

func (s *Store) trim() {
	if over := len(s.entries) - s.maxHistory; over > 0 {
		s.entries = append([]map[string]string(nil), s.entries[over:]...)
	}
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(stateFile{Version: FileVersion, History: s.entries})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
