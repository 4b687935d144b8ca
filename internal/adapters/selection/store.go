package selection

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store saves the manual player override under XDG_STATE_HOME or
// ~/.local/state.
type Store struct {
	path string
	mu   sync.Mutex
}

type record struct {
	EntityID string    `json:"entity_id"`
	SetAt    time.Time `json:"set_at"`
}

// NewStore creates a selection store at the default location.
func NewStore() (*Store, error) {
	path, err := selectionPath()
	if err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// NewStoreAt creates a selection store backed by path.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Get returns the stored override if any.
func (s *Store) Get() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return "", false, err
	}
	if rec.EntityID == "" {
		return "", false, nil
	}
	return rec.EntityID, true, nil
}

// Put stores an override.
func (s *Store) Put(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entityID == "" {
		return s.remove()
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(record{EntityID: entityID, SetAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, payload, 0o600)
}

// Clear removes the override.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove()
}

func (s *Store) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) read() (record, error) {
	var rec record
	file, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rec, nil
		}
		return rec, err
	}
	if len(file) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(file, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func selectionPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "mr", "selection.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "mr", "selection.json"), nil
}
