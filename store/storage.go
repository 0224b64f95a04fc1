package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"geodoc/types"
)

// StateVersion tags the on-disk layout so a future migration has something
// to dispatch on.
const StateVersion = 1

// ErrStateVersion is returned by Load when the state file carries an unknown
// version. Callers start from an empty state in that case.
var ErrStateVersion = errors.New("unknown state file version")

// SessionState is the durable part of a session: document ids by context key
// and message logs by conversation key. PDF references and runtime statuses
// are not persisted, they are re-derived after a restart.
type SessionState struct {
	Version     int                                  `json:"version"`
	DocumentIDs map[string]string                    `json:"document_ids"`
	Messages    map[string][]types.ConversationEntry `json:"messages"`
}

func NewSessionState() *SessionState {
	return &SessionState{
		Version:     StateVersion,
		DocumentIDs: make(map[string]string),
		Messages:    make(map[string][]types.ConversationEntry),
	}
}

type SessionStorer interface {
	Load() (*SessionState, error)
	Save(*SessionState) error
	Reset() error
}

// FileStore keeps the session state in a single JSON file, written through on
// every mutation.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSessionState(), nil
		}
		return NewSessionState(), fmt.Errorf("failed to read state file: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return NewSessionState(), fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Version != StateVersion {
		return NewSessionState(), fmt.Errorf("%w: %d", ErrStateVersion, state.Version)
	}

	if state.DocumentIDs == nil {
		state.DocumentIDs = make(map[string]string)
	}
	if state.Messages == nil {
		state.Messages = make(map[string][]types.ConversationEntry)
	}
	return &state, nil
}

func (s *FileStore) Save(state *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.Version = StateVersion
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state dir: %w", err)
		}
	}

	// Write to a sibling temp file first so a crash mid-write can't corrupt
	// the previous state.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (s *FileStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
