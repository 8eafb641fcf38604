package learner

import (
	"fmt"
	"os"
	"sync"

	"github.com/flowrank/flowrank/internal/fileio"
)

// Store persists the full bandit state. Save must have atomic-replace
// semantics: a crash mid-save leaves the previous state intact.
type Store interface {
	Load() (map[string]*ComponentState, error)
	Save(states map[string]*ComponentState) error
}

// FileStore keeps the bandit state in one JSON file, replaced atomically
// on every save.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given path. The file is
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted state. A missing file is an empty state, not an
// error; anything else (unreadable, corrupt JSON) is surfaced so the
// learner can enter its degraded static-weights mode.
func (s *FileStore) Load() (map[string]*ComponentState, error) {
	states := make(map[string]*ComponentState)
	err := fileio.ReadJSON(s.path, &states)
	if os.IsNotExist(err) {
		return make(map[string]*ComponentState), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bandit state: %w", err)
	}
	return states, nil
}

// Save atomically replaces the persisted state.
func (s *FileStore) Save(states map[string]*ComponentState) error {
	if err := fileio.WriteJSONAtomic(s.path, states); err != nil {
		return fmt.Errorf("save bandit state: %w", err)
	}
	return nil
}

// MemoryStore is an in-process store for tests and ephemeral runs.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*ComponentState
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*ComponentState)}
}

func (m *MemoryStore) Load() (map[string]*ComponentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*ComponentState, len(m.states))
	for k, v := range m.states {
		cp := *v
		out[k] = &cp
	}
	return out, nil
}

func (m *MemoryStore) Save(states map[string]*ComponentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*ComponentState, len(states))
	for k, v := range states {
		cp := *v
		m.states[k] = &cp
	}
	return nil
}
