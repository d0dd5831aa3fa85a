package forms

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/octanebot/octanebot/internal/octane"
)

// storedState is the top-level persisted state, keyed by subtype command name.
type storedState struct {
	Forms map[string]*Form `yaml:"forms"`
}

// Store persists display overrides across restarts.
type Store struct {
	mu       sync.Mutex
	filePath string
}

// NewStore creates a store writing to filePath.
func NewStore(filePath string) *Store {
	return &Store{filePath: filePath}
}

// FilePath returns the path to the state file.
func (s *Store) FilePath() string { return s.filePath }

// Save writes forms to disk using atomic write (temp file + rename).
func (s *Store) Save(forms map[octane.Subtype]*Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := storedState{Forms: make(map[string]*Form, len(forms))}
	for st, f := range forms {
		state.Forms[st.String()] = f
	}

	if dir := filepath.Dir(s.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// Load reads the persisted forms. Returns an empty map if the file doesn't
// exist yet. Entries for unknown subtypes are ignored.
func (s *Store) Load() (map[octane.Subtype]*Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	forms := make(map[octane.Subtype]*Form)
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return forms, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state storedState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}

	for name, f := range state.Forms {
		st, err := octane.ParseSubtype(name)
		if err != nil || f == nil {
			continue
		}
		forms[st] = f
	}
	return forms, nil
}
