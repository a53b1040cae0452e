package widget

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SharedStore is the key/value area shared with the widget process. Each key
// is one JSON file in the group directory.
type SharedStore struct {
	mu  sync.RWMutex
	dir string
}

func NewSharedStore(dir string) *SharedStore {
	return &SharedStore{dir: dir}
}

func (s *SharedStore) Dir() string {
	return s.dir
}

// Write replaces the value stored under key.
func (s *SharedStore) Write(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create shared directory: %w", err)
	}

	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Read decodes the value under key into v. It reports false when the key was
// never written.
func (s *SharedStore) Read(key string, v any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *SharedStore) path(key string) string {
	key = strings.NewReplacer("/", "_", `\`, "_").Replace(key)
	return filepath.Join(s.dir, key+".json")
}
