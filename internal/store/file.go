package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"ReloadPilot/internal/model"
)

// FileStore keeps all account states in one JSON document.
type FileStore struct {
	mu       sync.Mutex
	filePath string
}

func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// Load reads the state of name. Returns nil if the file or the account doesn't exist.
func (f *FileStore) Load(_ context.Context, name string) (*model.ScheduleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	states, err := f.read()
	if err != nil {
		return nil, err
	}
	return states[name], nil
}

// Save replaces the state of name and rewrites the file atomically.
func (f *FileStore) Save(_ context.Context, name string, state *model.ScheduleState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	states, err := f.read()
	if err != nil {
		return err
	}
	state.UpdatedAt = time.Now()
	states[name] = state
	return f.write(states)
}

func (f *FileStore) List(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	states, err := f.read()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) read() (map[string]*model.ScheduleState, error) {
	states := map[string]*model.ScheduleState{}
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return states, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return states, nil
	}
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return states, nil
}

func (f *FileStore) write(states map[string]*model.ScheduleState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".reload_state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.filePath); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
