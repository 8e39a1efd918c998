package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StateFileName is the flow state file inside the scheduler state directory.
const StateFileName = "flows.json"

// SaveState writes the manager state to dir atomically: the JSON goes to a
// temporary file that is renamed into place while the state lock is held.
func SaveState(dir string, m *Manager) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	fl := NewFileLock(dir)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal flow state: %w", err)
	}

	target := filepath.Join(dir, StateFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// LoadState reads persisted flow state from dir. A missing file yields an
// error wrapping os.ErrNotExist.
func LoadState(dir string) (State, error) {
	fl := NewFileLock(dir)
	if err := fl.RLock(); err != nil {
		return State{}, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := os.ReadFile(filepath.Join(dir, StateFileName))
	if err != nil {
		return State{}, fmt.Errorf("read flow state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("unmarshal flow state: %w", err)
	}
	if s.Flows == nil {
		s.Flows = make(map[int]Meta)
	}
	return s, nil
}
