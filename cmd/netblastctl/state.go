package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/samber/mo"
)

// WorkerState is the credential a registered worker needs for every later call
type WorkerState struct {
	BrokerURL    string    `json:"broker_url"`
	WorkerID     string    `json:"worker_id"`
	Cookie       string    `json:"cookie"`
	Hostname     string    `json:"hostname"`
	RegisteredAt time.Time `json:"registered_at"`
}

// StateFile guards the credential file with an advisory lock so concurrent
// invocations never read a half-written file
type StateFile struct {
	path string
	lock *flock.Flock
}

func NewStateFile(path string) *StateFile {
	return &StateFile{path: path, lock: flock.New(path + ".lock")}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "netblast", "worker.json")
	}
	return filepath.Join(home, ".netblast", "worker.json")
}

func (s *StateFile) Load() (mo.Option[*WorkerState], error) {
	if err := s.ensureDir(); err != nil {
		return mo.None[*WorkerState](), err
	}
	if err := s.lock.RLock(); err != nil {
		return mo.None[*WorkerState](), fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return mo.None[*WorkerState](), nil
	}
	if err != nil {
		return mo.None[*WorkerState](), fmt.Errorf("failed to read state file: %w", err)
	}

	var state WorkerState
	if err := json.Unmarshal(data, &state); err != nil {
		return mo.None[*WorkerState](), fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	return mo.Some(&state), nil
}

func (s *StateFile) Save(state *WorkerState) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (s *StateFile) Remove() error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

func (s *StateFile) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}
