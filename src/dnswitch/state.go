// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SystemState is the single persisted record of what is currently
// configured on this host. Exactly one instance exists; [Manager] is its
// sole mutator and all reads go through [StateStore].
type SystemState struct {
	// ActiveProviderID references a registered provider, or is empty
	// when the host is on its DHCP/default configuration.
	ActiveProviderID string `yaml:"active_provider"`

	// DoTEnabled reports whether encrypted transport is configured.
	DoTEnabled bool `yaml:"dot_enabled"`

	// Locked reports whether the live file currently carries the
	// immutable attribute. Updated only after the OS call succeeds.
	Locked bool `yaml:"locked"`

	// LastSwitchAt is when the configuration last changed.
	LastSwitchAt time.Time `yaml:"last_switch_at,omitempty"`

	// LastBackup is the path of the most recent backup taken by a switch.
	LastBackup string `yaml:"last_backup,omitempty"`
}

// IsDefault reports whether the state describes an untouched host:
// no active provider, no encrypted transport, no lock held.
func (s SystemState) IsDefault() bool {
	return s.ActiveProviderID == "" && !s.DoTEnabled && !s.Locked
}

// StateStore reads and writes the persisted [SystemState] record. Writes
// use the same temp-write-then-rename discipline as the live file, so a
// crash mid-save leaves either the old or the new record, never a
// truncated one.
type StateStore struct {
	path string
}

// NewStateStore creates a store persisting state at path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file location.
func (s *StateStore) Path() string { return s.path }

// Load reads the persisted state. A missing file is a first run and
// yields the default state: no provider, unlocked.
func (s *StateStore) Load() (SystemState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return SystemState{}, nil
		}
		return SystemState{}, classifyIOError(err)
	}

	var state SystemState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return SystemState{}, fmt.Errorf("dnswitch: parse state: %w", err)
	}
	return state, nil
}

// Save persists the state atomically, creating the parent directory if
// needed.
func (s *StateStore) Save(state SystemState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("dnswitch: encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return classifyIOError(err)
	}
	return atomicWrite(s.path, data, 0o644)
}
