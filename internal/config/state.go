package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// State is what the client remembers between runs.
type State struct {
	SessionID string    `yaml:"session_id"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// StatePath returns the default state file location.
func StatePath() string {
	return filepath.Join(Dir(), "state.yaml")
}

// LoadState reads the state file. A missing file yields an empty State.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return &st, nil
}

// SaveState records the active session id.
func SaveState(path, sessionID string) error {
	return writeYAML(path, State{SessionID: sessionID, UpdatedAt: time.Now().UTC()})
}
