// Package config persists the player's local preferences between sessions.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/quasilyte/gdata"
)

// SavedSettings is the settings blob stored on disk.
type SavedSettings struct {
	PlayerName string `json:"playerName"`
	SprayPath  string `json:"sprayPath"`
	RelayAddr  string `json:"relayAddr"`
}

// Defaults returns the settings used before anything has been saved.
func Defaults() SavedSettings {
	return SavedSettings{
		PlayerName: "player",
		RelayAddr:  "localhost:7373",
	}
}

// Store wraps the gdata manager for settings access.
type Store struct {
	m *gdata.Manager
}

func Open() (*Store, error) {
	m, err := gdata.Open(gdata.Config{
		AppName: "spraytag",
	})
	if err != nil {
		return nil, fmt.Errorf("open settings storage: %w", err)
	}
	return &Store{m: m}, nil
}

// Load returns saved settings, or the defaults when nothing is stored yet.
func (s *Store) Load() (SavedSettings, error) {
	data, err := s.m.LoadItem("settings")
	if err != nil {
		return Defaults(), fmt.Errorf("load settings: %w", err)
	}
	if data == nil {
		return Defaults(), nil
	}
	var settings SavedSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Defaults(), fmt.Errorf("parse saved settings: %w", err)
	}
	return settings, nil
}

func (s *Store) Save(settings SavedSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("serialize settings: %w", err)
	}
	if err := s.m.SaveItem("settings", data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
