package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/qi7876/CaptionCheck/pkg/jsonio"
)

const DefaultSessionSettingsFile = "captioncheck_settings.json"

// SessionSettings are the reviewer-adjustable knobs that survive
// restarts, persisted next to the dataset.
type SessionSettings struct {
	PlaybackRate float64 `json:"playback_rate"`
	LastItem     string  `json:"last_item"`
}

func SessionSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultSessionSettingsFile)
}

func DefaultSessionSettings() SessionSettings {
	return SessionSettings{PlaybackRate: 1.0}
}

func (s SessionSettings) Validate() error {
	if s.PlaybackRate <= 0 || s.PlaybackRate > 16 {
		return fmt.Errorf("playback_rate must be in (0, 16], got %g", s.PlaybackRate)
	}
	return nil
}

func LoadSessionSettingsFile(path string) (SessionSettings, error) {
	var settings SessionSettings
	if err := jsonio.Read(path, &settings); err != nil {
		return SessionSettings{}, err
	}
	return settings, nil
}

func WriteSessionSettingsFile(path string, settings SessionSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return jsonio.WriteAtomic(path, settings)
}

// SessionSettingsStore serializes reads and writes of the settings
// file and keeps the last written value cached.
type SessionSettingsStore struct {
	path string

	mu      sync.RWMutex
	current SessionSettings
}

// NewSessionSettingsStore loads the settings file when it exists and
// falls back to initial otherwise.
func NewSessionSettingsStore(path string, initial SessionSettings) (*SessionSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	if loaded, err := LoadSessionSettingsFile(path); err == nil {
		if loaded.Validate() == nil {
			initial = loaded
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return &SessionSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *SessionSettingsStore) Get() SessionSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *SessionSettingsStore) Update(next SessionSettings) (SessionSettings, error) {
	if err := next.Validate(); err != nil {
		return SessionSettings{}, err
	}
	if err := WriteSessionSettingsFile(s.path, next); err != nil {
		return SessionSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
