// Package config persists user-configurable scan defaults.
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/twainkit/twainkit/internal/twain"
)

// Settings holds the scan defaults applied when a command does not
// override them.
type Settings struct {
	Mechanism          string `json:"mechanism"` // native, file, memory, memfile
	ImageDir           string `json:"imageDir"`
	FileFormat         string `json:"fileFormat"` // tiff, jfif, png
	ShowUI             bool   `json:"showUI"`
	AutoFormatOverride bool   `json:"autoFormatOverride"`
	AssemblePDF        bool   `json:"assemblePdf"`
	LogFile            string `json:"logFile"`
	LogMaxSizeMB       int    `json:"logMaxSizeMb"`
}

// DefaultSettings returns the defaults used before anything is persisted.
func DefaultSettings() Settings {
	return Settings{
		Mechanism:    "memory",
		FileFormat:   "tiff",
		LogMaxSizeMB: 10,
	}
}

// XferMech maps the textual mechanism to its protocol value.
func (s Settings) XferMech() twain.XferMech {
	switch s.Mechanism {
	case "native":
		return twain.XferNative
	case "file":
		return twain.XferFile
	case "memfile":
		return twain.XferMemFile
	default:
		return twain.XferMemory
	}
}

// Format maps the textual file format to its protocol value.
func (s Settings) Format() twain.FileFormat {
	switch s.FileFormat {
	case "jfif", "jpeg", "jpg":
		return twain.FormatJFIF
	case "png":
		return twain.FormatPNG
	default:
		return twain.FormatTIFF
	}
}

// Store provides thread-safe settings persistence backed by a JSON file.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	path     string
}

// NewStore creates a Store that persists settings to dataDir/settings.json.
// If the file does not exist or is invalid, defaults are used.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		path:     filepath.Join(dataDir, "settings.json"),
		settings: DefaultSettings(),
	}
	s.load()
	return s, nil
}

// NewMemoryStore creates a Store without file persistence.
func NewMemoryStore() *Store {
	return &Store{settings: DefaultSettings()}
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces the settings and persists to disk.
func (s *Store) Update(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return s.save()
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return // file missing is OK, use defaults
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		slog.Warn("invalid settings file, using defaults", "path", s.path, "err", err)
		return
	}
	s.settings = settings
}

func (s *Store) save() error {
	if s.path == "" {
		return nil // memory-only mode
	}
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
