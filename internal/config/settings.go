// Package config holds the constants and the YAML settings of ilstack.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"gopkg.in/yaml.v3"
)

// Settings is the content of ilstack.yaml
type Settings struct {
	// Capacity is the number of stack slots that keep a receiver marker
	Capacity int `yaml:"capacity"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// Color is auto, always or never
	Color string `yaml:"color"`

	// Workers bounds how many fixtures are analyzed in parallel. Zero means
	// one per CPU.
	Workers int `yaml:"workers"`
}

// Default returns the settings used when no file is found
func Default() *Settings {
	s := &Settings{}
	s.setDefaults()
	return s
}

// LoadSettings reads and validates a settings file
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	return ParseSettings(data, path)
}

// ParseSettings parses ilstack.yaml content from bytes.
// The path argument is used only for error messages.
func ParseSettings(data []byte, path string) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	s.setDefaults()
	if err := s.validate(path); err != nil {
		return nil, err
	}
	return &s, nil
}

// FindSettings searches for ilstack.yaml starting from dir and walking up to
// parent directories. It returns an empty path when nothing is found.
func FindSettings(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range SettingsFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Resolve loads the settings at path, or searches from dir when path is
// empty. Missing files yield the defaults.
func Resolve(path, dir string) (*Settings, error) {
	if path == "" {
		found, err := FindSettings(dir)
		if err != nil {
			return nil, err
		}
		if found == "" {
			return Default(), nil
		}
		path = found
	}
	return LoadSettings(path)
}

func (s *Settings) setDefaults() {
	if s.Capacity == 0 {
		s.Capacity = DefaultShapeCapacity
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.Color == "" {
		s.Color = ColorAuto
	}
	if s.Workers == 0 {
		s.Workers = runtime.NumCPU()
	}
}

func (s *Settings) validate(path string) error {
	if s.Capacity < 0 {
		return fmt.Errorf("%s: capacity must not be negative, got %d", path, s.Capacity)
	}
	if !slices.Contains([]string{LogDebug, LogInfo, LogWarn, LogError}, s.LogLevel) {
		return fmt.Errorf("%s: unknown log_level %q", path, s.LogLevel)
	}
	if !slices.Contains([]string{ColorAuto, ColorAlways, ColorNever}, s.Color) {
		return fmt.Errorf("%s: unknown color mode %q", path, s.Color)
	}
	if s.Workers < 0 {
		return fmt.Errorf("%s: workers must not be negative, got %d", path, s.Workers)
	}
	return nil
}
