// Package config persists user settings as a JSON file. Every persisted field
// is listed in Settings; missing keys fall back to defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"camera-calibration/internal/calib"
	"camera-calibration/internal/pattern"

	"github.com/pkg/errors"
)

const (
	appDir       = "camera-calibration"
	settingsFile = "settings.json"
)

// Settings is the full set of persisted preferences.
type Settings struct {
	Pattern        pattern.Spec
	Model          calib.Model
	CameraDevice   int
	DisplayDPI     float64
	ThumbnailWidth int
	Workers        int
	LogLevel       string
	LastOutput     string
}

// Default returns the settings used when nothing has been saved yet.
func Default() Settings {
	return Settings{
		Pattern:        pattern.DefaultSpec(),
		Model:          calib.Standard,
		CameraDevice:   0,
		DisplayDPI:     96,
		ThumbnailWidth: 200,
		Workers:        0,
		LogLevel:       "info",
		LastOutput:     "",
	}
}

// rawSettings is the on-disk form. Pointer fields tell a missing key apart
// from a zero value.
type rawSettings struct {
	PatternKind    *string  `json:"patternKind,omitempty"`
	Cols           *int     `json:"cols,omitempty"`
	Rows           *int     `json:"rows,omitempty"`
	UnitSize       *float64 `json:"unitSize,omitempty"`
	RadiusRatio    *float64 `json:"radiusRatio,omitempty"`
	Model          *string  `json:"model,omitempty"`
	CameraDevice   *int     `json:"cameraDevice,omitempty"`
	DisplayDPI     *float64 `json:"displayDPI,omitempty"`
	ThumbnailWidth *int     `json:"thumbnailWidth,omitempty"`
	Workers        *int     `json:"workers,omitempty"`
	LogLevel       *string  `json:"logLevel,omitempty"`
	LastOutput     *string  `json:"lastOutput,omitempty"`
}

func to[T any](v T) *T { return &v }

func or[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

// Marshal encodes s as indented JSON.
func Marshal(s Settings) ([]byte, error) {
	raw := rawSettings{
		PatternKind:    to(s.Pattern.Kind.String()),
		Cols:           to(s.Pattern.Cols),
		Rows:           to(s.Pattern.Rows),
		UnitSize:       to(s.Pattern.UnitSize),
		RadiusRatio:    to(s.Pattern.RadiusRatio),
		Model:          to(s.Model.String()),
		CameraDevice:   to(s.CameraDevice),
		DisplayDPI:     to(s.DisplayDPI),
		ThumbnailWidth: to(s.ThumbnailWidth),
		Workers:        to(s.Workers),
		LogLevel:       to(s.LogLevel),
		LastOutput:     to(s.LastOutput),
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode settings")
	}
	return data, nil
}

// Unmarshal decodes settings, taking defaults for absent keys. An empty
// input yields Default().
func Unmarshal(data []byte) (Settings, error) {
	s := Default()
	if len(data) == 0 {
		return s, nil
	}

	var raw rawSettings
	if err := json.Unmarshal(data, &raw); err != nil {
		return s, errors.Wrap(err, "failed to parse settings")
	}

	if raw.PatternKind != nil {
		kind, err := pattern.ParseKind(*raw.PatternKind)
		if err != nil {
			return s, err
		}
		s.Pattern.Kind = kind
	}
	s.Pattern.Cols = or(raw.Cols, s.Pattern.Cols)
	s.Pattern.Rows = or(raw.Rows, s.Pattern.Rows)
	s.Pattern.UnitSize = or(raw.UnitSize, s.Pattern.UnitSize)
	s.Pattern.RadiusRatio = or(raw.RadiusRatio, s.Pattern.RadiusRatio)

	if raw.Model != nil {
		m, err := calib.ParseModel(*raw.Model)
		if err != nil {
			return s, err
		}
		s.Model = m
	}
	s.CameraDevice = or(raw.CameraDevice, s.CameraDevice)
	s.DisplayDPI = or(raw.DisplayDPI, s.DisplayDPI)
	s.ThumbnailWidth = or(raw.ThumbnailWidth, s.ThumbnailWidth)
	s.Workers = or(raw.Workers, s.Workers)
	s.LogLevel = or(raw.LogLevel, s.LogLevel)
	s.LastOutput = or(raw.LastOutput, s.LastOutput)

	if err := s.Pattern.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// DefaultPath returns <user config dir>/camera-calibration/settings.json.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, appDir, settingsFile)
}

// Load reads settings from path. A missing file yields Default().
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), errors.Wrapf(err, "failed to read %s", path)
	}
	s, err := Unmarshal(data)
	if err != nil {
		return s, errors.Wrapf(err, "invalid settings in %s", path)
	}
	return s, nil
}

// Save writes s to path, creating the directory if needed.
func Save(path string, s Settings) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
