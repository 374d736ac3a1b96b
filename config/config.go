// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads render graph settings from TOML.
//
// A settings file looks like:
//
//	backend = "vulkan"
//	frames_in_flight = 3
//	fence_timeout = "500ms"
//	setup_timeout = "5s"
//	memory_budget = 268435456
//	log_level = "debug"
//	validation = true
//
// Every key is optional; missing keys keep their defaults. Unknown keys
// are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/rendergraph"
)

// ErrInvalid is wrapped by errors of settings that fail validation.
var ErrInvalid = errors.New("config: invalid settings")

// Duration is a time.Duration written as a Go duration string, such as
// "250ms" or "2s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Settings configures a graph and the backend it runs on.
type Settings struct {
	// Backend names a registered backend. Empty selects backend.Default.
	Backend        string   `toml:"backend"`
	FramesInFlight int      `toml:"frames_in_flight"`
	FenceTimeout   Duration `toml:"fence_timeout"`
	SetupTimeout   Duration `toml:"setup_timeout"`
	// MemoryBudget limits graph-owned resources in bytes. Zero is
	// unlimited.
	MemoryBudget uint64     `toml:"memory_budget"`
	LogLevel     slog.Level `toml:"log_level"`
	// Validation enables driver validation layers where the backend has
	// them.
	Validation bool `toml:"validation"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		FramesInFlight: rendergraph.DefaultFramesInFlight,
		FenceTimeout:   Duration(time.Second),
		SetupTimeout:   Duration(5 * time.Second),
		LogLevel:       slog.LevelInfo,
	}
}

// Parse decodes TOML settings over the defaults and validates them.
func Parse(data []byte) (Settings, error) {
	s := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Settings{}, fmt.Errorf("config: %s", strict.String())
		}
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Load reads and parses a settings file.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks the ranges of the settings.
func (s Settings) Validate() error {
	if s.FramesInFlight < 1 || s.FramesInFlight > rendergraph.MaxFramesInFlight {
		return fmt.Errorf("%w: frames_in_flight %d outside 1..%d", ErrInvalid, s.FramesInFlight, rendergraph.MaxFramesInFlight)
	}
	if s.FenceTimeout <= 0 {
		return fmt.Errorf("%w: fence_timeout must be positive", ErrInvalid)
	}
	if s.SetupTimeout <= 0 {
		return fmt.Errorf("%w: setup_timeout must be positive", ErrInvalid)
	}
	return nil
}

// Options converts the settings to graph options.
func (s Settings) Options() []rendergraph.Option {
	return []rendergraph.Option{
		rendergraph.WithFramesInFlight(s.FramesInFlight),
		rendergraph.WithFenceTimeout(time.Duration(s.FenceTimeout)),
		rendergraph.WithSetupTimeout(time.Duration(s.SetupTimeout)),
		rendergraph.WithMemoryBudget(s.MemoryBudget),
	}
}

// Logger returns a text logger writing to w at the configured level.
func (s Settings) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: s.LogLevel}))
}

// Encode writes the settings as TOML.
func (s Settings) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(s)
}
