// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/jeranaias/mcpchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete mcpchat configuration.
type Config struct {
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Log     LogConfig     `toml:"log" json:"log"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// ChatConfig configures the streaming chat endpoint.
type ChatConfig struct {
	// APIURL is the SSE chat endpoint. The message is sent as ?message=.
	APIURL string `toml:"api_url" json:"api_url"`
	// ResponseHeaderTimeoutSecs bounds the wait for response headers
	// (0 = no limit). The stream body itself is never timed out.
	ResponseHeaderTimeoutSecs int `toml:"response_header_timeout_secs" json:"response_header_timeout_secs"`
}

// StorageConfig configures local conversation history.
type StorageConfig struct {
	// Backend is "json" (single file) or "sqlite".
	Backend string `toml:"backend" json:"backend"`
	// Path is the history file or database. Empty = inside the config dir.
	Path string `toml:"path" json:"path"`
	// DebounceMs is the quiet period before a pending write is flushed.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `toml:"level" json:"level"`
	// File receives log output. Empty = ~/.mcpchat/mcpchat.log; "-" = stderr.
	File string `toml:"file" json:"file"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders finished answers with glamour.
	Markdown bool `toml:"markdown" json:"markdown"`
}

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultAPIURL is where the bundled backend serves its SSE chat endpoint.
const DefaultAPIURL = "http://localhost:10001/api/v1/chat/sse"

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			APIURL:                    DefaultAPIURL,
			ResponseHeaderTimeoutSecs: 0,
		},
		Storage: StorageConfig{
			Backend:    BackendJSON,
			Path:       "",
			DebounceMs: 1000,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
		},
	}
}

// Debounce returns the storage quiet period as a duration.
func (s StorageConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// ResponseHeaderTimeout returns the header timeout as a duration.
func (c ChatConfig) ResponseHeaderTimeout() time.Duration {
	return time.Duration(c.ResponseHeaderTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the mcpchat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("MCPCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".mcpchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// StoragePath returns where history lives for the configured backend.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == BackendSQLite {
		return filepath.Join(dir, "conversations.db"), nil
	}
	return filepath.Join(dir, "conversations.json"), nil
}

// LogPath returns the log destination, or "" when logging goes to stderr.
func (c *Config) LogPath() (string, error) {
	switch c.Log.File {
	case "-":
		return "", nil
	case "":
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "mcpchat.log"), nil
	default:
		return c.Log.File, nil
	}
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration. A non-empty path is loaded directly and must
// exist. Otherwise TOML is tried first, then JSON, then defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromPath(path)
	}

	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return nil, err
	}

	switch {
	case fileExists(tomlPath):
		if err := LoadTOML(cfg, tomlPath); err != nil {
			return nil, fmt.Errorf("failed to load TOML config: %w", err)
		}
	case fileExists(jsonPath):
		if err := LoadJSON(cfg, jsonPath); err != nil {
			return nil, fmt.Errorf("failed to load JSON config: %w", err)
		}
	}

	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .json are read as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// fillDefaults fills in values a config file left empty.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Chat.APIURL == "" {
		cfg.Chat.APIURL = defaults.Chat.APIURL
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}

	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.UI.Theme = strings.ToLower(cfg.UI.Theme)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# mcpchat configuration file\n")
	sb.WriteString("# Environment variables MCPCHAT_* override these values.\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Chat.APIURL); err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "chat.api_url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http(s) URL", c.Chat.APIURL),
		})
	}
	if c.Chat.ResponseHeaderTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.response_header_timeout_secs",
			Message: "must not be negative",
		})
	}

	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: json, sqlite", c.Storage.Backend),
		})
	}
	if c.Storage.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.debounce_ms",
			Message: "must not be negative",
		})
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil || c.Log.Level == "" {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Log.Level),
		})
	}

	switch c.UI.Theme {
	case "auto", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - MCPCHAT_API_URL: overrides chat.api_url
//   - MCPCHAT_STORAGE_BACKEND: overrides storage.backend
//   - MCPCHAT_STORAGE_PATH: overrides storage.path
//   - MCPCHAT_DEBOUNCE_MS: overrides storage.debounce_ms
//   - MCPCHAT_LOG_LEVEL: overrides log.level
//   - MCPCHAT_LOG_FILE: overrides log.file
//   - MCPCHAT_THEME: overrides ui.theme
//   - MCPCHAT_MARKDOWN: "0"/"false" disables markdown rendering
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MCPCHAT_API_URL"); v != "" {
		c.Chat.APIURL = v
	}
	if v := os.Getenv("MCPCHAT_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("MCPCHAT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("MCPCHAT_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Storage.DebounceMs = ms
		}
	}
	if v := os.Getenv("MCPCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MCPCHAT_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("MCPCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("MCPCHAT_MARKDOWN"); v != "" {
		c.UI.Markdown = v == "1" || strings.ToLower(v) == "true"
	}
}

// =============================================================================
// DOT-NOTATION ACCESS
// =============================================================================

// Get returns a configuration value by its TOML key (e.g. "storage.backend").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the field named by key. Validation is the
// caller's job.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", key, err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("cannot set field: %s", key)
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) != 2 {
		return reflect.Value{}, errors.New("key must look like section.name")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys returns every configuration key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// String returns the config as indented JSON for display.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
