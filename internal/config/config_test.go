// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the config directory at a fresh temp dir and clears
// every override the loader reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MCPCHAT_HOME", dir)
	for _, k := range []string{
		"MCPCHAT_API_URL", "MCPCHAT_STORAGE_BACKEND", "MCPCHAT_STORAGE_PATH",
		"MCPCHAT_DEBOUNCE_MS", "MCPCHAT_LOG_LEVEL", "MCPCHAT_LOG_FILE",
		"MCPCHAT_THEME", "MCPCHAT_MARKDOWN",
	} {
		t.Setenv(k, "")
	}
	return dir
}

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Chat.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", cfg.Chat.APIURL, DefaultAPIURL)
	}
	if cfg.Storage.Backend != BackendJSON {
		t.Errorf("Backend = %q, want json", cfg.Storage.Backend)
	}
	if cfg.Storage.Debounce() != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Storage.Debounce())
	}
	if !cfg.UI.Markdown {
		t.Error("Markdown should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"https url", func(c *Config) { c.Chat.APIURL = "https://chat.example.com/sse" }, false},
		{"relative url", func(c *Config) { c.Chat.APIURL = "/api/v1/chat/sse" }, true},
		{"ftp url", func(c *Config) { c.Chat.APIURL = "ftp://host/x" }, true},
		{"negative header timeout", func(c *Config) { c.Chat.ResponseHeaderTimeoutSecs = -1 }, true},
		{"sqlite backend", func(c *Config) { c.Storage.Backend = BackendSQLite }, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, true},
		{"zero debounce", func(c *Config) { c.Storage.DebounceMs = 0 }, false},
		{"negative debounce", func(c *Config) { c.Storage.DebounceMs = -5 }, true},
		{"debug level", func(c *Config) { c.Log.Level = "debug" }, false},
		{"invalid level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"invalid theme", func(c *Config) { c.UI.Theme = "neon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "redis"
	cfg.UI.Theme = "neon"

	var verrs ValidateErrors
	if !errors.As(cfg.Validate(), &verrs) {
		t.Fatal("expected ValidateErrors")
	}
	if len(verrs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(verrs), verrs)
	}
	if verrs[0].Field != "storage.backend" || verrs[1].Field != "ui.theme" {
		t.Errorf("unexpected fields: %v", verrs)
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chat.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q", cfg.Chat.APIURL)
	}
}

func TestLoad_TOMLPreferredOverJSON(t *testing.T) {
	dir := isolate(t)

	toml := "[chat]\napi_url = \"http://toml.local/sse\"\n\n[storage]\nbackend = \"SQLite\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}
	json := `{"chat":{"api_url":"http://json.local/sse"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(json), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chat.APIURL != "http://toml.local/sse" {
		t.Errorf("APIURL = %q, want TOML value", cfg.Chat.APIURL)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want lowercased sqlite", cfg.Storage.Backend)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Level = %q, unset keys should keep defaults", cfg.Log.Level)
	}
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)

	json := `{"ui":{"theme":"light","markdown":false}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(json), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UI.Theme != "light" || cfg.UI.Markdown {
		t.Errorf("UI = %+v", cfg.UI)
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	isolate(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoad_InvalidFileRejected(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[storage]\nbackend = \"redis\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MCPCHAT_API_URL", "http://env.local/sse")
	t.Setenv("MCPCHAT_STORAGE_BACKEND", "sqlite")
	t.Setenv("MCPCHAT_DEBOUNCE_MS", "250")
	t.Setenv("MCPCHAT_LOG_LEVEL", "debug")
	t.Setenv("MCPCHAT_MARKDOWN", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Chat.APIURL != "http://env.local/sse" {
		t.Errorf("APIURL = %q", cfg.Chat.APIURL)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Storage.DebounceMs != 250 {
		t.Errorf("DebounceMs = %d", cfg.Storage.DebounceMs)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
	if cfg.UI.Markdown {
		t.Error("Markdown should be disabled by env")
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Chat.APIURL = "http://saved.local/sse"
	cfg.Storage.DebounceMs = 500
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0077 != 0 {
		t.Errorf("config file mode = %o, should not be group/world accessible", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Chat.APIURL != cfg.Chat.APIURL || loaded.Storage.DebounceMs != 500 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestConfig_StoragePath(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	path, err := cfg.StoragePath()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "conversations.json") {
		t.Errorf("json path = %q", path)
	}

	cfg.Storage.Backend = BackendSQLite
	path, _ = cfg.StoragePath()
	if path != filepath.Join(dir, "conversations.db") {
		t.Errorf("sqlite path = %q", path)
	}

	cfg.Storage.Path = "/tmp/custom.db"
	path, _ = cfg.StoragePath()
	if path != "/tmp/custom.db" {
		t.Errorf("explicit path = %q", path)
	}
}

func TestConfig_LogPath(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	if p, _ := cfg.LogPath(); p != filepath.Join(dir, "mcpchat.log") {
		t.Errorf("default log path = %q", p)
	}
	cfg.Log.File = "-"
	if p, _ := cfg.LogPath(); p != "" {
		t.Errorf("stderr log path = %q, want empty", p)
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("storage.backend")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != BackendJSON {
		t.Errorf("Get(storage.backend) = %v", val)
	}

	if err := cfg.Set("storage.debounce_ms", "1500"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Storage.DebounceMs != 1500 {
		t.Errorf("DebounceMs = %d", cfg.Storage.DebounceMs)
	}
	if err := cfg.Set("ui.markdown", "false"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.UI.Markdown {
		t.Error("Markdown should be false")
	}

	if err := cfg.Set("storage.debounce_ms", "soon"); err == nil {
		t.Error("expected error for non-integer value")
	}
	if _, err := cfg.Get("storage.nope"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := cfg.Get("storage"); err == nil {
		t.Error("expected error for section-only key")
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	cfg := Default()
	for _, k := range keys {
		if _, err := cfg.Get(k); err != nil {
			t.Errorf("Keys() returned unreachable key %q: %v", k, err)
		}
	}
	if len(keys) != 9 {
		t.Errorf("got %d keys, want 9: %v", len(keys), keys)
	}
}
