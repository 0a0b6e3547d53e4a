// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for mcpchat.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (MCPCHAT_*)
//   - ~/.mcpchat/config.toml
//   - ~/.mcpchat/config.json
//   - Built-in defaults
//
// The ~/.mcpchat directory can be moved with MCPCHAT_HOME.
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	url := cfg.Chat.APIURL
package config
