// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"

	"github.com/jeranaias/mcpchat/internal/config"
	"github.com/jeranaias/mcpchat/internal/model"
)

// ErrUnknownBackend is returned by OpenStore for unsupported backends.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store persists the complete conversation list.
type Store interface {
	// Load returns the saved list, newest first. A store that has never
	// been written loads as an empty list.
	Load() ([]*model.Conversation, error)
	// Save replaces the saved list.
	Save(convs []*model.Conversation) error
	// Close releases the store's resources.
	Close() error
}

// Options selects and locates a backend.
type Options struct {
	Backend string
	Path    string
}

// OptionsFromConfig resolves backend and path from the loaded config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	path, err := cfg.StoragePath()
	if err != nil {
		return Options{}, err
	}
	return Options{Backend: cfg.Storage.Backend, Path: path}, nil
}

// OpenStore opens the configured backend.
func OpenStore(opts Options) (Store, error) {
	switch opts.Backend {
	case config.BackendJSON, "":
		return NewFileStore(opts.Path), nil
	case config.BackendSQLite:
		return OpenSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
