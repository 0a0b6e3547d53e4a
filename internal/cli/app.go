// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared wiring for every command.

package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jeranaias/mcpchat/internal/chat"
	"github.com/jeranaias/mcpchat/internal/config"
	"github.com/jeranaias/mcpchat/internal/logging"
	"github.com/jeranaias/mcpchat/internal/model"
	"github.com/jeranaias/mcpchat/internal/notify"
	"github.com/jeranaias/mcpchat/internal/session"
	"github.com/jeranaias/mcpchat/internal/storage"
)

// GlobalOptions holds the persistent flags. Empty fields leave the loaded
// configuration alone.
type GlobalOptions struct {
	ConfigPath string
	APIURL     string
	LogLevel   string
	Storage    string
}

// LoadConfig loads configuration and applies flag overrides on top of it.
func (o GlobalOptions) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.APIURL == "" && o.LogLevel == "" && o.Storage == "" {
		return cfg, nil
	}
	if o.APIURL != "" {
		cfg.Chat.APIURL = o.APIURL
	}
	if o.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(o.LogLevel)
	}
	if o.Storage != "" {
		cfg.Storage.Backend = strings.ToLower(o.Storage)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App is the running application: history loaded, persistence scheduled,
// controller ready to stream.
type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	Chat       *chat.Store
	Controller *session.Controller
	Toasts     *notify.Bus

	backend     storage.Store
	scheduler   *storage.Scheduler
	unsubscribe func()
	logCloser   io.Closer
}

// NewApp loads configuration and history and wires persistence. Log output
// without a file goes to stderr.
func NewApp(opts GlobalOptions, stderr io.Writer) (*App, error) {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logging.Open(cfg.Log, logPath, stderr)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	storeOpts, err := storage.OptionsFromConfig(cfg)
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	backend, err := storage.OpenStore(storeOpts)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}

	cs := chat.NewStore()
	n := storage.LoadInto(backend, cs, log)

	// Subscribe after loading so restoring history does not write it back.
	sched := storage.NewScheduler(backend, cs.Conversations, cfg.Storage.Debounce(), log)
	unsubscribe := cs.Subscribe(sched.Schedule)

	client := session.NewHTTPClient(cfg.Chat.ResponseHeaderTimeout())
	ctrl := session.NewController(cs,
		session.WithHTTPClient(client),
		session.WithLogger(log),
		session.WithAPIURL(cfg.Chat.APIURL),
	)

	log.Debug().
		Str("backend", storeOpts.Backend).
		Str("path", storeOpts.Path).
		Int("conversations", n).
		Str("api_url", cfg.Chat.APIURL).
		Msg("mcpchat started")

	return &App{
		Config:      cfg,
		Log:         log,
		Chat:        cs,
		Controller:  ctrl,
		Toasts:      notify.NewBus(),
		backend:     backend,
		scheduler:   sched,
		unsubscribe: unsubscribe,
		logCloser:   logCloser,
	}, nil
}

// Flush writes pending history now.
func (a *App) Flush() {
	a.scheduler.Flush()
}

// Close stops any stream, flushes history and releases the backend.
func (a *App) Close() error {
	a.Controller.Stop()
	a.unsubscribe()
	a.scheduler.Stop()
	a.Toasts.Close()

	var errs []error
	if err := a.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close history: %w", err))
	}
	if err := a.logCloser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// =============================================================================
// CONVERSATION REFERENCES
// =============================================================================

// ErrNoSuchConversation is returned for references that match nothing.
var ErrNoSuchConversation = errors.New("no such conversation")

// resolveConversation finds a conversation by its 1-based position in the
// newest-first list, or by ID.
func resolveConversation(convs []*model.Conversation, ref string) (*model.Conversation, int, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(convs) {
			return nil, 0, fmt.Errorf("%w: #%d (have %d)", ErrNoSuchConversation, n, len(convs))
		}
		return convs[n-1], n, nil
	}
	for i, c := range convs {
		if c.ID == ref {
			return c, i + 1, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %q", ErrNoSuchConversation, ref)
}
