// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/mcpchat/internal/model"
)

// DefaultDebounce is the quiet period before a scheduled write runs.
const DefaultDebounce = time.Second

// Scheduler coalesces bursts of changes into one write. Each Schedule
// cancels the pending write and re-arms the timer, so the list is written
// once the store has been quiet for the debounce period. The snapshot is
// taken when the write runs, not when it was scheduled.
type Scheduler struct {
	store    Store
	snapshot func() []*model.Conversation
	debounce time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64 // bumped per Schedule; a stale timer callback is ignored
	pending bool
	stopped bool

	// writeMu serializes saves so a timer write and Flush never overlap.
	writeMu sync.Mutex
}

// NewScheduler creates a scheduler writing snapshot() to store. A
// non-positive debounce uses DefaultDebounce.
func NewScheduler(store Store, snapshot func() []*model.Conversation, debounce time.Duration, log zerolog.Logger) *Scheduler {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Scheduler{
		store:    store,
		snapshot: snapshot,
		debounce: debounce,
		log:      log.With().Str("component", "storage").Logger(),
	}
}

// Schedule arms (or re-arms) the pending write. It is a no-op after Stop.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending = true
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(gen) })
}

// Pending reports whether a write is waiting for its quiet period.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Flush writes now if a write is pending.
func (s *Scheduler) Flush() {
	if s.takePending() {
		s.write()
	}
}

// Stop cancels the timer and flushes any pending write. Later Schedule
// calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.Flush()
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.timer = nil
	s.mu.Unlock()

	s.write()
}

func (s *Scheduler) takePending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	was := s.pending
	s.pending = false
	return was
}

func (s *Scheduler) write() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	convs := s.snapshot()
	if err := s.store.Save(convs); err != nil {
		s.log.Error().Err(err).Int("conversations", len(convs)).Msg("failed to save conversations")
		return
	}
	s.log.Debug().Int("conversations", len(convs)).Msg("conversations saved")
}
