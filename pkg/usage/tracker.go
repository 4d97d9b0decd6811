// Package usage keeps a process-wide rollup of token and cost accounting,
// flushed to a JSON accounting file periodically and on clean shutdown. The
// rollup is not transactional: a crash loses only the delta since the last
// flush.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/oba/pkg/message"
)

// Snapshot is the on-disk shape of the rollup. The file is overwritten whole
// on every flush.
type Snapshot struct {
	Lifetime message.Usage            `json:"lifetime"`
	Sessions map[string]message.Usage `json:"sessions"`
}

// Tracker accumulates per-session and lifetime usage.
type Tracker struct {
	mu       sync.Mutex
	path     string
	lifetime message.Usage
	sessions map[string]message.Usage
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewTracker loads the existing accounting file at path, if any, and returns
// a tracker writing back to it.
func NewTracker(path string, logger zerolog.Logger) (*Tracker, error) {
	t := &Tracker{
		path:     path,
		sessions: make(map[string]message.Usage),
		logger:   logger,
	}

	data, err := os.ReadFile(path)
	if err == nil {
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parse accounting file %s: %w", path, err)
		}
		t.lifetime = snap.Lifetime
		if snap.Sessions != nil {
			t.sessions = snap.Sessions
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read accounting file %s: %w", path, err)
	}

	return t, nil
}

// Record folds a run's usage into the session and lifetime totals.
func (t *Tracker) Record(sessionID string, u message.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[sessionID] = t.sessions[sessionID].Acc(u)
	t.lifetime = t.lifetime.Acc(u)
}

// Snapshot returns a copy of the current rollup.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessions := make(map[string]message.Usage, len(t.sessions))
	for id, u := range t.sessions {
		sessions[id] = u
	}
	return Snapshot{Lifetime: t.lifetime, Sessions: sessions}
}

// Flush overwrites the accounting file with the current rollup. The write
// goes through a temp file and rename so readers never observe a torn file.
func (t *Tracker) Flush() error {
	snap := t.Snapshot()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal accounting snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		return fmt.Errorf("create accounting directory: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write accounting file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace accounting file: %w", err)
	}

	t.logger.Debug().Str("path", t.path).Msg("Usage rollup flushed")
	return nil
}

// Start schedules periodic flushes on the given cron spec (e.g. "@every 5m").
func (t *Tracker) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := t.Flush(); err != nil {
			t.logger.Warn().Err(err).Msg("Periodic usage flush failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule usage flush: %w", err)
	}
	c.Start()

	t.mu.Lock()
	t.cron = c
	t.mu.Unlock()
	return nil
}

// Close stops the periodic flush and writes a final snapshot.
func (t *Tracker) Close() error {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	return t.Flush()
}
