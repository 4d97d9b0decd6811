// Package memory persists per-session conversation histories and their usage
// accounting. Two stores implement the same contract: an embedded SQLite
// database that survives restarts, and a process-scoped in-memory store for
// disposable and test sessions. Both guarantee that messages are visible to
// Load in append order immediately after Append returns.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/oba/pkg/message"
)

// SessionSummary describes one stored session.
type SessionSummary struct {
	ID        string
	Messages  int
	UpdatedAt time.Time
}

// Store is the persistence contract consumed by the agent orchestrator.
type Store interface {
	// Load returns the session's messages in append order. A session that
	// was never written to loads as an empty history, not an error.
	Load(ctx context.Context, sessionID string) ([]message.Message, error)

	// Append adds messages to the end of the session's history.
	Append(ctx context.Context, sessionID string, msgs ...message.Message) error

	// Usage returns the session's accumulated usage, zero if absent.
	Usage(ctx context.Context, sessionID string) (message.Usage, error)

	// AddUsage folds a usage delta into the session's accumulated usage.
	AddUsage(ctx context.Context, sessionID string, u message.Usage) error

	// List returns summaries for every stored session.
	List(ctx context.Context) ([]SessionSummary, error)
}

// StoreError marks a persistence failure. The orchestrator treats it as
// fatal to the run and reports it distinctly from backend failures, since an
// append that failed means the persisted history can no longer be trusted.
type StoreError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *StoreError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("memory store: %s (session %s): %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("memory store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op, sessionID string, err error) *StoreError {
	return &StoreError{Op: op, SessionID: sessionID, Err: err}
}
