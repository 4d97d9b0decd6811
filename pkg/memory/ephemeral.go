package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harun/oba/pkg/message"
)

type sessionState struct {
	messages  []message.Message
	usage     message.Usage
	updatedAt time.Time
}

// Ephemeral is a process-scoped in-memory store. Load hands out snapshot
// copies so a renderer can keep reading a history while the orchestrator
// appends to it.
type Ephemeral struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
}

// NewEphemeral returns an empty in-memory store.
func NewEphemeral() *Ephemeral {
	return &Ephemeral{sessions: make(map[string]*sessionState)}
}

// Load returns a copy of the session's messages in append order.
func (e *Ephemeral) Load(_ context.Context, sessionID string) ([]message.Message, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state, ok := e.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	msgs := make([]message.Message, len(state.messages))
	copy(msgs, state.messages)
	return msgs, nil
}

// Append adds messages to the session, creating it on first write.
func (e *Ephemeral) Append(_ context.Context, sessionID string, msgs ...message.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.sessions[sessionID]
	if !ok {
		state = &sessionState{}
		e.sessions[sessionID] = state
	}
	state.messages = append(state.messages, msgs...)
	state.updatedAt = time.Now()
	return nil
}

// Usage returns the session's accumulated usage.
func (e *Ephemeral) Usage(_ context.Context, sessionID string) (message.Usage, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state, ok := e.sessions[sessionID]
	if !ok {
		return message.Usage{}, nil
	}
	return state.usage, nil
}

// AddUsage folds a usage delta into the session.
func (e *Ephemeral) AddUsage(_ context.Context, sessionID string, u message.Usage) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.sessions[sessionID]
	if !ok {
		state = &sessionState{}
		e.sessions[sessionID] = state
	}
	state.usage = state.usage.Acc(u)
	state.updatedAt = time.Now()
	return nil
}

// List returns summaries sorted by session id.
func (e *Ephemeral) List(_ context.Context) ([]SessionSummary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	summaries := make([]SessionSummary, 0, len(e.sessions))
	for id, state := range e.sessions {
		summaries = append(summaries, SessionSummary{
			ID:        id,
			Messages:  len(state.messages),
			UpdatedAt: state.updatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}
