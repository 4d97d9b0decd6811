package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/oba/internal/observability"
	"github.com/harun/oba/pkg/memory"
	"github.com/harun/oba/pkg/message"
	"github.com/harun/oba/pkg/model"
	"github.com/harun/oba/pkg/toolset"
	"github.com/harun/oba/pkg/usage"
)

var (
	// ErrSessionBusy is returned when a run is requested for a session that
	// already has one in flight. Callers that want queueing do it themselves.
	ErrSessionBusy = errors.New("session busy")

	// ErrRoundTripLimit is returned when the model keeps requesting tools
	// past the configured round-trip bound. Messages appended before the
	// limit was hit stay in the session.
	ErrRoundTripLimit = errors.New("tool round-trip limit exceeded")
)

const (
	defaultMaxRoundTrips  = 8
	defaultMaxRetries     = 3
	defaultRequestTimeout = 60 * time.Second
)

// Config wires an Agent together. Model and Store are required.
type Config struct {
	Model           model.Model
	Store           memory.Store
	Tools           []toolset.Definition
	SystemPrompt    string
	Effort          model.Effort
	MaxOutputTokens int
	MaxRoundTrips   int
	MaxRetries      int
	RequestTimeout  time.Duration
	Logger          zerolog.Logger
	Tracker         *usage.Tracker // optional process-wide usage rollup
}

// Agent drives conversations against one model backend. It is safe for
// concurrent use across distinct sessions.
type Agent struct {
	model          model.Model
	store          memory.Store
	registry       *toolset.Registry
	systemPrompt   *message.Content
	effort         model.Effort
	maxOutput      int
	maxRoundTrips  int
	maxRetries     int
	requestTimeout time.Duration
	logger         zerolog.Logger
	tracker        *usage.Tracker

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// New builds an Agent. Registering two tools with the same name fails here,
// before any run starts.
func New(cfg Config) (*Agent, error) {
	observability.EnsureRegistered()

	if cfg.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.MaxRoundTrips < 0 {
		return nil, fmt.Errorf("max round trips cannot be negative")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative")
	}

	registry, err := toolset.NewRegistry(cfg.Logger, cfg.Tools...)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		model:          cfg.Model,
		store:          cfg.Store,
		registry:       registry,
		effort:         cfg.Effort,
		maxOutput:      cfg.MaxOutputTokens,
		maxRoundTrips:  cfg.MaxRoundTrips,
		maxRetries:     cfg.MaxRetries,
		requestTimeout: cfg.RequestTimeout,
		logger:         cfg.Logger,
		tracker:        cfg.Tracker,
		active:         make(map[string]context.CancelFunc),
	}
	if cfg.SystemPrompt != "" {
		a.systemPrompt = message.NewContent(message.RoleSystem, cfg.SystemPrompt)
	}
	if a.maxRoundTrips == 0 {
		a.maxRoundTrips = defaultMaxRoundTrips
	}
	if a.maxRetries == 0 {
		a.maxRetries = defaultMaxRetries
	}
	if a.requestTimeout == 0 {
		a.requestTimeout = defaultRequestTimeout
	}

	return a, nil
}

// Abort cancels the run in flight for the session, if any.
func (a *Agent) Abort(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	cancel, ok := a.active[sessionID]
	if !ok {
		return false
	}
	a.logger.Info().Str("session_id", sessionID).Msg("Aborting run")
	cancel()
	return true
}

// IsRunning reports whether the session has a run in flight.
func (a *Agent) IsRunning(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.active[sessionID]
	return ok
}

func (a *Agent) acquire(sessionID string, cancel context.CancelFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, busy := a.active[sessionID]; busy {
		return fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
	}
	a.active[sessionID] = cancel
	return nil
}

func (a *Agent) release(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, sessionID)
}
