package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/oba/internal/config"
	"github.com/harun/oba/internal/logger"
	"github.com/harun/oba/pkg/agent"
	"github.com/harun/oba/pkg/memory"
	"github.com/harun/oba/pkg/model"
	"github.com/harun/oba/pkg/toolset"
	"github.com/harun/oba/pkg/usage"
	"github.com/harun/oba/pkg/vault"
)

// runtime holds everything a command needs wired together from the config.
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	agent   *agent.Agent
	store   memory.Store
	tracker *usage.Tracker

	closers []io.Closer
}

// buildRuntime loads the config and assembles logger, backend, store, vault
// tools, usage tracker and agent. Call close when done.
func buildRuntime(withWatcher bool) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rt := &runtime{cfg: cfg}

	log, logCloser, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, err
	}
	rt.logger = log
	if logCloser != nil {
		rt.closers = append(rt.closers, logCloser)
	}

	backend, err := model.New(cfg.Model.ID, cfg.Model.MaxOutputTokens,
		cfg.Providers.AnthropicAPIKey, cfg.Providers.OpenAIAPIKey)
	if err != nil {
		rt.close()
		return nil, err
	}

	store, err := rt.buildStore()
	if err != nil {
		rt.close()
		return nil, err
	}

	var tools []toolset.Definition
	if cfg.VaultPath != "" {
		v, err := vault.Open(cfg.VaultPath, log)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, v)
		if withWatcher {
			if err := v.Watch(); err != nil {
				rt.close()
				return nil, err
			}
		}
		tools = v.Tools()
	}

	tracker, err := usage.NewTracker(cfg.Usage.File, log)
	if err != nil {
		rt.close()
		return nil, err
	}
	if cfg.Usage.FlushSchedule != "" {
		if err := tracker.Start(cfg.Usage.FlushSchedule); err != nil {
			rt.close()
			return nil, err
		}
	}
	rt.tracker = tracker
	rt.closers = append(rt.closers, tracker)

	a, err := agent.New(agent.Config{
		Model:           backend,
		Store:           store,
		Tools:           tools,
		SystemPrompt:    cfg.Agent.SystemPrompt,
		Effort:          model.Effort{Level: cfg.Model.EffortLevel, BudgetTokens: cfg.Model.ThinkingBudget},
		MaxOutputTokens: cfg.Model.MaxOutputTokens,
		MaxRoundTrips:   cfg.Agent.MaxRoundTrips,
		MaxRetries:      cfg.Agent.MaxRetries,
		RequestTimeout:  requestTimeout(cfg),
		Logger:          log,
		Tracker:         tracker,
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.agent = a

	return rt, nil
}

func (rt *runtime) buildStore() (memory.Store, error) {
	switch rt.cfg.Store {
	case "memory":
		rt.store = memory.NewEphemeral()
	case "sqlite":
		s, err := memory.NewSQLite(filepath.Join(rt.cfg.DataDir, "sessions.db"), rt.logger)
		if err != nil {
			return nil, err
		}
		rt.store = s
		rt.closers = append(rt.closers, s)
	default:
		return nil, fmt.Errorf("invalid store %q", rt.cfg.Store)
	}
	return rt.store, nil
}

func requestTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Agent.RequestTimeoutSec) * time.Second
}

// close tears the runtime down in reverse construction order.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			rt.logger.Warn().Err(err).Msg("Close failed during shutdown")
		}
	}
	rt.closers = nil
}
