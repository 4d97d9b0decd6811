package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/oba/internal/observability"
	"github.com/harun/oba/pkg/message"
	"github.com/harun/oba/pkg/model"
)

// Response is the finalized result of one run.
type Response struct {
	SessionID string
	ModelID   string
	Usage     message.Usage
	Content   string
}

// Delta is one unit delivered to a streaming sink: a text fragment, a
// completed tool call, a terminal error, or the terminal Done sentinel.
// Exactly one field is set per delta.
type Delta struct {
	Text     string
	ToolCall *message.ToolCall
	Err      error
	Done     bool
}

// Run executes one user-input-to-final-response cycle against the session.
// An empty sessionID starts a fresh session under a generated id. On failure
// the returned Response, when non-nil, carries the usage accrued before the
// run stopped.
func (a *Agent) Run(ctx context.Context, input, sessionID string) (*Response, error) {
	return a.execute(ctx, input, sessionID, nil)
}

// Stream is Run with incremental delivery: text deltas are forwarded to sink
// in arrival order, completed tool calls as single units, and a Done delta
// once the run finalizes. On failure the sink receives an Err delta before
// the error is returned. Stream closes sink when it returns.
func (a *Agent) Stream(ctx context.Context, input, sessionID string, sink chan<- Delta) (*Response, error) {
	defer close(sink)

	send := func(d Delta) error {
		select {
		case sink <- d:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	resp, err := a.execute(ctx, input, sessionID, send)
	if err != nil {
		// best effort: the sink may be gone when the context was cancelled
		_ = send(Delta{Err: err})
		return resp, err
	}
	if err := send(Delta{Done: true}); err != nil {
		return nil, err
	}
	return resp, nil
}

// execute drives the run state machine. emit is nil for non-streaming runs.
func (a *Agent) execute(ctx context.Context, input, sessionID string, emit func(Delta) error) (*Response, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.acquire(sessionID, cancel); err != nil {
		return nil, err
	}
	defer a.release(sessionID)

	logger := a.logger.With().Str("session_id", sessionID).Str("model", a.model.ID()).Logger()
	start := time.Now()

	resp, err := a.loop(runCtx, input, sessionID, emit, logger)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.RecordRun(a.model.ID(), outcome, time.Since(start))
	if err != nil {
		logger.Error().Err(err).Msg("Run failed")
		// resp still carries the usage accrued before the failure
		return resp, err
	}

	logger.Info().
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Float64("cost", resp.Usage.TotalCost).
		Msg("Run finalized")
	return resp, nil
}

func (a *Agent) loop(ctx context.Context, input, sessionID string, emit func(Delta) error, logger zerolog.Logger) (*Response, error) {
	history, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	prefix := make([]message.Message, 0, len(history)+1)
	if a.systemPrompt != nil {
		prefix = append(prefix, a.systemPrompt)
	}
	prefix = append(prefix, history...)

	userMsg := message.NewContent(message.RoleUser, input)
	if err := a.store.Append(ctx, sessionID, userMsg); err != nil {
		return nil, err
	}
	turns := []message.Message{userMsg}

	specs := a.registry.Specs()
	var total message.Usage
	var textParts []string

	// partial carries whatever accounting accrued before a failure, so the
	// caller still sees the usage of the turns that did complete.
	partial := func() *Response {
		return &Response{SessionID: sessionID, ModelID: a.model.ID(), Usage: total}
	}

	for roundTrips := 0; ; roundTrips++ {
		req := model.Request{
			Messages:        append(prefix[:len(prefix):len(prefix)], turns...),
			Tools:           specs,
			ToolChoice:      model.ToolChoiceAuto,
			MaxOutputTokens: a.maxOutput,
			Effort:          a.effort,
		}

		resp, err := a.callModel(ctx, req, emit)
		if err != nil {
			return partial(), err
		}
		total = total.Acc(resp.Usage)

		if err := a.store.Append(ctx, sessionID, resp.Messages...); err != nil {
			return partial(), err
		}
		turns = append(turns, resp.Messages...)

		if resp.Content != nil {
			textParts = append(textParts, resp.Content.Text)
		}

		if len(resp.ToolCalls) == 0 {
			break
		}
		for _, call := range resp.ToolCalls {
			textParts = append(textParts, fmt.Sprintf("[Tool call: %s]", call.Name))
		}

		if roundTrips >= a.maxRoundTrips {
			return partial(), fmt.Errorf("%w (max %d)", ErrRoundTripLimit, a.maxRoundTrips)
		}

		logger.Debug().Int("tool_calls", len(resp.ToolCalls)).Int("round_trip", roundTrips+1).Msg("Executing tool calls")
		results := a.invokeTools(ctx, resp.ToolCalls)
		if ctx.Err() != nil {
			return partial(), ctx.Err()
		}
		for _, result := range results {
			total = total.AccTool(toolName(resp.ToolCalls, result.CallID), result.Cost)
		}

		resultMsgs := make([]message.Message, len(results))
		for i, result := range results {
			resultMsgs[i] = result
		}
		if err := a.store.Append(ctx, sessionID, resultMsgs...); err != nil {
			return partial(), err
		}
		turns = append(turns, resultMsgs...)
	}

	if err := a.store.AddUsage(ctx, sessionID, total); err != nil {
		return partial(), err
	}
	if a.tracker != nil {
		a.tracker.Record(sessionID, total)
	}
	observability.RecordUsage(a.model.ID(), total)

	return &Response{
		SessionID: sessionID,
		ModelID:   a.model.ID(),
		Usage:     total,
		Content:   strings.Join(textParts, "\n\n"),
	}, nil
}

// callModel invokes the backend with a per-call deadline, retrying rate
// limits and transport failures with exponential backoff.
func (a *Agent) callModel(ctx context.Context, req model.Request, emit func(Delta) error) (*model.Response, error) {
	var lastErr error

	for attempt := 0; attempt < a.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
		var resp *model.Response
		var err error
		var emitted bool
		if emit != nil {
			resp, err = a.model.Stream(callCtx, req, func(d model.Delta) error {
				switch {
				case d.Text != "":
					emitted = true
					return emit(Delta{Text: d.Text})
				case d.ToolCall != nil:
					emitted = true
					return emit(Delta{ToolCall: d.ToolCall})
				}
				// the per-invocation done sentinel is not forwarded; the
				// run emits a single terminal Done when it finalizes
				return nil
			})
		} else {
			resp, err = a.model.Generate(callCtx, req)
		}
		cancel()

		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		if !model.Retryable(err) {
			return nil, err
		}
		if emitted {
			// a retry would replay deltas the sink already received
			return nil, err
		}
		if attempt == a.maxRetries-1 {
			break
		}

		delay := time.Second << attempt
		a.logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying after backend error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", a.maxRetries, lastErr)
}

// invokeTools runs independent tool calls concurrently but keeps results in
// request order, so the call/result pairing stays stable for the next model
// invocation no matter which tool finishes first.
func (a *Agent) invokeTools(ctx context.Context, calls []*message.ToolCall) []*message.ToolResult {
	results := make([]*message.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call *message.ToolCall) {
			defer wg.Done()
			results[i] = a.registry.Invoke(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

func toolName(calls []*message.ToolCall, callID string) string {
	for _, call := range calls {
		if call.CallID == callID {
			return call.Name
		}
	}
	return ""
}
