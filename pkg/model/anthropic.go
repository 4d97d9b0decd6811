package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/harun/oba/pkg/message"
)

const anthropicProviderID = "anthropic"

var anthropicModelIDs = map[string]bool{
	"claude-haiku-4-5":  true,
	"claude-sonnet-4-5": true,
	"claude-opus-4-1":   true,
}

// Claude implements Model on top of the Anthropic Messages API. The effort
// descriptor's BudgetTokens selects the extended-thinking budget; a zero
// budget disables thinking.
type Claude struct {
	client          anthropic.Client
	modelID         string
	maxOutputTokens int
	cache           *message.Cache
}

// NewClaude builds an Anthropic adapter for the given model id. The api key
// is handed in as an opaque secret by the configuration layer.
func NewClaude(apiKey, modelID string, maxOutputTokens int) (*Claude, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	if !anthropicModelIDs[modelID] {
		return nil, fmt.Errorf("anthropic: unsupported model id %q", modelID)
	}
	if maxOutputTokens < 1 {
		return nil, fmt.Errorf("anthropic: max output tokens must be >= 1, got %d", maxOutputTokens)
	}
	return &Claude{
		client:          anthropic.NewClient(option.WithAPIKey(apiKey)),
		modelID:         modelID,
		maxOutputTokens: maxOutputTokens,
		cache:           message.NewCache(),
	}, nil
}

// ID returns the configured model id.
func (c *Claude) ID() string { return c.modelID }

// Cost returns the dollar cost of the given usage for this model.
func (c *Claude) Cost(u message.Usage) float64 {
	cost, err := DollarCost(c.modelID, u)
	if err != nil {
		return 0
	}
	return cost
}

// Generate makes a one-shot Messages API call.
func (c *Claude) Generate(ctx context.Context, req Request) (*Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, c.wrapErr(err)
	}

	return c.parseMessage(resp)
}

// Stream makes a streaming Messages API call, forwarding text fragments as
// they arrive and tool calls once their argument payload is complete, then
// returns the terminal Response.
func (c *Claude) Stream(ctx context.Context, req Request, emit func(Delta) error) (*Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	acc := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, &BackendError{Kind: KindTransportFailure, Provider: anthropicProviderID, Err: err}
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				if err := emit(Delta{Text: delta.Text}); err != nil {
					return nil, err
				}
			}
		case anthropic.ContentBlockStopEvent:
			// Tool-use blocks stream their arguments as partial json deltas;
			// only at block stop is the accumulated payload a complete call.
			if int(ev.Index) >= len(acc.Content) {
				continue
			}
			block, ok := acc.Content[ev.Index].AsAny().(anthropic.ToolUseBlock)
			if !ok {
				continue
			}
			call, err := message.NewToolCall(block.ID, block.Name, block.JSON.Input.Raw())
			if err != nil {
				return nil, &BackendError{Kind: KindInvalidRequest, Provider: anthropicProviderID, Err: err}
			}
			if err := emit(Delta{ToolCall: call}); err != nil {
				return nil, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, c.wrapErr(err)
	}

	resp, err := c.parseMessage(&acc)
	if err != nil {
		return nil, err
	}
	if err := emit(Delta{Done: true}); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Claude) buildParams(req Request) (anthropic.MessageNewParams, error) {
	msgs := req.Messages
	var systemPrompt string
	if len(msgs) > 0 {
		if content, ok := msgs[0].(*message.Content); ok && content.Role == message.RoleSystem {
			systemPrompt = content.Text
			msgs = msgs[1:]
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelID),
		MaxTokens: int64(c.maxOutputTokens),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = int64(req.MaxOutputTokens)
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	if req.Effort.BudgetTokens > 0 {
		params.Thinking = anthropic.ThinkingConfigParamUnion{
			OfEnabled: &anthropic.ThinkingConfigEnabledParam{BudgetTokens: int64(req.Effort.BudgetTokens)},
		}
	}

	for _, msg := range msgs {
		payload, err := c.cache.GetOrCompute(anthropicProviderID, msg, func() (any, error) {
			return transformAnthropicMessage(msg)
		})
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Messages = append(params.Messages, payload.(anthropic.MessageParam))
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, spec := range req.Tools {
			tool := anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: spec.Schema["properties"],
				},
			}
			if required, ok := spec.Schema["required"].([]string); ok {
				tool.InputSchema.Required = required
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
		}
		params.Tools = tools

		switch req.ToolChoice {
		case ToolChoiceNone:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
		case ToolChoiceAuto:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		}
	}

	return params, nil
}

// transformAnthropicMessage maps one normalized message to its Messages API
// payload. System messages mid-history are rejected: the API only accepts a
// system prompt as a top-level field.
func transformAnthropicMessage(msg message.Message) (any, error) {
	switch m := msg.(type) {
	case *message.Content:
		if m.Role == message.RoleSystem {
			return nil, fmt.Errorf("anthropic: mid-history system messages are not supported")
		}
		if m.Role == message.RoleUser {
			return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)), nil
		}
		return anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleAssistant,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Text)},
		}, nil

	case *message.Reasoning:
		return anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleAssistant,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewThinkingBlock(m.EncryptedContent, m.Text)},
		}, nil

	case *message.ToolCall:
		return anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleAssistant,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewToolUseBlock(m.CallID, json.RawMessage(m.Args), m.Name)},
		}, nil

	case *message.ToolResult:
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.CallID, m.Result, false)), nil
	}
	return nil, fmt.Errorf("anthropic: invalid message type %T", msg)
}

// parseMessage normalizes an API message into a Response, keeping content
// blocks in their original order.
func (c *Claude) parseMessage(resp *anthropic.Message) (*Response, error) {
	usage := message.Usage{
		InputTokens:       int(resp.Usage.InputTokens),
		InputTokensCached: int(resp.Usage.CacheReadInputTokens),
		OutputTokens:      int(resp.Usage.OutputTokens),
		// reasoning token counts are not reported by the API
		OutputTokensReasoning: 0,
	}
	usage.TotalCost = c.Cost(usage)

	out := &Response{
		ModelID:    c.modelID,
		APIModelID: string(resp.Model),
		Usage:      usage,
	}

	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.ThinkingBlock:
			out.Messages = append(out.Messages, message.NewReasoning(b.Signature, b.Thinking))

		case anthropic.TextBlock:
			if out.Content != nil {
				return nil, fmt.Errorf("anthropic: response carries multiple text blocks")
			}
			out.Content = message.NewContent(message.RoleAssistant, b.Text)
			out.Messages = append(out.Messages, out.Content)

		case anthropic.ToolUseBlock:
			call, err := message.NewToolCall(b.ID, b.Name, b.JSON.Input.Raw())
			if err != nil {
				return nil, fmt.Errorf("anthropic: parse tool input: %w", err)
			}
			out.Messages = append(out.Messages, call)
			out.ToolCalls = append(out.ToolCalls, call)
		}
	}

	return out, nil
}

func (c *Claude) wrapErr(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &BackendError{
			Kind:     classifyStatus(apierr.StatusCode),
			Provider: anthropicProviderID,
			Status:   apierr.StatusCode,
			Err:      err,
		}
	}
	return wrapTransport(anthropicProviderID, err)
}
