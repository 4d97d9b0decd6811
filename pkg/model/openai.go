package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/harun/oba/pkg/message"
)

const openaiProviderID = "openai"

var openaiModelIDs = map[string]bool{
	"gpt-4.1":    true,
	"gpt-5-nano": true,
	"gpt-5-mini": true,
	"gpt-5":      true,
	"gpt-5.1":    true,
}

// GPT implements Model on top of the OpenAI Chat Completions API. The effort
// descriptor's Level selects the reasoning effort for reasoning models.
type GPT struct {
	client          openai.Client
	modelID         string
	maxOutputTokens int
	cache           *message.Cache
}

// NewGPT builds an OpenAI adapter for the given model id. The api key is
// handed in as an opaque secret by the configuration layer.
func NewGPT(apiKey, modelID string, maxOutputTokens int) (*GPT, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if !openaiModelIDs[modelID] {
		return nil, fmt.Errorf("openai: unsupported model id %q", modelID)
	}
	if maxOutputTokens < 1 {
		return nil, fmt.Errorf("openai: max output tokens must be >= 1, got %d", maxOutputTokens)
	}
	return &GPT{
		client:          openai.NewClient(option.WithAPIKey(apiKey)),
		modelID:         modelID,
		maxOutputTokens: maxOutputTokens,
		cache:           message.NewCache(),
	}, nil
}

// ID returns the configured model id.
func (g *GPT) ID() string { return g.modelID }

// Cost returns the dollar cost of the given usage for this model.
func (g *GPT) Cost(u message.Usage) float64 {
	cost, err := DollarCost(g.modelID, u)
	if err != nil {
		return 0
	}
	return cost
}

// Generate makes a one-shot Chat Completions call.
func (g *GPT) Generate(ctx context.Context, req Request) (*Response, error) {
	params, err := g.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, g.wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &BackendError{
			Kind:     KindTransportFailure,
			Provider: openaiProviderID,
			Err:      fmt.Errorf("no response choices returned"),
		}
	}

	return g.parseCompletion(resp)
}

// Stream makes a streaming Chat Completions call, forwarding text fragments
// as they arrive. Tool-call argument fragments are assembled by the SDK
// accumulator and forwarded as one completed call each.
func (g *GPT) Stream(ctx context.Context, req Request, emit func(Delta) error) (*Response, error) {
	params, err := g.buildParams(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 {
			if text := chunk.Choices[0].Delta.Content; text != "" {
				if err := emit(Delta{Text: text}); err != nil {
					return nil, err
				}
			}
		}

		if finished, ok := acc.JustFinishedToolCall(); ok {
			callID := ""
			if len(acc.Choices) > 0 && finished.Index < len(acc.Choices[0].Message.ToolCalls) {
				callID = acc.Choices[0].Message.ToolCalls[finished.Index].ID
			}
			call, err := message.NewToolCall(callID, finished.Name, finished.Arguments)
			if err != nil {
				return nil, &BackendError{Kind: KindInvalidRequest, Provider: openaiProviderID, Err: err}
			}
			if err := emit(Delta{ToolCall: call}); err != nil {
				return nil, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, g.wrapErr(err)
	}
	if len(acc.Choices) == 0 {
		return nil, &BackendError{
			Kind:     KindTransportFailure,
			Provider: openaiProviderID,
			Err:      fmt.Errorf("stream ended without choices"),
		}
	}

	resp, err := g.parseCompletion(&acc.ChatCompletion)
	if err != nil {
		return nil, err
	}
	if err := emit(Delta{Done: true}); err != nil {
		return nil, err
	}
	return resp, nil
}

func (g *GPT) buildParams(req Request) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.modelID),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	} else {
		params.MaxCompletionTokens = openai.Int(int64(g.maxOutputTokens))
	}
	if req.Effort.Level != "" {
		params.ReasoningEffort = shared.ReasoningEffort(req.Effort.Level)
	}

	for _, msg := range req.Messages {
		// Reasoning messages are not representable on the Chat Completions
		// wire: the vendor keeps reasoning server-side and only the
		// Responses API replays encrypted reasoning content. Skipping them
		// preserves the rest of the history exactly.
		if _, ok := msg.(*message.Reasoning); ok {
			continue
		}
		payload, err := g.cache.GetOrCompute(openaiProviderID, msg, func() (any, error) {
			return transformOpenAIMessage(msg)
		})
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params.Messages = append(params.Messages, payload.(openai.ChatCompletionMessageParamUnion))
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, spec := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        spec.Name,
					Description: openai.String(spec.Description),
					Parameters:  shared.FunctionParameters(spec.Schema),
				},
			})
		}
		params.Tools = tools

		switch req.ToolChoice {
		case ToolChoiceNone:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
		case ToolChoiceAuto:
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
		}
	}

	return params, nil
}

// transformOpenAIMessage maps one normalized message to its Chat Completions
// payload.
func transformOpenAIMessage(msg message.Message) (any, error) {
	switch m := msg.(type) {
	case *message.Content:
		switch m.Role {
		case message.RoleSystem:
			return openai.SystemMessage(m.Text), nil
		case message.RoleUser:
			return openai.UserMessage(m.Text), nil
		default:
			return openai.AssistantMessage(m.Text), nil
		}

	case *message.ToolCall:
		assistant := openai.ChatCompletionMessage{
			Role: "assistant",
			ToolCalls: []openai.ChatCompletionMessageToolCall{{
				ID:   m.CallID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunction{
					Name:      m.Name,
					Arguments: m.Args,
				},
			}},
		}
		return assistant.ToParam(), nil

	case *message.ToolResult:
		return openai.ToolMessage(m.Result, m.CallID), nil
	}
	return nil, fmt.Errorf("openai: invalid message type %T", msg)
}

// parseCompletion normalizes a chat completion into a Response. Tool calls
// precede content in Messages only when the vendor ordered them so; chat
// completions return content and tool calls side by side, so content is kept
// first to match the reading order of the transcript.
func (g *GPT) parseCompletion(resp *openai.ChatCompletion) (*Response, error) {
	usage := message.Usage{
		InputTokens:           int(resp.Usage.PromptTokens),
		InputTokensCached:     int(resp.Usage.PromptTokensDetails.CachedTokens),
		OutputTokens:          int(resp.Usage.CompletionTokens),
		OutputTokensReasoning: int(resp.Usage.CompletionTokensDetails.ReasoningTokens),
	}
	usage.TotalCost = g.Cost(usage)

	out := &Response{
		ModelID:    g.modelID,
		APIModelID: resp.Model,
		Usage:      usage,
	}

	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		out.Content = message.NewContent(message.RoleAssistant, choice.Message.Content)
		out.Messages = append(out.Messages, out.Content)
	}
	for _, tc := range choice.Message.ToolCalls {
		call, err := message.NewToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("openai: parse tool arguments: %w", err)
		}
		out.Messages = append(out.Messages, call)
		out.ToolCalls = append(out.ToolCalls, call)
	}

	return out, nil
}

func (g *GPT) wrapErr(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &BackendError{
			Kind:     classifyStatus(apierr.StatusCode),
			Provider: openaiProviderID,
			Status:   apierr.StatusCode,
			Err:      err,
		}
	}
	return wrapTransport(openaiProviderID, err)
}
