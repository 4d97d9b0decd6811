package model

import (
	"context"
	"fmt"

	"github.com/harun/oba/pkg/message"
)

// ToolChoice overrides whether the model may request tool invocations.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// Effort is an opaque reasoning-effort descriptor. Each adapter interprets
// the part its vendor understands: OpenAI consumes the enumerated Level,
// Anthropic consumes the thinking token budget.
type Effort struct {
	Level        string // "minimal", "low", "medium" or "high"
	BudgetTokens int    // thinking budget, 0 disables extended thinking
}

// ToolSpec is the wire shape of a registered tool: a name, a description and
// a JSON schema object for the argument payload.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Request carries one model invocation: the full normalized history plus the
// tool specs the model may call.
type Request struct {
	Messages        []message.Message
	Tools           []ToolSpec
	ToolChoice      ToolChoice
	MaxOutputTokens int
	Effort          Effort
}

// Response is the normalized result of one model invocation. Messages holds
// every component of the response (reasoning, content, tool calls) in the
// exact order the vendor produced them, since the sequence is replayed
// verbatim on later turns of the same conversation.
type Response struct {
	ModelID    string
	APIModelID string
	Usage      message.Usage
	Messages   []message.Message
	Content    *message.Content
	ToolCalls  []*message.ToolCall
}

// Delta is one incremental unit of a streaming response: a text fragment, a
// completed tool call, or the terminal sentinel. Adapters forward text as it
// arrives and tool calls only once the vendor signals the call is complete.
type Delta struct {
	Text     string
	ToolCall *message.ToolCall
	Done     bool
}

// Model is the contract every vendor adapter implements. Stream invokes emit
// for each delta in arrival order and returns the same terminal Response that
// Generate would; an error from emit aborts the stream.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request, emit func(Delta) error) (*Response, error)
	ID() string
	Cost(u message.Usage) float64
}

// Provider returns the vendor serving a model id, or "" when no adapter
// recognizes it.
func Provider(modelID string) string {
	switch {
	case anthropicModelIDs[modelID]:
		return "anthropic"
	case openaiModelIDs[modelID]:
		return "openai"
	}
	return ""
}

// New builds the adapter serving the model id, handing it the matching
// credential. Keys are opaque here; the adapter is the only reader.
func New(modelID string, maxOutputTokens int, anthropicKey, openaiKey string) (Model, error) {
	switch Provider(modelID) {
	case "anthropic":
		return NewClaude(anthropicKey, modelID, maxOutputTokens)
	case "openai":
		return NewGPT(openaiKey, modelID, maxOutputTokens)
	}
	return nil, fmt.Errorf("no backend serves model id %q", modelID)
}
