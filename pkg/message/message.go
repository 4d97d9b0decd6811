package message

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a Content message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation history. Exactly four variants exist:
// Content, Reasoning, ToolCall and ToolResult. Messages are append-only: once
// a message has been handed to a store or a backend it must not be mutated,
// which is what makes the per-provider payload cache write-once.
type Message interface {
	message()
}

// Content is a regular text turn from the user, the assistant or the system.
type Content struct {
	Role Role
	Text string
}

// Reasoning carries provider-internal deliberation. OpenAI only returns
// reasoning as encrypted content that must be replayed verbatim; Anthropic
// additionally exposes the thinking text alongside its signature.
type Reasoning struct {
	EncryptedContent string
	Text             string
}

// ToolCall is a model request to invoke a registered tool. Args holds the raw
// JSON argument payload as received from the provider, ParsedArgs its decoded
// form. At least one of the two must be set at construction.
type ToolCall struct {
	CallID     string
	Name       string
	Args       string
	ParsedArgs map[string]any
}

// ToolResult answers the ToolCall with the matching CallID. Cost is the
// dollar cost incurred by the tool itself, zero for free tools.
type ToolResult struct {
	CallID string
	Result string
	Cost   float64
}

func (*Content) message()    {}
func (*Reasoning) message()  {}
func (*ToolCall) message()   {}
func (*ToolResult) message() {}

// NewContent builds a Content message.
func NewContent(role Role, text string) *Content {
	return &Content{Role: role, Text: text}
}

// NewReasoning builds a Reasoning message.
func NewReasoning(encryptedContent, text string) *Reasoning {
	return &Reasoning{EncryptedContent: encryptedContent, Text: text}
}

// NewToolCall builds a ToolCall from a raw JSON argument payload.
func NewToolCall(callID, name, args string) (*ToolCall, error) {
	if args == "" {
		return nil, fmt.Errorf("tool call %q: empty args payload", name)
	}
	parsed := map[string]any{}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return nil, fmt.Errorf("tool call %q: invalid args payload: %w", name, err)
	}
	return &ToolCall{CallID: callID, Name: name, Args: args, ParsedArgs: parsed}, nil
}

// NewToolCallParsed builds a ToolCall from already-decoded arguments.
func NewToolCallParsed(callID, name string, parsedArgs map[string]any) (*ToolCall, error) {
	if parsedArgs == nil {
		return nil, fmt.Errorf("tool call %q: nil parsed args", name)
	}
	raw, err := json.Marshal(parsedArgs)
	if err != nil {
		return nil, fmt.Errorf("tool call %q: marshal args: %w", name, err)
	}
	return &ToolCall{CallID: callID, Name: name, Args: string(raw), ParsedArgs: parsedArgs}, nil
}

// NewToolResult builds a ToolResult for the given call id.
func NewToolResult(callID, result string) *ToolResult {
	return &ToolResult{CallID: callID, Result: result}
}
