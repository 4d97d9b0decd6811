package memory

import (
	"encoding/json"
	"fmt"

	"github.com/harun/oba/pkg/message"
)

// Messages are stored as a typed JSON envelope so every variant round-trips
// exactly through the durable store.
const (
	typeContent    = "content"
	typeReasoning  = "reasoning"
	typeToolCall   = "tool_call"
	typeToolResult = "tool_result"
)

type envelope struct {
	Type             string  `json:"type"`
	Role             string  `json:"role,omitempty"`
	Text             string  `json:"text,omitempty"`
	EncryptedContent string  `json:"encrypted_content,omitempty"`
	CallID           string  `json:"call_id,omitempty"`
	Name             string  `json:"name,omitempty"`
	Args             string  `json:"args,omitempty"`
	Result           string  `json:"result,omitempty"`
	Cost             float64 `json:"cost,omitempty"`
}

func encodeMessage(msg message.Message) ([]byte, error) {
	var env envelope
	switch m := msg.(type) {
	case *message.Content:
		env = envelope{Type: typeContent, Role: string(m.Role), Text: m.Text}
	case *message.Reasoning:
		env = envelope{Type: typeReasoning, EncryptedContent: m.EncryptedContent, Text: m.Text}
	case *message.ToolCall:
		env = envelope{Type: typeToolCall, CallID: m.CallID, Name: m.Name, Args: m.Args}
	case *message.ToolResult:
		env = envelope{Type: typeToolResult, CallID: m.CallID, Result: m.Result, Cost: m.Cost}
	default:
		return nil, fmt.Errorf("invalid message type %T", msg)
	}
	return json.Marshal(env)
}

func decodeMessage(payload []byte) (message.Message, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode stored message: %w", err)
	}

	switch env.Type {
	case typeContent:
		return message.NewContent(message.Role(env.Role), env.Text), nil
	case typeReasoning:
		return message.NewReasoning(env.EncryptedContent, env.Text), nil
	case typeToolCall:
		return message.NewToolCall(env.CallID, env.Name, env.Args)
	case typeToolResult:
		result := message.NewToolResult(env.CallID, env.Result)
		result.Cost = env.Cost
		return result, nil
	}
	return nil, fmt.Errorf("unknown stored message type %q", env.Type)
}
