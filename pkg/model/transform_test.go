package model

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/oba/pkg/message"
)

func mustToolCall(t *testing.T, callID, name, args string) *message.ToolCall {
	t.Helper()
	call, err := message.NewToolCall(callID, name, args)
	require.NoError(t, err)
	return call
}

func TestTransformAnthropicMessage(t *testing.T) {
	t.Run("should map a user message to a text block", func(t *testing.T) {
		out, err := transformAnthropicMessage(message.NewContent(message.RoleUser, "hello"))
		require.NoError(t, err)

		param, ok := out.(anthropic.MessageParam)
		require.True(t, ok)
		assert.Equal(t, anthropic.MessageParamRoleUser, param.Role)
		require.Len(t, param.Content, 1)
		require.NotNil(t, param.Content[0].OfText)
		assert.Equal(t, "hello", param.Content[0].OfText.Text)
	})

	t.Run("should map an assistant message to a text block", func(t *testing.T) {
		out, err := transformAnthropicMessage(message.NewContent(message.RoleAssistant, "sure"))
		require.NoError(t, err)

		param := out.(anthropic.MessageParam)
		assert.Equal(t, anthropic.MessageParamRoleAssistant, param.Role)
		require.Len(t, param.Content, 1)
		require.NotNil(t, param.Content[0].OfText)
		assert.Equal(t, "sure", param.Content[0].OfText.Text)
	})

	t.Run("should reject a mid-history system message", func(t *testing.T) {
		_, err := transformAnthropicMessage(message.NewContent(message.RoleSystem, "be brief"))
		assert.Error(t, err)
	})

	t.Run("should map reasoning to a thinking block with its signature", func(t *testing.T) {
		out, err := transformAnthropicMessage(message.NewReasoning("sig-abc", "considering options"))
		require.NoError(t, err)

		param := out.(anthropic.MessageParam)
		assert.Equal(t, anthropic.MessageParamRoleAssistant, param.Role)
		require.Len(t, param.Content, 1)
		require.NotNil(t, param.Content[0].OfThinking)
		assert.Equal(t, "sig-abc", param.Content[0].OfThinking.Signature)
		assert.Equal(t, "considering options", param.Content[0].OfThinking.Thinking)
	})

	t.Run("should map a tool call to a tool_use block with raw arguments", func(t *testing.T) {
		call := mustToolCall(t, "call_1", "read_note", `{"note_name":"inbox"}`)
		out, err := transformAnthropicMessage(call)
		require.NoError(t, err)

		param := out.(anthropic.MessageParam)
		assert.Equal(t, anthropic.MessageParamRoleAssistant, param.Role)
		require.Len(t, param.Content, 1)
		block := param.Content[0].OfToolUse
		require.NotNil(t, block)
		assert.Equal(t, "call_1", block.ID)
		assert.Equal(t, "read_note", block.Name)
		assert.JSONEq(t, `{"note_name":"inbox"}`, string(block.Input.(json.RawMessage)))
	})

	t.Run("should map a tool result to a user tool_result block", func(t *testing.T) {
		out, err := transformAnthropicMessage(message.NewToolResult("call_1", "note text"))
		require.NoError(t, err)

		param := out.(anthropic.MessageParam)
		assert.Equal(t, anthropic.MessageParamRoleUser, param.Role)
		require.Len(t, param.Content, 1)
		block := param.Content[0].OfToolResult
		require.NotNil(t, block)
		assert.Equal(t, "call_1", block.ToolUseID)
		require.Len(t, block.Content, 1)
		require.NotNil(t, block.Content[0].OfText)
		assert.Equal(t, "note text", block.Content[0].OfText.Text)
	})
}

func TestTransformOpenAIMessage(t *testing.T) {
	t.Run("should map each content role to its message shape", func(t *testing.T) {
		out, err := transformOpenAIMessage(message.NewContent(message.RoleSystem, "be brief"))
		require.NoError(t, err)
		system := out.(openai.ChatCompletionMessageParamUnion)
		require.NotNil(t, system.OfSystem)
		assert.Equal(t, "be brief", system.OfSystem.Content.OfString.Value)

		out, err = transformOpenAIMessage(message.NewContent(message.RoleUser, "hello"))
		require.NoError(t, err)
		user := out.(openai.ChatCompletionMessageParamUnion)
		require.NotNil(t, user.OfUser)
		assert.Equal(t, "hello", user.OfUser.Content.OfString.Value)

		out, err = transformOpenAIMessage(message.NewContent(message.RoleAssistant, "sure"))
		require.NoError(t, err)
		assistant := out.(openai.ChatCompletionMessageParamUnion)
		require.NotNil(t, assistant.OfAssistant)
		assert.Equal(t, "sure", assistant.OfAssistant.Content.OfString.Value)
	})

	t.Run("should map a tool call to an assistant message with tool_calls", func(t *testing.T) {
		call := mustToolCall(t, "call_1", "read_note", `{"note_name":"inbox"}`)
		out, err := transformOpenAIMessage(call)
		require.NoError(t, err)

		param := out.(openai.ChatCompletionMessageParamUnion)
		require.NotNil(t, param.OfAssistant)
		require.Len(t, param.OfAssistant.ToolCalls, 1)
		tc := param.OfAssistant.ToolCalls[0]
		assert.Equal(t, "call_1", tc.ID)
		assert.Equal(t, "read_note", tc.Function.Name)
		assert.JSONEq(t, `{"note_name":"inbox"}`, tc.Function.Arguments)
	})

	t.Run("should map a tool result to a tool message keyed by call id", func(t *testing.T) {
		out, err := transformOpenAIMessage(message.NewToolResult("call_1", "note text"))
		require.NoError(t, err)

		param := out.(openai.ChatCompletionMessageParamUnion)
		require.NotNil(t, param.OfTool)
		assert.Equal(t, "call_1", param.OfTool.ToolCallID)
		assert.Equal(t, "note text", param.OfTool.Content.OfString.Value)
	})
}
