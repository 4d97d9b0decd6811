package toolset

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/oba/pkg/message"
)

func echoDefinition(name string) Definition {
	return Definition{
		Name:        name,
		Description: "echoes its input back",
		Parameters: []Parameter{
			{Name: "text", Type: "string", Description: "text to echo", Required: true},
		},
		Handler: func(_ context.Context, args map[string]any) (Output, error) {
			text, _ := args["text"].(string)
			return Output{Text: text}, nil
		},
	}
}

func mustCall(t *testing.T, name, args string) *message.ToolCall {
	t.Helper()
	call, err := message.NewToolCall("call_1", name, args)
	require.NoError(t, err)
	return call
}

func TestRegistry_Register(t *testing.T) {
	t.Run("should preserve registration order in specs", func(t *testing.T) {
		r, err := NewRegistry(zerolog.Nop(), echoDefinition("alpha"), echoDefinition("beta"), echoDefinition("gamma"))
		require.NoError(t, err)

		specs := r.Specs()
		require.Len(t, specs, 3)
		assert.Equal(t, "alpha", specs[0].Name)
		assert.Equal(t, "beta", specs[1].Name)
		assert.Equal(t, "gamma", specs[2].Name)
	})

	t.Run("should reject duplicate names", func(t *testing.T) {
		_, err := NewRegistry(zerolog.Nop(), echoDefinition("echo"), echoDefinition("echo"))
		assert.ErrorIs(t, err, ErrDuplicateTool)
	})

	t.Run("should reject definitions without a handler", func(t *testing.T) {
		r, err := NewRegistry(zerolog.Nop())
		require.NoError(t, err)

		err = r.Register(Definition{Name: "broken"})
		assert.Error(t, err)
	})

	t.Run("should expose a JSON schema object", func(t *testing.T) {
		r, err := NewRegistry(zerolog.Nop(), echoDefinition("echo"))
		require.NoError(t, err)

		spec := r.Specs()[0]
		assert.Equal(t, "object", spec.Schema["type"])
		assert.Equal(t, []string{"text"}, spec.Schema["required"])
	})
}

func TestRegistry_Invoke(t *testing.T) {
	ctx := context.Background()

	t.Run("should run the handler on valid arguments", func(t *testing.T) {
		r, err := NewRegistry(zerolog.Nop(), echoDefinition("echo"))
		require.NoError(t, err)

		result := r.Invoke(ctx, mustCall(t, "echo", `{"text":"hello"}`))

		assert.Equal(t, "call_1", result.CallID)
		assert.Equal(t, "hello", result.Result)
		assert.Zero(t, result.Cost)
	})

	t.Run("should report unknown tools as result text", func(t *testing.T) {
		r, err := NewRegistry(zerolog.Nop())
		require.NoError(t, err)

		result := r.Invoke(ctx, mustCall(t, "missing", `{}`))

		assert.Contains(t, result.Result, "'missing' is not registered")
	})

	t.Run("should report schema violations as result text", func(t *testing.T) {
		r, err := NewRegistry(zerolog.Nop(), echoDefinition("echo"))
		require.NoError(t, err)

		result := r.Invoke(ctx, mustCall(t, "echo", `{"text":42}`))

		assert.Contains(t, result.Result, "invalid arguments")
	})

	t.Run("should reject unexpected arguments", func(t *testing.T) {
		r, err := NewRegistry(zerolog.Nop(), echoDefinition("echo"))
		require.NoError(t, err)

		result := r.Invoke(ctx, mustCall(t, "echo", `{"text":"hi","extra":true}`))

		assert.Contains(t, result.Result, "invalid arguments")
	})

	t.Run("should report handler errors as result text", func(t *testing.T) {
		def := echoDefinition("faulty")
		def.Handler = func(_ context.Context, _ map[string]any) (Output, error) {
			return Output{}, errors.New("backend unreachable")
		}
		r, err := NewRegistry(zerolog.Nop(), def)
		require.NoError(t, err)

		result := r.Invoke(ctx, mustCall(t, "faulty", `{"text":"x"}`))

		assert.Contains(t, result.Result, "call failed")
		assert.Contains(t, result.Result, "backend unreachable")
	})

	t.Run("should recover handler panics", func(t *testing.T) {
		def := echoDefinition("panics")
		def.Handler = func(_ context.Context, _ map[string]any) (Output, error) {
			panic("tool exploded")
		}
		r, err := NewRegistry(zerolog.Nop(), def)
		require.NoError(t, err)

		result := r.Invoke(ctx, mustCall(t, "panics", `{"text":"x"}`))

		assert.Contains(t, result.Result, "panic")
		assert.Contains(t, result.Result, "tool exploded")
	})

	t.Run("should carry the tool cost into the result", func(t *testing.T) {
		def := echoDefinition("paid")
		def.Handler = func(_ context.Context, _ map[string]any) (Output, error) {
			return Output{Text: "done", Cost: 0.015}, nil
		}
		r, err := NewRegistry(zerolog.Nop(), def)
		require.NoError(t, err)

		result := r.Invoke(ctx, mustCall(t, "paid", `{"text":"x"}`))

		assert.InDelta(t, 0.015, result.Cost, 1e-9)
	})
}
