package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/oba/pkg/message"
)

func TestDollarCost(t *testing.T) {
	t.Run("should price uncached input, cached input and output separately", func(t *testing.T) {
		u := message.Usage{
			InputTokens:       1_000_000,
			InputTokensCached: 400_000,
			OutputTokens:      100_000,
		}

		// claude-sonnet-4-5: $3.00 in, $0.30 cached in, $15.00 out per 1M
		cost, err := DollarCost("claude-sonnet-4-5", u)

		require.NoError(t, err)
		// 600k * 3.00 + 400k * 0.30 + 100k * 15.00 over 1M
		assert.InDelta(t, 1.8+0.12+1.5, cost, 1e-9)
	})

	t.Run("should cost nothing for zero usage", func(t *testing.T) {
		cost, err := DollarCost("gpt-5-mini", message.Usage{})
		require.NoError(t, err)
		assert.Zero(t, cost)
	})

	t.Run("should fail for unknown model ids", func(t *testing.T) {
		_, err := DollarCost("gpt-2", message.Usage{InputTokens: 10})
		assert.Error(t, err)
	})
}

func TestKnownModels(t *testing.T) {
	ids := KnownModels()

	assert.Contains(t, ids, "claude-opus-4-1")
	assert.Contains(t, ids, "gpt-5")
	assert.True(t, KnownModel("gpt-4.1"))
	assert.False(t, KnownModel("llama-3"))
}

func TestProvider(t *testing.T) {
	assert.Equal(t, "anthropic", Provider("claude-sonnet-4-5"))
	assert.Equal(t, "openai", Provider("gpt-5-mini"))
	assert.Equal(t, "", Provider("gemini-2.5-pro"))
}
