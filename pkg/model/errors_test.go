package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{429, KindRateLimited},
		{401, KindUnauthorized},
		{403, KindUnauthorized},
		{408, KindTimeout},
		{400, KindInvalidRequest},
		{404, KindInvalidRequest},
		{422, KindInvalidRequest},
		{500, KindTransportFailure},
		{502, KindTransportFailure},
		{529, KindTransportFailure},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, classifyStatus(tt.status), "status %d", tt.status)
	}
}

func TestRetryable(t *testing.T) {
	t.Run("should retry rate limits", func(t *testing.T) {
		err := &BackendError{Kind: KindRateLimited, Provider: "anthropic", Status: 429}
		assert.True(t, Retryable(err))
	})

	t.Run("should retry transport failures", func(t *testing.T) {
		err := &BackendError{Kind: KindTransportFailure, Provider: "openai", Status: 503}
		assert.True(t, Retryable(err))
	})

	t.Run("should retry wrapped backend errors", func(t *testing.T) {
		err := fmt.Errorf("call failed: %w",
			&BackendError{Kind: KindRateLimited, Provider: "openai"})
		assert.True(t, Retryable(err))
	})

	t.Run("should not retry invalid requests", func(t *testing.T) {
		err := &BackendError{Kind: KindInvalidRequest, Provider: "anthropic", Status: 400}
		assert.False(t, Retryable(err))
	})

	t.Run("should not retry auth failures", func(t *testing.T) {
		err := &BackendError{Kind: KindUnauthorized, Provider: "anthropic", Status: 401}
		assert.False(t, Retryable(err))
	})

	t.Run("should not retry plain errors", func(t *testing.T) {
		assert.False(t, Retryable(errors.New("something else")))
	})
}

func TestWrapTransport(t *testing.T) {
	t.Run("should classify deadline expiry as timeout", func(t *testing.T) {
		err := wrapTransport("anthropic", context.DeadlineExceeded)
		assert.Equal(t, KindTimeout, err.Kind)
	})

	t.Run("should classify everything else as transport failure", func(t *testing.T) {
		err := wrapTransport("openai", errors.New("connection reset"))
		assert.Equal(t, KindTransportFailure, err.Kind)
	})
}

func TestBackendError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &BackendError{Kind: KindTransportFailure, Provider: "openai", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "transport_failure")
}
