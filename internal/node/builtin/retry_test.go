package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/workflow/internal/node"
)

func TestRetry_Validate(t *testing.T) {
	h := NewRetry()

	assert.NoError(t, h.Validate(json.RawMessage(`{"max_attempts":3,"initial_delay_seconds":1}`)))
	assert.Error(t, h.Validate(json.RawMessage(`{"initial_delay_seconds":1}`)), "max_attempts is required")
	assert.Error(t, h.Validate(json.RawMessage(`{"max_attempts":3,"initial_delay_seconds":5,"max_delay_seconds":1}`)),
		"max_delay_seconds below initial_delay_seconds must be rejected")
}

func TestRetry_Execute_PassesInputThrough(t *testing.T) {
	h := NewRetry()
	nctx := &node.Context{Inputs: map[string]any{"default": map[string]any{"v": float64(1)}}}

	out, err := h.Execute(context.Background(), nctx, json.RawMessage(`{"max_attempts":3,"initial_delay_seconds":1}`))

	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, map[string]any{"v": float64(1)}, out.Data)
}

func TestDecodeRetryParams_DefaultsMultiplier(t *testing.T) {
	p, err := DecodeRetryParams(json.RawMessage(`{"max_attempts":4,"initial_delay_seconds":2}`))
	require.NoError(t, err)
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 2.0, p.InitialDelay)
	assert.Equal(t, 2.0, p.Multiplier)
}

func TestDecodeRetryParams_HonoursExplicitMultiplier(t *testing.T) {
	p, err := DecodeRetryParams(json.RawMessage(`{"max_attempts":4,"initial_delay_seconds":2,"multiplier":3}`))
	require.NoError(t, err)
	assert.Equal(t, 3.0, p.Multiplier)
}
