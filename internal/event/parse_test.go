package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssistantText(t *testing.T) {
	raw := []byte(`{"type":"assistant","message":{"content":[{"type":"text","text":"Hello world"}]}}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeAssistant, evt.Type)
	assert.Equal(t, "Hello world", evt.Content)
	assert.False(t, evt.IsError)
}

func TestParseAssistantContentBlockFallback(t *testing.T) {
	raw := []byte(`{"type":"assistant","content_block":{"text":"partial text"}}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "partial text", evt.Content)
}

func TestParseContentBlockDelta(t *testing.T) {
	raw := []byte(`{"type":"content_block_delta","delta":{"text":"incremental"}}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.EqualValues(t, "content_block_delta", evt.Type)
	assert.Equal(t, "incremental", evt.Content)
}

func TestParseToolUse(t *testing.T) {
	raw := []byte(`{"type":"tool_use","name":"Read","input":{"path":"main.go"}}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeToolUse, evt.Type)
	assert.Equal(t, "Read", evt.ToolName)
	assert.Equal(t, "main.go", evt.ToolInput["path"])
}

func TestParseToolUseFallbackKeys(t *testing.T) {
	raw := []byte(`{"type":"tool_use","tool_name":"Write","tool_input":{"path":"x.go"}}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Write", evt.ToolName)
	assert.Equal(t, "x.go", evt.ToolInput["path"])
}

func TestParseToolResultError(t *testing.T) {
	raw := []byte(`{"type":"tool_result","content":"File not found","is_error":true}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, evt.IsError)
	assert.Contains(t, evt.Content, "not found")
}

func TestParseToolResultOutputFallback(t *testing.T) {
	raw := []byte(`{"type":"tool_result","output":"ok"}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "ok", evt.Content)
	assert.False(t, evt.IsError)
}

func TestParseResult(t *testing.T) {
	raw := []byte(`{"type":"result","result":"done","usage":{"input_tokens":500,"output_tokens":200},"cost_usd":0.02}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeResult, evt.Type)
	assert.Equal(t, "done", evt.Content)
	assert.Equal(t, 500, evt.TokensIn)
	assert.Equal(t, 200, evt.TokensOut)
	assert.InDelta(t, 0.02, evt.CostUSD, 1e-9)
}

func TestParseResultCostFallback(t *testing.T) {
	raw := []byte(`{"type":"result","result":"done","cost":0.5}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, evt.CostUSD, 1e-9)
}

func TestParseUnknownTypePreservedVerbatim(t *testing.T) {
	raw := []byte(`{"type":"system","session_id":"abc"}`)
	evt, err := Parse(raw)
	require.NoError(t, err)
	assert.EqualValues(t, "system", evt.Type)
	assert.Empty(t, evt.Content)
}
