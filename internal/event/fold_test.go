package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldAggregatesTextErrorsAndMetrics(t *testing.T) {
	events := []Event{
		{Type: TypeAssistant, Content: "Step 1"},
		{Type: TypeToolResult, Content: "Boom", IsError: true},
		{Type: TypeAssistant, Content: "Step 2"},
		{Type: TypeResult, CostUSD: 0.02, TokensIn: 500, TokensOut: 200},
	}

	result := Fold(events)

	assert.Contains(t, result.Text, "Step 1")
	assert.Contains(t, result.Text, "Step 2")
	assert.Len(t, result.Errors, 1)
	assert.InDelta(t, 0.02, result.CostUSD, 1e-9)
	assert.Equal(t, 500, result.TokensIn)
	assert.Equal(t, 200, result.TokensOut)
}

func TestFoldNoResultEventYieldsZeroMetrics(t *testing.T) {
	events := []Event{{Type: TypeAssistant, Content: "only text"}}
	result := Fold(events)
	assert.Zero(t, result.CostUSD)
	assert.Zero(t, result.TokensIn)
	assert.Zero(t, result.TokensOut)
}

func TestFoldLaterResultWithoutFieldsDoesNotClobber(t *testing.T) {
	events := []Event{
		{Type: TypeResult, CostUSD: 1.5, TokensIn: 10, TokensOut: 20},
		{Type: TypeResult},
	}
	result := Fold(events)
	assert.InDelta(t, 1.5, result.CostUSD, 1e-9)
	assert.Equal(t, 10, result.TokensIn)
	assert.Equal(t, 20, result.TokensOut)
}

func TestFoldIdempotentOnEmptyAppend(t *testing.T) {
	events := []Event{{Type: TypeAssistant, Content: "x"}}
	a := Fold(events)
	b := Fold(append(append([]Event{}, events...)))
	assert.Equal(t, a.Text, b.Text)
	assert.Equal(t, a.CostUSD, b.CostUSD)
}
