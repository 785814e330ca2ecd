package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObjectBareJSON(t *testing.T) {
	got, ok := ExtractObject(`{"action":"BUY","confidence":0.8}`)
	require.True(t, ok)
	assert.JSONEq(t, `{"action":"BUY","confidence":0.8}`, got)
}

func TestExtractObjectFromFencedBlock(t *testing.T) {
	raw := "Here is my analysis:\n```json\n{\"action\": \"SELL\"}\n```\nHope that helps."
	got, ok := ExtractObject(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"action":"SELL"}`, got)
}

func TestExtractObjectFenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"action\": \"HOLD\"}\n```"
	got, ok := ExtractObject(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"action":"HOLD"}`, got)
}

func TestExtractObjectProseWrapped(t *testing.T) {
	raw := `Based on momentum I recommend {"action": "BUY", "confidence": 0.7} for this cycle.`
	got, ok := ExtractObject(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"action":"BUY","confidence":0.7}`, got)
}

func TestExtractObjectBracesInsideStrings(t *testing.T) {
	raw := `{"reasoning": "breakout above {resistance}", "action": "BUY"}`
	got, ok := ExtractObject(raw)
	require.True(t, ok)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, "breakout above {resistance}", parsed["reasoning"])
}

func TestExtractObjectNestedObjects(t *testing.T) {
	raw := `noise {"outer": {"inner": {"deep": 1}}, "action": "HOLD"} trailing {`
	got, ok := ExtractObject(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"outer":{"inner":{"deep":1}},"action":"HOLD"}`, got)
}

func TestExtractObjectEscapedQuotes(t *testing.T) {
	raw := `{"reasoning": "the \"golden cross\" held", "action": "BUY"}`
	got, ok := ExtractObject(raw)
	require.True(t, ok)
	assert.Contains(t, got, `\"golden cross\"`)
}

func TestExtractObjectFailures(t *testing.T) {
	for _, raw := range []string{"", "   ", "no json here", `{"unterminated": true`} {
		_, ok := ExtractObject(raw)
		assert.False(t, ok, "input %q must not yield an object", raw)
	}
}

func TestPrettyReindentsValidJSON(t *testing.T) {
	got := Pretty(`{"a":1}`)
	assert.Equal(t, "{\n  \"a\": 1\n}", got)
}

func TestPrettyLeavesInvalidInputAlone(t *testing.T) {
	assert.Equal(t, "not json", Pretty("not json"))
	assert.Equal(t, "", Pretty("   "))
}
