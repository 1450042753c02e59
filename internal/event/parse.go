package event

import (
	"encoding/json"
	"strings"
)

// Parse decodes one JSON object (one line of agent stdout) into a normalized
// Event. It returns an error, and no Event, when raw is not valid JSON, is
// a JSON array, string, number or boolean, or carries one of the fields Parse reads (type,
// message, content_block, delta, name, tool_name, input, tool_input,
// is_error, result, usage, cost_usd, cost) with a JSON type other than the
// one it decodes that field as; the agent runner skips such lines.
func Parse(raw []byte) (Event, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Event{}, err
	}

	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap) // best-effort; only used for persistence

	evt := Event{
		Type: normalizeType(rec.Type),
		Raw:  rawMap,
	}

	switch rec.Type {
	case "assistant":
		evt.Content = assistantText(rec)
	case "content_block_delta":
		if rec.Delta != nil {
			evt.Content = rec.Delta.Text
		}
	case "tool_use":
		evt.ToolName = firstNonEmpty(rec.Name, rec.ToolName)
		evt.ToolInput = rec.Input
		if evt.ToolInput == nil {
			evt.ToolInput = rec.ToolInput
		}
		if evt.ToolInput == nil {
			evt.ToolInput = map[string]any{}
		}
	case "tool_result":
		evt.Content = stringifyEither(rec.Content, rec.Output)
		evt.IsError = rec.IsError
	case "result":
		evt.Content = rec.Result
		if rec.Usage != nil {
			evt.TokensIn = rec.Usage.InputTokens
			evt.TokensOut = rec.Usage.OutputTokens
		}
		if rec.CostUSD != nil {
			evt.CostUSD = *rec.CostUSD
		} else if rec.Cost != nil {
			evt.CostUSD = *rec.Cost
		}
	}

	return evt, nil
}

// normalizeType preserves every record type verbatim into the Event.Type
// field except the four kinds the parse contract specifically recognizes,
// which keep their own constant spelling. content_block_delta is preserved
// as-is per the parse contract ("type is preserved as-is").
func normalizeType(raw string) Type {
	switch raw {
	case "assistant":
		return TypeAssistant
	case "tool_use":
		return TypeToolUse
	case "tool_result":
		return TypeToolResult
	case "result":
		return TypeResult
	default:
		return Type(raw)
	}
}

// assistantText concatenates, space-joined, the text fields of every
// content-array item whose inner type is "text". Falls back to a bare
// content_block object carrying a text field.
func assistantText(rec record) string {
	if rec.Message != nil {
		var parts []string
		for _, p := range rec.Message.Content {
			if p.Type == "text" && p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
		return strings.Join(parts, " ")
	}
	if rec.ContentBlock != nil {
		return rec.ContentBlock.Text
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// stringifyEither stringifies the first non-empty raw JSON value: a JSON
// string decodes to its bare contents; anything else (object, array,
// number) is rendered as its JSON text.
func stringifyEither(vals ...json.RawMessage) string {
	for _, v := range vals {
		if len(v) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
		return string(v)
	}
	return ""
}
