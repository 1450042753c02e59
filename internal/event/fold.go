package event

import "strings"

// Fold reduces an event sequence into a terminal RunResult.
//
//   - text: newline-joined non-empty assistant contents, in order.
//   - errors: contents of every event with IsError=true and non-empty
//     content, in order.
//   - cost_usd/tokens_in/tokens_out: taken from the most recent result
//     event; events without that field never overwrite a prior value with
//     zero, and if no result event was seen the metrics stay zero.
//
// Fold is pure and deterministic, and Fold(events) == Fold(append(events))
// when nothing is appended — it makes one pass with no hidden state.
func Fold(events []Event) RunResult {
	var texts []string
	var errs []string
	var costUSD float64
	var tokensIn, tokensOut int

	for _, e := range events {
		if e.Type == TypeAssistant && e.Content != "" {
			texts = append(texts, e.Content)
		}
		if e.IsError && e.Content != "" {
			errs = append(errs, e.Content)
		}
		if e.Type == TypeResult {
			// A later result event without one of these fields must not
			// clobber an earlier one's value with zero.
			if e.CostUSD != 0 {
				costUSD = e.CostUSD
			}
			if e.TokensIn != 0 {
				tokensIn = e.TokensIn
			}
			if e.TokensOut != 0 {
				tokensOut = e.TokensOut
			}
		}
	}

	return RunResult{
		Text:      strings.Join(texts, "\n"),
		CostUSD:   costUSD,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		Errors:    errs,
		Events:    events,
	}
}
