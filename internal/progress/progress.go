// Package progress injects a standing instruction into every task prompt
// asking the agent to keep a shared PROGRESS.md up to date, and provides a
// best-effort fallback append for when the agent doesn't.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/jhinpan/cc-boss/internal/model"
)

// injectionSuffix is appended to every task prompt sent to the agent.
const injectionSuffix = `

---
Before finishing, update PROGRESS.md in the repository root with a brief
note of what you did and why, so the next run (which may be a different
worker, with no memory of this one) has context. Append, don't rewrite,
existing entries.`

// InjectPrompt appends the standing progress instruction to a task prompt.
func InjectPrompt(prompt string) string {
	return prompt + injectionSuffix
}

// Append best-effort appends a markdown entry describing one finished task
// to progressPath. Errors are not fatal to the worker loop — a failure to
// write PROGRESS.md must never fail an otherwise-successful task — so
// callers should log, not propagate, any error Append returns.
func Append(progressPath string, task *model.Task) error {
	entry := formatEntry(task)

	f, err := os.OpenFile(progressPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open progress file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append progress entry: %w", err)
	}
	return nil
}

func formatEntry(task *model.Task) string {
	status := string(task.Status)
	summary := ""
	if task.ResultSummary != nil {
		summary = *task.ResultSummary
	}
	errText := ""
	if task.Error != nil {
		errText = *task.Error
	}

	ts := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("\n## [%s] Task #%d (%s)\n\n%s\n", ts, task.ID, status, task.Prompt)
	if summary != "" {
		entry += fmt.Sprintf("\nResult: %s\n", summary)
	}
	if errText != "" {
		entry += fmt.Sprintf("\nError: %s\n", errText)
	}
	return entry
}
