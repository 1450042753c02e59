// Package diagnose inspects a finished run's folded result and decides
// whether the task succeeded outright or needs a follow-up fix pass.
package diagnose

import (
	"fmt"
	"strings"

	"github.com/jhinpan/cc-boss/internal/event"
)

// Status is the diagnosis outcome.
type Status string

const (
	// StatusOK means no error events were observed during the run.
	StatusOK Status = "ok"
	// StatusNeedsFix means at least one is_error event was observed; a
	// follow-up task should be enqueued to address it.
	StatusNeedsFix Status = "needs_fix"
)

// errorSummaryLimit and maxErrorsInSummary bound how much of a run's error
// output gets folded into the next fix prompt.
const (
	errorSummaryLimit  = 200
	maxErrorsInSummary = 5
)

// Diagnosis is the verdict for one finished run.
type Diagnosis struct {
	Status       Status
	ErrorSummary string
	FixPrompt    string
}

// Diagnose inspects result.Events for any event with IsError set and
// returns StatusOK when none are found, or StatusNeedsFix with a summary and
// ready-to-enqueue fix prompt otherwise. It never inspects result.Text or
// the cost/token metrics — only whether the agent itself reported errors,
// regardless of whether the erroring event carried any content.
func Diagnose(result event.RunResult) Diagnosis {
	var errs []string
	for _, e := range result.Events {
		if e.IsError {
			errs = append(errs, e.Content)
		}
	}
	if len(errs) == 0 {
		return Diagnosis{Status: StatusOK}
	}

	n := len(errs)
	if n > maxErrorsInSummary {
		n = maxErrorsInSummary
	}

	truncated := make([]string, n)
	for i := 0; i < n; i++ {
		e := errs[i]
		if e == "" {
			e = "(no error detail)"
		}
		if r := []rune(e); len(r) > errorSummaryLimit {
			e = string(r[:errorSummaryLimit])
		}
		truncated[i] = e
	}
	summary := strings.Join(truncated, "\n")

	return Diagnosis{
		Status:       StatusNeedsFix,
		ErrorSummary: summary,
		FixPrompt: fmt.Sprintf(
			"The previous run hit the following error(s):\n\n%s\n\n"+
				"Fix the underlying issue(s) and re-check PROGRESS.md for the original task context.",
			summary,
		),
	}
}
