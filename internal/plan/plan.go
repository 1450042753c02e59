// Package plan implements the plan-mode state machine: a task can be
// asked to produce a plan before any code is touched, and a human approves
// or rejects that plan before the worker loop is allowed to execute it.
package plan

import (
	"context"
	"fmt"

	"github.com/jhinpan/cc-boss/internal/apperr"
	"github.com/jhinpan/cc-boss/internal/event"
	"github.com/jhinpan/cc-boss/internal/model"
)

// planPromptTemplate asks the agent to produce a plan only, never touching
// the working tree.
const planPromptTemplate = `You are planning the following task. Do NOT make any code changes yet.

Task: %s

Produce a short, numbered, step-by-step plan describing exactly what you
would do to complete this task. Stop after the plan — do not start
implementing.`

// taskStore is the subset of the task store the plan manager needs.
type taskStore interface {
	Enqueue(prompt string, priority int) (int64, error)
	SetPlanning(id int64) error
	SetPlan(id int64, plan string) error
	Settle(id int64, status model.Status, metrics model.SettleMetrics) error
}

// agentRunner drafts a plan by running the agent once, with no worktree —
// drafting a plan must never touch the tree.
type agentRunner interface {
	Run(ctx context.Context, prompt, workspacePath, workspaceName string) (<-chan event.Event, error)
}

// Manager drafts, approves, and rejects task plans.
type Manager struct {
	store  taskStore
	runner agentRunner
}

// New builds a plan Manager.
func New(store taskStore, runner agentRunner) *Manager {
	return &Manager{store: store, runner: runner}
}

// CreatePlan moves task from pending to planning, asks the agent to draft a
// plan against repoPath (no worktree), and records the resulting text,
// landing the task in status planned.
func (m *Manager) CreatePlan(ctx context.Context, task *model.Task, repoPath string) error {
	if task.Status != model.StatusPending {
		return apperr.Validation(fmt.Sprintf("task %d is not pending (status=%s)", task.ID, task.Status))
	}

	if err := m.store.SetPlanning(task.ID); err != nil {
		return err
	}

	prompt := fmt.Sprintf(planPromptTemplate, task.Prompt)
	events, err := m.runner.Run(ctx, prompt, repoPath, "")
	if err != nil {
		return apperr.Wrap(err, "failed to start plan-drafting run")
	}

	var collected []event.Event
	for evt := range events {
		collected = append(collected, evt)
	}
	result := event.Fold(collected)

	planText := result.Text
	if planText == "" {
		planText = "No plan generated."
	}

	return m.store.SetPlan(task.ID, planText)
}

// Approve enqueues a new execution task embedding the approved plan and the
// original prompt, at priority+10 over the original, then settles the
// original task done — the plan itself never runs in place, a fresh task
// does.
func (m *Manager) Approve(task *model.Task) (int64, error) {
	if task.Status != model.StatusPlanned {
		return 0, apperr.Validation(fmt.Sprintf("task %d has no plan awaiting approval (status=%s)", task.ID, task.Status))
	}

	plan := ""
	if task.Plan != nil {
		plan = *task.Plan
	}
	execPrompt := fmt.Sprintf("%s\n\nApproved plan:\n%s", task.Prompt, plan)

	id, err := m.store.Enqueue(execPrompt, task.Priority+10)
	if err != nil {
		return 0, err
	}

	if err := m.store.Settle(task.ID, model.StatusDone, model.SettleMetrics{
		ResultSummary: "Plan approved and enqueued for execution",
	}); err != nil {
		return 0, err
	}
	return id, nil
}

// Reject discards a planned task: it moves straight to failed without ever
// running.
func (m *Manager) Reject(task *model.Task) error {
	if task.Status != model.StatusPlanned {
		return apperr.Validation(fmt.Sprintf("task %d has no plan to reject (status=%s)", task.ID, task.Status))
	}
	return m.store.Settle(task.ID, model.StatusFailed, model.SettleMetrics{Error: "Plan rejected"})
}
