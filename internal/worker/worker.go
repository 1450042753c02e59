// Package worker implements one fleet slot's poll-claim-run-settle loop: a
// worker repeatedly claims the next pending task, runs the agent against
// its own worktree, folds the resulting events into a outcome, diagnoses
// it, and settles the task — enqueueing a follow-up fix task when the run
// needs one.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jhinpan/cc-boss/internal/bus"
	"github.com/jhinpan/cc-boss/internal/diagnose"
	"github.com/jhinpan/cc-boss/internal/event"
	"github.com/jhinpan/cc-boss/internal/logging"
	"github.com/jhinpan/cc-boss/internal/model"
	"github.com/jhinpan/cc-boss/internal/progress"
)

// pollInterval is how long an idle worker waits before checking for a new
// pending task again.
const pollInterval = 2 * time.Second

// publishContentLimit caps the content published on the event bus per event;
// crashErrorLimit caps the error text recorded for a recovered panic.
const (
	publishContentLimit = 300
	crashErrorLimit     = 500
)

// taskStore is the subset of the store a worker loop needs.
type taskStore interface {
	Claim(workerID int) (*model.Task, error)
	Enqueue(prompt string, priority int) (int64, error)
	Settle(id int64, status model.Status, metrics model.SettleMetrics) error
	LogEvent(taskID int64, eventType, content, rawJSON string) error
}

// agentRunner is the subset of the runner a worker loop needs.
type agentRunner interface {
	Run(ctx context.Context, prompt, workspacePath, workspaceName string) (<-chan event.Event, error)
}

// EventPublisher is the subset of the event bus a worker loop needs.
type EventPublisher interface {
	Publish(taskID int64, eventType, content string)
}

// Config configures one worker loop.
type Config struct {
	WorkerID      int
	RepoPath      string
	WorkspaceName string
	ProgressFile  string
}

// Loop is a single fleet slot. Run blocks until ctx is cancelled.
type Loop struct {
	cfg    Config
	store  taskStore
	runner agentRunner
	bus    EventPublisher
	logger *logging.Logger

	currentTaskID int64
	hasCurrent    bool
}

// New builds a worker Loop.
func New(cfg Config, store taskStore, runner agentRunner, eventBus EventPublisher, log *logging.Logger) *Loop {
	return &Loop{
		cfg:    cfg,
		store:  store,
		runner: runner,
		bus:    eventBus,
		logger: log.WithWorkerID(cfg.WorkerID),
	}
}

// Status reports this worker's current task, if any.
func (l *Loop) Status() model.WorkerStatus {
	status := model.WorkerStatus{WorkerID: l.cfg.WorkerID}
	if l.hasCurrent {
		id := l.currentTaskID
		status.CurrentTaskID = &id
		status.Running = true
	}
	return status
}

// Run polls for work until ctx is cancelled, processing one task at a time.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := l.store.Claim(l.cfg.WorkerID)
		if err != nil {
			l.logger.Error("claim failed", zap.Error(err))
			l.sleep(ctx)
			continue
		}
		if task == nil {
			l.sleep(ctx)
			continue
		}

		l.process(ctx, task)
	}
}

func (l *Loop) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(pollInterval):
	}
}

// process runs exactly one claimed task through to a terminal status. Any
// panic recovered here (the "catch-all exception handler" of the original
// loop) still settles the task failed instead of leaving it stuck running
// forever.
func (l *Loop) process(ctx context.Context, task *model.Task) {
	l.currentTaskID = task.ID
	l.hasCurrent = true
	defer func() { l.hasCurrent = false }()

	logger := l.logger.WithTaskID(task.ID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker loop panicked while processing task", zap.Any("panic", r))
			msg := fmt.Sprintf("worker crashed: %v", r)
			if runes := []rune(msg); len(runes) > crashErrorLimit {
				msg = string(runes[:crashErrorLimit])
			}
			_ = l.store.Settle(task.ID, model.StatusFailed, model.SettleMetrics{
				Error: msg, DurationS: time.Since(start).Seconds(),
			})
		}
	}()

	prompt := l.buildPrompt(task)

	events, err := l.runner.Run(ctx, prompt, l.cfg.RepoPath, l.cfg.WorkspaceName)
	if err != nil {
		logger.Error("failed to start agent run", zap.Error(err))
		_ = l.store.Settle(task.ID, model.StatusFailed, model.SettleMetrics{
			Error: err.Error(), DurationS: time.Since(start).Seconds(),
		})
		return
	}

	var collected []event.Event
	for evt := range events {
		collected = append(collected, evt)
		l.persistAndPublish(task.ID, evt)
	}

	result := event.Fold(collected)
	diagnosis := diagnose.Diagnose(result)
	duration := time.Since(start).Seconds()

	metrics := model.SettleMetrics{
		ResultSummary: result.Text,
		CostUSD:       result.CostUSD,
		TokensIn:      result.TokensIn,
		TokensOut:     result.TokensOut,
		DurationS:     duration,
	}

	if diagnosis.Status == diagnose.StatusOK {
		if err := l.store.Settle(task.ID, model.StatusDone, metrics); err != nil {
			logger.Error("failed to settle completed task", zap.Error(err))
		}
	} else {
		metrics.Error = diagnosis.ErrorSummary
		if err := l.store.Settle(task.ID, model.StatusFailed, metrics); err != nil {
			logger.Error("failed to settle failed task", zap.Error(err))
		}
		if _, err := l.store.Enqueue(diagnosis.FixPrompt, task.Priority+1); err != nil {
			logger.Error("failed to enqueue fix task", zap.Error(err))
		}
	}

	if l.cfg.ProgressFile != "" {
		settled := *task
		settled.Status = model.StatusDone
		if diagnosis.Status != diagnose.StatusOK {
			settled.Status = model.StatusFailed
		}
		settled.ResultSummary = &result.Text
		if err := progress.Append(l.cfg.ProgressFile, &settled); err != nil {
			logger.Warn("failed to append progress entry", zap.Error(err))
		}
	}
}

func (l *Loop) buildPrompt(task *model.Task) string {
	base := task.Prompt
	if task.Plan != nil && *task.Plan != "" {
		base = fmt.Sprintf("%s\n\nFollow this approved plan:\n%s", base, *task.Plan)
	}
	return progress.InjectPrompt(base)
}

func (l *Loop) persistAndPublish(taskID int64, evt event.Event) {
	raw := ""
	if evt.Raw != nil {
		if b, err := json.Marshal(evt.Raw); err == nil {
			raw = string(b)
		}
	}
	content := evt.Content
	if evt.Type == event.TypeToolUse {
		content = evt.ToolName
	}
	if err := l.store.LogEvent(taskID, string(evt.Type), content, raw); err != nil {
		l.logger.Warn("failed to persist run log", zap.Error(err))
	}
	if l.bus != nil {
		published := content
		if r := []rune(published); len(r) > publishContentLimit {
			published = string(r[:publishContentLimit])
		}
		l.bus.Publish(taskID, string(evt.Type), published)
	}
}

var _ EventPublisher = (*bus.Bus)(nil)
