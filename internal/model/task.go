// Package model holds the data types shared across the store, worker loop,
// plan manager, and HTTP layer — the Task and its status machine.
package model

import "time"

// Status is one of the task lifecycle states from the state machine in the
// component design for the Worker Loop and Plan Manager.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPlanning Status = "planning"
	StatusPlanned  Status = "planned"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

// Task is a user-submitted unit of work addressed by id.
//
// Invariants (enforced by the store, not by this type):
//   - status = running => worker_id set and started_at set.
//   - status in {done, failed} => finished_at set and >= started_at.
//   - status = planned => plan set.
//   - a running task is owned by exactly one worker.
//   - status is a monotone walk; no backward edges.
type Task struct {
	ID            int64      `db:"id" json:"id"`
	Prompt        string     `db:"prompt" json:"prompt"`
	Status        Status     `db:"status" json:"status"`
	Priority      int        `db:"priority" json:"priority"`
	WorkerID      *int       `db:"worker_id" json:"worker_id,omitempty"`
	Plan          *string    `db:"plan" json:"plan,omitempty"`
	ResultSummary *string    `db:"result_summary" json:"result_summary,omitempty"`
	Error         *string    `db:"error" json:"error,omitempty"`
	CostUSD       *float64   `db:"cost_usd" json:"cost_usd,omitempty"`
	TokensIn      *int       `db:"tokens_in" json:"tokens_in,omitempty"`
	TokensOut     *int       `db:"tokens_out" json:"tokens_out,omitempty"`
	DurationS     *float64   `db:"duration_s" json:"duration_s,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	StartedAt     *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt    *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// RunLogEntry is a per-task append-only record of one ingested agent event.
type RunLogEntry struct {
	ID        int64     `db:"id" json:"id"`
	TaskID    int64     `db:"task_id" json:"task_id"`
	EventType string    `db:"event_type" json:"event_type"`
	Content   string    `db:"content" json:"content"`
	RawJSON   string    `db:"raw_json" json:"raw_json"`
	Timestamp time.Time `db:"ts" json:"ts"`
}

// WorkerStatus is a point-in-time snapshot of one worker slot; never
// persisted.
type WorkerStatus struct {
	WorkerID      int   `json:"worker_id"`
	CurrentTaskID *int64 `json:"current_task_id,omitempty"`
	Running       bool  `json:"running"`
}

// SettleMetrics bundles the numeric outcome of a run, applied atomically on
// terminal transition.
type SettleMetrics struct {
	ResultSummary string
	Error         string
	CostUSD       float64
	TokensIn      int
	TokensOut     int
	DurationS     float64
}
