// Package store persists tasks and their run logs to SQLite via sqlx, and
// implements the atomic claim that hands a pending task to exactly one
// worker.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jhinpan/cc-boss/internal/apperr"
	"github.com/jhinpan/cc-boss/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	priority INTEGER NOT NULL DEFAULT 0,
	worker_id INTEGER,
	plan TEXT,
	result_summary TEXT,
	error TEXT,
	cost_usd REAL,
	tokens_in INTEGER,
	tokens_out INTEGER,
	duration_s REAL,
	created_at TIMESTAMP NOT NULL,
	started_at TIMESTAMP,
	finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_claim ON tasks(status, priority DESC, id);

CREATE TABLE IF NOT EXISTS run_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	event_type TEXT NOT NULL,
	content TEXT NOT NULL,
	raw_json TEXT NOT NULL DEFAULT '',
	ts TIMESTAMP NOT NULL,
	FOREIGN KEY (task_id) REFERENCES tasks(id)
);

CREATE INDEX IF NOT EXISTS idx_run_logs_task_id ON run_logs(task_id);
`

// logContentLimit truncates persisted event content to keep run_logs from
// growing unbounded on chatty tool output.
const logContentLimit = 500

// Store is a SQLite-backed task store. All writes go through a single
// *sqlx.DB handle; SQLite serializes writers itself, so no additional
// in-process locking is layered on top.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if absent) the SQLite database at path and ensures
// its schema exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, apperr.Store("failed to open task database", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, apperr.Store("failed to initialize task schema", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue inserts a new pending task and returns its assigned ID.
func (s *Store) Enqueue(prompt string, priority int) (int64, error) {
	if prompt == "" {
		return 0, apperr.Validation("prompt must not be empty")
	}

	res, err := s.db.Exec(
		s.db.Rebind(`INSERT INTO tasks (prompt, status, priority, created_at) VALUES (?, 'pending', ?, ?)`),
		prompt, priority, time.Now().UTC(),
	)
	if err != nil {
		return 0, apperr.Store("failed to enqueue task", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Store("failed to read inserted task id", err)
	}
	return id, nil
}

// Claim atomically assigns the highest-priority, lowest-id pending task to
// workerID, and returns it. It returns (nil, nil) when there is no pending
// task to claim — that is the expected steady state of an idle worker, not
// an error.
//
// The claim is race-free across concurrently polling workers: the
// conditional UPDATE's WHERE clause re-checks status='pending' at the row
// level, so if two workers race for the same row only one UPDATE affects a
// row. The loser's RowsAffected()==0 is treated as "someone else got it
// first" and the worker moves on rather than retrying the same row.
func (s *Store) Claim(workerID int) (*model.Task, error) {
	var id int64
	err := s.db.Get(&id, s.db.Rebind(`
		SELECT id FROM tasks
		WHERE status = 'pending'
		ORDER BY priority DESC, id ASC
		LIMIT 1
	`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("failed to find a pending task", err)
	}

	res, err := s.db.Exec(
		s.db.Rebind(`UPDATE tasks SET status = 'running', worker_id = ?, started_at = ? WHERE id = ? AND status = 'pending'`),
		workerID, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, apperr.Store("failed to claim task", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.Store("failed to read claim result", err)
	}
	if rows != 1 {
		// Another worker claimed this row between the SELECT and the UPDATE.
		return nil, nil
	}

	return s.Get(id)
}

// Get fetches one task by ID.
func (s *Store) Get(id int64) (*model.Task, error) {
	var row taskRow
	err := s.db.Get(&row, s.db.Rebind(`
		SELECT id, prompt, status, priority, worker_id, plan, result_summary, error,
		       cost_usd, tokens_in, tokens_out, duration_s, created_at, started_at, finished_at
		FROM tasks WHERE id = ?
	`), id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(fmt.Sprintf("task %d not found", id))
	}
	if err != nil {
		return nil, apperr.Store("failed to load task", err)
	}
	return row.toModel(), nil
}

// List returns the most recently created tasks, newest first, capped at
// limit (0 means no cap).
func (s *Store) List(limit int) ([]*model.Task, error) {
	query := `
		SELECT id, prompt, status, priority, worker_id, plan, result_summary, error,
		       cost_usd, tokens_in, tokens_out, duration_s, created_at, started_at, finished_at
		FROM tasks ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []taskRow
	if err := s.db.Select(&rows, s.db.Rebind(query), args...); err != nil {
		return nil, apperr.Store("failed to list tasks", err)
	}

	tasks := make([]*model.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toModel())
	}
	return tasks, nil
}

// SetPlanning marks a task as awaiting a plan (pending -> planning).
func (s *Store) SetPlanning(id int64) error {
	return s.setStatus(id, model.StatusPlanning)
}

// SetPlan records the generated plan text and marks the task planned,
// awaiting approval.
func (s *Store) SetPlan(id int64, plan string) error {
	res, err := s.db.Exec(
		s.db.Rebind(`UPDATE tasks SET plan = ?, status = ? WHERE id = ?`),
		plan, model.StatusPlanned, id,
	)
	if err != nil {
		return apperr.Store("failed to set task plan", err)
	}
	return requireOneRow(res, id)
}

func (s *Store) setStatus(id int64, status model.Status) error {
	res, err := s.db.Exec(s.db.Rebind(`UPDATE tasks SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return apperr.Store("failed to update task status", err)
	}
	return requireOneRow(res, id)
}

// Settle transitions a task to a terminal status (done or failed), filling
// in the run's metrics and setting finished_at. Any other status is
// rejected — callers settle exactly once per task.
func (s *Store) Settle(id int64, status model.Status, metrics model.SettleMetrics) error {
	if status != model.StatusDone && status != model.StatusFailed {
		return apperr.Validation(fmt.Sprintf("settle requires done or failed, got %q", status))
	}

	res, err := s.db.Exec(s.db.Rebind(`
		UPDATE tasks SET status = ?, result_summary = ?, error = ?, cost_usd = ?,
		       tokens_in = ?, tokens_out = ?, duration_s = ?, finished_at = ?
		WHERE id = ?
	`), status, metrics.ResultSummary, metrics.Error, metrics.CostUSD,
		metrics.TokensIn, metrics.TokensOut, metrics.DurationS, time.Now().UTC(), id)
	if err != nil {
		return apperr.Store("failed to settle task", err)
	}
	return requireOneRow(res, id)
}

// LogEvent appends one run-log entry for a task, truncating content to
// logContentLimit characters.
func (s *Store) LogEvent(taskID int64, eventType, content, rawJSON string) error {
	if r := []rune(content); len(r) > logContentLimit {
		content = string(r[:logContentLimit])
	}
	_, err := s.db.Exec(
		s.db.Rebind(`INSERT INTO run_logs (task_id, event_type, content, raw_json, ts) VALUES (?, ?, ?, ?, ?)`),
		taskID, eventType, content, rawJSON, time.Now().UTC(),
	)
	if err != nil {
		return apperr.Store("failed to log run event", err)
	}
	return nil
}

// Logs returns every run-log entry for a task, oldest first.
func (s *Store) Logs(taskID int64) ([]model.RunLogEntry, error) {
	var rows []model.RunLogEntry
	err := s.db.Select(&rows, s.db.Rebind(`
		SELECT id, task_id, event_type, content, raw_json, ts
		FROM run_logs WHERE task_id = ? ORDER BY id ASC
	`), taskID)
	if err != nil {
		return nil, apperr.Store("failed to load run logs", err)
	}
	return rows, nil
}

func requireOneRow(res sql.Result, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Store("failed to read update result", err)
	}
	if rows == 0 {
		return apperr.NotFound(fmt.Sprintf("task %d not found", id))
	}
	return nil
}

// taskRow is the sqlx scan target for a tasks row: nullable columns are
// pointer-typed so absent values decode to nil rather than panicking on
// scan.
type taskRow struct {
	ID            int64      `db:"id"`
	Prompt        string     `db:"prompt"`
	Status        string     `db:"status"`
	Priority      int        `db:"priority"`
	WorkerID      *int       `db:"worker_id"`
	Plan          *string    `db:"plan"`
	ResultSummary *string    `db:"result_summary"`
	Error         *string    `db:"error"`
	CostUSD       *float64   `db:"cost_usd"`
	TokensIn      *int       `db:"tokens_in"`
	TokensOut     *int       `db:"tokens_out"`
	DurationS     *float64   `db:"duration_s"`
	CreatedAt     time.Time  `db:"created_at"`
	StartedAt     *time.Time `db:"started_at"`
	FinishedAt    *time.Time `db:"finished_at"`
}

func (r taskRow) toModel() *model.Task {
	return &model.Task{
		ID:            r.ID,
		Prompt:        r.Prompt,
		Status:        model.Status(r.Status),
		Priority:      r.Priority,
		WorkerID:      r.WorkerID,
		Plan:          r.Plan,
		ResultSummary: r.ResultSummary,
		Error:         r.Error,
		CostUSD:       r.CostUSD,
		TokensIn:      r.TokensIn,
		TokensOut:     r.TokensOut,
		DurationS:     r.DurationS,
		CreatedAt:     r.CreatedAt,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}
