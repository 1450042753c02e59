// Package api exposes the fleet's Task API over HTTP with gin: enqueue,
// inspect, and drive a task through the plan-mode state machine.
package api

// EnqueueTaskRequest is the body of POST /api/v1/tasks.
type EnqueueTaskRequest struct {
	Prompt     string `json:"prompt" binding:"required"`
	Priority   int    `json:"priority"`
	RequirePlan bool  `json:"require_plan"`
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Tasks []taskView `json:"tasks"`
	Total int        `json:"total"`
}

// WorkersResponse wraps the fleet's point-in-time worker statuses.
type WorkersResponse struct {
	Running bool         `json:"running"`
	Workers []workerView `json:"workers"`
}

// LogsResponse wraps a task's run log entries.
type LogsResponse struct {
	Logs []logView `json:"logs"`
}
