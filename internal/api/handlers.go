package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jhinpan/cc-boss/internal/apperr"
	"github.com/jhinpan/cc-boss/internal/logging"
	"github.com/jhinpan/cc-boss/internal/model"
	"github.com/jhinpan/cc-boss/internal/plan"
)

// taskStore is the subset of the store the Task API needs.
type taskStore interface {
	Enqueue(prompt string, priority int) (int64, error)
	Get(id int64) (*model.Task, error)
	List(limit int) ([]*model.Task, error)
	Logs(taskID int64) ([]model.RunLogEntry, error)
}

// fleet is the subset of the orchestrator the Task API needs.
type fleet interface {
	Running() bool
	WorkerStatuses() []model.WorkerStatus
}

// Handler implements the Task API's HTTP endpoints.
type Handler struct {
	store   taskStore
	fleet   fleet
	planner *plan.Manager
	logger  *logging.Logger
}

// NewHandler builds a Handler.
func NewHandler(store taskStore, f fleet, planner *plan.Manager, log *logging.Logger) *Handler {
	return &Handler{store: store, fleet: f, planner: planner, logger: log}
}

type taskView struct {
	ID            int64   `json:"id"`
	Prompt        string  `json:"prompt"`
	Status        string  `json:"status"`
	Priority      int     `json:"priority"`
	WorkerID      *int    `json:"worker_id,omitempty"`
	Plan          *string `json:"plan,omitempty"`
	ResultSummary *string `json:"result_summary,omitempty"`
	Error         *string `json:"error,omitempty"`
	CostUSD       *float64 `json:"cost_usd,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func toTaskView(t *model.Task) taskView {
	return taskView{
		ID: t.ID, Prompt: t.Prompt, Status: string(t.Status), Priority: t.Priority,
		WorkerID: t.WorkerID, Plan: t.Plan, ResultSummary: t.ResultSummary, Error: t.Error,
		CostUSD: t.CostUSD, CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

type workerView struct {
	WorkerID      int    `json:"worker_id"`
	CurrentTaskID *int64 `json:"current_task_id,omitempty"`
	Running       bool   `json:"running"`
}

type logView struct {
	ID        int64  `json:"id"`
	EventType string `json:"event_type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// CreateTask handles POST /api/v1/tasks.
func (h *Handler) CreateTask(c *gin.Context) {
	var req EnqueueTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperr.Validation(err.Error()))
		return
	}

	id, err := h.store.Enqueue(req.Prompt, req.Priority)
	if err != nil {
		writeErr(c, err)
		return
	}

	if req.RequirePlan {
		task, getErr := h.store.Get(id)
		if getErr != nil {
			writeErr(c, getErr)
			return
		}
		if planErr := h.planner.CreatePlan(c.Request.Context(), task, ""); planErr != nil {
			h.logger.Error("failed to draft plan", zap.Int64("task_id", id), zap.Error(planErr))
			writeErr(c, planErr)
			return
		}
	}

	task, err := h.store.Get(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskView(task))
}

// ListTasks handles GET /api/v1/tasks.
func (h *Handler) ListTasks(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	tasks, err := h.store.List(limit)
	if err != nil {
		writeErr(c, err)
		return
	}

	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, toTaskView(t))
	}
	c.JSON(http.StatusOK, TaskListResponse{Tasks: views, Total: len(views)})
}

// GetTask handles GET /api/v1/tasks/:id.
func (h *Handler) GetTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.store.Get(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskView(task))
}

// GetTaskLogs handles GET /api/v1/tasks/:id/logs.
func (h *Handler) GetTaskLogs(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	logs, err := h.store.Logs(id)
	if err != nil {
		writeErr(c, err)
		return
	}

	views := make([]logView, 0, len(logs))
	for _, l := range logs {
		views = append(views, logView{ID: l.ID, EventType: l.EventType, Content: l.Content, Timestamp: l.Timestamp.Format(time.RFC3339)})
	}
	c.JSON(http.StatusOK, LogsResponse{Logs: views})
}

// CreatePlan handles POST /api/v1/tasks/:id/plan: draft a plan for an
// already-enqueued pending task.
func (h *Handler) CreatePlan(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.store.Get(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.planner.CreatePlan(c.Request.Context(), task, ""); err != nil {
		writeErr(c, err)
		return
	}

	task, err = h.store.Get(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": task.ID, "plan": task.Plan})
}

// ApprovePlan handles POST /api/v1/tasks/:id/approve.
func (h *Handler) ApprovePlan(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.store.Get(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	execTaskID, err := h.planner.Approve(task)
	if err != nil {
		writeErr(c, err)
		return
	}

	task, err = h.store.Get(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": toTaskView(task), "exec_task_id": execTaskID})
}

// RejectPlan handles POST /api/v1/tasks/:id/reject.
func (h *Handler) RejectPlan(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.store.Get(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.planner.Reject(task); err != nil {
		writeErr(c, err)
		return
	}

	task, err = h.store.Get(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskView(task))
}

// GetWorkers handles GET /api/v1/workers.
func (h *Handler) GetWorkers(c *gin.Context) {
	statuses := h.fleet.WorkerStatuses()
	views := make([]workerView, 0, len(statuses))
	for _, s := range statuses {
		views = append(views, workerView{WorkerID: s.WorkerID, CurrentTaskID: s.CurrentTaskID, Running: s.Running})
	}
	c.JSON(http.StatusOK, WorkersResponse{Running: h.fleet.Running(), Workers: views})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeErr(c, apperr.Validation("id must be an integer"))
		return 0, false
	}
	return id, true
}

func writeErr(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatusOf(err), gin.H{"error": err.Error()})
}
