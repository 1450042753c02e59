package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jhinpan/cc-boss/internal/logging"
	"github.com/jhinpan/cc-boss/internal/plan"
)

// SetupRoutes wires the Task API's routes onto router under /api/v1, plus a
// top-level /health.
func SetupRoutes(router *gin.Engine, store taskStore, f fleet, planner *plan.Manager, log *logging.Logger) {
	handler := NewHandler(store, f, planner, log)

	router.GET("/health", handler.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/tasks", handler.CreateTask)
		v1.GET("/tasks", handler.ListTasks)
		v1.GET("/tasks/:id", handler.GetTask)
		v1.GET("/tasks/:id/logs", handler.GetTaskLogs)
		v1.POST("/tasks/:id/plan", handler.CreatePlan)
		v1.POST("/tasks/:id/approve", handler.ApprovePlan)
		v1.POST("/tasks/:id/reject", handler.RejectPlan)
		v1.GET("/workers", handler.GetWorkers)
	}
}
