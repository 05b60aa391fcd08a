package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JoshuaSeidel/taskbridge/internal/provider"
	"github.com/JoshuaSeidel/taskbridge/internal/store"
	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

const maxDescriptionSize = 10 << 10 // 10KB

// Sync handlers. Partial failure is a normal business outcome: sync endpoints
// answer 200 with success:false rather than a 4xx/5xx. Only infrastructure
// failures (store unreachable) surface as 500.

func (s *Server) handleSync(c *gin.Context) {
	name := c.Param("provider")

	result, err := s.syncer.SyncBatch(c.Request.Context(), name)
	if err != nil {
		s.syncError(c, err)
		return
	}

	c.JSON(http.StatusOK, syncResponse(result))
}

func (s *Server) handleRetryFailed(c *gin.Context) {
	name := c.Param("provider")

	result, err := s.syncer.RetryFailed(c.Request.Context(), name)
	if err != nil {
		s.syncError(c, err)
		return
	}

	c.JSON(http.StatusOK, syncResponse(result))
}

func (s *Server) syncError(c *gin.Context, err error) {
	if errors.Is(err, provider.ErrUnknownProvider) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func syncResponse(result *task.SyncResult) gin.H {
	resp := gin.H{
		"success": result.Success(),
		"synced":  result.Synced,
		"failed":  result.Failed,
	}
	if result.Skipped > 0 {
		resp["skipped"] = result.Skipped
	}
	if len(result.Errors) > 0 {
		resp["errors"] = result.Errors
	}
	return resp
}

func (s *Server) handleProviderStatus(c *gin.Context) {
	statuses := s.syncer.ProviderStatuses(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"providers": statuses,
	})
}

// Task handlers

func (s *Server) handleListTasks(c *gin.Context) {
	filter := store.Filter{
		Status:   c.Query("status"),
		Assignee: c.Query("assignee"),
	}
	if v := c.Query("needs_confirmation"); v != "" {
		needs := v == "true" || v == "1"
		filter.NeedsConfirmation = &needs
	}

	tasks, err := s.tasks.ListTasks(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tasks":   tasks,
		"count":   len(tasks),
	})
}

func (s *Server) handleOverdueTasks(c *gin.Context) {
	tasks, err := s.tasks.ListTasks(store.Filter{Status: task.StatusPending})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	now := time.Now()
	overdue := make([]*task.Task, 0)
	for _, t := range tasks {
		if t.Overdue(now) {
			overdue = append(overdue, t)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tasks":   overdue,
		"count":   len(overdue),
	})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var t task.Task
	if err := c.BindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if len(t.Description) > maxDescriptionSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "description exceeds maximum size of 10KB",
		})
		return
	}

	t.Normalize()
	if err := t.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	// New tasks enter the flow pending; completion and rejection happen
	// through their own endpoints so the status invariants hold.
	if t.Status != task.StatusPending {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "new tasks must have pending status",
		})
		return
	}

	if err := s.tasks.CreateTask(&t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      t.ID,
		"message": "Task created",
	})
}

func (s *Server) handleGetTask(c *gin.Context) {
	id := c.Param("id")

	t, err := s.tasks.GetTask(id)
	if err != nil {
		s.taskError(c, err)
		return
	}

	failures, err := s.tasks.SyncFailures(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	resp := gin.H{
		"success": true,
		"task":    t,
		"overdue": t.Overdue(time.Now()),
	}
	if len(failures) > 0 {
		resp["sync_failures"] = failures
	}
	c.JSON(http.StatusOK, resp)
}

type confirmRequest struct {
	Confirmed *bool `json:"confirmed" binding:"required"`
}

func (s *Server) handleConfirmTask(c *gin.Context) {
	id := c.Param("id")

	var req confirmRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "confirmed field required",
		})
		return
	}

	if err := s.syncer.Confirm(id, *req.Confirmed); err != nil {
		s.taskError(c, err)
		return
	}

	message := "Task confirmed"
	if !*req.Confirmed {
		message = "Task rejected"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      id,
		"message": message,
	})
}

type completeRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleCompleteTask(c *gin.Context) {
	id := c.Param("id")

	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
	}

	if err := s.syncer.CompleteTask(c.Request.Context(), id, req.Note); err != nil {
		s.taskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      id,
		"message": "Task completed",
	})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id := c.Param("id")

	if err := s.syncer.DeleteTask(c.Request.Context(), id); err != nil {
		s.taskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Task deleted",
	})
}

func (s *Server) taskError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "task not found",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
