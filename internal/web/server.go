package web

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/JoshuaSeidel/taskbridge/internal/provider"
	"github.com/JoshuaSeidel/taskbridge/internal/store"
	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

// SyncService is the orchestrator surface the handlers call into.
type SyncService interface {
	SyncBatch(ctx context.Context, provider string) (*task.SyncResult, error)
	RetryFailed(ctx context.Context, provider string) (*task.SyncResult, error)
	CompleteTask(ctx context.Context, taskID, note string) error
	DeleteTask(ctx context.Context, taskID string) error
	Confirm(taskID string, confirmed bool) error
	ProviderStatuses(ctx context.Context) []provider.Status
}

// TaskService is the task-store surface the handlers call into.
type TaskService interface {
	CreateTask(t *task.Task) error
	GetTask(id string) (*task.Task, error)
	ListTasks(f store.Filter) ([]*task.Task, error)
	StatusCounts() (map[string]int, error)
	SyncFailures(taskID string) ([]store.FailureRecord, error)
}

// Server is the TaskBridge HTTP server
type Server struct {
	syncer SyncService
	tasks  TaskService
	router *gin.Engine
}

// NewServer creates a new web server
func NewServer(syncer SyncService, tasks TaskService) *Server {
	router := gin.Default()

	s := &Server{
		syncer: syncer,
		tasks:  tasks,
		router: router,
	}

	api := router.Group("/api")
	{
		api.POST("/sync/:provider", s.handleSync)
		api.POST("/sync/:provider/retry-failed", s.handleRetryFailed)
		api.GET("/providers/status", s.handleProviderStatus)

		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks/overdue", s.handleOverdueTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.POST("/tasks/:id/confirm", s.handleConfirmTask)
		api.POST("/tasks/:id/complete", s.handleCompleteTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
	}

	return s
}

// Run starts the web server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
