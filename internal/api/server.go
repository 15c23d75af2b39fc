package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bilitrack/bilitrack/internal/config"
	"github.com/bilitrack/bilitrack/internal/errors"
	"github.com/bilitrack/bilitrack/internal/logging"
	"github.com/bilitrack/bilitrack/internal/metrics"
	"github.com/bilitrack/bilitrack/internal/models"
	"github.com/bilitrack/bilitrack/internal/scheduler"
	"github.com/bilitrack/bilitrack/internal/store"
)

// defaultDeadline is applied when a task is created without one.
const defaultDeadline = 30 * 24 * time.Hour

// SchedulerControl is the slice of the scheduler the API exposes.
type SchedulerControl interface {
	Status() scheduler.Status
	TriggerTask(ctx context.Context, taskID string) error
}

// AccountManager is the slice of the account service the API exposes.
type AccountManager interface {
	BindByCookie(ctx context.Context, rawCookie string) (*models.Account, error)
	Validate(ctx context.Context, accountID string) error
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	config     config.ServerConfig
	apiConfig  config.APIConfig
	store      store.Store
	scheduler  SchedulerControl
	accounts   AccountManager
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server
	now        func() time.Time
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, apiCfg config.APIConfig, st store.Store, sched SchedulerControl, accounts AccountManager, m *metrics.Metrics, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if m == nil {
		m = metrics.NewMetrics("bilitrack")
	}
	if logger == nil {
		logger = logging.NewLogger()
	}

	server := &Server{
		router:    gin.New(),
		config:    cfg,
		apiConfig: apiCfg,
		store:     st,
		scheduler: sched,
		accounts:  accounts,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	server.router.Use(rateLimitMiddleware(newIPRateLimiter(time.Minute/1000, 100)))
	server.router.Use(bodyLimitMiddleware(1 << 20))
	server.router.Use(metrics.Middleware(m, logger))
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}
		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint - NO authentication required
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Health check - NO authentication required
	s.router.GET("/healthz", s.handleHealth)

	authMiddleware := APIKeyAuth(s.apiConfig.Auth.APIKeys, s.apiConfig.Auth.HeaderName, s.logger)

	v1 := s.router.Group(s.apiConfig.BasePath)
	v1.Use(authMiddleware)
	{
		v1.GET("/scheduler/status", s.handleSchedulerStatus)

		v1.POST("/tasks", s.handleCreateTask)
		v1.GET("/tasks", s.handleListTasks)
		v1.GET("/tasks/:id", s.handleGetTask)
		v1.POST("/tasks/:id/trigger", s.handleTriggerTask)
		v1.POST("/tasks/:id/status", s.handleSetTaskStatus)
		v1.GET("/tasks/:id/snapshots", s.handleListSnapshots)

		v1.POST("/accounts", s.handleBindAccount)
		v1.GET("/accounts", s.handleListAccounts)
		v1.DELETE("/accounts/:id", s.handleDeleteAccount)
		v1.POST("/accounts/:id/validate", s.handleValidateAccount)

		v1.GET("/settings/default-account", s.handleGetDefaultAccount)
		v1.PUT("/settings/default-account", s.handleSetDefaultAccount)

		v1.GET("/stats", s.handleStats)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": s.now().UTC(),
		"scheduler": s.scheduler.Status().Running,
	})
}

func (s *Server) handleSchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.scheduler.Status())
}

// CreateTaskRequest represents a request to create a monitoring task
type CreateTaskRequest struct {
	Kind      string          `json:"kind" binding:"required"`
	TargetID  string          `json:"target_id" binding:"required"`
	Title     string          `json:"title,omitempty"`
	AccountID string          `json:"account_id,omitempty"`
	AuthorUID string          `json:"author_uid,omitempty"`
	Strategy  models.Strategy `json:"strategy"`
	Deadline  *time.Time      `json:"deadline,omitempty"`
}

// handleCreateTask creates a monitoring task and schedules its first
// collection immediately.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := s.now()
	deadline := now.Add(defaultDeadline)
	if req.Deadline != nil {
		deadline = *req.Deadline
	}
	if req.Strategy.Mode == "" {
		req.Strategy.Mode = models.StrategySmart
	}

	firstRun := now
	task := &models.Task{
		ID:        uuid.NewString(),
		Kind:      models.TaskKind(req.Kind),
		TargetID:  req.TargetID,
		Title:     req.Title,
		AccountID: req.AccountID,
		AuthorUID: req.AuthorUID,
		Strategy:  req.Strategy,
		Deadline:  deadline,
		Status:    models.TaskRunning,
		NextRunAt: &firstRun,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.SetTask(task); err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "creating task", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		c.JSON(http.StatusOK, s.store.ListTasksByStatus(models.TaskStatus(status)))
		return
	}
	c.JSON(http.StatusOK, s.store.ListTasks())
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, ok := s.store.GetTask(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleTriggerTask(c *gin.Context) {
	if err := s.scheduler.TriggerTask(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "triggered"})
}

// SetTaskStatusRequest represents an operator status change.
type SetTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

// handleSetTaskStatus lets an operator stop or resume a task.
// Completed and failed are terminal and can only be set by the system.
func (s *Server) handleSetTaskStatus(c *gin.Context) {
	var req SetTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.TaskStatus(req.Status)
	if status != models.TaskRunning && status != models.TaskStopped {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be running or stopped"})
		return
	}

	task, ok := s.store.GetTask(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	if err := s.store.UpdateTaskStatus(task.ID, status, req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Resuming reschedules the task immediately.
	if status == models.TaskRunning {
		if err := s.store.UpdateTaskNextRun(task.ID, s.now()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

func (s *Server) handleListSnapshots(c *gin.Context) {
	task, ok := s.store.GetTask(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	limit := 500
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
	}

	switch task.Kind {
	case models.TaskKindAuthor:
		c.JSON(http.StatusOK, s.store.ListAuthorSnapshots(task.ID, limit))
	default:
		c.JSON(http.StatusOK, s.store.ListVideoSnapshots(task.ID, limit))
	}
}

// BindAccountRequest represents a cookie binding request.
type BindAccountRequest struct {
	Cookie string `json:"cookie" binding:"required"`
}

func (s *Server) handleBindAccount(c *gin.Context) {
	var req BindAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := s.accounts.BindByCookie(c.Request.Context(), req.Cookie)
	if err != nil {
		s.metrics.RecordError("bind_failed", "/accounts")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	s.metrics.SetAccountHealth(acc.ID, true)
	c.JSON(http.StatusCreated, acc)
}

func (s *Server) handleListAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.ListAccounts())
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	if !s.store.DeleteAccount(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleValidateAccount(c *gin.Context) {
	id := c.Param("id")
	if err := s.accounts.Validate(c.Request.Context(), id); err != nil {
		// A transient upstream fault says nothing about the credential.
		if !errors.IsCredentialFailure(err) && errors.IsUpstreamFailure(err) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		s.metrics.SetAccountHealth(id, false)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	s.metrics.SetAccountHealth(id, true)
	c.JSON(http.StatusOK, gin.H{"status": "valid"})
}

func (s *Server) handleGetDefaultAccount(c *gin.Context) {
	id, ok := s.store.Settings().DefaultAccountID()
	c.JSON(http.StatusOK, gin.H{"account_id": id, "set": ok})
}

// SetDefaultAccountRequest sets or clears the default account.
type SetDefaultAccountRequest struct {
	AccountID string `json:"account_id"`
}

func (s *Server) handleSetDefaultAccount(c *gin.Context) {
	var req SetDefaultAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.AccountID != "" {
		if _, ok := s.store.GetAccount(req.AccountID); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
	}

	if err := s.store.Settings().SetDefaultAccountID(req.AccountID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": req.AccountID})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Stats())
}
