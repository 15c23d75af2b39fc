package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bilitrack/bilitrack/internal/collector"
	"github.com/bilitrack/bilitrack/internal/errors"
	"github.com/bilitrack/bilitrack/internal/logging"
	"github.com/bilitrack/bilitrack/internal/metrics"
	"github.com/bilitrack/bilitrack/internal/models"
	"github.com/bilitrack/bilitrack/internal/store"
)

// TaskCollector runs one collection for a task.
type TaskCollector interface {
	Collect(ctx context.Context, task *models.Task) error
}

// FailureRecorder charges an account with a failed collection.
type FailureRecorder interface {
	RecordFailure(accountID string)
}

// Notifier announces task status transitions.
type Notifier interface {
	NotifyTaskTransition(task *models.Task, status models.TaskStatus, reason string)
}

// Config holds configuration for the scheduler.
type Config struct {
	// TickInterval is how often due tasks are polled for.
	TickInterval time.Duration
	// MaxBatch caps how many due tasks one tick may pick up.
	MaxBatch int
	// Workers bounds concurrent collections within a tick.
	Workers int
	// FailureBackoff is the flat delay applied after a failed
	// collection.
	FailureBackoff time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:   5 * time.Second,
		MaxBatch:       100,
		Workers:        4,
		FailureBackoff: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = d.MaxBatch
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.FailureBackoff <= 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	return c
}

// Status is a point-in-time view of the scheduler for diagnostics.
type Status struct {
	Running      bool      `json:"running"`
	TickInterval string    `json:"tick_interval"`
	Workers      int       `json:"workers"`
	LastTickAt   time.Time `json:"last_tick_at,omitempty"`
	NextTickAt   time.Time `json:"next_tick_at,omitempty"`
	LastPicked   int       `json:"last_picked"`
}

// Scheduler polls the store for due tasks and dispatches collections
// through a bounded worker pool. A tick never overlaps itself: when
// the previous batch is still in flight the new tick is skipped.
type Scheduler struct {
	store     store.Store
	collector TaskCollector
	accounts  FailureRecorder
	metrics   *metrics.Metrics
	logger    *logging.Logger
	notifier  Notifier
	cfg       Config
	now       func() time.Time

	ticking atomic.Bool

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	wg         sync.WaitGroup
	lastTickAt time.Time
	lastPicked int
}

// New creates a scheduler. metrics may be nil.
func New(st store.Store, tc TaskCollector, accounts FailureRecorder, m *metrics.Metrics, logger *logging.Logger, cfg Config) *Scheduler {
	return &Scheduler{
		store:     st,
		collector: tc,
		accounts:  accounts,
		metrics:   m,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// SetClock overrides the scheduler's clock, for tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// SetNotifier installs a transition notifier. May stay unset.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

// Start begins the polling loop. Starting a running scheduler is a
// logged no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("scheduler already running, start ignored")
		return
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.pollLoop(ctx)

	s.logger.Info("scheduler started",
		"tick_interval", s.cfg.TickInterval.String(),
		"max_batch", s.cfg.MaxBatch,
		"workers", s.cfg.Workers)
}

// Stop shuts the polling loop down and waits for in-flight
// collections. Stopping a stopped scheduler is a logged no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn("scheduler not running, stop ignored")
		return
	}
	s.running = false
	stopCh := s.stopCh
	s.mu.Unlock()

	close(stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the polling loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot for the operator API. NextTickAt is an
// estimate: the loop fires relative to its own ticker, not this value.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:      s.running,
		TickInterval: s.cfg.TickInterval.String(),
		Workers:      s.cfg.Workers,
		LastTickAt:   s.lastTickAt,
		LastPicked:   s.lastPicked,
	}
	if s.running && !s.lastTickAt.IsZero() {
		st.NextTickAt = s.lastTickAt.Add(s.cfg.TickInterval)
	}
	return st
}

// InitializeTaskSchedules gives every running task whose next run time
// is missing or already past an immediate one, and reports how many
// were adjusted. Called once at startup so tasks stranded by a crash
// resume on the first tick.
func (s *Scheduler) InitializeTaskSchedules() (int, error) {
	now := s.now()
	adjusted := 0
	for _, task := range s.store.ListTasksByStatus(models.TaskRunning) {
		if task.NextRunAt != nil && !task.NextRunAt.Before(now) {
			continue
		}
		if err := s.store.UpdateTaskNextRun(task.ID, now); err != nil {
			return adjusted, err
		}
		adjusted++
		s.logger.Info("task schedule initialized", "task_id", task.ID)
	}
	return adjusted, nil
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick picks up due tasks and runs them through the worker pool. It
// holds the single-flight flag for the whole batch.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.logger.Warn("tick skipped, previous batch still in flight")
		if s.metrics != nil {
			s.metrics.RecordTick("skipped", 0)
		}
		return
	}
	defer s.ticking.Store(false)

	now := s.now()
	due := s.store.ListDueTasks(now, s.cfg.MaxBatch)

	s.mu.Lock()
	s.lastTickAt = now
	s.lastPicked = len(due)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordTick("run", len(due))
	}
	if len(due) == 0 {
		return
	}

	s.logger.Debug("tick dispatching due tasks", "count", len(due))

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
	for _, task := range due {
		wg.Add(1)
		go func(task *models.Task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.executeTask(ctx, task)
		}(task)
	}
	wg.Wait()
}

// executeTask runs one collection and persists the outcome. The
// returned error is the collection failure, already absorbed into the
// backoff; the tick loop discards it and TriggerTask surfaces it.
func (s *Scheduler) executeTask(ctx context.Context, task *models.Task) error {
	if s.now().After(task.Deadline) {
		s.transition(task, models.TaskCompleted, "monitoring deadline reached")
		return nil
	}

	start := s.now()
	err := s.collector.Collect(ctx, task)
	elapsed := s.now().Sub(start).Seconds()

	switch {
	case err == nil:
		s.recordCollection(task, "success", elapsed)
		// Manual tasks get their collection, then park until the next
		// trigger instead of taking a new next-due time.
		if task.Strategy.Mode == models.StrategyManual {
			s.transition(task, models.TaskPaused, "manual strategy, awaiting trigger")
			return nil
		}
		next := NextDue(task, s.now())
		if uerr := s.store.UpdateTaskNextRun(task.ID, next); uerr != nil {
			s.logger.Error("rescheduling task", "task_id", task.ID, "error", uerr.Error())
		}
		return nil

	case stderrors.Is(err, collector.ErrDeferred):
		// The collector already rescheduled or terminated the task.
		s.recordCollection(task, "deferred", elapsed)
		return nil

	default:
		s.recordCollection(task, "failure", elapsed)
		s.chargeAccount(task, err)
		backoff := s.now().Add(s.cfg.FailureBackoff)
		if uerr := s.store.UpdateTaskNextRun(task.ID, backoff); uerr != nil {
			s.logger.Error("applying failure backoff", "task_id", task.ID, "error", uerr.Error())
		}
		s.logger.Error("collection failed",
			"task_id", task.ID, "kind", string(task.Kind), "error", err.Error())
		return err
	}
}

// TriggerTask runs a task through executeTask immediately, outside the
// polling loop. Completed and failed tasks are terminal and cannot be
// triggered.
func (s *Scheduler) TriggerTask(ctx context.Context, taskID string) error {
	task, ok := s.store.GetTask(taskID)
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}

	switch task.Status {
	case models.TaskRunning, models.TaskStopped, models.TaskPaused:
	default:
		return fmt.Errorf("task %s cannot be triggered in status %s", taskID, task.Status)
	}

	return s.executeTask(ctx, task)
}

func (s *Scheduler) transition(task *models.Task, status models.TaskStatus, reason string) {
	if err := s.store.UpdateTaskStatus(task.ID, status, reason); err != nil {
		s.logger.Error("updating task status", "task_id", task.ID, "error", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTaskTransition(string(status))
	}
	if s.notifier != nil && status == models.TaskCompleted {
		s.notifier.NotifyTaskTransition(task, status, reason)
	}
	s.logger.Info("task transitioned",
		"task_id", task.ID, "status", string(status), "reason", reason)
}

func (s *Scheduler) chargeAccount(task *models.Task, err error) {
	if s.accounts == nil || !errors.IsCredentialFailure(err) {
		return
	}
	var rejected *errors.ErrCredentialRejected
	if stderrors.As(err, &rejected) && rejected.AccountID != "" {
		s.accounts.RecordFailure(rejected.AccountID)
	}
}

func (s *Scheduler) recordCollection(task *models.Task, outcome string, elapsed float64) {
	if s.metrics != nil {
		s.metrics.RecordCollection(string(task.Kind), outcome, elapsed)
	}
}
