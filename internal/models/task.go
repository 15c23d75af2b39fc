package models

import (
	"fmt"
	"time"
)

// TaskKind selects which collection path a task takes.
type TaskKind string

const (
	TaskKindVideo  TaskKind = "video"
	TaskKindAuthor TaskKind = "author"
)

// TaskStatus is the scheduling state of a task.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskStopped   TaskStatus = "stopped"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskPaused    TaskStatus = "paused"
)

// StrategyMode selects how the next collection time is computed.
type StrategyMode string

const (
	StrategyFixed  StrategyMode = "fixed"
	StrategySmart  StrategyMode = "smart"
	StrategyManual StrategyMode = "manual"
)

// Strategy describes a task's scheduling policy. It is persisted as a
// JSON blob on the task row.
type Strategy struct {
	Mode  StrategyMode `json:"mode"`
	Value int          `json:"value,omitempty"`
	Unit  string       `json:"unit,omitempty"` // minute, hour, day
}

// Task is one persisted monitoring job for a video or a creator.
type Task struct {
	ID       string   `json:"id"`
	Kind     TaskKind `json:"kind"`
	TargetID string   `json:"target_id"` // bvid for video, uid for author
	Title    string   `json:"title,omitempty"`

	// Cid is the upstream internal video id, resolved lazily on the
	// first video collection. CidRetries counts consecutive failed
	// resolutions; at 5 the task turns failed.
	Cid        string `json:"cid,omitempty"`
	CidRetries int    `json:"cid_retries"`

	AccountID string `json:"account_id,omitempty"` // explicitly bound credential
	AuthorUID string `json:"author_uid,omitempty"` // self-identity for fallback matching

	Strategy Strategy   `json:"strategy"`
	Deadline time.Time  `json:"deadline"`
	Status   TaskStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`

	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields external callers must supply.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if t.Kind != TaskKindVideo && t.Kind != TaskKindAuthor {
		return fmt.Errorf("task kind must be video or author")
	}
	if t.TargetID == "" {
		return fmt.Errorf("target ID is required")
	}
	if t.Deadline.IsZero() {
		return fmt.Errorf("deadline is required")
	}
	switch t.Strategy.Mode {
	case StrategyFixed, StrategySmart, StrategyManual:
	default:
		return fmt.Errorf("unknown strategy mode: %s", t.Strategy.Mode)
	}
	return nil
}

// IsDue reports whether the task should be picked up at now.
func (t *Task) IsDue(now time.Time) bool {
	return t.Status == TaskRunning && t.NextRunAt != nil && !t.NextRunAt.After(now)
}

// AgeDays returns the task's age in days relative to its publish time,
// or false when no publish time is known.
func (t *Task) AgeDays(now time.Time) (float64, bool) {
	if t.PublishedAt == nil {
		return 0, false
	}
	return now.Sub(*t.PublishedAt).Hours() / 24, true
}
