package store

import (
	"time"

	"github.com/bilitrack/bilitrack/internal/models"
)

// Store is the persistence surface the scheduler, collector and
// account service depend on. Single-row updates are atomic; cross-row
// transactions are not assumed.
type Store interface {
	// Task operations
	GetTask(id string) (*models.Task, bool)
	SetTask(task *models.Task) error
	ListTasks() []*models.Task
	ListTasksByStatus(status models.TaskStatus) []*models.Task
	// ListDueTasks returns running tasks whose next run time is at or
	// before now, capped at limit rows.
	ListDueTasks(now time.Time, limit int) []*models.Task
	UpdateTaskNextRun(id string, nextRun time.Time) error
	UpdateTaskStatus(id string, status models.TaskStatus, reason string) error
	UpdateTaskCid(id string, cid string) error
	UpdateTaskCidRetries(id string, retries int, nextRun *time.Time) error

	// Account operations
	GetAccount(id string) (*models.Account, bool)
	GetAccountByUID(uid string) (*models.Account, bool)
	// OldestValidAccount is the last resolver fallback tier.
	OldestValidAccount() (*models.Account, bool)
	SetAccount(acc *models.Account) error
	ListAccounts() []*models.Account
	DeleteAccount(id string) bool
	UpdateAccountValidation(id string, failures int, status models.AccountStatus, nickname string) error

	// Snapshot operations (append-only)
	InsertVideoSnapshot(snap *models.VideoSnapshot) error
	InsertAuthorSnapshot(snap *models.AuthorSnapshot) error
	ListVideoSnapshots(taskID string, limit int) []*models.VideoSnapshot
	ListAuthorSnapshots(taskID string, limit int) []*models.AuthorSnapshot

	Settings() SettingsStore
	Stats() StoreStats
	Close() error
}

// StoreStats summarizes row counts for diagnostics.
type StoreStats struct {
	TaskCount           int `json:"task_count"`
	AccountCount        int `json:"account_count"`
	VideoSnapshotCount  int `json:"video_snapshot_count"`
	AuthorSnapshotCount int `json:"author_snapshot_count"`
}
