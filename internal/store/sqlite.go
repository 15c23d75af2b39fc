package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bilitrack/bilitrack/internal/errors"
	"github.com/bilitrack/bilitrack/internal/logging"
	"github.com/bilitrack/bilitrack/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists tasks, accounts and metric snapshots with WAL
// mode enabled. It is safe for concurrent use.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	logger   *logging.Logger
	settings SettingsStore

	// Retention cleanup for snapshot rows
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	retentionDays int
}

// NewSQLiteStore creates a store with the default 90-day snapshot
// retention.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithRetention(dbPath, 90)
}

// NewSQLiteStoreWithRetention creates a store with custom retention;
// retentionDays <= 0 disables cleanup.
func NewSQLiteStoreWithRetention(dbPath string, retentionDays int) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=cache_size(2000)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	settingsStore, err := NewSQLiteSettingsStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{
		db:            db,
		logger:        logging.NewLogger(),
		settings:      settingsStore,
		cleanupDone:   make(chan struct{}),
		retentionDays: retentionDays,
	}

	if retentionDays > 0 {
		store.startCleanup()
	}

	return store, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS accounts (
					id TEXT PRIMARY KEY,
					uid TEXT NOT NULL,
					nickname TEXT,
					sessdata TEXT NOT NULL,
					bili_jct TEXT,
					bind_method TEXT NOT NULL DEFAULT 'cookie',
					status TEXT NOT NULL DEFAULT 'valid',
					last_failures INTEGER NOT NULL DEFAULT 0,
					bound_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS tasks (
					id TEXT PRIMARY KEY,
					kind TEXT NOT NULL,
					target_id TEXT NOT NULL,
					title TEXT,
					cid TEXT,
					cid_retries INTEGER NOT NULL DEFAULT 0,
					account_id TEXT,
					author_uid TEXT,
					strategy TEXT NOT NULL,
					deadline DATETIME NOT NULL,
					status TEXT NOT NULL DEFAULT 'running',
					reason TEXT,
					next_run_at DATETIME,
					published_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS video_snapshots (
					id TEXT PRIMARY KEY,
					task_id TEXT NOT NULL REFERENCES tasks(id),
					collected_at DATETIME NOT NULL,
					view_count INTEGER NOT NULL,
					online INTEGER,
					like_count INTEGER NOT NULL,
					coin INTEGER NOT NULL,
					favorite INTEGER NOT NULL,
					share INTEGER NOT NULL,
					danmaku INTEGER NOT NULL,
					reply INTEGER NOT NULL
				);

				CREATE TABLE IF NOT EXISTS author_snapshots (
					id TEXT PRIMARY KEY,
					task_id TEXT NOT NULL REFERENCES tasks(id),
					collected_at DATETIME NOT NULL,
					follower INTEGER NOT NULL
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_uid ON accounts(uid);
				CREATE INDEX IF NOT EXISTS idx_accounts_status ON accounts(status);
				CREATE INDEX IF NOT EXISTS idx_tasks_status_next_run ON tasks(status, next_run_at);
				CREATE INDEX IF NOT EXISTS idx_video_snapshots_task ON video_snapshots(task_id, collected_at);
				CREATE INDEX IF NOT EXISTS idx_author_snapshots_task ON author_snapshots(task_id, collected_at);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

func (s *SQLiteStore) startCleanup() {
	s.cleanupTicker = time.NewTicker(time.Hour)
	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.cleanupOldSnapshots()
			case <-s.cleanupDone:
				return
			}
		}
	}()
}

func (s *SQLiteStore) cleanupOldSnapshots() {
	if s.retentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	if _, err := s.db.Exec("DELETE FROM video_snapshots WHERE collected_at < ?", cutoff); err != nil {
		s.logger.Error("cleanup failed", "table", "video_snapshots", "error", err.Error())
	}
	if _, err := s.db.Exec("DELETE FROM author_snapshots WHERE collected_at < ?", cutoff); err != nil {
		s.logger.Error("cleanup failed", "table", "author_snapshots", "error", err.Error())
	}
}

// Close gracefully shuts down the store.
func (s *SQLiteStore) Close() error {
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
		close(s.cleanupDone)
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Settings returns the settings store backed by the same database.
func (s *SQLiteStore) Settings() SettingsStore {
	return s.settings
}

// Task operations

const taskColumns = `id, kind, target_id, title, cid, cid_retries, account_id, author_uid, strategy, deadline, status, reason, next_run_at, published_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	var task models.Task
	var title, cid, accountID, authorUID, reason sql.NullString
	var strategyJSON string
	var nextRunAt, publishedAt sql.NullTime

	err := row.Scan(&task.ID, &task.Kind, &task.TargetID, &title, &cid, &task.CidRetries,
		&accountID, &authorUID, &strategyJSON, &task.Deadline, &task.Status, &reason,
		&nextRunAt, &publishedAt, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	task.Title = title.String
	task.Cid = cid.String
	task.AccountID = accountID.String
	task.AuthorUID = authorUID.String
	task.Reason = reason.String
	if nextRunAt.Valid {
		t := nextRunAt.Time
		task.NextRunAt = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		task.PublishedAt = &t
	}
	if err := json.Unmarshal([]byte(strategyJSON), &task.Strategy); err != nil {
		return nil, err
	}

	return &task, nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(id string) (*models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, false
	}
	return task, true
}

// SetTask stores or updates a task.
func (s *SQLiteStore) SetTask(task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	strategyJSON, err := json.Marshal(task.Strategy)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "marshal strategy", Err: err}
	}

	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			target_id = excluded.target_id,
			title = excluded.title,
			cid = excluded.cid,
			cid_retries = excluded.cid_retries,
			account_id = excluded.account_id,
			author_uid = excluded.author_uid,
			strategy = excluded.strategy,
			deadline = excluded.deadline,
			status = excluded.status,
			reason = excluded.reason,
			next_run_at = excluded.next_run_at,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at
	`, task.ID, task.Kind, task.TargetID, nullString(task.Title), nullString(task.Cid), task.CidRetries,
		nullString(task.AccountID), nullString(task.AuthorUID), string(strategyJSON), task.Deadline,
		task.Status, nullString(task.Reason), nullTime(task.NextRunAt), nullTime(task.PublishedAt),
		task.CreatedAt, task.UpdatedAt)

	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set task", Err: err}
	}
	return nil
}

// ListTasks returns all tasks, newest first.
func (s *SQLiteStore) ListTasks() []*models.Task {
	return s.queryTasks(`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`, nil)
}

// ListTasksByStatus returns tasks in the given status.
func (s *SQLiteStore) ListTasksByStatus(status models.TaskStatus) []*models.Task {
	return s.queryTasks(`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at`, []any{status})
}

// ListDueTasks returns running tasks due at or before now, oldest next
// run first, capped at limit.
func (s *SQLiteStore) ListDueTasks(now time.Time, limit int) []*models.Task {
	return s.queryTasks(`
		SELECT `+taskColumns+` FROM tasks
		WHERE status = ? AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at
		LIMIT ?
	`, []any{models.TaskRunning, now, limit})
}

func (s *SQLiteStore) queryTasks(query string, args []any) []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		s.logger.Error("task query failed", "error", err.Error())
		return []*models.Task{}
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// UpdateTaskNextRun sets only the next run time.
func (s *SQLiteStore) UpdateTaskNextRun(id string, nextRun time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE tasks SET next_run_at = ?, updated_at = ? WHERE id = ?`, nextRun, time.Now(), id)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update task next run", Err: err}
	}
	return nil
}

// UpdateTaskStatus transitions a task and records the reason. An empty
// reason clears the previous one.
func (s *SQLiteStore) UpdateTaskStatus(id string, status models.TaskStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE tasks SET status = ?, reason = ?, updated_at = ? WHERE id = ?`,
		status, nullString(reason), time.Now(), id)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update task status", Err: err}
	}
	return nil
}

// UpdateTaskCid stores a resolved cid and resets the retry counter.
func (s *SQLiteStore) UpdateTaskCid(id string, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE tasks SET cid = ?, cid_retries = 0, updated_at = ? WHERE id = ?`,
		cid, time.Now(), id)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update task cid", Err: err}
	}
	return nil
}

// UpdateTaskCidRetries bumps the retry counter and optionally schedules
// the next attempt.
func (s *SQLiteStore) UpdateTaskCidRetries(id string, retries int, nextRun *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if nextRun != nil {
		_, err = s.db.Exec(`UPDATE tasks SET cid_retries = ?, next_run_at = ?, updated_at = ? WHERE id = ?`,
			retries, *nextRun, time.Now(), id)
	} else {
		_, err = s.db.Exec(`UPDATE tasks SET cid_retries = ?, updated_at = ? WHERE id = ?`,
			retries, time.Now(), id)
	}
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update task cid retries", Err: err}
	}
	return nil
}

// Account operations

const accountColumns = `id, uid, nickname, sessdata, bili_jct, bind_method, status, last_failures, bound_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var acc models.Account
	var nickname, biliJct sql.NullString

	err := row.Scan(&acc.ID, &acc.UID, &nickname, &acc.Sessdata, &biliJct, &acc.BindMethod,
		&acc.Status, &acc.LastFailures, &acc.BoundAt, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	acc.Nickname = nickname.String
	acc.BiliJct = biliJct.String
	return &acc, nil
}

// GetAccount retrieves an account by ID.
func (s *SQLiteStore) GetAccount(id string) (*models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	acc, err := scanAccount(row)
	if err != nil {
		return nil, false
	}
	return acc, true
}

// GetAccountByUID retrieves an account by its upstream user id.
func (s *SQLiteStore) GetAccountByUID(uid string) (*models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE uid = ?`, uid)
	acc, err := scanAccount(row)
	if err != nil {
		return nil, false
	}
	return acc, true
}

// OldestValidAccount returns the earliest-created account still in
// valid status.
func (s *SQLiteStore) OldestValidAccount() (*models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE status = ? ORDER BY created_at LIMIT 1`,
		models.AccountValid)
	acc, err := scanAccount(row)
	if err != nil {
		return nil, false
	}
	return acc, true
}

// SetAccount stores or updates an account.
func (s *SQLiteStore) SetAccount(acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	if acc.BoundAt.IsZero() {
		acc.BoundAt = now
	}
	acc.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uid = excluded.uid,
			nickname = excluded.nickname,
			sessdata = excluded.sessdata,
			bili_jct = excluded.bili_jct,
			bind_method = excluded.bind_method,
			status = excluded.status,
			last_failures = excluded.last_failures,
			bound_at = excluded.bound_at,
			updated_at = excluded.updated_at
	`, acc.ID, acc.UID, nullString(acc.Nickname), acc.Sessdata, nullString(acc.BiliJct),
		acc.BindMethod, acc.Status, acc.LastFailures, acc.BoundAt, acc.CreatedAt, acc.UpdatedAt)

	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set account", Err: err}
	}
	return nil
}

// ListAccounts returns all accounts, oldest first.
func (s *SQLiteStore) ListAccounts() []*models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`)
	if err != nil {
		return []*models.Account{}
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			continue
		}
		accounts = append(accounts, acc)
	}
	return accounts
}

// DeleteAccount removes an account.
func (s *SQLiteStore) DeleteAccount(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return false
	}
	rows, _ := result.RowsAffected()
	return rows > 0
}

// UpdateAccountValidation records the outcome of a validation attempt.
// An empty nickname leaves the stored one untouched.
func (s *SQLiteStore) UpdateAccountValidation(id string, failures int, status models.AccountStatus, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if nickname != "" {
		_, err = s.db.Exec(`UPDATE accounts SET last_failures = ?, status = ?, nickname = ?, updated_at = ? WHERE id = ?`,
			failures, status, nickname, time.Now(), id)
	} else {
		_, err = s.db.Exec(`UPDATE accounts SET last_failures = ?, status = ?, updated_at = ? WHERE id = ?`,
			failures, status, time.Now(), id)
	}
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update account validation", Err: err}
	}
	return nil
}

// Snapshot operations

// InsertVideoSnapshot appends a video metric row. Snapshots are never
// updated or deleted outside retention cleanup.
func (s *SQLiteStore) InsertVideoSnapshot(snap *models.VideoSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var online any
	if snap.Online != nil {
		online = *snap.Online
	}

	_, err := s.db.Exec(`
		INSERT INTO video_snapshots (id, task_id, collected_at, view_count, online, like_count, coin, favorite, share, danmaku, reply)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.TaskID, snap.CollectedAt, snap.View, online, snap.Like, snap.Coin,
		snap.Favorite, snap.Share, snap.Danmaku, snap.Reply)

	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "insert video snapshot", Err: err}
	}
	return nil
}

// InsertAuthorSnapshot appends an author metric row.
func (s *SQLiteStore) InsertAuthorSnapshot(snap *models.AuthorSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO author_snapshots (id, task_id, collected_at, follower)
		VALUES (?, ?, ?, ?)
	`, snap.ID, snap.TaskID, snap.CollectedAt, snap.Follower)

	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "insert author snapshot", Err: err}
	}
	return nil
}

// ListVideoSnapshots returns a task's video rows, newest first.
func (s *SQLiteStore) ListVideoSnapshots(taskID string, limit int) []*models.VideoSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, task_id, collected_at, view_count, online, like_count, coin, favorite, share, danmaku, reply
		FROM video_snapshots WHERE task_id = ? ORDER BY collected_at DESC LIMIT ?
	`, taskID, limit)
	if err != nil {
		return []*models.VideoSnapshot{}
	}
	defer rows.Close()

	var snaps []*models.VideoSnapshot
	for rows.Next() {
		var snap models.VideoSnapshot
		var online sql.NullInt64
		if err := rows.Scan(&snap.ID, &snap.TaskID, &snap.CollectedAt, &snap.View, &online,
			&snap.Like, &snap.Coin, &snap.Favorite, &snap.Share, &snap.Danmaku, &snap.Reply); err != nil {
			continue
		}
		if online.Valid {
			v := online.Int64
			snap.Online = &v
		}
		snaps = append(snaps, &snap)
	}
	return snaps
}

// ListAuthorSnapshots returns a task's author rows, newest first.
func (s *SQLiteStore) ListAuthorSnapshots(taskID string, limit int) []*models.AuthorSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, task_id, collected_at, follower
		FROM author_snapshots WHERE task_id = ? ORDER BY collected_at DESC LIMIT ?
	`, taskID, limit)
	if err != nil {
		return []*models.AuthorSnapshot{}
	}
	defer rows.Close()

	var snaps []*models.AuthorSnapshot
	for rows.Next() {
		var snap models.AuthorSnapshot
		if err := rows.Scan(&snap.ID, &snap.TaskID, &snap.CollectedAt, &snap.Follower); err != nil {
			continue
		}
		snaps = append(snaps, &snap)
	}
	return snaps
}

// Stats returns row counts for diagnostics.
func (s *SQLiteStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats StoreStats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&stats.TaskCount); err != nil {
		s.logger.Error("failed to count tasks", "error", err.Error())
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&stats.AccountCount); err != nil {
		s.logger.Error("failed to count accounts", "error", err.Error())
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM video_snapshots").Scan(&stats.VideoSnapshotCount); err != nil {
		s.logger.Error("failed to count video snapshots", "error", err.Error())
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM author_snapshots").Scan(&stats.AuthorSnapshotCount); err != nil {
		s.logger.Error("failed to count author snapshots", "error", err.Error())
	}
	return stats
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)
