package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilitrack/bilitrack/internal/config"
	"github.com/bilitrack/bilitrack/internal/logging"
	"github.com/bilitrack/bilitrack/internal/models"
	"github.com/bilitrack/bilitrack/internal/scheduler"
	"github.com/bilitrack/bilitrack/internal/store"
)

type fakeSettings struct {
	store.SettingsStore
	defaultID string
}

func (f *fakeSettings) DefaultAccountID() (string, bool) {
	if f.defaultID == "" || f.defaultID == "null" {
		return "", false
	}
	return f.defaultID, true
}

func (f *fakeSettings) SetDefaultAccountID(id string) error {
	if id == "" {
		id = "null"
	}
	f.defaultID = id
	return nil
}

type fakeStore struct {
	store.Store
	tasks    map[string]*models.Task
	accounts map[string]*models.Account
	settings *fakeSettings
	nextRuns map[string]time.Time
	statuses map[string]models.TaskStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:    make(map[string]*models.Task),
		accounts: make(map[string]*models.Account),
		settings: &fakeSettings{},
		nextRuns: make(map[string]time.Time),
		statuses: make(map[string]models.TaskStatus),
	}
}

func (f *fakeStore) GetTask(id string) (*models.Task, bool) {
	task, ok := f.tasks[id]
	return task, ok
}

func (f *fakeStore) SetTask(task *models.Task) error {
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeStore) ListTasks() []*models.Task {
	out := make([]*models.Task, 0, len(f.tasks))
	for _, task := range f.tasks {
		out = append(out, task)
	}
	return out
}

func (f *fakeStore) ListTasksByStatus(status models.TaskStatus) []*models.Task {
	var out []*models.Task
	for _, task := range f.tasks {
		if task.Status == status {
			out = append(out, task)
		}
	}
	return out
}

func (f *fakeStore) UpdateTaskStatus(id string, status models.TaskStatus, reason string) error {
	f.statuses[id] = status
	return nil
}

func (f *fakeStore) UpdateTaskNextRun(id string, nextRun time.Time) error {
	f.nextRuns[id] = nextRun
	return nil
}

func (f *fakeStore) GetAccount(id string) (*models.Account, bool) {
	acc, ok := f.accounts[id]
	return acc, ok
}

func (f *fakeStore) ListAccounts() []*models.Account {
	out := make([]*models.Account, 0, len(f.accounts))
	for _, acc := range f.accounts {
		out = append(out, acc)
	}
	return out
}

func (f *fakeStore) DeleteAccount(id string) bool {
	if _, ok := f.accounts[id]; !ok {
		return false
	}
	delete(f.accounts, id)
	return true
}

func (f *fakeStore) ListVideoSnapshots(taskID string, limit int) []*models.VideoSnapshot {
	return []*models.VideoSnapshot{{ID: "s1", TaskID: taskID}}
}

func (f *fakeStore) ListAuthorSnapshots(taskID string, limit int) []*models.AuthorSnapshot {
	return []*models.AuthorSnapshot{{ID: "s2", TaskID: taskID}}
}

func (f *fakeStore) Settings() store.SettingsStore { return f.settings }

func (f *fakeStore) Stats() store.StoreStats {
	return store.StoreStats{TaskCount: len(f.tasks), AccountCount: len(f.accounts)}
}

type fakeScheduler struct {
	status     scheduler.Status
	triggerErr error
	triggered  []string
}

func (f *fakeScheduler) Status() scheduler.Status { return f.status }

func (f *fakeScheduler) TriggerTask(ctx context.Context, taskID string) error {
	if f.triggerErr != nil {
		return f.triggerErr
	}
	f.triggered = append(f.triggered, taskID)
	return nil
}

type fakeAccounts struct {
	bindErr     error
	validateErr error
}

func (f *fakeAccounts) BindByCookie(ctx context.Context, rawCookie string) (*models.Account, error) {
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	return &models.Account{ID: "acc-1", UID: "12345", Status: models.AccountValid}, nil
}

func (f *fakeAccounts) Validate(ctx context.Context, accountID string) error {
	return f.validateErr
}

func newTestServer(st *fakeStore, sched *fakeScheduler, accounts *fakeAccounts, apiCfg config.APIConfig) *Server {
	cfg := config.ServerConfig{Host: "127.0.0.1", HTTPPort: 8318}
	if apiCfg.BasePath == "" {
		apiCfg.BasePath = "/api/v1"
	}
	logger := logging.NewLogger(logging.WithOutput(io.Discard))
	return NewServer(cfg, apiCfg, st, sched, accounts, nil, logger)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{status: scheduler.Status{Running: true}}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"scheduler":true`)
}

func TestCreateTask(t *testing.T) {
	st := newFakeStore()
	srv := newTestServer(st, &fakeScheduler{}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{
		Kind:     "video",
		TargetID: "BV1xx411c7mD",
		Strategy: models.Strategy{Mode: models.StrategyFixed, Value: 30, Unit: "minute"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.TaskRunning, created.Status)
	require.NotNil(t, created.NextRunAt)
	assert.False(t, created.Deadline.IsZero())

	_, stored := st.tasks[created.ID]
	assert.True(t, stored)
}

func TestCreateTaskRejectsBadKind(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/tasks", CreateTaskRequest{
		Kind:     "playlist",
		TargetID: "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTaskNotFound(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerTaskConflict(t *testing.T) {
	sched := &fakeScheduler{triggerErr: fmt.Errorf("task t1 cannot be triggered in status completed")}
	srv := newTestServer(newFakeStore(), sched, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/tasks/t1/trigger", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSetTaskStatusResumeReschedules(t *testing.T) {
	st := newFakeStore()
	st.tasks["t1"] = &models.Task{ID: "t1", Kind: models.TaskKindVideo, Status: models.TaskStopped}
	srv := newTestServer(st, &fakeScheduler{}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/tasks/t1/status", SetTaskStatusRequest{Status: "running"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TaskRunning, st.statuses["t1"])
	_, rescheduled := st.nextRuns["t1"]
	assert.True(t, rescheduled)
}

func TestSetTaskStatusRejectsTerminal(t *testing.T) {
	st := newFakeStore()
	st.tasks["t1"] = &models.Task{ID: "t1", Kind: models.TaskKindVideo, Status: models.TaskRunning}
	srv := newTestServer(st, &fakeScheduler{}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/tasks/t1/status", SetTaskStatusRequest{Status: "completed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSnapshotsByKind(t *testing.T) {
	st := newFakeStore()
	st.tasks["v"] = &models.Task{ID: "v", Kind: models.TaskKindVideo}
	st.tasks["a"] = &models.Task{ID: "a", Kind: models.TaskKindAuthor}
	srv := newTestServer(st, &fakeScheduler{}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/tasks/v/snapshots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"s1"`)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/tasks/a/snapshots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"s2"`)
}

func TestBindAccount(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/accounts", BindAccountRequest{Cookie: "SESSDATA=abc"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"acc-1"`)
}

func TestBindAccountFailure(t *testing.T) {
	accounts := &fakeAccounts{bindErr: fmt.Errorf("invalid cookie: SESSDATA not found")}
	srv := newTestServer(newFakeStore(), &fakeScheduler{}, accounts, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPost, "/api/v1/accounts", BindAccountRequest{Cookie: "junk"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDeleteAccount(t *testing.T) {
	st := newFakeStore()
	st.accounts["acc-1"] = &models.Account{ID: "acc-1"}
	srv := newTestServer(st, &fakeScheduler{}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodDelete, "/api/v1/accounts/acc-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/accounts/acc-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDefaultAccountRoundTrip(t *testing.T) {
	st := newFakeStore()
	st.accounts["acc-1"] = &models.Account{ID: "acc-1"}
	srv := newTestServer(st, &fakeScheduler{}, &fakeAccounts{}, config.APIConfig{})

	w := doJSON(t, srv, http.MethodPut, "/api/v1/settings/default-account", SetDefaultAccountRequest{AccountID: "acc-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/settings/default-account", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"acc-1"`)

	w = doJSON(t, srv, http.MethodPut, "/api/v1/settings/default-account", SetDefaultAccountRequest{AccountID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIKeyAuthRequired(t *testing.T) {
	apiCfg := config.APIConfig{
		Auth: config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}, HeaderName: "X-API-Key"},
	}
	srv := newTestServer(newFakeStore(), &fakeScheduler{}, &fakeAccounts{}, apiCfg)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/tasks", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health and metrics stay open.
	w = doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
