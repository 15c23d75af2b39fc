package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskValidate(t *testing.T) {
	base := func() *Task {
		return &Task{
			ID:       "task-1",
			Kind:     TaskKindVideo,
			TargetID: "BV1xx411c7mD",
			Deadline: time.Now().Add(24 * time.Hour),
			Strategy: Strategy{Mode: StrategyFixed, Value: 10, Unit: "minute"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		task := base()
		task.ID = ""
		assert.Error(t, task.Validate())
	})

	t.Run("bad kind", func(t *testing.T) {
		task := base()
		task.Kind = "playlist"
		assert.Error(t, task.Validate())
	})

	t.Run("missing deadline", func(t *testing.T) {
		task := base()
		task.Deadline = time.Time{}
		assert.Error(t, task.Validate())
	})

	t.Run("bad strategy mode", func(t *testing.T) {
		task := base()
		task.Strategy.Mode = "random"
		assert.Error(t, task.Validate())
	})
}

func TestTaskIsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	t.Run("running and past due", func(t *testing.T) {
		task := &Task{Status: TaskRunning, NextRunAt: &past}
		assert.True(t, task.IsDue(now))
	})

	t.Run("running but not due", func(t *testing.T) {
		task := &Task{Status: TaskRunning, NextRunAt: &future}
		assert.False(t, task.IsDue(now))
	})

	t.Run("not running", func(t *testing.T) {
		task := &Task{Status: TaskPaused, NextRunAt: &past}
		assert.False(t, task.IsDue(now))
	})

	t.Run("no next run", func(t *testing.T) {
		task := &Task{Status: TaskRunning}
		assert.False(t, task.IsDue(now))
	})
}

func TestTaskAgeDays(t *testing.T) {
	now := time.Now()

	t.Run("known publish time", func(t *testing.T) {
		published := now.Add(-48 * time.Hour)
		task := &Task{PublishedAt: &published}
		age, ok := task.AgeDays(now)
		assert.True(t, ok)
		assert.InDelta(t, 2.0, age, 0.001)
	})

	t.Run("unknown publish time", func(t *testing.T) {
		task := &Task{}
		_, ok := task.AgeDays(now)
		assert.False(t, ok)
	})
}
