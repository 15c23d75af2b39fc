package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bilitrack/bilitrack/internal/models"
)

func taskWithStrategy(s models.Strategy) *models.Task {
	return &models.Task{ID: "t1", Kind: models.TaskKindVideo, Strategy: s}
}

func TestNextIntervalFixed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		strategy models.Strategy
		want     time.Duration
	}{
		{"minutes", models.Strategy{Mode: models.StrategyFixed, Value: 15, Unit: "minute"}, 15 * time.Minute},
		{"hours", models.Strategy{Mode: models.StrategyFixed, Value: 2, Unit: "hour"}, 2 * time.Hour},
		{"days", models.Strategy{Mode: models.StrategyFixed, Value: 1, Unit: "day"}, 24 * time.Hour},
		{"unknown unit falls back to minutes", models.Strategy{Mode: models.StrategyFixed, Value: 45, Unit: "fortnight"}, 45 * time.Minute},
		{"missing value gets default", models.Strategy{Mode: models.StrategyFixed}, 240 * time.Minute},
		{"negative value gets default", models.Strategy{Mode: models.StrategyFixed, Value: -5, Unit: "minute"}, 240 * time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextInterval(taskWithStrategy(tc.strategy), now))
		})
	}
}

func TestNextIntervalSmart(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		age  time.Duration
		want time.Duration
	}{
		{"fresh video", 2 * 24 * time.Hour, 10 * time.Minute},
		{"just under five days", 5*24*time.Hour - time.Minute, 10 * time.Minute},
		{"exactly five days", 5 * 24 * time.Hour, 120 * time.Minute},
		{"just under fourteen days", 14*24*time.Hour - time.Minute, 120 * time.Minute},
		{"exactly fourteen days", 14 * 24 * time.Hour, 240 * time.Minute},
		{"old video", 60 * 24 * time.Hour, 240 * time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := taskWithStrategy(models.Strategy{Mode: models.StrategySmart})
			published := now.Add(-tc.age)
			task.PublishedAt = &published
			assert.Equal(t, tc.want, NextInterval(task, now))
		})
	}
}

func TestNextIntervalSmartWithoutPublishTime(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	task := taskWithStrategy(models.Strategy{Mode: models.StrategySmart})

	assert.Equal(t, 30*time.Minute, NextInterval(task, now))
}

func TestNextIntervalManualHasNoInterval(t *testing.T) {
	now := time.Now()
	task := taskWithStrategy(models.Strategy{Mode: models.StrategyManual})

	assert.Equal(t, time.Duration(0), NextInterval(task, now))
}

func TestNextIntervalUnknownMode(t *testing.T) {
	now := time.Now()
	task := taskWithStrategy(models.Strategy{Mode: "lunar"})

	assert.Equal(t, 30*time.Minute, NextInterval(task, now))
}

func TestNextDueAnchorsAtNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	task := taskWithStrategy(models.Strategy{Mode: models.StrategyFixed, Value: 30, Unit: "minute"})

	assert.Equal(t, now.Add(30*time.Minute), NextDue(task, now))
}
