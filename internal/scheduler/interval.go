package scheduler

import (
	"time"

	"github.com/bilitrack/bilitrack/internal/models"
)

const (
	// defaultFixedInterval applies when a fixed strategy carries no
	// usable value.
	defaultFixedInterval = 240 * time.Minute

	// fallbackInterval applies when the smart strategy has no publish
	// time to reason about, and to unrecognized strategy modes.
	fallbackInterval = 30 * time.Minute

	smartFreshInterval  = 10 * time.Minute
	smartRecentInterval = 120 * time.Minute
	smartStaleInterval  = 240 * time.Minute

	smartFreshAgeDays  = 5
	smartRecentAgeDays = 14
)

// NextInterval computes how long a task waits until its next
// collection. Manual strategies have no automatic interval and return
// zero; the caller parks those tasks instead of rescheduling them.
func NextInterval(task *models.Task, now time.Time) time.Duration {
	switch task.Strategy.Mode {
	case models.StrategyFixed:
		return fixedInterval(task.Strategy)
	case models.StrategySmart:
		return smartInterval(task, now)
	case models.StrategyManual:
		return 0
	default:
		return fallbackInterval
	}
}

// NextDue is NextInterval anchored at now.
func NextDue(task *models.Task, now time.Time) time.Time {
	return now.Add(NextInterval(task, now))
}

func fixedInterval(s models.Strategy) time.Duration {
	if s.Value <= 0 {
		return defaultFixedInterval
	}
	switch s.Unit {
	case "hour":
		return time.Duration(s.Value) * time.Hour
	case "day":
		return time.Duration(s.Value) * 24 * time.Hour
	default:
		return time.Duration(s.Value) * time.Minute
	}
}

// smartInterval tightens the cadence for freshly published videos and
// relaxes it as they age.
func smartInterval(task *models.Task, now time.Time) time.Duration {
	age, ok := task.AgeDays(now)
	if !ok {
		return fallbackInterval
	}
	switch {
	case age < smartFreshAgeDays:
		return smartFreshInterval
	case age < smartRecentAgeDays:
		return smartRecentInterval
	default:
		return smartStaleInterval
	}
}
