package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/bilitrack/bilitrack/internal/logging"
	"github.com/bilitrack/bilitrack/internal/models"
)

// Channel delivers one notification to an external sink.
type Channel interface {
	Send(title, body string) error
}

// DedupLimiter prevents duplicate notifications within a time window
type DedupLimiter struct {
	sent   map[string]time.Time
	window time.Duration
	mu     sync.Mutex
	now    func() time.Time
}

// NewDedupLimiter creates a new deduplication limiter
func NewDedupLimiter(window time.Duration) *DedupLimiter {
	return &DedupLimiter{
		sent:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether a notification with this key may be sent and
// records it when allowed.
func (dl *DedupLimiter) Allow(key string) bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	now := dl.now()
	if last, ok := dl.sent[key]; ok && now.Sub(last) < dl.window {
		return false
	}

	// Drop stale entries opportunistically.
	for k, ts := range dl.sent {
		if now.Sub(ts) >= dl.window {
			delete(dl.sent, k)
		}
	}

	dl.sent[key] = now
	return true
}

// Dispatcher fans notifications out to all configured channels.
// Delivery is best effort: a failing channel is logged, never
// propagated to the caller.
type Dispatcher struct {
	mu       sync.RWMutex
	channels []Channel
	dedup    *DedupLimiter
	logger   *logging.Logger
}

// NewDispatcher creates a dispatcher. dedupWindow suppresses repeat
// notifications with the same key.
func NewDispatcher(logger *logging.Logger, dedupWindow time.Duration) *Dispatcher {
	return &Dispatcher{
		dedup:  NewDedupLimiter(dedupWindow),
		logger: logger,
	}
}

// AddChannel registers a delivery channel.
func (d *Dispatcher) AddChannel(ch Channel) {
	d.mu.Lock()
	d.channels = append(d.channels, ch)
	d.mu.Unlock()
}

// NotifyTaskTransition announces a task reaching a terminal or parked
// status. Repeat announcements for the same task and status within the
// dedup window are dropped.
func (d *Dispatcher) NotifyTaskTransition(task *models.Task, status models.TaskStatus, reason string) {
	key := task.ID + ":" + string(status)
	if !d.dedup.Allow(key) {
		return
	}

	title := fmt.Sprintf("Task %s", status)
	body := fmt.Sprintf("%s task %s (%s)", task.Kind, taskLabel(task), status)
	if reason != "" {
		body += "\nReason: " + reason
	}
	d.send(title, body)
}

func (d *Dispatcher) send(title, body string) {
	d.mu.RLock()
	channels := append([]Channel(nil), d.channels...)
	d.mu.RUnlock()

	for _, ch := range channels {
		if err := ch.Send(title, body); err != nil {
			d.logger.Warn("notification delivery failed", "error", err.Error())
		}
	}
}

func taskLabel(task *models.Task) string {
	if task.Title != "" {
		return task.Title
	}
	return task.TargetID
}
