package collector

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bilitrack/bilitrack/internal/bili"
	apperrors "github.com/bilitrack/bilitrack/internal/errors"
	"github.com/bilitrack/bilitrack/internal/logging"
	"github.com/bilitrack/bilitrack/internal/models"
	"github.com/bilitrack/bilitrack/internal/store"
)

// ErrDeferred signals that the collector already rescheduled or
// terminated the task itself; the caller must neither advance the
// schedule nor apply failure backoff.
var ErrDeferred = errors.New("collection deferred")

// maxCidAttempts bounds how often a video task may fail to resolve its
// upstream cid before turning failed.
const maxCidAttempts = 5

// cidRetryDelay is the short reschedule applied after a non-terminal
// cid resolution failure.
const cidRetryDelay = time.Minute

// Upstream is the slice of the platform client the collector consumes.
type Upstream interface {
	VideoView(ctx context.Context, bvid, cookie string) (*bili.VideoView, error)
	OnlineTotal(ctx context.Context, bvid, cid, cookie string) (int64, error)
	RelationStat(ctx context.Context, uid, cookie string) (int64, error)
}

// CookieSource resolves the credential a task collects with.
type CookieSource interface {
	ResolveCookie(task *models.Task) (*models.Account, string, error)
}

// Notifier announces task status transitions.
type Notifier interface {
	NotifyTaskTransition(task *models.Task, status models.TaskStatus, reason string)
}

// Collector fetches one snapshot per invocation and appends it to the
// store. Scheduling decisions stay with the caller except for cid
// retries, which the collector owns.
type Collector struct {
	store    store.Store
	upstream Upstream
	cookies  CookieSource
	logger   *logging.Logger
	notifier Notifier
	now      func() time.Time
}

func New(st store.Store, upstream Upstream, cookies CookieSource, logger *logging.Logger) *Collector {
	return &Collector{
		store:    st,
		upstream: upstream,
		cookies:  cookies,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the collector's clock, for tests.
func (c *Collector) SetClock(now func() time.Time) {
	c.now = now
}

// SetNotifier installs a transition notifier. May stay unset.
func (c *Collector) SetNotifier(n Notifier) {
	c.notifier = n
}

// Collect runs one collection for the task and persists the snapshot.
func (c *Collector) Collect(ctx context.Context, task *models.Task) error {
	switch task.Kind {
	case models.TaskKindVideo:
		return c.collectVideo(ctx, task)
	case models.TaskKindAuthor:
		return c.collectAuthor(ctx, task)
	default:
		return &apperrors.ErrUnknownTaskKind{Kind: string(task.Kind)}
	}
}

func (c *Collector) collectVideo(ctx context.Context, task *models.Task) error {
	acc, cookie, err := c.cookies.ResolveCookie(task)
	if err != nil {
		return err
	}

	view, err := c.upstream.VideoView(ctx, task.TargetID, cookie)
	if err != nil {
		err = attributeAuthFailure(err, acc)
		// Until the cid is known a failed view fetch counts against the
		// resolution attempt limit rather than the ordinary backoff path.
		if task.Cid == "" {
			return c.deferCidRetry(task, err)
		}
		return err
	}

	if task.Cid == "" {
		c.adoptVideoInfo(task, view)
	}

	snap := &models.VideoSnapshot{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		CollectedAt: c.now(),
		View:        view.Stat.View,
		Like:        view.Stat.Like,
		Coin:        view.Stat.Coin,
		Favorite:    view.Stat.Favorite,
		Share:       view.Stat.Share,
		Danmaku:     view.Stat.Danmaku,
		Reply:       view.Stat.Reply,
	}

	// Live viewer count is best effort: its endpoint flakes
	// independently of the counters, so a miss only leaves Online nil.
	if online, err := c.upstream.OnlineTotal(ctx, task.TargetID, task.Cid, cookie); err == nil {
		snap.Online = &online
	} else {
		c.logger.Debug("online count unavailable", "task_id", task.ID, "error", err.Error())
	}

	return c.store.InsertVideoSnapshot(snap)
}

func (c *Collector) collectAuthor(ctx context.Context, task *models.Task) error {
	acc, cookie, err := c.cookies.ResolveCookie(task)
	if err != nil {
		return err
	}

	follower, err := c.upstream.RelationStat(ctx, task.TargetID, cookie)
	if err != nil {
		return attributeAuthFailure(err, acc)
	}

	return c.store.InsertAuthorSnapshot(&models.AuthorSnapshot{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		CollectedAt: c.now(),
		Follower:    follower,
	})
}

// adoptVideoInfo persists the metadata the first successful view fetch
// reveals: the cid, the title, and the publish time the smart interval
// needs.
func (c *Collector) adoptVideoInfo(task *models.Task, view *bili.VideoView) {
	task.Cid = strconv.FormatInt(view.Cid, 10)
	task.CidRetries = 0
	if err := c.store.UpdateTaskCid(task.ID, task.Cid); err != nil {
		c.logger.Error("persisting resolved cid", "task_id", task.ID, "error", err.Error())
	}

	changed := false
	if task.Title == "" && view.Title != "" {
		task.Title = view.Title
		changed = true
	}
	if task.PublishedAt == nil && view.Pubdate > 0 {
		published := time.Unix(view.Pubdate, 0)
		task.PublishedAt = &published
		changed = true
	}
	if changed {
		task.UpdatedAt = c.now()
		if err := c.store.SetTask(task); err != nil {
			c.logger.Error("persisting video metadata", "task_id", task.ID, "error", err.Error())
		}
	}
}

func (c *Collector) deferCidRetry(task *models.Task, cause error) error {
	attempts := task.CidRetries + 1

	if attempts >= maxCidAttempts {
		reason := (&apperrors.ErrCidResolution{Attempts: attempts, Err: cause}).Error()
		if err := c.store.UpdateTaskStatus(task.ID, models.TaskFailed, reason); err != nil {
			return err
		}
		if c.notifier != nil {
			c.notifier.NotifyTaskTransition(task, models.TaskFailed, reason)
		}
		c.logger.Warn("task failed: cid resolution exhausted", "task_id", task.ID, "attempts", attempts)
		return ErrDeferred
	}

	retryAt := c.now().Add(cidRetryDelay)
	if err := c.store.UpdateTaskCidRetries(task.ID, attempts, &retryAt); err != nil {
		return err
	}
	c.logger.Info("cid resolution failed, retrying shortly",
		"task_id", task.ID, "attempt", attempts, "error", cause.Error())
	return ErrDeferred
}

// attributeAuthFailure rewrites auth-coded upstream errors as
// credential rejections so the caller can charge the account.
func attributeAuthFailure(err error, acc *models.Account) error {
	var upstream *apperrors.ErrUpstreamAPI
	if errors.As(err, &upstream) {
		switch upstream.Code {
		case -101, -111: // not logged in, csrf invalid
			return &apperrors.ErrCredentialRejected{AccountID: acc.ID, Err: err}
		}
	}
	return err
}
