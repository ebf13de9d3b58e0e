// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron"

	"quiz-practice/internal/content"
	"quiz-practice/internal/models"
	"quiz-practice/internal/observability"
	"quiz-practice/pkg/cache"
	"quiz-practice/pkg/logger"
)

const (
	lockKey = "scheduler:deliveries"
	lockTTL = 5 * time.Minute
)

// LockFunc takes the cluster-wide tick lock. It returns cache.ErrLockHeld
// when another instance holds it.
type LockFunc func(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)

// RedisLock adapts a RedisCache to a LockFunc.
func RedisLock(c *cache.RedisCache) LockFunc {
	return func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
		l, err := c.AcquireLock(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		return l.Release, nil
	}
}

type Deliverer interface {
	DueScheduled(ctx context.Context, now time.Time) ([]models.Item, error)
	Redeliver(ctx context.Context, old models.Item) (*content.GenerateResult, error)
}

// Notifier hears about every freshly delivered item.
type Notifier interface {
	ItemDelivered(ctx context.Context, item models.ItemDTO, ownerID uint) error
}

type Scheduler struct {
	spec      string
	deliverer Deliverer
	lock      LockFunc
	notifiers []Notifier
	log       *logger.Logger
	now       func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
}

func New(spec string, deliverer Deliverer, lock LockFunc, log *logger.Logger, notifiers ...Notifier) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		spec:      spec,
		deliverer: deliverer,
		lock:      lock,
		notifiers: notifiers,
		log:       log.With("component", "scheduler"),
		now:       time.Now,
	}
}

// Start registers the tick and starts the cron runner. Ticks stop when ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cron.New()
	if err := c.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("scheduler started", "spec", s.spec)
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

// Tick delivers every due scheduled item once. It returns how many items were
// delivered.
func (s *Scheduler) Tick(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	release, err := s.lock(ctx, lockKey, lockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		observability.SchedulerRuns.WithLabelValues("skipped").Inc()
		s.log.Debug("another instance is delivering, skipping tick")
		return 0
	}
	if err != nil {
		observability.SchedulerRuns.WithLabelValues("failed").Inc()
		s.log.Error("could not take scheduler lock", "error", err)
		return 0
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("could not release scheduler lock", "error", err)
		}
	}()

	due, err := s.deliverer.DueScheduled(ctx, s.now())
	if err != nil {
		observability.SchedulerRuns.WithLabelValues("failed").Inc()
		s.log.Error("could not load due items", "error", err)
		return 0
	}

	delivered := 0
	for _, old := range due {
		res, err := s.deliverer.Redeliver(ctx, old)
		if err != nil {
			s.log.Warn("scheduled delivery failed", "item_id", old.ID, "user_id", old.OwnerUserID, "error", err)
			if res == nil {
				continue
			}
		}
		delivered++
		s.notify(ctx, res.Item, old.OwnerUserID)
	}

	observability.SchedulerRuns.WithLabelValues("ran").Inc()
	if len(due) > 0 {
		s.log.Info("scheduler tick finished", "due", len(due), "delivered", delivered)
	}
	return delivered
}

// notify pushes the new item without its answer; the owner answers it later.
func (s *Scheduler) notify(ctx context.Context, item models.ItemDTO, ownerID uint) {
	item.CorrectAnswer = ""
	for _, n := range s.notifiers {
		if err := n.ItemDelivered(ctx, item, ownerID); err != nil {
			s.log.Warn("delivery notifier failed", "item_id", item.ID, "error", err)
		}
	}
}
