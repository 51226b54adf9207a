package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/themoiziqbal/todo-chatbot/internal/models"
	"github.com/themoiziqbal/todo-chatbot/internal/storage"
)

// Notifier delivers one reminder to a user. The Telegram bot implements it.
type Notifier interface {
	Notify(userID int64, task *models.Task) error
}

// Sweeper periodically scans for tasks coming due and pushes one reminder
// per task. Delivery state is kept in memory, so a restart may repeat a
// reminder for a task still inside the window.
type Sweeper struct {
	store    storage.Storage
	notifier Notifier
	logger   *zap.Logger
	cron     *cron.Cron
	schedule string
	window   time.Duration
	now      func() time.Time

	notified map[int64]time.Time // task id -> when we reminded
}

func New(store storage.Storage, notifier Notifier, logger *zap.Logger, schedule string, window time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		notifier: notifier,
		logger:   logger,
		cron:     cron.New(),
		schedule: schedule,
		window:   window,
		now:      time.Now,
		notified: make(map[int64]time.Time),
	}
}

// Start registers the sweep on the cron schedule and kicks off the
// scheduler. The cron runner is single-threaded, so sweeps never overlap
// and the notified map needs no locking.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Reminder sweeper started",
		zap.String("schedule", s.schedule),
		zap.Duration("window", s.window))
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep runs one pass: every pending task due within the window gets a
// reminder, unless one was already sent for it.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := s.now()
	tasks, err := s.store.DueTasksBetween(ctx, now, now.Add(s.window))
	if err != nil {
		s.logger.Error("Reminder sweep failed", zap.Error(err))
		return
	}

	sent := 0
	for _, task := range tasks {
		if _, done := s.notified[task.ID]; done {
			continue
		}
		if err := s.notifier.Notify(task.UserID, task); err != nil {
			s.logger.Error("Failed to deliver reminder",
				zap.Error(err),
				zap.Int64("task_id", task.ID),
				zap.Int64("user_id", task.UserID))
			continue
		}
		s.notified[task.ID] = now
		sent++
	}

	s.prune(now)

	if sent > 0 {
		s.logger.Info("Reminders delivered", zap.Int("count", sent))
	}
}

// prune drops delivery records old enough that their task can no longer be
// inside the window, keeping the map from growing forever.
func (s *Sweeper) prune(now time.Time) {
	cutoff := now.Add(-2 * s.window)
	for id, at := range s.notified {
		if at.Before(cutoff) {
			delete(s.notified, id)
		}
	}
}
