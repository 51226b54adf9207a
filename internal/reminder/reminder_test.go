package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/themoiziqbal/todo-chatbot/internal/models"
	"github.com/themoiziqbal/todo-chatbot/internal/storage"
)

type captureNotifier struct {
	delivered []int64
	fail      bool
}

func (n *captureNotifier) Notify(userID int64, task *models.Task) error {
	if n.fail {
		return errors.New("telegram unavailable")
	}
	n.delivered = append(n.delivered, task.ID)
	return nil
}

func seedTask(t *testing.T, store *storage.MemoryStorage, userID int64, title string, due time.Time, completed bool) *models.Task {
	t.Helper()
	task := &models.Task{
		UserID:   userID,
		Title:    title,
		Priority: models.PriorityMedium,
		DueDate:  &due,
	}
	require.NoError(t, store.CreateTask(context.Background(), task))
	if completed {
		require.NoError(t, store.MarkTaskCompleted(context.Background(), userID, task.ID))
	}
	return task
}

func TestSweepNotifiesDueTasksOnce(t *testing.T) {
	store := storage.NewMemoryStorage()
	notifier := &captureNotifier{}
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	s := New(store, notifier, zap.NewNop(), "@every 5m", time.Hour)
	s.now = func() time.Time { return now }

	soon := seedTask(t, store, 1, "Standup", now.Add(30*time.Minute), false)
	seedTask(t, store, 2, "Far future", now.Add(48*time.Hour), false)
	seedTask(t, store, 3, "Already done", now.Add(10*time.Minute), true)

	s.Sweep()
	assert.Equal(t, []int64{soon.ID}, notifier.delivered)

	// A second pass inside the window must not repeat the reminder.
	s.Sweep()
	assert.Equal(t, []int64{soon.ID}, notifier.delivered)
}

func TestSweepRetriesAfterDeliveryFailure(t *testing.T) {
	store := storage.NewMemoryStorage()
	notifier := &captureNotifier{fail: true}
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	s := New(store, notifier, zap.NewNop(), "@every 5m", time.Hour)
	s.now = func() time.Time { return now }

	task := seedTask(t, store, 1, "Standup", now.Add(30*time.Minute), false)

	s.Sweep()
	assert.Empty(t, notifier.delivered)

	// Failed deliveries stay unrecorded and are retried next sweep.
	notifier.fail = false
	s.Sweep()
	assert.Equal(t, []int64{task.ID}, notifier.delivered)
}

func TestPruneDropsStaleRecords(t *testing.T) {
	store := storage.NewMemoryStorage()
	notifier := &captureNotifier{}
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	s := New(store, notifier, zap.NewNop(), "@every 5m", time.Hour)
	s.notified[55] = now.Add(-3 * time.Hour)
	s.notified[56] = now.Add(-30 * time.Minute)

	s.prune(now)
	assert.NotContains(t, s.notified, int64(55))
	assert.Contains(t, s.notified, int64(56))
}
