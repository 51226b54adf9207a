package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/themoiziqbal/todo-chatbot/internal/models"
)

// MemoryStorage is an in-process Storage used for tests and local runs.
type MemoryStorage struct {
	mu            sync.Mutex
	tasks         map[int64]*models.Task
	conversations map[int64]*models.Conversation
	messages      map[int64][]*models.Message

	nextTaskID         int64
	nextConversationID int64
	nextMessageID      int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks:         make(map[int64]*models.Task),
		conversations: make(map[int64]*models.Conversation),
		messages:      make(map[int64][]*models.Message),
	}
}

func (s *MemoryStorage) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTaskID++
	task.ID = s.nextTaskID
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt

	clone := *task
	s.tasks[task.ID] = &clone
	return nil
}

func (s *MemoryStorage) GetTask(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID || task.DeletedAt != nil {
		return nil, ErrNotFound
	}
	clone := *task
	return &clone, nil
}

func (s *MemoryStorage) ListTasks(ctx context.Context, userID int64, filter TaskFilter) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*models.Task
	for _, task := range s.tasks {
		if task.UserID != userID || task.DeletedAt != nil {
			continue
		}
		if !matchesFilter(task, filter) {
			continue
		}
		clone := *task
		tasks = append(tasks, &clone)
	}

	sortTasks(tasks, filter.SortBy, filter.SortOrder)
	return tasks, nil
}

func matchesFilter(task *models.Task, filter TaskFilter) bool {
	switch filter.Status {
	case "pending":
		if task.Completed {
			return false
		}
	case "completed":
		if !task.Completed {
			return false
		}
	}
	if filter.Priority != "" && task.Priority != filter.Priority {
		return false
	}
	if filter.Category != "" && task.Category != filter.Category {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(task.Title), needle) &&
			!strings.Contains(strings.ToLower(task.Description), needle) {
			return false
		}
	}
	if filter.DueFrom != nil && (task.DueDate == nil || task.DueDate.Before(*filter.DueFrom)) {
		return false
	}
	if filter.DueTo != nil && (task.DueDate == nil || task.DueDate.After(*filter.DueTo)) {
		return false
	}
	return true
}

func sortTasks(tasks []*models.Task, sortBy, sortOrder string) {
	less := func(a, b *models.Task) bool {
		switch sortBy {
		case "due_date":
			switch {
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			default:
				return a.DueDate.Before(*b.DueDate)
			}
		case "priority":
			return a.Priority < b.Priority
		case "title":
			return a.Title < b.Title
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if sortOrder == "asc" {
			return less(tasks[i], tasks[j])
		}
		return less(tasks[j], tasks[i])
	})
}

func (s *MemoryStorage) UpdateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[task.ID]
	if !ok || existing.UserID != task.UserID || existing.DeletedAt != nil {
		return ErrNotFound
	}

	existing.Title = task.Title
	existing.Description = task.Description
	existing.Completed = task.Completed
	existing.Priority = task.Priority
	existing.Category = task.Category
	existing.DueDate = task.DueDate
	existing.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) MarkTaskCompleted(ctx context.Context, userID, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID || task.DeletedAt != nil {
		return ErrNotFound
	}
	task.Completed = true
	task.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) SoftDeleteTask(ctx context.Context, userID, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID || task.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	task.DeletedAt = &now
	task.UpdatedAt = now
	return nil
}

func (s *MemoryStorage) SpawnNextTask(ctx context.Context, next *models.Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Same guard the Postgres unique index provides: one open instance per
	// chain per owner.
	for _, task := range s.tasks {
		if task.UserID == next.UserID &&
			task.ParentRecurrenceID != nil && next.ParentRecurrenceID != nil &&
			*task.ParentRecurrenceID == *next.ParentRecurrenceID &&
			!task.Completed && task.DeletedAt == nil {
			return false, nil
		}
	}

	s.nextTaskID++
	next.ID = s.nextTaskID
	next.CreatedAt = time.Now()
	next.UpdatedAt = next.CreatedAt

	clone := *next
	s.tasks[next.ID] = &clone
	return true, nil
}

func (s *MemoryStorage) DueTasksBetween(ctx context.Context, from, to time.Time) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*models.Task
	for _, task := range s.tasks {
		if task.DeletedAt != nil || task.Completed || task.DueDate == nil {
			continue
		}
		if task.DueDate.Before(from) || !task.DueDate.Before(to) {
			continue
		}
		clone := *task
		tasks = append(tasks, &clone)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].DueDate.Before(*tasks[j].DueDate)
	})
	return tasks, nil
}

func (s *MemoryStorage) CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextConversationID++
	conv := &models.Conversation{
		ID:        s.nextConversationID,
		UserID:    userID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.conversations[conv.ID] = conv

	clone := *conv
	return &clone, nil
}

func (s *MemoryStorage) GetConversation(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *conv
	return &clone, nil
}

func (s *MemoryStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return ErrNotFound
	}

	s.nextMessageID++
	msg.ID = s.nextMessageID
	msg.CreatedAt = time.Now()

	clone := *msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &clone)
	s.conversations[msg.ConversationID].UpdatedAt = msg.CreatedAt
	return nil
}

func (s *MemoryStorage) RecentMessages(ctx context.Context, conversationID int64, count int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.messages[conversationID]
	start := len(all) - count
	if start < 0 {
		start = 0
	}

	messages := make([]*models.Message, 0, len(all)-start)
	for _, msg := range all[start:] {
		clone := *msg
		messages = append(messages, &clone)
	}
	return messages, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
