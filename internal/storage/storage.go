package storage

import (
	"context"
	"errors"
	"time"

	"github.com/themoiziqbal/todo-chatbot/internal/models"
)

var (
	// ErrNotFound is returned when a task or conversation does not exist
	// or is not visible to the requesting owner.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a conversation exists but belongs to a
	// different owner.
	ErrForbidden = errors.New("forbidden")
)

// TaskFilter narrows and orders ListTasks results. Zero values mean
// "no filter".
type TaskFilter struct {
	Status    string // "all", "pending", "completed"
	Priority  models.Priority
	Category  models.Category
	Search    string // case-insensitive match on title and description
	DueFrom   *time.Time
	DueTo     *time.Time
	SortBy    string // created_at, due_date, priority, title
	SortOrder string // asc, desc
}

// Storage is the durable home of tasks, conversations and messages. All
// task and conversation operations are owner-scoped; implementations must
// never return rows belonging to another user.
type Storage interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, userID, taskID int64) (*models.Task, error)
	ListTasks(ctx context.Context, userID int64, filter TaskFilter) ([]*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	MarkTaskCompleted(ctx context.Context, userID, taskID int64) error
	SoftDeleteTask(ctx context.Context, userID, taskID int64) error

	// SpawnNextTask inserts the successor instance of a recurrence chain.
	// The insert is guarded: when an open (not completed, not deleted)
	// instance of the same chain already exists the call is a no-op and
	// returns false. This closes the duplicate-spawn race under concurrent
	// completions.
	SpawnNextTask(ctx context.Context, next *models.Task) (bool, error)

	// DueTasksBetween returns open tasks across all users whose due date
	// falls in [from, to). Used by the reminder sweep.
	DueTasksBetween(ctx context.Context, from, to time.Time) ([]*models.Task, error)

	CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int64) (*models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	RecentMessages(ctx context.Context, conversationID int64, count int) ([]*models.Message, error)

	Close() error
}
