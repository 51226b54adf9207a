package models

import "time"

// Priority levels a task can carry.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ValidPriority reports whether p is one of the allowed priority values.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Category is the closed set of task categories.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryHome     Category = "home"
	CategoryStudy    Category = "study"
	CategoryPersonal Category = "personal"
	CategoryShopping Category = "shopping"
	CategoryHealth   Category = "health"
	CategoryFitness  Category = "fitness"
)

// ValidCategory reports whether c is one of the allowed categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryWork, CategoryHome, CategoryStudy, CategoryPersonal,
		CategoryShopping, CategoryHealth, CategoryFitness:
		return true
	}
	return false
}

// RecurrencePattern describes how often a recurring task repeats.
type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
)

// ValidRecurrencePattern reports whether p is a known pattern.
func ValidRecurrencePattern(p RecurrencePattern) bool {
	switch p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Task is a single todo item owned by exactly one user. Every read and
// write is scoped by UserID.
type Task struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	Category    Category   `json:"category,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	// Recurrence block. A non-recurring task leaves all of these unset.
	IsRecurring          bool              `json:"is_recurring"`
	RecurrencePattern    RecurrencePattern `json:"recurrence_pattern,omitempty"`
	RecurrenceInterval   int               `json:"recurrence_interval,omitempty"`
	RecurrenceEndDate    *time.Time        `json:"recurrence_end_date,omitempty"`
	RecurrenceDayOfWeek  *int              `json:"recurrence_day_of_week,omitempty"`
	RecurrenceDayOfMonth *int              `json:"recurrence_day_of_month,omitempty"`
	// ParentRecurrenceID points at the root task of a recurrence chain.
	// Every spawned instance carries the same root id, never a chain of chains.
	ParentRecurrenceID *int64 `json:"parent_recurrence_id,omitempty"`
	RecurrenceActive   bool   `json:"recurrence_active"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Conversation groups the messages of one chat session. Created lazily on
// the first message of a session, never deleted.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRole is who authored a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in a conversation's append-only history.
type Message struct {
	ID               int64       `json:"id"`
	ConversationID   int64       `json:"conversation_id"`
	UserID           int64       `json:"user_id"`
	Role             MessageRole `json:"role"`
	Content          string      `json:"content"`
	DetectedLanguage string      `json:"detected_language"`
	CreatedAt        time.Time   `json:"created_at"`
}

// ToolCall records one tool invocation made during a chat turn. It is
// surfaced to the caller for audit and never persisted.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result map[string]any `json:"result"`
}
