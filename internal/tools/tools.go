package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/themoiziqbal/todo-chatbot/internal/models"
	"github.com/themoiziqbal/todo-chatbot/internal/recurrence"
	"github.com/themoiziqbal/todo-chatbot/internal/storage"
)

// Result envelope error codes.
const (
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "NOT_FOUND"
	codeServer     = "SERVER_ERROR"
)

const maxTitleLength = 200

// Tools implements the five task-management tool handlers over a Storage.
type Tools struct {
	store  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

func New(store storage.Storage, logger *zap.Logger) *Tools {
	return &Tools{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (t *Tools) WithClock(now func() time.Time) *Tools {
	t.now = now
	return t
}

// Registry builds a registry with all five tools registered in their
// canonical order.
func (t *Tools) Registry() *Registry {
	r := NewRegistry()
	r.Register("add_task", t.addTask, addTaskSchema)
	r.Register("list_tasks", t.listTasks, listTasksSchema)
	r.Register("complete_task", t.completeTask, completeTaskSchema)
	r.Register("delete_task", t.deleteTask, deleteTaskSchema)
	r.Register("update_task", t.updateTask, updateTaskSchema)
	return r
}

func (t *Tools) addTask(ctx context.Context, userID int64, args map[string]any) map[string]any {
	title := strings.TrimSpace(stringArg(args, "title"))
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return failure(fmt.Sprintf("Title must be 1-%d characters", maxTitleLength), codeValidation)
	}

	priority := models.PriorityMedium
	if p := stringArg(args, "priority"); p != "" {
		priority = models.Priority(p)
		if !models.ValidPriority(priority) {
			return failure("Invalid priority. Must be high, medium or low", codeValidation)
		}
	}

	var category models.Category
	if c := stringArg(args, "category"); c != "" {
		category = models.Category(c)
		if !models.ValidCategory(category) {
			return failure("Invalid category", codeValidation)
		}
	}

	dueDate, ok := timeArg(args, "due_date")
	if !ok {
		return failure("Invalid due_date format. Use ISO format (e.g., 2025-01-15T10:00:00Z)", codeValidation)
	}

	task := &models.Task{
		UserID:      userID,
		Title:       title,
		Description: stringArg(args, "description"),
		Priority:    priority,
		Category:    category,
		DueDate:     dueDate,
	}

	if boolArg(args, "is_recurring") {
		pattern := models.RecurrencePattern(stringArg(args, "recurrence_pattern"))
		if !models.ValidRecurrencePattern(pattern) {
			return failure("Invalid recurrence_pattern. Must be daily, weekly or monthly", codeValidation)
		}
		interval := 1
		if v, has, ok := intArg(args, "recurrence_interval"); has {
			if !ok || v < 1 {
				return failure("recurrence_interval must be a positive integer", codeValidation)
			}
			interval = v
		}
		endDate, ok := timeArg(args, "recurrence_end_date")
		if !ok {
			return failure("Invalid recurrence_end_date format. Use ISO format (e.g., 2025-12-31T23:59:59Z)", codeValidation)
		}

		task.IsRecurring = true
		task.RecurrencePattern = pattern
		task.RecurrenceInterval = interval
		task.RecurrenceEndDate = endDate
		task.RecurrenceActive = true

		if v, has, ok := intArg(args, "recurrence_day_of_week"); has {
			if !ok || v < 0 || v > 6 {
				return failure("recurrence_day_of_week must be 0 (Monday) to 6 (Sunday)", codeValidation)
			}
			task.RecurrenceDayOfWeek = &v
		}
		if v, has, ok := intArg(args, "recurrence_day_of_month"); has {
			if !ok || v < 1 || v > 31 {
				return failure("recurrence_day_of_month must be 1 to 31", codeValidation)
			}
			task.RecurrenceDayOfMonth = &v
		}
	}

	if err := t.store.CreateTask(ctx, task); err != nil {
		t.logger.Error("Failed to create task",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return failure("Failed to create task. Please try again.", codeServer)
	}

	data := taskData(task)
	if task.IsRecurring {
		base := recurrence.DefaultBase(t.now())
		if task.DueDate != nil {
			base = *task.DueDate
		}
		next, _, err := recurrence.NextOccurrence(base, task.RecurrencePattern, task.RecurrenceInterval,
			task.RecurrenceDayOfWeek, task.RecurrenceDayOfMonth)
		if err == nil {
			data["next_recurrence"] = next.Format(time.RFC3339)
		}
	}

	message := "Task created successfully"
	if task.IsRecurring {
		message += " (recurring)"
	}
	return success(data, message)
}

func (t *Tools) listTasks(ctx context.Context, userID int64, args map[string]any) map[string]any {
	filter := storage.TaskFilter{Status: "all"}

	if s := stringArg(args, "status"); s != "" {
		if s != "all" && s != "pending" && s != "completed" {
			return failure("Invalid status. Must be all, pending or completed", codeValidation)
		}
		filter.Status = s
	}
	if p := stringArg(args, "priority"); p != "" {
		if !models.ValidPriority(models.Priority(p)) {
			return failure("Invalid priority filter", codeValidation)
		}
		filter.Priority = models.Priority(p)
	}
	if c := stringArg(args, "category"); c != "" {
		if !models.ValidCategory(models.Category(c)) {
			return failure("Invalid category filter", codeValidation)
		}
		filter.Category = models.Category(c)
	}
	filter.Search = stringArg(args, "search")

	var ok bool
	if filter.DueFrom, ok = timeArg(args, "due_date_from"); !ok {
		return failure("Invalid due_date_from format", codeValidation)
	}
	if filter.DueTo, ok = timeArg(args, "due_date_to"); !ok {
		return failure("Invalid due_date_to format", codeValidation)
	}

	if s := stringArg(args, "sort_by"); s != "" {
		switch s {
		case "created_at", "due_date", "priority", "title":
			filter.SortBy = s
		default:
			return failure("Invalid sort_by. Must be created_at, due_date, priority or title", codeValidation)
		}
	}
	if s := stringArg(args, "sort_order"); s != "" {
		if s != "asc" && s != "desc" {
			return failure("Invalid sort_order. Must be asc or desc", codeValidation)
		}
		filter.SortOrder = s
	}

	tasks, err := t.store.ListTasks(ctx, userID, filter)
	if err != nil {
		t.logger.Error("Failed to list tasks",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return failure("Failed to list tasks. Please try again.", codeServer)
	}

	items := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskData(task))
	}
	return success(map[string]any{
		"tasks": items,
		"count": len(items),
	}, fmt.Sprintf("Found %d tasks", len(items)))
}

func (t *Tools) completeTask(ctx context.Context, userID int64, args map[string]any) map[string]any {
	taskID, ok := taskIDArg(args)
	if !ok {
		return failure("task_id must be a positive integer", codeValidation)
	}

	task, err := t.store.GetTask(ctx, userID, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return failure(fmt.Sprintf("Task %d not found or access denied", taskID), codeNotFound)
	}
	if err != nil {
		t.logger.Error("Failed to load task",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int64("task_id", taskID))
		return failure("Failed to complete task. Please try again.", codeServer)
	}

	if task.Completed {
		return success(map[string]any{
			"task_id": task.ID,
			"status":  "completed",
		}, "Task already completed")
	}

	if err := t.store.MarkTaskCompleted(ctx, userID, taskID); err != nil {
		t.logger.Error("Failed to complete task",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int64("task_id", taskID))
		return failure("Failed to complete task. Please try again.", codeServer)
	}
	task.Completed = true

	data := map[string]any{
		"task_id": task.ID,
		"status":  "completed",
	}
	message := "Task completed successfully"

	if task.IsRecurring && task.RecurrencePattern != "" {
		if recurrence.ShouldSpawnNext(task.RecurrenceEndDate, task.RecurrenceActive, t.now()) {
			next, err := recurrence.SpawnNextInstance(*task, t.now())
			if err != nil {
				// Completion already succeeded; a spawn failure must not undo it.
				t.logger.Error("Failed to build next recurring instance",
					zap.Error(err),
					zap.Int64("task_id", taskID))
			} else {
				inserted, err := t.store.SpawnNextTask(ctx, &next)
				switch {
				case err != nil:
					t.logger.Error("Failed to spawn next recurring instance",
						zap.Error(err),
						zap.Int64("task_id", taskID))
				case !inserted:
					t.logger.Info("Next recurring instance already exists, skipping spawn",
						zap.Int64("task_id", taskID))
				default:
					data["next_task_id"] = next.ID
					if next.DueDate != nil {
						data["next_task_due_date"] = next.DueDate.Format(time.RFC3339)
						message = fmt.Sprintf("Task completed. Next instance created (task_id=%d, due=%s)",
							next.ID, next.DueDate.Format(time.RFC3339))
					} else {
						message = fmt.Sprintf("Task completed. Next instance created (task_id=%d)", next.ID)
					}
				}
			}
		} else if !task.RecurrenceActive {
			message = "Task completed. Recurrence is paused."
		} else {
			message = "Task completed. Recurrence has ended."
		}
	}

	return success(data, message)
}

func (t *Tools) deleteTask(ctx context.Context, userID int64, args map[string]any) map[string]any {
	taskID, ok := taskIDArg(args)
	if !ok {
		return failure("task_id must be a positive integer", codeValidation)
	}

	err := t.store.SoftDeleteTask(ctx, userID, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return failure(fmt.Sprintf("Task %d not found or access denied", taskID), codeNotFound)
	}
	if err != nil {
		t.logger.Error("Failed to delete task",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int64("task_id", taskID))
		return failure("Failed to delete task. Please try again.", codeServer)
	}

	return success(map[string]any{
		"task_id": taskID,
		"status":  "deleted",
	}, "Task deleted successfully")
}

func (t *Tools) updateTask(ctx context.Context, userID int64, args map[string]any) map[string]any {
	taskID, ok := taskIDArg(args)
	if !ok {
		return failure("task_id must be a positive integer", codeValidation)
	}

	task, err := t.store.GetTask(ctx, userID, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return failure(fmt.Sprintf("Task %d not found or access denied", taskID), codeNotFound)
	}
	if err != nil {
		t.logger.Error("Failed to load task",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int64("task_id", taskID))
		return failure("Failed to update task. Please try again.", codeServer)
	}

	if _, has := args["title"]; has {
		title := strings.TrimSpace(stringArg(args, "title"))
		if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
			return failure(fmt.Sprintf("Title must be 1-%d characters", maxTitleLength), codeValidation)
		}
		task.Title = title
	}
	if _, has := args["description"]; has {
		task.Description = stringArg(args, "description")
	}
	if p := stringArg(args, "priority"); p != "" {
		if !models.ValidPriority(models.Priority(p)) {
			return failure("Invalid priority. Must be high, medium or low", codeValidation)
		}
		task.Priority = models.Priority(p)
	}
	if c := stringArg(args, "category"); c != "" {
		if !models.ValidCategory(models.Category(c)) {
			return failure("Invalid category", codeValidation)
		}
		task.Category = models.Category(c)
	}
	if _, has := args["due_date"]; has {
		dueDate, ok := timeArg(args, "due_date")
		if !ok {
			return failure("Invalid due_date format. Use ISO format (e.g., 2025-01-15T10:00:00Z)", codeValidation)
		}
		task.DueDate = dueDate
	}
	if v, has := args["completed"]; has {
		b, ok := v.(bool)
		if !ok {
			return failure("completed must be a boolean", codeValidation)
		}
		task.Completed = b
	}

	if err := t.store.UpdateTask(ctx, task); err != nil {
		t.logger.Error("Failed to update task",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int64("task_id", taskID))
		return failure("Failed to update task. Please try again.", codeServer)
	}

	return success(taskData(task), "Task updated successfully")
}

func taskData(task *models.Task) map[string]any {
	status := "pending"
	if task.Completed {
		status = "completed"
	}

	data := map[string]any{
		"task_id":      task.ID,
		"title":        task.Title,
		"description":  task.Description,
		"status":       status,
		"priority":     string(task.Priority),
		"category":     string(task.Category),
		"is_recurring": task.IsRecurring,
	}
	if task.DueDate != nil {
		data["due_date"] = task.DueDate.Format(time.RFC3339)
	}
	if task.IsRecurring {
		data["recurrence_pattern"] = string(task.RecurrencePattern)
		data["recurrence_interval"] = task.RecurrenceInterval
	}
	if task.ParentRecurrenceID != nil {
		data["parent_recurrence_id"] = *task.ParentRecurrenceID
	}
	return data
}

func success(data map[string]any, message string) map[string]any {
	return map[string]any{
		"success": true,
		"data":    data,
		"message": message,
	}
}

func failure(message, code string) map[string]any {
	return map[string]any{
		"success":    false,
		"data":       nil,
		"message":    message,
		"error_code": code,
	}
}

// stringArg returns args[key] as a string, or "" when absent or not a string.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// intArg reads an integer argument. JSON numbers arrive as float64; values
// with a fractional part are rejected. Returns (value, present, valid).
func intArg(args map[string]any, key string) (int, bool, bool) {
	v, has := args[key]
	if !has || v == nil {
		return 0, false, true
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, true, false
		}
		return int(n), true, true
	case int:
		return n, true, true
	case int64:
		return int(n), true, true
	default:
		return 0, true, false
	}
}

// timeArg parses an optional RFC 3339 timestamp argument. The bool reports
// whether the argument was absent or parseable.
func timeArg(args map[string]any, key string) (*time.Time, bool) {
	s := stringArg(args, key)
	if s == "" {
		if v, has := args[key]; has && v != nil {
			if _, isString := v.(string); !isString {
				return nil, false
			}
		}
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

func taskIDArg(args map[string]any) (int64, bool) {
	v, has, ok := intArg(args, "task_id")
	if !has || !ok || v <= 0 {
		return 0, false
	}
	return int64(v), true
}
