package tools

import (
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var categoryEnum = []string{"work", "home", "study", "personal", "shopping", "health", "fitness"}

var addTaskSchema = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "add_task",
		Description: "Create a new task for the user. Supports optional due date, priority, category and recurrence.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"title": {
					Type:        jsonschema.String,
					Description: "Task title, 1-200 characters",
				},
				"description": {
					Type:        jsonschema.String,
					Description: "Optional longer description of the task",
				},
				"due_date": {
					Type:        jsonschema.String,
					Description: "Optional due date in ISO 8601 format, e.g. 2025-01-15T10:00:00Z",
				},
				"priority": {
					Type:        jsonschema.String,
					Enum:        []string{"high", "medium", "low"},
					Description: "Task priority, defaults to medium",
				},
				"category": {
					Type:        jsonschema.String,
					Enum:        categoryEnum,
					Description: "Optional task category",
				},
				"is_recurring": {
					Type:        jsonschema.Boolean,
					Description: "Whether the task repeats on a schedule",
				},
				"recurrence_pattern": {
					Type:        jsonschema.String,
					Enum:        []string{"daily", "weekly", "monthly"},
					Description: "Required when is_recurring is true",
				},
				"recurrence_interval": {
					Type:        jsonschema.Integer,
					Description: "Repeat every N periods, defaults to 1",
				},
				"recurrence_day_of_week": {
					Type:        jsonschema.Integer,
					Description: "For weekly tasks: 0 (Monday) to 6 (Sunday)",
				},
				"recurrence_day_of_month": {
					Type:        jsonschema.Integer,
					Description: "For monthly tasks: 1 to 31, clamped to the month's last day",
				},
				"recurrence_end_date": {
					Type:        jsonschema.String,
					Description: "Optional ISO 8601 date after which no new instances are created",
				},
			},
			Required: []string{"title"},
		},
	},
}

var listTasksSchema = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "list_tasks",
		Description: "List the user's tasks with optional filtering, search and sorting.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"status": {
					Type:        jsonschema.String,
					Enum:        []string{"all", "pending", "completed"},
					Description: "Filter by completion status, defaults to all",
				},
				"priority": {
					Type: jsonschema.String,
					Enum: []string{"high", "medium", "low"},
				},
				"category": {
					Type: jsonschema.String,
					Enum: categoryEnum,
				},
				"search": {
					Type:        jsonschema.String,
					Description: "Substring match against title and description",
				},
				"due_date_from": {
					Type:        jsonschema.String,
					Description: "Only tasks due on or after this ISO 8601 timestamp",
				},
				"due_date_to": {
					Type:        jsonschema.String,
					Description: "Only tasks due on or before this ISO 8601 timestamp",
				},
				"sort_by": {
					Type: jsonschema.String,
					Enum: []string{"created_at", "due_date", "priority", "title"},
				},
				"sort_order": {
					Type: jsonschema.String,
					Enum: []string{"asc", "desc"},
				},
			},
		},
	},
}

var completeTaskSchema = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "complete_task",
		Description: "Mark a task as completed. For recurring tasks the next instance is created automatically.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"task_id": {
					Type:        jsonschema.Integer,
					Description: "ID of the task to complete",
				},
			},
			Required: []string{"task_id"},
		},
	},
}

var deleteTaskSchema = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "delete_task",
		Description: "Delete a task. The task is hidden from all listings but kept for history.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"task_id": {
					Type:        jsonschema.Integer,
					Description: "ID of the task to delete",
				},
			},
			Required: []string{"task_id"},
		},
	},
}

var updateTaskSchema = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "update_task",
		Description: "Update fields of an existing task. Only the provided fields change.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"task_id": {
					Type:        jsonschema.Integer,
					Description: "ID of the task to update",
				},
				"title": {
					Type:        jsonschema.String,
					Description: "New title, 1-200 characters",
				},
				"description": {
					Type: jsonschema.String,
				},
				"due_date": {
					Type:        jsonschema.String,
					Description: "New due date in ISO 8601 format, or empty to clear",
				},
				"priority": {
					Type: jsonschema.String,
					Enum: []string{"high", "medium", "low"},
				},
				"category": {
					Type: jsonschema.String,
					Enum: categoryEnum,
				},
				"completed": {
					Type: jsonschema.Boolean,
				},
			},
			Required: []string{"task_id"},
		},
	},
}
