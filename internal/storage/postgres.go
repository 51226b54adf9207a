package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/themoiziqbal/todo-chatbot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const taskColumns = `id, user_id, title, description, completed, priority, category, due_date,
	is_recurring, recurrence_pattern, recurrence_interval, recurrence_end_date,
	recurrence_day_of_week, recurrence_day_of_month, parent_recurrence_id, recurrence_active,
	created_at, updated_at, deleted_at`

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (user_id, title, description, completed, priority, category, due_date,
			is_recurring, recurrence_pattern, recurrence_interval, recurrence_end_date,
			recurrence_day_of_week, recurrence_day_of_month, parent_recurrence_id, recurrence_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		task.UserID,
		task.Title,
		task.Description,
		task.Completed,
		task.Priority,
		nullString(string(task.Category)),
		task.DueDate,
		task.IsRecurring,
		nullString(string(task.RecurrencePattern)),
		task.RecurrenceInterval,
		task.RecurrenceEndDate,
		task.RecurrenceDayOfWeek,
		task.RecurrenceDayOfMonth,
		task.ParentRecurrenceID,
		task.RecurrenceActive,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("error creating task: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetTask(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, taskID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying task: %w", err)
	}
	return task, nil
}

// taskSortColumns whitelists the ORDER BY targets ListTasks accepts.
var taskSortColumns = map[string]string{
	"created_at": "created_at",
	"due_date":   "due_date",
	"priority":   "priority",
	"title":      "title",
}

func (s *PostgresStorage) ListTasks(ctx context.Context, userID int64, filter TaskFilter) ([]*models.Task, error) {
	qb := psql.Select(taskColumns).
		From("tasks").
		Where(sq.Eq{"user_id": userID}).
		Where("deleted_at IS NULL")

	switch filter.Status {
	case "pending":
		qb = qb.Where(sq.Eq{"completed": false})
	case "completed":
		qb = qb.Where(sq.Eq{"completed": true})
	}
	if filter.Priority != "" {
		qb = qb.Where(sq.Eq{"priority": filter.Priority})
	}
	if filter.Category != "" {
		qb = qb.Where(sq.Eq{"category": filter.Category})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		qb = qb.Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"description": pattern},
		})
	}
	if filter.DueFrom != nil {
		qb = qb.Where(sq.GtOrEq{"due_date": *filter.DueFrom})
	}
	if filter.DueTo != nil {
		qb = qb.Where(sq.LtOrEq{"due_date": *filter.DueTo})
	}

	sortCol, ok := taskSortColumns[filter.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}
	qb = qb.OrderBy(sortCol + " " + order)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *PostgresStorage) UpdateTask(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $1, description = $2, completed = $3, priority = $4, category = $5,
			due_date = $6, updated_at = NOW()
		WHERE id = $7 AND user_id = $8 AND deleted_at IS NULL`

	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Completed,
		task.Priority,
		nullString(string(task.Category)),
		task.DueDate,
		task.ID,
		task.UserID,
	)
	if err != nil {
		return fmt.Errorf("error updating task: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStorage) MarkTaskCompleted(ctx context.Context, userID, taskID int64) error {
	query := `
		UPDATE tasks
		SET completed = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		return fmt.Errorf("error completing task: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStorage) SoftDeleteTask(ctx context.Context, userID, taskID int64) error {
	query := `
		UPDATE tasks
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, taskID, userID)
	if err != nil {
		return fmt.Errorf("error deleting task: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStorage) SpawnNextTask(ctx context.Context, next *models.Task) (bool, error) {
	// The partial unique index on (user_id, parent_recurrence_id) makes a
	// second open instance of the same chain conflict; DO NOTHING turns the
	// losing insert into a no-op.
	query := `
		INSERT INTO tasks (user_id, title, description, completed, priority, category, due_date,
			is_recurring, recurrence_pattern, recurrence_interval, recurrence_end_date,
			recurrence_day_of_week, recurrence_day_of_month, parent_recurrence_id, recurrence_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		next.UserID,
		next.Title,
		next.Description,
		next.Completed,
		next.Priority,
		nullString(string(next.Category)),
		next.DueDate,
		next.IsRecurring,
		nullString(string(next.RecurrencePattern)),
		next.RecurrenceInterval,
		next.RecurrenceEndDate,
		next.RecurrenceDayOfWeek,
		next.RecurrenceDayOfMonth,
		next.ParentRecurrenceID,
		next.RecurrenceActive,
	).Scan(&next.ID, &next.CreatedAt, &next.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error spawning next task: %w", err)
	}
	return true, nil
}

func (s *PostgresStorage) DueTasksBetween(ctx context.Context, from, to time.Time) ([]*models.Task, error) {
	qb := psql.Select(taskColumns).
		From("tasks").
		Where("deleted_at IS NULL").
		Where(sq.Eq{"completed": false}).
		Where(sq.GtOrEq{"due_date": from}).
		Where(sq.Lt{"due_date": to}).
		OrderBy("due_date ASC")

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building due-tasks query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying due tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *PostgresStorage) CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (user_id)
		VALUES ($1)
		RETURNING id, created_at, updated_at`

	conv := &models.Conversation{UserID: userID}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStorage) GetConversation(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, query, conversationID).
		Scan(&conv.ID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (conversation_id, user_id, role, content, detected_language)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		msg.ConversationID,
		msg.UserID,
		msg.Role,
		msg.Content,
		msg.DetectedLanguage,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("error touching conversation: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentMessages(ctx context.Context, conversationID int64, count int) ([]*models.Message, error) {
	// Newest first to apply the limit, then reversed to chronological order.
	query := `
		SELECT id, conversation_id, user_id, role, content, detected_language, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, conversationID, count)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.UserID,
			&msg.Role,
			&msg.Content,
			&msg.DetectedLanguage,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var (
		category   sql.NullString
		pattern    sql.NullString
		dueDate    sql.NullTime
		endDate    sql.NullTime
		dayOfWeek  sql.NullInt64
		dayOfMonth sql.NullInt64
		parentID   sql.NullInt64
		deletedAt  sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&task.Priority,
		&category,
		&dueDate,
		&task.IsRecurring,
		&pattern,
		&task.RecurrenceInterval,
		&endDate,
		&dayOfWeek,
		&dayOfMonth,
		&parentID,
		&task.RecurrenceActive,
		&task.CreatedAt,
		&task.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Category = models.Category(category.String)
	task.RecurrencePattern = models.RecurrencePattern(pattern.String)
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		task.RecurrenceEndDate = &t
	}
	if dayOfWeek.Valid {
		v := int(dayOfWeek.Int64)
		task.RecurrenceDayOfWeek = &v
	}
	if dayOfMonth.Valid {
		v := int(dayOfMonth.Int64)
		task.RecurrenceDayOfMonth = &v
	}
	if parentID.Valid {
		v := parentID.Int64
		task.ParentRecurrenceID = &v
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		task.DeletedAt = &t
	}
	return task, nil
}

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
