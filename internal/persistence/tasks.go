package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/filmcrew/internal/scheduler"
)

// SaveTask saves or updates a task snapshot and its dependencies.
// Uses ON CONFLICT to make saves idempotent.
func (s *SQLiteStore) SaveTask(ctx context.Context, task *scheduler.Task) error {
	result, err := encodeResult(task.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result of task %s: %w", task.ID, err)
	}

	var errorStr sql.NullString
	if task.Error != nil {
		errorStr = sql.NullString{String: task.Error.Error(), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, name, description, agent_id, action, params, status, priority, result, error, created_at, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			agent_id = excluded.agent_id,
			action = excluded.action,
			params = excluded.params,
			status = excluded.status,
			priority = excluded.priority,
			result = excluded.result,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = CURRENT_TIMESTAMP
	`, task.ID, task.Name, task.Description, task.AgentID, task.Action, nullBytes(task.Params),
		task.Status.String(), task.Priority, result, errorStr,
		formatTime(task.CreatedAt), nullTime(task.StartedAt), nullTime(task.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, task.ID); err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}

	for i, depID := range task.Dependencies {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id, position) VALUES (?, ?, ?)
		`, task.ID, depID, i)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s: %w", depID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, including its dependencies.
// Returns ErrNotFound if the task doesn't exist.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*scheduler.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, agent_id, action, params, status, priority, result, error, created_at, started_at, completed_at
		FROM tasks WHERE id = ?
	`, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	deps, err := s.getDependencies(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.Dependencies = deps
	return task, nil
}

// ListTasks returns all tasks ordered by creation time.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*scheduler.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, agent_id, action, params, status, priority, result, error, created_at, started_at, completed_at
		FROM tasks ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	var tasks []*scheduler.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	rows.Close()

	// Dependencies are loaded after the cursor is closed so the lookups don't
	// compete with it for a connection.
	for _, task := range tasks {
		deps, err := s.getDependencies(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.Dependencies = deps
	}
	return tasks, nil
}

func (s *SQLiteStore) getDependencies(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id FROM task_dependencies WHERE task_id = ? ORDER BY position
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, depID)
	}
	return deps, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*scheduler.Task, error) {
	var (
		task                   scheduler.Task
		params, result, errS   sql.NullString
		status, createdAt      string
		startedAt, completedAt sql.NullString
	)

	err := row.Scan(&task.ID, &task.Name, &task.Description, &task.AgentID, &task.Action, &params,
		&status, &task.Priority, &result, &errS, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if task.Status, err = scheduler.ParseTaskStatus(status); err != nil {
		return nil, err
	}
	if params.Valid {
		task.Params = json.RawMessage(params.String)
	}
	if result.Valid {
		if err := json.Unmarshal([]byte(result.String), &task.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result of task %s: %w", task.ID, err)
		}
	}
	if errS.Valid {
		task.Error = errors.New(errS.String)
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		if task.StartedAt, err = parseTime(startedAt.String); err != nil {
			return nil, err
		}
	}
	if completedAt.Valid {
		if task.CompletedAt, err = parseTime(completedAt.String); err != nil {
			return nil, err
		}
	}
	return &task, nil
}

// encodeResult stores results as JSON. Results that can't be marshalled
// are kept as their printed form.
func encodeResult(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	if err, ok := v.(error); ok {
		v = err.Error()
	}
	data, err := json.Marshal(v)
	if err != nil {
		data, err = json.Marshal(fmt.Sprintf("%v", v))
		if err != nil {
			return sql.NullString{}, err
		}
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullBytes(b json.RawMessage) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// timeLayout is fixed width so timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
