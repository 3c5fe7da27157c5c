package persistence

import (
	"context"
	"fmt"
	"time"
)

// SaveOutput appends one line of agent output for a task.
func (s *SQLiteStore) SaveOutput(ctx context.Context, taskID, line string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_output (task_id, line, timestamp) VALUES (?, ?, ?)
	`, taskID, line, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to save output: %w", err)
	}
	return nil
}

// GetOutput returns the recorded output of a task in the order it was written.
// Returns an empty slice (not an error) when the task has no output.
func (s *SQLiteStore) GetOutput(ctx context.Context, taskID string) ([]OutputLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line, timestamp FROM task_output WHERE task_id = ? ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query output: %w", err)
	}
	defer rows.Close()

	lines := []OutputLine{}
	for rows.Next() {
		var (
			out OutputLine
			ts  string
		)
		if err := rows.Scan(&out.Line, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan output: %w", err)
		}
		if out.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		lines = append(lines, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating output: %w", err)
	}
	return lines, nil
}
