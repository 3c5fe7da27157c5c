package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/filmcrew/internal/scheduler"
)

const finishedBefore = `status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`

// PruneBefore deletes tasks that finished before cutoff, along with their
// dependency rows and output. Pending, blocked and running tasks are kept
// however old they are. It returns the number of tasks removed.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := []any{
		scheduler.TaskCompleted.String(),
		scheduler.TaskFailed.String(),
		scheduler.TaskCancelled.String(),
		formatTime(cutoff),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Output rows have no foreign key because lines can arrive before the
	// first snapshot, so they are removed explicitly.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM task_output WHERE task_id IN (SELECT id FROM tasks WHERE `+finishedBefore+`)`, args...); err != nil {
		return 0, fmt.Errorf("failed to prune output: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE `+finishedBefore, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned tasks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return n, nil
}
