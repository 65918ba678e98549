package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/taskstore/internal/config"
	"github.com/procflow/taskstore/internal/domain"
)

var taskLogColumns = []string{
	"log_number", "task_id", "entry_type", "time_stamp", "user_id", "data",
	"execution_id", "process_instance_id", "scope_id", "sub_scope_id",
	"scope_type", "tenant_id",
}

// TaskLogRepository is the append-only store of task log entries. Log numbers
// come from a dedicated sequence claimed inside the caller's transaction:
// allocation is serializable across concurrent appenders, and a number burned
// by a rollback stays unused, which the ordering contract allows.
type TaskLogRepository struct {
	pool        *pgxpool.Pool
	maxInParams int
}

// NewTaskLogRepository creates a new TaskLogRepository.
func NewTaskLogRepository(pool *pgxpool.Pool) *TaskLogRepository {
	return &TaskLogRepository{pool: pool, maxInParams: config.DefaultMaxInParameters}
}

// Append inserts a log entry within the given transaction and fills in its
// assigned log number. The task id is required; a zero timestamp defaults to
// the append time.
func (r *TaskLogRepository) Append(ctx context.Context, tx pgx.Tx, entry *domain.TaskLogEntry) error {
	if entry.TaskID == "" {
		return fmt.Errorf("%w: log entry requires a task id", domain.ErrIllegalArgument)
	}
	if entry.TimeStamp.IsZero() {
		entry.TimeStamp = time.Now()
	}

	query, args, err := psql.
		Insert("task_log_entries").
		Columns(
			"task_id", "entry_type", "time_stamp", "user_id", "data",
			"execution_id", "process_instance_id", "scope_id", "sub_scope_id",
			"scope_type", "tenant_id",
		).
		Values(
			entry.TaskID, entry.Type, entry.TimeStamp, entry.UserID, entry.Data,
			entry.ExecutionID, entry.ProcessInstanceID, entry.ScopeID,
			entry.SubScopeID, entry.ScopeType, entry.TenantID,
		).
		Suffix("RETURNING log_number").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Append query for log entry: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&entry.LogNumber); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// DeleteByLogNumber removes one entry. Deleting a number that does not exist
// is an explicit no-op, never an error.
func (r *TaskLogRepository) DeleteByLogNumber(ctx context.Context, logNumber int64) error {
	query, args, err := psql.
		Delete("task_log_entries").
		Where(sq.Eq{"log_number": logNumber}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build DeleteByLogNumber query for log entry %d: %w", logNumber, err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete log entry: %w", err)
	}
	return nil
}

// DeleteByTaskID removes all entries of a task, used by cascading task
// deletion when log removal is requested.
func (r *TaskLogRepository) DeleteByTaskID(ctx context.Context, tx pgx.Tx, taskID string) error {
	query, args, err := psql.
		Delete("task_log_entries").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build DeleteByTaskID query for log entries: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete log entries: %w", err)
	}
	return nil
}

// DeleteOlderThan removes entries stamped before the cutoff and reports how
// many went away. Retention maintenance, exposed through the purge-log
// command.
func (r *TaskLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql.
		Delete("task_log_entries").
		Where(sq.Lt{"time_stamp": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build DeleteOlderThan query for log entries: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete log entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanTaskLogEntries(rows pgx.Rows) ([]*domain.TaskLogEntry, error) {
	defer rows.Close()

	var entries []*domain.TaskLogEntry
	for rows.Next() {
		var e domain.TaskLogEntry
		err := rows.Scan(
			&e.LogNumber,
			&e.TaskID,
			&e.Type,
			&e.TimeStamp,
			&e.UserID,
			&e.Data,
			&e.ExecutionID,
			&e.ProcessInstanceID,
			&e.ScopeID,
			&e.SubScopeID,
			&e.ScopeType,
			&e.TenantID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}
