package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/taskstore/internal/config"
	"github.com/procflow/taskstore/internal/domain"
)

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "name", "description", "priority", "assignee", "owner", "due_date",
	"category", "parent_task_id", "form_key", "task_definition_key",
	"task_definition_id", "scope_id", "scope_type", "delegation_state",
	"process_instance_id", "execution_id", "tenant_id", "suspension_state",
	"revision", "create_time",
}

// TaskRepository handles database operations for live tasks.
type TaskRepository struct {
	pool        *pgxpool.Pool
	vars        *VariableRepository
	links       *IdentityLinkRepository
	maxInParams int
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool, vars *VariableRepository, links *IdentityLinkRepository) *TaskRepository {
	return &TaskRepository{
		pool:        pool,
		vars:        vars,
		links:       links,
		maxInParams: config.DefaultMaxInParameters,
	}
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Description,
		&task.Priority,
		&task.Assignee,
		&task.Owner,
		&task.DueDate,
		&task.Category,
		&task.ParentTaskID,
		&task.FormKey,
		&task.TaskDefinitionKey,
		&task.TaskDefinitionID,
		&task.ScopeID,
		&task.ScopeType,
		&task.DelegationState,
		&task.ProcessInstanceID,
		&task.ExecutionID,
		&task.TenantID,
		&task.SuspensionState,
		&task.Revision,
		&task.CreateTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// GetByID retrieves a task by ID.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	task, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewTaskNotFound(taskID)
	}
	return task, err
}

// GetByIDForUpdate retrieves a task by ID with FOR UPDATE lock (within transaction).
func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByIDForUpdate query for task %s: %w", taskID, err)
	}

	task, err := scanTask(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewTaskNotFound(taskID)
	}
	return task, err
}

// Create inserts a new task within a transaction.
func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	query, args, err := psql.
		Insert("tasks").
		Columns(taskColumns...).
		Values(
			task.ID,
			task.Name,
			task.Description,
			task.Priority,
			task.Assignee,
			task.Owner,
			task.DueDate,
			task.Category,
			task.ParentTaskID,
			task.FormKey,
			task.TaskDefinitionKey,
			task.TaskDefinitionID,
			task.ScopeID,
			task.ScopeType,
			task.DelegationState,
			task.ProcessInstanceID,
			task.ExecutionID,
			task.TenantID,
			task.SuspensionState,
			task.Revision,
			task.CreateTime,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for task: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update writes all mutable fields guarded by the revision counter. A stale
// revision surfaces as ErrRevisionConflict; a missing row as not-found. On
// success the task's Revision is advanced in memory to match the row.
func (r *TaskRepository) Update(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	query, args, err := psql.
		Update("tasks").
		Set("name", task.Name).
		Set("description", task.Description).
		Set("priority", task.Priority).
		Set("assignee", task.Assignee).
		Set("owner", task.Owner).
		Set("due_date", task.DueDate).
		Set("category", task.Category).
		Set("parent_task_id", task.ParentTaskID).
		Set("form_key", task.FormKey).
		Set("task_definition_key", task.TaskDefinitionKey).
		Set("task_definition_id", task.TaskDefinitionID).
		Set("scope_id", task.ScopeID).
		Set("scope_type", task.ScopeType).
		Set("delegation_state", task.DelegationState).
		Set("process_instance_id", task.ProcessInstanceID).
		Set("execution_id", task.ExecutionID).
		Set("tenant_id", task.TenantID).
		Set("suspension_state", task.SuspensionState).
		Set("revision", task.Revision+1).
		Where(sq.Eq{
			"id":       task.ID,
			"revision": task.Revision,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for task %s: %w", task.ID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, task.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: task %s revision %d", domain.ErrRevisionConflict, task.ID, task.Revision)
	}

	task.Revision++
	return nil
}

// Delete removes a task row. Deleting a missing row is a no-op.
func (r *TaskRepository) Delete(ctx context.Context, tx pgx.Tx, taskID string) error {
	query, args, err := psql.
		Delete("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for task %s: %w", taskID, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ListSubtaskIDs returns the ids of the direct subtasks of a task.
func (r *TaskRepository) ListSubtaskIDs(ctx context.Context, taskID string) ([]string, error) {
	query, args, err := psql.
		Select("id").
		From("tasks").
		Where(sq.Eq{"parent_task_id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListSubtaskIDs query for task %s: %w", taskID, err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subtasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subtask id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return ids, nil
}
