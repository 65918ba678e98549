package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/taskstore/internal/config"
	"github.com/procflow/taskstore/internal/domain"
)

var historicTaskColumns = []string{
	"id", "name", "description", "priority", "assignee", "owner", "due_date",
	"category", "parent_task_id", "form_key", "task_definition_key",
	"scope_id", "scope_type", "delegation_state", "process_instance_id",
	"execution_id", "tenant_id", "start_time", "claim_time", "end_time",
	"duration_millis", "delete_reason",
}

// HistoricTaskRepository handles database operations for the historic mirror.
type HistoricTaskRepository struct {
	pool        *pgxpool.Pool
	vars        *VariableRepository
	links       *IdentityLinkRepository
	maxInParams int
}

// NewHistoricTaskRepository creates a new HistoricTaskRepository.
func NewHistoricTaskRepository(pool *pgxpool.Pool, vars *VariableRepository, links *IdentityLinkRepository) *HistoricTaskRepository {
	return &HistoricTaskRepository{
		pool:        pool,
		vars:        vars,
		links:       links,
		maxInParams: config.DefaultMaxInParameters,
	}
}

func scanHistoricTask(row pgx.Row) (*domain.HistoricTask, error) {
	var h domain.HistoricTask
	err := row.Scan(
		&h.ID,
		&h.Name,
		&h.Description,
		&h.Priority,
		&h.Assignee,
		&h.Owner,
		&h.DueDate,
		&h.Category,
		&h.ParentTaskID,
		&h.FormKey,
		&h.TaskDefinitionKey,
		&h.ScopeID,
		&h.ScopeType,
		&h.DelegationState,
		&h.ProcessInstanceID,
		&h.ExecutionID,
		&h.TenantID,
		&h.StartTime,
		&h.ClaimTime,
		&h.EndTime,
		&h.DurationMillis,
		&h.DeleteReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan historic task: %w", err)
	}
	return &h, nil
}

func scanHistoricTasks(rows pgx.Rows) ([]*domain.HistoricTask, error) {
	defer rows.Close()

	var tasks []*domain.HistoricTask
	for rows.Next() {
		h, err := scanHistoricTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// GetByID retrieves a historic task by ID.
func (r *HistoricTaskRepository) GetByID(ctx context.Context, taskID string) (*domain.HistoricTask, error) {
	query, args, err := psql.
		Select(historicTaskColumns...).
		From("historic_tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for historic task: %w", err)
	}

	h, err := scanHistoricTask(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewHistoricTaskNotFound(taskID)
	}
	return h, err
}

// Upsert writes the mirror row for a task, inside the same transaction as
// the mutation it mirrors.
func (r *HistoricTaskRepository) Upsert(ctx context.Context, tx pgx.Tx, h *domain.HistoricTask) error {
	query, args, err := psql.
		Insert("historic_tasks").
		Columns(historicTaskColumns...).
		Values(
			h.ID, h.Name, h.Description, h.Priority, h.Assignee, h.Owner,
			h.DueDate, h.Category, h.ParentTaskID, h.FormKey,
			h.TaskDefinitionKey, h.ScopeID, h.ScopeType, h.DelegationState,
			h.ProcessInstanceID, h.ExecutionID, h.TenantID, h.StartTime,
			h.ClaimTime, h.EndTime, h.DurationMillis, h.DeleteReason,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			priority = EXCLUDED.priority,
			assignee = EXCLUDED.assignee,
			owner = EXCLUDED.owner,
			due_date = EXCLUDED.due_date,
			category = EXCLUDED.category,
			parent_task_id = EXCLUDED.parent_task_id,
			form_key = EXCLUDED.form_key,
			task_definition_key = EXCLUDED.task_definition_key,
			scope_id = EXCLUDED.scope_id,
			scope_type = EXCLUDED.scope_type,
			delegation_state = EXCLUDED.delegation_state,
			process_instance_id = EXCLUDED.process_instance_id,
			execution_id = EXCLUDED.execution_id,
			tenant_id = EXCLUDED.tenant_id,
			end_time = EXCLUDED.end_time,
			duration_millis = EXCLUDED.duration_millis,
			delete_reason = EXCLUDED.delete_reason`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Upsert query for historic task %s: %w", h.ID, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert historic task: %w", err)
	}
	return nil
}

// SetClaimTime stamps the mirror row with the moment the task was claimed.
func (r *HistoricTaskRepository) SetClaimTime(ctx context.Context, tx pgx.Tx, taskID string, claimTime time.Time) error {
	query, args, err := psql.
		Update("historic_tasks").
		Set("claim_time", claimTime).
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build SetClaimTime query for historic task %s: %w", taskID, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("set historic task claim time: %w", err)
	}
	return nil
}

// MarkEnded stamps the mirror row with its end time and delete reason.
func (r *HistoricTaskRepository) MarkEnded(ctx context.Context, tx pgx.Tx, taskID string, endTime time.Time, deleteReason *string) error {
	query, args, err := psql.
		Update("historic_tasks").
		Set("end_time", endTime).
		Set("duration_millis", sq.Expr("(EXTRACT(EPOCH FROM (?::timestamptz - start_time)) * 1000)::bigint", endTime)).
		Set("delete_reason", deleteReason).
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkEnded query for historic task %s: %w", taskID, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark historic task ended: %w", err)
	}
	return nil
}

// Delete removes a mirror row. Missing rows are a no-op.
func (r *HistoricTaskRepository) Delete(ctx context.Context, tx pgx.Tx, taskID string) error {
	query, args, err := psql.
		Delete("historic_tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for historic task %s: %w", taskID, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete historic task: %w", err)
	}
	return nil
}
