package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/procflow/taskstore/internal/domain"
)

// NativeTaskQuery is the escape hatch for filters the predicate model cannot
// express: a backend-native SELECT with @named parameters. The statement must
// project the task columns in their canonical order (SELECT tasks.* works).
// It participates in the shared pagination and counting contract by wrapping
// the caller's statement in a derived table.
type NativeTaskQuery struct {
	r      *TaskRepository
	sql    string
	params map[string]any
}

// NativeQuery starts a native task query.
func (r *TaskRepository) NativeQuery(sql string, params map[string]any) *NativeTaskQuery {
	return &NativeTaskQuery{r: r, sql: sql, params: params}
}

func (q *NativeTaskQuery) args() pgx.NamedArgs {
	if q.params == nil {
		return pgx.NamedArgs{}
	}
	return pgx.NamedArgs(q.params)
}

// List executes the statement without pagination.
func (q *NativeTaskQuery) List(ctx context.Context) ([]*domain.Task, error) {
	if q.sql == "" {
		return nil, fmt.Errorf("%w: native query statement is required", domain.ErrIllegalArgument)
	}

	rows, err := q.r.pool.Query(ctx, q.sql, q.args())
	if err != nil {
		return nil, fmt.Errorf("native task query: %w", err)
	}
	return scanTasks(rows)
}

// ListPage executes the statement for the window [offset, offset+count),
// with the same empty-page semantics as the predicate queries.
func (q *NativeTaskQuery) ListPage(ctx context.Context, offset, count int) ([]*domain.Task, error) {
	if q.sql == "" {
		return nil, fmt.Errorf("%w: native query statement is required", domain.ErrIllegalArgument)
	}
	if count <= 0 {
		return []*domain.Task{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	paged := "SELECT * FROM (" + q.sql + ") native_q LIMIT " +
		strconv.Itoa(count) + " OFFSET " + strconv.Itoa(offset)
	rows, err := q.r.pool.Query(ctx, paged, q.args())
	if err != nil {
		return nil, fmt.Errorf("native task query: %w", err)
	}
	return scanTasks(rows)
}

// Count wraps the statement in a count query.
func (q *NativeTaskQuery) Count(ctx context.Context) (int64, error) {
	if q.sql == "" {
		return 0, fmt.Errorf("%w: native query statement is required", domain.ErrIllegalArgument)
	}

	counted := "SELECT COUNT(*) FROM (" + q.sql + ") native_q"
	var total int64
	if err := q.r.pool.QueryRow(ctx, counted, q.args()).Scan(&total); err != nil {
		return 0, fmt.Errorf("native task count: %w", err)
	}
	return total, nil
}

// SingleResult returns the only matching task, nil when nothing matches, and
// ErrAmbiguousResult for more than one match.
func (q *NativeTaskQuery) SingleResult(ctx context.Context) (*domain.Task, error) {
	tasks, err := q.ListPage(ctx, 0, 2)
	if err != nil {
		return nil, err
	}
	switch len(tasks) {
	case 0:
		return nil, nil
	case 1:
		return tasks[0], nil
	default:
		return nil, domain.ErrAmbiguousResult
	}
}
