package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/procflow/taskstore/internal/domain"
	"github.com/procflow/taskstore/internal/query"
)

// TaskLogQuery is the fluent query surface over the append-only log store,
// built on the same predicate engine and null-aware ordering as the task
// queries. All range bounds are inclusive.
type TaskLogQuery struct {
	r           *TaskLogRepository
	builder     *query.Builder
	orders      []query.OrderBy
	maxInParams int
}

// Query starts a new log entry query.
func (r *TaskLogRepository) Query() *TaskLogQuery {
	return &TaskLogQuery{
		r:           r,
		builder:     query.NewBuilder(),
		maxInParams: r.maxInParams,
	}
}

// Or opens an OR group; EndOr closes it.
func (q *TaskLogQuery) Or() *TaskLogQuery {
	q.builder.BeginOr()
	return q
}

// EndOr closes the OR group opened by Or.
func (q *TaskLogQuery) EndOr() *TaskLogQuery {
	q.builder.EndOr()
	return q
}

// TaskID filters by task. An empty id means "do not filter by task" — the
// distinct "entries whose task id is null" cannot occur, since entries are
// rejected at creation without one.
func (q *TaskLogQuery) TaskID(taskID string) *TaskLogQuery {
	if taskID != "" {
		q.builder.Add(query.Eq("task_log_entries.task_id", taskID))
	}
	return q
}

// UserID filters by the recorded user.
func (q *TaskLogQuery) UserID(userID string) *TaskLogQuery {
	if userID == "" {
		q.builder.Failf("UserID: user id is required")
		return q
	}
	q.builder.Add(query.Eq("task_log_entries.user_id", userID))
	return q
}

// Type filters by entry type.
func (q *TaskLogQuery) Type(entryType string) *TaskLogQuery {
	if entryType == "" {
		q.builder.Failf("Type: entry type is required")
		return q
	}
	q.builder.Add(query.Eq("task_log_entries.entry_type", entryType))
	return q
}

// TypeIn filters by membership in a set of entry types.
func (q *TaskLogQuery) TypeIn(entryTypes []string) *TaskLogQuery {
	if len(entryTypes) == 0 {
		q.builder.Failf("TypeIn: entry types must not be empty")
		return q
	}
	q.builder.Add(query.In("task_log_entries.entry_type", toAny(entryTypes)))
	return q
}

// ProcessInstanceID filters by owning process instance.
func (q *TaskLogQuery) ProcessInstanceID(processInstanceID string) *TaskLogQuery {
	if processInstanceID == "" {
		q.builder.Failf("ProcessInstanceID: process instance id is required")
		return q
	}
	q.builder.Add(query.Eq("task_log_entries.process_instance_id", processInstanceID))
	return q
}

// ScopeID filters by scope correlation id.
func (q *TaskLogQuery) ScopeID(scopeID string) *TaskLogQuery {
	if scopeID == "" {
		q.builder.Failf("ScopeID: scope id is required")
		return q
	}
	q.builder.Add(query.Eq("task_log_entries.scope_id", scopeID))
	return q
}

// SubScopeID filters by sub-scope correlation id.
func (q *TaskLogQuery) SubScopeID(subScopeID string) *TaskLogQuery {
	if subScopeID == "" {
		q.builder.Failf("SubScopeID: sub scope id is required")
		return q
	}
	q.builder.Add(query.Eq("task_log_entries.sub_scope_id", subScopeID))
	return q
}

// ScopeType filters by scope correlation type.
func (q *TaskLogQuery) ScopeType(scopeType string) *TaskLogQuery {
	if scopeType == "" {
		q.builder.Failf("ScopeType: scope type is required")
		return q
	}
	q.builder.Add(query.Eq("task_log_entries.scope_type", scopeType))
	return q
}

// TenantID filters by tenant.
func (q *TaskLogQuery) TenantID(tenantID string) *TaskLogQuery {
	if tenantID == "" {
		q.builder.Failf("TenantID: tenant id is required")
		return q
	}
	q.builder.Add(query.Eq("task_log_entries.tenant_id", tenantID))
	return q
}

// From matches entries stamped at or after the given time.
func (q *TaskLogQuery) From(t time.Time) *TaskLogQuery {
	q.builder.Add(query.GtOrEq("task_log_entries.time_stamp", t))
	return q
}

// To matches entries stamped at or before the given time.
func (q *TaskLogQuery) To(t time.Time) *TaskLogQuery {
	q.builder.Add(query.LtOrEq("task_log_entries.time_stamp", t))
	return q
}

// FromLogNumber matches entries numbered at or above the given number.
func (q *TaskLogQuery) FromLogNumber(n int64) *TaskLogQuery {
	q.builder.Add(query.GtOrEq("task_log_entries.log_number", n))
	return q
}

// ToLogNumber matches entries numbered at or below the given number.
func (q *TaskLogQuery) ToLogNumber(n int64) *TaskLogQuery {
	q.builder.Add(query.LtOrEq("task_log_entries.log_number", n))
	return q
}

// Ordering.

func (q *TaskLogQuery) orderBy(column string) *TaskLogQuery {
	q.orders = append(q.orders, query.OrderBy{Column: column, Direction: query.Asc})
	return q
}

// OrderByLogNumber sorts by log number, the emission order.
func (q *TaskLogQuery) OrderByLogNumber() *TaskLogQuery {
	return q.orderBy("task_log_entries.log_number")
}

// OrderByTimeStamp sorts by timestamp.
func (q *TaskLogQuery) OrderByTimeStamp() *TaskLogQuery {
	return q.orderBy("task_log_entries.time_stamp")
}

func (q *TaskLogQuery) lastOrder(method string) *query.OrderBy {
	if len(q.orders) == 0 {
		q.builder.Failf("%s: call an OrderBy method first", method)
		return nil
	}
	return &q.orders[len(q.orders)-1]
}

// Asc makes the last ordering key ascending.
func (q *TaskLogQuery) Asc() *TaskLogQuery {
	if o := q.lastOrder("Asc"); o != nil {
		o.Direction = query.Asc
	}
	return q
}

// Desc makes the last ordering key descending. Reversing the direction never
// moves the null block chosen by NullsFirst/NullsLast.
func (q *TaskLogQuery) Desc() *TaskLogQuery {
	if o := q.lastOrder("Desc"); o != nil {
		o.Direction = query.Desc
	}
	return q
}

// NullsFirst pins null values of the last ordering key before all others.
func (q *TaskLogQuery) NullsFirst() *TaskLogQuery {
	if o := q.lastOrder("NullsFirst"); o != nil {
		o.Nulls = query.NullsFirst
	}
	return q
}

// NullsLast pins null values of the last ordering key after all others.
func (q *TaskLogQuery) NullsLast() *TaskLogQuery {
	if o := q.lastOrder("NullsLast"); o != nil {
		o.Nulls = query.NullsLast
	}
	return q
}

// Execution.

func (q *TaskLogQuery) buildSelect(columns ...string) (sq.SelectBuilder, error) {
	qb := psql.Select(columns...).From("task_log_entries")
	where, err := q.builder.Resolve(q.maxInParams)
	if err != nil {
		return qb, err
	}
	if where != nil {
		qb = qb.Where(where)
	}
	return qb, nil
}

// List executes the query without pagination.
func (q *TaskLogQuery) List(ctx context.Context) ([]*domain.TaskLogEntry, error) {
	return q.list(ctx, nil, nil)
}

// ListPage executes the query for the window [offset, offset+count).
func (q *TaskLogQuery) ListPage(ctx context.Context, offset, count int) ([]*domain.TaskLogEntry, error) {
	if _, err := q.builder.Tree(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return []*domain.TaskLogEntry{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	o, c := uint64(offset), uint64(count)
	return q.list(ctx, &o, &c)
}

func (q *TaskLogQuery) list(ctx context.Context, offset, limit *uint64) ([]*domain.TaskLogEntry, error) {
	qb, err := q.buildSelect(taskLogColumns...)
	if err != nil {
		return nil, err
	}
	if clauses := query.OrderClauses(q.orders); len(clauses) > 0 {
		qb = qb.OrderBy(clauses...)
	}
	if limit != nil {
		qb = qb.Limit(*limit)
	}
	if offset != nil {
		qb = qb.Offset(*offset)
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build log entry query: %w", err)
	}

	rows, err := q.r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	return scanTaskLogEntries(rows)
}

// Count executes the count variant, ignoring ordering and pagination.
func (q *TaskLogQuery) Count(ctx context.Context) (int64, error) {
	qb, err := q.buildSelect("COUNT(*)")
	if err != nil {
		return 0, err
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build log entry count query: %w", err)
	}

	var total int64
	if err := q.r.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count log entries: %w", err)
	}
	return total, nil
}

// SingleResult returns the only matching entry, nil when nothing matches,
// and ErrAmbiguousResult for more than one match.
func (q *TaskLogQuery) SingleResult(ctx context.Context) (*domain.TaskLogEntry, error) {
	entries, err := q.ListPage(ctx, 0, 2)
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
		return entries[0], nil
	default:
		return nil, domain.ErrAmbiguousResult
	}
}
