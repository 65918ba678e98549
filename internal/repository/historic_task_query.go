package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/procflow/taskstore/internal/config"
	"github.com/procflow/taskstore/internal/domain"
	"github.com/procflow/taskstore/internal/query"
)

// HistoricTaskQuery is the fluent query surface over the historic mirror. It
// shares the predicate engine, null-aware ordering and include hydration
// with TaskQuery, against the dataset that outlives task deletion.
type HistoricTaskQuery struct {
	r        *HistoricTaskRepository
	builder  *query.Builder
	orders   []query.OrderBy
	includes includeSet

	maxInParams        int
	variableFetchLimit int
}

// Query starts a new historic task query.
func (r *HistoricTaskRepository) Query() *HistoricTaskQuery {
	return &HistoricTaskQuery{
		r:                  r,
		builder:            query.NewBuilder(),
		includes:           includeSet{},
		maxInParams:        r.maxInParams,
		variableFetchLimit: config.DefaultVariableFetchLimit,
	}
}

// Or opens an OR group; EndOr closes it.
func (q *HistoricTaskQuery) Or() *HistoricTaskQuery {
	q.builder.BeginOr()
	return q
}

// EndOr closes the OR group opened by Or.
func (q *HistoricTaskQuery) EndOr() *HistoricTaskQuery {
	q.builder.EndOr()
	return q
}

func (q *HistoricTaskQuery) requireString(method, arg, value string) bool {
	if value == "" {
		q.builder.Failf("%s: %s is required", method, arg)
		return false
	}
	return true
}

// ID filters by task id.
func (q *HistoricTaskQuery) ID(taskID string) *HistoricTaskQuery {
	if q.requireString("ID", "task id", taskID) {
		q.builder.Add(query.Eq("historic_tasks.id", taskID))
	}
	return q
}

// IDIn filters by membership in a set of task ids.
func (q *HistoricTaskQuery) IDIn(taskIDs []string) *HistoricTaskQuery {
	if len(taskIDs) == 0 {
		q.builder.Failf("IDIn: task ids must not be empty")
		return q
	}
	q.builder.Add(query.In("historic_tasks.id", toAny(taskIDs)))
	return q
}

// NameLike filters by a LIKE pattern over the task name.
func (q *HistoricTaskQuery) NameLike(pattern string) *HistoricTaskQuery {
	if q.requireString("NameLike", "pattern", pattern) {
		q.builder.Add(query.Like("historic_tasks.name", pattern))
	}
	return q
}

// Assignee filters by exact assignee.
func (q *HistoricTaskQuery) Assignee(assignee string) *HistoricTaskQuery {
	if q.requireString("Assignee", "assignee", assignee) {
		q.builder.Add(query.Eq("historic_tasks.assignee", assignee))
	}
	return q
}

// Owner filters by exact owner.
func (q *HistoricTaskQuery) Owner(owner string) *HistoricTaskQuery {
	if q.requireString("Owner", "owner", owner) {
		q.builder.Add(query.Eq("historic_tasks.owner", owner))
	}
	return q
}

// ProcessInstanceID filters by owning process instance.
func (q *HistoricTaskQuery) ProcessInstanceID(processInstanceID string) *HistoricTaskQuery {
	if q.requireString("ProcessInstanceID", "process instance id", processInstanceID) {
		q.builder.Add(query.Eq("historic_tasks.process_instance_id", processInstanceID))
	}
	return q
}

// TaskDefinitionKey filters by task definition key.
func (q *HistoricTaskQuery) TaskDefinitionKey(key string) *HistoricTaskQuery {
	if q.requireString("TaskDefinitionKey", "key", key) {
		q.builder.Add(query.Eq("historic_tasks.task_definition_key", key))
	}
	return q
}

// TenantID filters by tenant.
func (q *HistoricTaskQuery) TenantID(tenantID string) *HistoricTaskQuery {
	if q.requireString("TenantID", "tenant id", tenantID) {
		q.builder.Add(query.Eq("historic_tasks.tenant_id", tenantID))
	}
	return q
}

// Finished matches mirror rows whose task has ended.
func (q *HistoricTaskQuery) Finished() *HistoricTaskQuery {
	q.builder.Add(query.NotNull("historic_tasks.end_time"))
	return q
}

// Unfinished matches mirror rows whose task is still live.
func (q *HistoricTaskQuery) Unfinished() *HistoricTaskQuery {
	q.builder.Add(query.IsNull("historic_tasks.end_time"))
	return q
}

// StartedBefore matches tasks started strictly before the given time.
func (q *HistoricTaskQuery) StartedBefore(t time.Time) *HistoricTaskQuery {
	q.builder.Add(query.Lt("historic_tasks.start_time", t))
	return q
}

// StartedAfter matches tasks started strictly after the given time.
func (q *HistoricTaskQuery) StartedAfter(t time.Time) *HistoricTaskQuery {
	q.builder.Add(query.Gt("historic_tasks.start_time", t))
	return q
}

// DueBefore matches tasks due strictly before the given time.
func (q *HistoricTaskQuery) DueBefore(t time.Time) *HistoricTaskQuery {
	q.builder.Add(query.Lt("historic_tasks.due_date", t))
	return q
}

// DueAfter matches tasks due strictly after the given time.
func (q *HistoricTaskQuery) DueAfter(t time.Time) *HistoricTaskQuery {
	q.builder.Add(query.Gt("historic_tasks.due_date", t))
	return q
}

// WithoutDueDate matches tasks with no due date.
func (q *HistoricTaskQuery) WithoutDueDate() *HistoricTaskQuery {
	q.builder.Add(query.IsNull("historic_tasks.due_date"))
	return q
}

// TaskVariableValueEquals matches mirror rows whose task holds a task-local
// variable with the given value.
func (q *HistoricTaskQuery) TaskVariableValueEquals(name string, value domain.VariableValue) *HistoricTaskQuery {
	if !q.requireString("TaskVariableValueEquals", "name", name) {
		return q
	}
	expr, err := variableValueExpr("historic_tasks.id", domain.ScopeTask, name, value, query.OpEq)
	if err != nil {
		q.builder.Fail(fmt.Errorf("TaskVariableValueEquals: %w", err))
		return q
	}
	q.builder.Add(query.Raw(expr))
	return q
}

// ProcessVariableValueEquals matches mirror rows whose owning process holds
// a variable with the given value.
func (q *HistoricTaskQuery) ProcessVariableValueEquals(name string, value domain.VariableValue) *HistoricTaskQuery {
	if !q.requireString("ProcessVariableValueEquals", "name", name) {
		return q
	}
	expr, err := variableValueExpr("historic_tasks.process_instance_id", domain.ScopeProcess, name, value, query.OpEq)
	if err != nil {
		q.builder.Fail(fmt.Errorf("ProcessVariableValueEquals: %w", err))
		return q
	}
	q.builder.Add(query.Raw(expr))
	return q
}

// Ordering.

func (q *HistoricTaskQuery) orderBy(column string) *HistoricTaskQuery {
	q.orders = append(q.orders, query.OrderBy{Column: column, Direction: query.Asc})
	return q
}

// OrderByID sorts by task id.
func (q *HistoricTaskQuery) OrderByID() *HistoricTaskQuery { return q.orderBy("historic_tasks.id") }

// OrderByName sorts by task name.
func (q *HistoricTaskQuery) OrderByName() *HistoricTaskQuery { return q.orderBy("historic_tasks.name") }

// OrderByStartTime sorts by start time.
func (q *HistoricTaskQuery) OrderByStartTime() *HistoricTaskQuery {
	return q.orderBy("historic_tasks.start_time")
}

// OrderByEndTime sorts by end time.
func (q *HistoricTaskQuery) OrderByEndTime() *HistoricTaskQuery {
	return q.orderBy("historic_tasks.end_time")
}

// OrderByDueDate sorts by due date.
func (q *HistoricTaskQuery) OrderByDueDate() *HistoricTaskQuery {
	return q.orderBy("historic_tasks.due_date")
}

// OrderByDuration sorts by recorded duration.
func (q *HistoricTaskQuery) OrderByDuration() *HistoricTaskQuery {
	return q.orderBy("historic_tasks.duration_millis")
}

func (q *HistoricTaskQuery) lastOrder(method string) *query.OrderBy {
	if len(q.orders) == 0 {
		q.builder.Failf("%s: call an OrderBy method first", method)
		return nil
	}
	return &q.orders[len(q.orders)-1]
}

// Asc makes the last ordering key ascending.
func (q *HistoricTaskQuery) Asc() *HistoricTaskQuery {
	if o := q.lastOrder("Asc"); o != nil {
		o.Direction = query.Asc
	}
	return q
}

// Desc makes the last ordering key descending.
func (q *HistoricTaskQuery) Desc() *HistoricTaskQuery {
	if o := q.lastOrder("Desc"); o != nil {
		o.Direction = query.Desc
	}
	return q
}

// NullsFirst pins null values of the last ordering key before all others.
func (q *HistoricTaskQuery) NullsFirst() *HistoricTaskQuery {
	if o := q.lastOrder("NullsFirst"); o != nil {
		o.Nulls = query.NullsFirst
	}
	return q
}

// NullsLast pins null values of the last ordering key after all others.
func (q *HistoricTaskQuery) NullsLast() *HistoricTaskQuery {
	if o := q.lastOrder("NullsLast"); o != nil {
		o.Nulls = query.NullsLast
	}
	return q
}

// Includes.

// IncludeProcessVariables attaches process variables to each returned row.
func (q *HistoricTaskQuery) IncludeProcessVariables() *HistoricTaskQuery {
	q.includes[IncludeProcessVariables] = true
	return q
}

// IncludeTaskLocalVariables attaches task-local variables to each returned row.
func (q *HistoricTaskQuery) IncludeTaskLocalVariables() *HistoricTaskQuery {
	q.includes[IncludeTaskLocalVariables] = true
	return q
}

// IncludeIdentityLinks attaches identity links to each returned row.
func (q *HistoricTaskQuery) IncludeIdentityLinks() *HistoricTaskQuery {
	q.includes[IncludeIdentityLinks] = true
	return q
}

// LimitVariables caps how many variable rows one include batch may return.
func (q *HistoricTaskQuery) LimitVariables(limit int) *HistoricTaskQuery {
	q.variableFetchLimit = limit
	return q
}

// Execution.

func (q *HistoricTaskQuery) buildSelect(columns ...string) (sq.SelectBuilder, error) {
	qb := psql.Select(columns...).From("historic_tasks")
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
func (q *HistoricTaskQuery) List(ctx context.Context) ([]*domain.HistoricTask, error) {
	return q.list(ctx, nil, nil)
}

// ListPage executes the query for the window [offset, offset+count).
func (q *HistoricTaskQuery) ListPage(ctx context.Context, offset, count int) ([]*domain.HistoricTask, error) {
	if _, err := q.builder.Tree(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return []*domain.HistoricTask{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	o, c := uint64(offset), uint64(count)
	return q.list(ctx, &o, &c)
}

func (q *HistoricTaskQuery) list(ctx context.Context, offset, limit *uint64) ([]*domain.HistoricTask, error) {
	qb, err := q.buildSelect(historicTaskColumns...)
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
		return nil, fmt.Errorf("build historic task query: %w", err)
	}

	rows, err := q.r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query historic tasks: %w", err)
	}

	tasks, err := scanHistoricTasks(rows)
	if err != nil {
		return nil, err
	}

	h := &hydrator{vars: q.r.vars, links: q.r.links, fetchLimit: q.variableFetchLimit}
	if err := h.hydrateHistoricTasks(ctx, tasks, q.includes); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Count executes the count variant, ignoring ordering and pagination.
func (q *HistoricTaskQuery) Count(ctx context.Context) (int64, error) {
	qb, err := q.buildSelect("COUNT(*)")
	if err != nil {
		return 0, err
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build historic task count query: %w", err)
	}

	var total int64
	if err := q.r.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count historic tasks: %w", err)
	}
	return total, nil
}

// SingleResult returns the only matching row, nil when nothing matches, and
// ErrAmbiguousResult for more than one match.
func (q *HistoricTaskQuery) SingleResult(ctx context.Context) (*domain.HistoricTask, error) {
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
