package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/procflow/taskstore/internal/config"
	"github.com/procflow/taskstore/internal/domain"
	"github.com/procflow/taskstore/internal/query"
)

// TaskQuery is the fluent query surface over live tasks. Filter methods
// accumulate AND terms; between Or() and EndOr() they accumulate OR'd
// siblings instead, and calling the same method repeatedly inside a group
// adds one disjunct per call. Invalid arguments are recorded at the
// offending call and surfaced by the terminal methods before any SQL runs.
type TaskQuery struct {
	r        *TaskRepository
	builder  *query.Builder
	orders   []query.OrderBy
	includes includeSet

	maxInParams        int
	variableFetchLimit int
}

// Query starts a new task query.
func (r *TaskRepository) Query() *TaskQuery {
	return &TaskQuery{
		r:                  r,
		builder:            query.NewBuilder(),
		includes:           includeSet{},
		maxInParams:        r.maxInParams,
		variableFetchLimit: config.DefaultVariableFetchLimit,
	}
}

// Or opens an OR group; EndOr closes it.
func (q *TaskQuery) Or() *TaskQuery {
	q.builder.BeginOr()
	return q
}

// EndOr closes the OR group opened by Or.
func (q *TaskQuery) EndOr() *TaskQuery {
	q.builder.EndOr()
	return q
}

func (q *TaskQuery) requireString(method, arg, value string) bool {
	if value == "" {
		q.builder.Failf("%s: %s is required", method, arg)
		return false
	}
	return true
}

func (q *TaskQuery) requireSlice(method, arg string, values []string) bool {
	if len(values) == 0 {
		q.builder.Failf("%s: %s must not be empty", method, arg)
		return false
	}
	return true
}

// ID filters by task id.
func (q *TaskQuery) ID(taskID string) *TaskQuery {
	if q.requireString("ID", "task id", taskID) {
		q.builder.Add(query.Eq("tasks.id", taskID))
	}
	return q
}

// IDIn filters by membership in a set of task ids.
func (q *TaskQuery) IDIn(taskIDs []string) *TaskQuery {
	if q.requireSlice("IDIn", "task ids", taskIDs) {
		q.builder.Add(query.In("tasks.id", toAny(taskIDs)))
	}
	return q
}

// Name filters by exact task name.
func (q *TaskQuery) Name(name string) *TaskQuery {
	if q.requireString("Name", "name", name) {
		q.builder.Add(query.Eq("tasks.name", name))
	}
	return q
}

// NameLike filters by a LIKE pattern over the task name.
func (q *TaskQuery) NameLike(pattern string) *TaskQuery {
	if q.requireString("NameLike", "pattern", pattern) {
		q.builder.Add(query.Like("tasks.name", pattern))
	}
	return q
}

// NameIn filters by membership in a set of names.
func (q *TaskQuery) NameIn(names []string) *TaskQuery {
	if q.requireSlice("NameIn", "names", names) {
		q.builder.Add(query.In("tasks.name", toAny(names)))
	}
	return q
}

// Description filters by exact description.
func (q *TaskQuery) Description(description string) *TaskQuery {
	if q.requireString("Description", "description", description) {
		q.builder.Add(query.Eq("tasks.description", description))
	}
	return q
}

// DescriptionLike filters by a LIKE pattern over the description.
func (q *TaskQuery) DescriptionLike(pattern string) *TaskQuery {
	if q.requireString("DescriptionLike", "pattern", pattern) {
		q.builder.Add(query.Like("tasks.description", pattern))
	}
	return q
}

// Priority filters by exact priority.
func (q *TaskQuery) Priority(priority int) *TaskQuery {
	q.builder.Add(query.Eq("tasks.priority", priority))
	return q
}

// MinPriority filters by priority >= min.
func (q *TaskQuery) MinPriority(min int) *TaskQuery {
	q.builder.Add(query.GtOrEq("tasks.priority", min))
	return q
}

// MaxPriority filters by priority <= max.
func (q *TaskQuery) MaxPriority(max int) *TaskQuery {
	q.builder.Add(query.LtOrEq("tasks.priority", max))
	return q
}

// Assignee filters by exact assignee.
func (q *TaskQuery) Assignee(assignee string) *TaskQuery {
	if q.requireString("Assignee", "assignee", assignee) {
		q.builder.Add(query.Eq("tasks.assignee", assignee))
	}
	return q
}

// AssigneeLike filters by a LIKE pattern over the assignee.
func (q *TaskQuery) AssigneeLike(pattern string) *TaskQuery {
	if q.requireString("AssigneeLike", "pattern", pattern) {
		q.builder.Add(query.Like("tasks.assignee", pattern))
	}
	return q
}

// AssigneeIn filters by membership in a set of assignees.
func (q *TaskQuery) AssigneeIn(assignees []string) *TaskQuery {
	if q.requireSlice("AssigneeIn", "assignees", assignees) {
		q.builder.Add(query.In("tasks.assignee", toAny(assignees)))
	}
	return q
}

// Unassigned matches tasks with no assignee.
func (q *TaskQuery) Unassigned() *TaskQuery {
	q.builder.Add(query.IsNull("tasks.assignee"))
	return q
}

// Owner filters by exact owner.
func (q *TaskQuery) Owner(owner string) *TaskQuery {
	if q.requireString("Owner", "owner", owner) {
		q.builder.Add(query.Eq("tasks.owner", owner))
	}
	return q
}

// OwnerLike filters by a LIKE pattern over the owner.
func (q *TaskQuery) OwnerLike(pattern string) *TaskQuery {
	if q.requireString("OwnerLike", "pattern", pattern) {
		q.builder.Add(query.Like("tasks.owner", pattern))
	}
	return q
}

// Category filters by exact category.
func (q *TaskQuery) Category(category string) *TaskQuery {
	if q.requireString("Category", "category", category) {
		q.builder.Add(query.Eq("tasks.category", category))
	}
	return q
}

// ParentTaskID matches the subtasks of the given task.
func (q *TaskQuery) ParentTaskID(parentTaskID string) *TaskQuery {
	if q.requireString("ParentTaskID", "parent task id", parentTaskID) {
		q.builder.Add(query.Eq("tasks.parent_task_id", parentTaskID))
	}
	return q
}

// ExcludeSubtasks restricts the result to tasks without a parent.
func (q *TaskQuery) ExcludeSubtasks() *TaskQuery {
	q.builder.Add(query.IsNull("tasks.parent_task_id"))
	return q
}

// ProcessInstanceID filters by owning process instance.
func (q *TaskQuery) ProcessInstanceID(processInstanceID string) *TaskQuery {
	if q.requireString("ProcessInstanceID", "process instance id", processInstanceID) {
		q.builder.Add(query.Eq("tasks.process_instance_id", processInstanceID))
	}
	return q
}

// ProcessInstanceIDIn filters by membership in a set of process instance ids.
func (q *TaskQuery) ProcessInstanceIDIn(processInstanceIDs []string) *TaskQuery {
	if q.requireSlice("ProcessInstanceIDIn", "process instance ids", processInstanceIDs) {
		q.builder.Add(query.In("tasks.process_instance_id", toAny(processInstanceIDs)))
	}
	return q
}

// ExecutionID filters by execution.
func (q *TaskQuery) ExecutionID(executionID string) *TaskQuery {
	if q.requireString("ExecutionID", "execution id", executionID) {
		q.builder.Add(query.Eq("tasks.execution_id", executionID))
	}
	return q
}

// TaskDefinitionKey filters by task definition key.
func (q *TaskQuery) TaskDefinitionKey(key string) *TaskQuery {
	if q.requireString("TaskDefinitionKey", "key", key) {
		q.builder.Add(query.Eq("tasks.task_definition_key", key))
	}
	return q
}

// TaskDefinitionKeyLike filters by a LIKE pattern over the definition key.
func (q *TaskQuery) TaskDefinitionKeyLike(pattern string) *TaskQuery {
	if q.requireString("TaskDefinitionKeyLike", "pattern", pattern) {
		q.builder.Add(query.Like("tasks.task_definition_key", pattern))
	}
	return q
}

// ScopeID filters by the non-process scope correlation id.
func (q *TaskQuery) ScopeID(scopeID string) *TaskQuery {
	if q.requireString("ScopeID", "scope id", scopeID) {
		q.builder.Add(query.Eq("tasks.scope_id", scopeID))
	}
	return q
}

// ScopeType filters by the non-process scope correlation type.
func (q *TaskQuery) ScopeType(scopeType string) *TaskQuery {
	if q.requireString("ScopeType", "scope type", scopeType) {
		q.builder.Add(query.Eq("tasks.scope_type", scopeType))
	}
	return q
}

// TenantID filters by tenant.
func (q *TaskQuery) TenantID(tenantID string) *TaskQuery {
	if q.requireString("TenantID", "tenant id", tenantID) {
		q.builder.Add(query.Eq("tasks.tenant_id", tenantID))
	}
	return q
}

// WithoutTenantID matches tasks that carry no tenant.
func (q *TaskQuery) WithoutTenantID() *TaskQuery {
	q.builder.Add(query.IsNull("tasks.tenant_id"))
	return q
}

// DueDate filters by exact due date.
func (q *TaskQuery) DueDate(dueDate time.Time) *TaskQuery {
	q.builder.Add(query.Eq("tasks.due_date", dueDate))
	return q
}

// DueBefore matches tasks due strictly before the given time.
func (q *TaskQuery) DueBefore(t time.Time) *TaskQuery {
	q.builder.Add(query.Lt("tasks.due_date", t))
	return q
}

// DueAfter matches tasks due strictly after the given time.
func (q *TaskQuery) DueAfter(t time.Time) *TaskQuery {
	q.builder.Add(query.Gt("tasks.due_date", t))
	return q
}

// WithoutDueDate matches tasks with no due date.
func (q *TaskQuery) WithoutDueDate() *TaskQuery {
	q.builder.Add(query.IsNull("tasks.due_date"))
	return q
}

// CreatedOn filters by exact creation time.
func (q *TaskQuery) CreatedOn(t time.Time) *TaskQuery {
	q.builder.Add(query.Eq("tasks.create_time", t))
	return q
}

// CreatedBefore matches tasks created strictly before the given time.
func (q *TaskQuery) CreatedBefore(t time.Time) *TaskQuery {
	q.builder.Add(query.Lt("tasks.create_time", t))
	return q
}

// CreatedAfter matches tasks created strictly after the given time.
func (q *TaskQuery) CreatedAfter(t time.Time) *TaskQuery {
	q.builder.Add(query.Gt("tasks.create_time", t))
	return q
}

// DelegationState filters by delegation state.
func (q *TaskQuery) DelegationState(state domain.DelegationState) *TaskQuery {
	if !state.IsValid() {
		q.builder.Failf("DelegationState: invalid state %q", state)
		return q
	}
	q.builder.Add(query.Eq("tasks.delegation_state", state))
	return q
}

// Suspended matches suspended tasks.
func (q *TaskQuery) Suspended() *TaskQuery {
	q.builder.Add(query.Eq("tasks.suspension_state", domain.SuspensionSuspended))
	return q
}

// Active matches non-suspended tasks.
func (q *TaskQuery) Active() *TaskQuery {
	q.builder.Add(query.Eq("tasks.suspension_state", domain.SuspensionActive))
	return q
}

// CandidateUser matches tasks with a candidate link for the user.
func (q *TaskQuery) CandidateUser(userID string) *TaskQuery {
	if q.requireString("CandidateUser", "user id", userID) {
		q.builder.Add(query.Raw(sq.Expr(
			`EXISTS (SELECT 1 FROM identity_links il WHERE il.task_id = tasks.id AND il.link_type = ? AND il.user_id = ?)`,
			domain.IdentityLinkCandidate, userID,
		)))
	}
	return q
}

// CandidateGroup matches tasks with a candidate link for the group.
func (q *TaskQuery) CandidateGroup(groupID string) *TaskQuery {
	if q.requireString("CandidateGroup", "group id", groupID) {
		q.CandidateGroupIn([]string{groupID})
	}
	return q
}

// CandidateGroupIn matches tasks whose candidate groups intersect the given
// set. A set larger than the parameter ceiling is chunked into OR'd
// membership probes within the same disjunction, so the rewrite composes
// with a surrounding Or() group without changing semantics. An empty set is
// a valid query matching nothing.
func (q *TaskQuery) CandidateGroupIn(groupIDs []string) *TaskQuery {
	if groupIDs == nil {
		q.builder.Failf("CandidateGroupIn: group ids are required")
		return q
	}
	if len(groupIDs) == 0 {
		q.builder.Add(query.Raw(sq.Expr("(1=0)")))
		return q
	}

	chunks := query.Chunk(groupIDs, q.maxInParams)
	preds := make([]query.Predicate, 0, len(chunks))
	for _, chunk := range chunks {
		preds = append(preds, query.Raw(candidateGroupExpr(chunk)))
	}
	q.builder.AddAll(preds)
	return q
}

func candidateGroupExpr(groupIDs []string) sq.Sqlizer {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(groupIDs)), ",")
	args := make([]any, 0, len(groupIDs)+1)
	args = append(args, domain.IdentityLinkCandidate)
	for _, g := range groupIDs {
		args = append(args, g)
	}
	return sq.Expr(
		`EXISTS (SELECT 1 FROM identity_links il WHERE il.task_id = tasks.id AND il.link_type = ? AND il.group_id IN (`+placeholders+`))`,
		args...,
	)
}

// InvolvedUser matches tasks the user is assignee, owner or linked to.
func (q *TaskQuery) InvolvedUser(userID string) *TaskQuery {
	if q.requireString("InvolvedUser", "user id", userID) {
		q.builder.Add(query.Raw(sq.Or{
			sq.Eq{"tasks.assignee": userID},
			sq.Eq{"tasks.owner": userID},
			sq.Expr(`EXISTS (SELECT 1 FROM identity_links il WHERE il.task_id = tasks.id AND il.user_id = ?)`, userID),
		}))
	}
	return q
}

// TaskVariableValueEquals matches tasks holding a task-local variable with
// the given value. Filtering by the explicit null value is legal.
func (q *TaskQuery) TaskVariableValueEquals(name string, value domain.VariableValue) *TaskQuery {
	return q.addVariablePredicate("TaskVariableValueEquals", "tasks.id", domain.ScopeTask, name, value, query.OpEq)
}

// TaskVariableValueNotEquals matches tasks holding a task-local variable
// with a different value of a comparable type.
func (q *TaskQuery) TaskVariableValueNotEquals(name string, value domain.VariableValue) *TaskQuery {
	return q.addVariablePredicate("TaskVariableValueNotEquals", "tasks.id", domain.ScopeTask, name, value, query.OpNotEq)
}

// TaskVariableValueLike matches tasks holding a string task-local variable
// matching the pattern.
func (q *TaskQuery) TaskVariableValueLike(name, pattern string) *TaskQuery {
	return q.addVariablePredicate("TaskVariableValueLike", "tasks.id", domain.ScopeTask, name, domain.StringValue(pattern), query.OpLike)
}

// TaskVariableValueGreaterThan matches tasks holding a comparable task-local
// variable greater than the given value.
func (q *TaskQuery) TaskVariableValueGreaterThan(name string, value domain.VariableValue) *TaskQuery {
	return q.addVariablePredicate("TaskVariableValueGreaterThan", "tasks.id", domain.ScopeTask, name, value, query.OpGT)
}

// TaskVariableValueLessThan matches tasks holding a comparable task-local
// variable less than the given value.
func (q *TaskQuery) TaskVariableValueLessThan(name string, value domain.VariableValue) *TaskQuery {
	return q.addVariablePredicate("TaskVariableValueLessThan", "tasks.id", domain.ScopeTask, name, value, query.OpLT)
}

// TaskVariableExists matches tasks holding a task-local variable of the name.
func (q *TaskQuery) TaskVariableExists(name string) *TaskQuery {
	if q.requireString("TaskVariableExists", "name", name) {
		q.builder.Add(query.Raw(variableExistsExpr("tasks.id", domain.ScopeTask, name, true)))
	}
	return q
}

// ProcessVariableValueEquals matches tasks whose owning process holds a
// variable with the given value.
func (q *TaskQuery) ProcessVariableValueEquals(name string, value domain.VariableValue) *TaskQuery {
	return q.addVariablePredicate("ProcessVariableValueEquals", "tasks.process_instance_id", domain.ScopeProcess, name, value, query.OpEq)
}

// ProcessVariableValueNotEquals matches tasks whose owning process holds a
// variable with a different value of a comparable type.
func (q *TaskQuery) ProcessVariableValueNotEquals(name string, value domain.VariableValue) *TaskQuery {
	return q.addVariablePredicate("ProcessVariableValueNotEquals", "tasks.process_instance_id", domain.ScopeProcess, name, value, query.OpNotEq)
}

// ProcessVariableValueLike matches tasks whose owning process holds a string
// variable matching the pattern.
func (q *TaskQuery) ProcessVariableValueLike(name, pattern string) *TaskQuery {
	return q.addVariablePredicate("ProcessVariableValueLike", "tasks.process_instance_id", domain.ScopeProcess, name, domain.StringValue(pattern), query.OpLike)
}

func (q *TaskQuery) addVariablePredicate(
	method, scopeColumn string,
	scopeType domain.VariableScopeType,
	name string,
	value domain.VariableValue,
	op query.Op,
) *TaskQuery {
	if !q.requireString(method, "name", name) {
		return q
	}
	expr, err := variableValueExpr(scopeColumn, scopeType, name, value, op)
	if err != nil {
		q.builder.Fail(fmt.Errorf("%s: %w", method, err))
		return q
	}
	q.builder.Add(query.Raw(expr))
	return q
}

// Ordering.

func (q *TaskQuery) orderBy(column string) *TaskQuery {
	q.orders = append(q.orders, query.OrderBy{Column: column, Direction: query.Asc})
	return q
}

// OrderByID sorts by task id.
func (q *TaskQuery) OrderByID() *TaskQuery { return q.orderBy("tasks.id") }

// OrderByName sorts by task name.
func (q *TaskQuery) OrderByName() *TaskQuery { return q.orderBy("tasks.name") }

// OrderByPriority sorts by priority.
func (q *TaskQuery) OrderByPriority() *TaskQuery { return q.orderBy("tasks.priority") }

// OrderByAssignee sorts by assignee.
func (q *TaskQuery) OrderByAssignee() *TaskQuery { return q.orderBy("tasks.assignee") }

// OrderByDueDate sorts by due date.
func (q *TaskQuery) OrderByDueDate() *TaskQuery { return q.orderBy("tasks.due_date") }

// OrderByCreateTime sorts by creation time.
func (q *TaskQuery) OrderByCreateTime() *TaskQuery { return q.orderBy("tasks.create_time") }

// OrderByTenantID sorts by tenant.
func (q *TaskQuery) OrderByTenantID() *TaskQuery { return q.orderBy("tasks.tenant_id") }

func (q *TaskQuery) lastOrder(method string) *query.OrderBy {
	if len(q.orders) == 0 {
		q.builder.Failf("%s: call an OrderBy method first", method)
		return nil
	}
	return &q.orders[len(q.orders)-1]
}

// Asc makes the last ordering key ascending.
func (q *TaskQuery) Asc() *TaskQuery {
	if o := q.lastOrder("Asc"); o != nil {
		o.Direction = query.Asc
	}
	return q
}

// Desc makes the last ordering key descending. Reversing the direction never
// moves the null block chosen by NullsFirst/NullsLast.
func (q *TaskQuery) Desc() *TaskQuery {
	if o := q.lastOrder("Desc"); o != nil {
		o.Direction = query.Desc
	}
	return q
}

// NullsFirst pins null values of the last ordering key before all others.
func (q *TaskQuery) NullsFirst() *TaskQuery {
	if o := q.lastOrder("NullsFirst"); o != nil {
		o.Nulls = query.NullsFirst
	}
	return q
}

// NullsLast pins null values of the last ordering key after all others.
func (q *TaskQuery) NullsLast() *TaskQuery {
	if o := q.lastOrder("NullsLast"); o != nil {
		o.Nulls = query.NullsLast
	}
	return q
}

// Includes.

// IncludeProcessVariables attaches the owning process's variables to each
// returned task with one batched fetch per page.
func (q *TaskQuery) IncludeProcessVariables() *TaskQuery {
	q.includes[IncludeProcessVariables] = true
	return q
}

// IncludeTaskLocalVariables attaches task-local variables to each returned
// task with one batched fetch per page.
func (q *TaskQuery) IncludeTaskLocalVariables() *TaskQuery {
	q.includes[IncludeTaskLocalVariables] = true
	return q
}

// IncludeIdentityLinks attaches identity links to each returned task with
// one batched fetch per page.
func (q *TaskQuery) IncludeIdentityLinks() *TaskQuery {
	q.includes[IncludeIdentityLinks] = true
	return q
}

// LimitVariables caps how many variable rows one include batch may return.
// Pages exceeding the cap get truncated variable collections, not an error.
func (q *TaskQuery) LimitVariables(limit int) *TaskQuery {
	q.variableFetchLimit = limit
	return q
}

// Execution.

func (q *TaskQuery) buildSelect(columns ...string) (sq.SelectBuilder, error) {
	qb := psql.Select(columns...).From("tasks")
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
func (q *TaskQuery) List(ctx context.Context) ([]*domain.Task, error) {
	return q.list(ctx, nil, nil)
}

// ListPage executes the query for the window [offset, offset+count). A zero
// count yields an empty page without touching storage; an offset beyond the
// result size yields an empty page.
func (q *TaskQuery) ListPage(ctx context.Context, offset, count int) ([]*domain.Task, error) {
	if _, err := q.builder.Tree(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return []*domain.Task{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	o, c := uint64(offset), uint64(count)
	return q.list(ctx, &o, &c)
}

func (q *TaskQuery) list(ctx context.Context, offset, limit *uint64) ([]*domain.Task, error) {
	qb, err := q.buildSelect(taskColumns...)
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
		return nil, fmt.Errorf("build task query: %w", err)
	}

	rows, err := q.r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	h := &hydrator{vars: q.r.vars, links: q.r.links, fetchLimit: q.variableFetchLimit}
	if err := h.hydrateTasks(ctx, tasks, q.includes); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Count executes the count variant, ignoring ordering and pagination.
func (q *TaskQuery) Count(ctx context.Context) (int64, error) {
	qb, err := q.buildSelect("COUNT(*)")
	if err != nil {
		return 0, err
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build task count query: %w", err)
	}

	var total int64
	if err := q.r.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return total, nil
}

// SingleResult returns the only matching task, nil when nothing matches, and
// ErrAmbiguousResult when the predicate matches more than one row.
func (q *TaskQuery) SingleResult(ctx context.Context) (*domain.Task, error) {
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

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
