package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procflow/taskstore/internal/domain"
	"github.com/procflow/taskstore/internal/query"
)

// SQL generation tests run against repositories without a pool: they must
// never reach storage.

func newSQLOnlyTaskRepo(maxInParams int) *TaskRepository {
	return &TaskRepository{maxInParams: maxInParams}
}

func newSQLOnlyLogRepo(maxInParams int) *TaskLogRepository {
	return &TaskLogRepository{maxInParams: maxInParams}
}

func TestTaskQuery_FiltersAreConjoined(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().
		Assignee("kermit").
		MinPriority(10)

	qb, err := q.buildSelect("tasks.id")
	require.NoError(t, err)

	sql, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT tasks.id FROM tasks WHERE (tasks.assignee = $1 AND tasks.priority >= $2)", sql)
	assert.Equal(t, []any{"kermit", 10}, args)
}

func TestTaskQuery_OrGroupAndsWithOtherFilters(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().
		Or().Assignee("kermit").Unassigned().EndOr().
		ExcludeSubtasks()

	qb, err := q.buildSelect("tasks.id")
	require.NoError(t, err)

	sql, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT tasks.id FROM tasks WHERE ((tasks.assignee = $1 OR tasks.assignee IS NULL) AND tasks.parent_task_id IS NULL)",
		sql)
	assert.Equal(t, []any{"kermit"}, args)
}

func TestTaskQuery_InvalidArgumentSurfacesBeforeStorage(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().ID("")

	_, err := q.buildSelect("tasks.id")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIllegalArgument)

	// Even the page that would skip storage reports the recorded error.
	_, err = q.ListPage(context.Background(), 0, 0)
	assert.ErrorIs(t, err, domain.ErrIllegalArgument)
}

func TestTaskQuery_ZeroCountPageSkipsStorage(t *testing.T) {
	// Nil pool: a storage round trip would panic.
	q := newSQLOnlyTaskRepo(2000).Query().Assignee("kermit")

	tasks, err := q.ListPage(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	tasks, err = q.ListPage(context.Background(), 5, -1)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskQuery_IDInIsChunkedToParameterLimit(t *testing.T) {
	q := newSQLOnlyTaskRepo(2).Query().
		IDIn([]string{"a", "b", "c", "d", "e"})

	qb, err := q.buildSelect("tasks.id")
	require.NoError(t, err)

	sql, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT tasks.id FROM tasks WHERE ((tasks.id IN ($1,$2) OR tasks.id IN ($3,$4) OR tasks.id IN ($5)))",
		sql)
	assert.Equal(t, []any{"a", "b", "c", "d", "e"}, args)
}

func TestTaskQuery_CandidateGroupInIsChunkedToParameterLimit(t *testing.T) {
	q := newSQLOnlyTaskRepo(2).Query().
		CandidateGroupIn([]string{"g1", "g2", "g3", "g4", "g5"})

	qb, err := q.buildSelect("tasks.id")
	require.NoError(t, err)

	sql, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(sql, "EXISTS (SELECT 1 FROM identity_links"))
	assert.Equal(t, 2, strings.Count(sql, " OR "))
	// One link-type argument per chunk plus the five group ids.
	assert.Len(t, args, 8)
}

func TestTaskQuery_CandidateGroupChunksJoinOpenOrGroup(t *testing.T) {
	q := newSQLOnlyTaskRepo(2).Query().
		Or().
		Assignee("kermit").
		CandidateGroupIn([]string{"g1", "g2", "g3"}).
		EndOr()

	qb, err := q.buildSelect("tasks.id")
	require.NoError(t, err)

	sql, _, err := qb.ToSql()
	require.NoError(t, err)
	// Assignee and both chunks are siblings of the same disjunction.
	assert.Equal(t, 2, strings.Count(sql, "EXISTS (SELECT 1 FROM identity_links"))
	assert.Equal(t, 2, strings.Count(sql, " OR "))
	assert.NotContains(t, sql, ") AND (EXISTS")
}

func TestTaskQuery_CandidateGroupInEmptySetMatchesNothing(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().CandidateGroupIn([]string{})

	qb, err := q.buildSelect("tasks.id")
	require.NoError(t, err)

	sql, _, err := qb.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "(1=0)")
}

func TestTaskQuery_CandidateGroupInNilIsRejected(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().CandidateGroupIn(nil)

	_, err := q.buildSelect("tasks.id")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIllegalArgument)
}

func TestTaskQuery_NullAwareOrderingClauses(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().
		OrderByDueDate().NullsLast().Desc().
		OrderByID().Asc()

	assert.Equal(t,
		[]string{"(tasks.due_date IS NULL) ASC", "tasks.due_date DESC", "tasks.id ASC"},
		query.OrderClauses(q.orders))
}

func TestTaskQuery_DirectionModifierWithoutKeyIsRejected(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().Desc()

	_, err := q.buildSelect("tasks.id")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIllegalArgument)
}

func TestTaskQuery_VariableValuePredicateSQL(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().
		TaskVariableValueEquals("amount", domain.IntValue(42))

	qb, err := q.buildSelect("tasks.id")
	require.NoError(t, err)

	sql, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "EXISTS (SELECT 1 FROM variables v WHERE v.scope_id = tasks.id")
	assert.Contains(t, sql, "v.var_type IN ('short','integer','long') AND v.long_value = $3")
	assert.Equal(t, []any{domain.ScopeTask, "amount", int64(42)}, args)
}

func TestTaskQuery_NumericWidthsShareTheComparisonChannel(t *testing.T) {
	intQ := newSQLOnlyTaskRepo(2000).Query().
		TaskVariableValueEquals("amount", domain.IntValue(7))
	longQ := newSQLOnlyTaskRepo(2000).Query().
		TaskVariableValueEquals("amount", domain.LongValue(7))

	intSQL, intArgs, err := mustBuild(t, intQ)
	require.NoError(t, err)
	longSQL, longArgs, err := mustBuild(t, longQ)
	require.NoError(t, err)

	assert.Equal(t, intSQL, longSQL)
	assert.Equal(t, intArgs, longArgs)
}

func TestTaskQuery_NullVariableValueIsQueryable(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().
		TaskVariableValueEquals("flag", domain.NullValue())

	qb, err := q.buildSelect("tasks.id")
	require.NoError(t, err)

	sql, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "v.var_type = 'null'")
	assert.Equal(t, []any{domain.ScopeTask, "flag"}, args)
}

func TestTaskQuery_BytesVariableValueIsRejected(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().
		TaskVariableValueEquals("payload", domain.BytesValue([]byte{0x01}))

	_, err := q.buildSelect("tasks.id")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIllegalArgument)
}

func TestTaskQuery_ProcessVariableProbesProcessScope(t *testing.T) {
	q := newSQLOnlyTaskRepo(2000).Query().
		ProcessVariableValueEquals("status", domain.StringValue("open"))

	qb, err := q.buildSelect("tasks.id")
	require.NoError(t, err)

	sql, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "v.scope_id = tasks.process_instance_id")
	assert.Equal(t, []any{domain.ScopeProcess, "status", "open"}, args)
}

func TestTaskLogQuery_EmptyTaskIDMeansNoFilter(t *testing.T) {
	q := newSQLOnlyLogRepo(2000).Query().TaskID("")

	qb, err := q.buildSelect("task_log_entries.log_number")
	require.NoError(t, err)

	sql, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT task_log_entries.log_number FROM task_log_entries", sql)
	assert.Empty(t, args)
}

func TestTaskLogQuery_RangeBoundsAreInclusive(t *testing.T) {
	q := newSQLOnlyLogRepo(2000).Query().
		FromLogNumber(10).
		ToLogNumber(20)

	qb, err := q.buildSelect("task_log_entries.log_number")
	require.NoError(t, err)

	sql, args, err := qb.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "task_log_entries.log_number >= $1")
	assert.Contains(t, sql, "task_log_entries.log_number <= $2")
	assert.Equal(t, []any{int64(10), int64(20)}, args)
}

func TestTaskLogQuery_OrderByLogNumber(t *testing.T) {
	q := newSQLOnlyLogRepo(2000).Query().OrderByLogNumber().Desc()

	assert.Equal(t, []string{"task_log_entries.log_number DESC"}, query.OrderClauses(q.orders))
}

func TestTaskLogQuery_NullPlacementSurvivesDirection(t *testing.T) {
	q := newSQLOnlyLogRepo(2000).Query().OrderByTimeStamp().NullsLast().Desc()

	assert.Equal(t, []string{
		"(task_log_entries.time_stamp IS NULL) ASC",
		"task_log_entries.time_stamp DESC",
	}, query.OrderClauses(q.orders))
}

func mustBuild(t *testing.T, q *TaskQuery) (string, []any, error) {
	t.Helper()
	qb, err := q.buildSelect("tasks.id")
	if err != nil {
		return "", nil, err
	}
	return qb.ToSql()
}
