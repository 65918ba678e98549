package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procflow/taskstore/internal/domain"
	"github.com/procflow/taskstore/internal/query"
)

func TestBuilder_TopLevelPredicatesAreConjoined(t *testing.T) {
	b := query.NewBuilder()
	b.Add(query.Eq("assignee", "kermit"))
	b.Add(query.Gt("priority", 10))

	sqlizer, err := b.Resolve(100)
	require.NoError(t, err)

	sql, args, err := sqlizer.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(assignee = ? AND priority > ?)", sql)
	assert.Equal(t, []any{"kermit", 10}, args)
}

func TestBuilder_RepeatedPredicateInOrGroup(t *testing.T) {
	b := query.NewBuilder()
	b.Add(query.Eq("owner", "fozzie"))
	b.BeginOr()
	assert.True(t, b.InOrGroup())
	b.Add(query.Eq("name", "a"))
	b.Add(query.Eq("name", "b"))
	b.Add(query.Eq("name", "c"))
	b.EndOr()
	assert.False(t, b.InOrGroup())

	sqlizer, err := b.Resolve(100)
	require.NoError(t, err)

	sql, args, err := sqlizer.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(owner = ? AND (name = ? OR name = ? OR name = ?))", sql)
	assert.Equal(t, []any{"fozzie", "a", "b", "c"}, args)
}

func TestBuilder_OrGroupIsAndedWithSiblings(t *testing.T) {
	b := query.NewBuilder()
	b.BeginOr()
	b.Add(query.Eq("assignee", "kermit"))
	b.Add(query.IsNull("assignee"))
	b.EndOr()
	b.Add(query.IsNull("parent_task_id"))

	sqlizer, err := b.Resolve(100)
	require.NoError(t, err)

	sql, _, err := sqlizer.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "((assignee = ? OR assignee IS NULL) AND parent_task_id IS NULL)", sql)
}

func TestBuilder_EmptyOrGroupIsDropped(t *testing.T) {
	b := query.NewBuilder()
	b.BeginOr()
	b.EndOr()
	b.Add(query.Eq("name", "x"))

	tree, err := b.Tree()
	require.NoError(t, err)
	assert.Len(t, tree.Terms, 1)
}

func TestBuilder_NestedOrIsRejected(t *testing.T) {
	b := query.NewBuilder()
	b.BeginOr()
	b.BeginOr()

	_, err := b.Tree()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIllegalArgument)
}

func TestBuilder_EndOrWithoutBeginIsRejected(t *testing.T) {
	b := query.NewBuilder()
	b.EndOr()

	_, err := b.Resolve(100)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIllegalArgument)
}

func TestBuilder_UnclosedOrGroupIsRejected(t *testing.T) {
	b := query.NewBuilder()
	b.BeginOr()
	b.Add(query.Eq("name", "x"))

	_, err := b.Tree()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIllegalArgument)
}

func TestBuilder_FirstRecordedErrorWins(t *testing.T) {
	b := query.NewBuilder()
	b.Failf("assignee is required")
	b.Failf("owner is required")
	b.Add(query.Eq("name", "x"))

	_, err := b.Resolve(100)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIllegalArgument)
	assert.Contains(t, err.Error(), "assignee is required")
}

func TestBuilder_EmptyInSetMatchesNothing(t *testing.T) {
	b := query.NewBuilder()
	b.Add(query.In("id", nil))

	sqlizer, err := b.Resolve(100)
	require.NoError(t, err)

	sql, args, err := sqlizer.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "((1=0))", sql)
	assert.Empty(t, args)
}

func TestBuilder_EmptyTreeResolvesToNil(t *testing.T) {
	b := query.NewBuilder()

	sqlizer, err := b.Resolve(100)
	require.NoError(t, err)
	assert.Nil(t, sqlizer)
}
