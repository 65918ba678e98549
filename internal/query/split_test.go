package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procflow/taskstore/internal/query"
)

func TestChunk(t *testing.T) {
	values := []any{1, 2, 3, 4, 5}

	chunks := query.Chunk(values, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []any{1, 2}, chunks[0])
	assert.Equal(t, []any{3, 4}, chunks[1])
	assert.Equal(t, []any{5}, chunks[2])
}

func TestChunk_ExactMultiple(t *testing.T) {
	chunks := query.Chunk([]string{"a", "b", "c", "d"}, 2)
	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"c", "d"}, chunks[1])
}

func TestChunk_EmptyInput(t *testing.T) {
	assert.Nil(t, query.Chunk([]int(nil), 3))
	assert.Nil(t, query.Chunk([]int{1, 2}, 0))
}

func TestResolve_SplitsOversizedInSet(t *testing.T) {
	b := query.NewBuilder()
	b.Add(query.In("id", []any{"a", "b", "c", "d", "e"}))

	sqlizer, err := b.Resolve(2)
	require.NoError(t, err)

	sql, args, err := sqlizer.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "((id IN (?,?) OR id IN (?,?) OR id IN (?)))", sql)
	assert.Equal(t, []any{"a", "b", "c", "d", "e"}, args)
}

func TestResolve_SetAtLimitIsNotSplit(t *testing.T) {
	b := query.NewBuilder()
	b.Add(query.In("id", []any{"a", "b"}))

	sqlizer, err := b.Resolve(2)
	require.NoError(t, err)

	sql, args, err := sqlizer.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(id IN (?,?))", sql)
	assert.Len(t, args, 2)
}

func TestResolve_SplitComposesInsideOrGroup(t *testing.T) {
	b := query.NewBuilder()
	b.BeginOr()
	b.Add(query.Eq("assignee", "kermit"))
	b.Add(query.In("id", []any{"a", "b", "c"}))
	b.EndOr()

	sqlizer, err := b.Resolve(2)
	require.NoError(t, err)

	// The chunks join the existing disjunction as additional siblings, no
	// extra nesting level.
	sql, args, err := sqlizer.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "((assignee = ? OR id IN (?,?) OR id IN (?)))", sql)
	assert.Equal(t, []any{"kermit", "a", "b", "c"}, args)
}

func TestResolve_NonPositiveLimitDisablesSplitting(t *testing.T) {
	b := query.NewBuilder()
	b.Add(query.In("id", []any{"a", "b", "c"}))

	sqlizer, err := b.Resolve(0)
	require.NoError(t, err)

	sql, args, err := sqlizer.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(id IN (?,?,?))", sql)
	assert.Len(t, args, 3)
}
