package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/procflow/taskstore/internal/query"
)

func TestOrderBy_DefaultPlacement(t *testing.T) {
	o := query.OrderBy{Column: "priority", Direction: query.Desc}
	assert.Equal(t, []string{"priority DESC"}, o.Clauses())
}

func TestOrderBy_DirectionDefaultsToAsc(t *testing.T) {
	o := query.OrderBy{Column: "name"}
	assert.Equal(t, []string{"name ASC"}, o.Clauses())
}

func TestOrderBy_NullsLastSurvivesDirectionReversal(t *testing.T) {
	asc := query.OrderBy{Column: "due_date", Direction: query.Asc, Nulls: query.NullsLast}
	desc := query.OrderBy{Column: "due_date", Direction: query.Desc, Nulls: query.NullsLast}

	// The is-null rank is the primary key either way, so flipping the value
	// direction reorders only the non-null block.
	assert.Equal(t, []string{"(due_date IS NULL) ASC", "due_date ASC"}, asc.Clauses())
	assert.Equal(t, []string{"(due_date IS NULL) ASC", "due_date DESC"}, desc.Clauses())
}

func TestOrderBy_NullsFirst(t *testing.T) {
	o := query.OrderBy{Column: "due_date", Direction: query.Desc, Nulls: query.NullsFirst}
	assert.Equal(t, []string{"(due_date IS NULL) DESC", "due_date DESC"}, o.Clauses())
}

func TestOrderClauses_FlattensKeys(t *testing.T) {
	clauses := query.OrderClauses([]query.OrderBy{
		{Column: "due_date", Direction: query.Asc, Nulls: query.NullsLast},
		{Column: "id", Direction: query.Asc},
	})
	assert.Equal(t, []string{"(due_date IS NULL) ASC", "due_date ASC", "id ASC"}, clauses)
}
