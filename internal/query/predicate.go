// Package query implements the backend-agnostic predicate model shared by the
// task, historic task and task log query surfaces: a tree of AND-composed
// terms where each term is a single predicate or a disjunction, resolved into
// a squirrel expression with IN-lists chunked to the backend parameter limit.
package query

import (
	sq "github.com/Masterminds/squirrel"
)

// Op enumerates the supported predicate operators.
type Op int

const (
	OpEq Op = iota
	OpNotEq
	OpLike
	OpLikeIgnoreCase
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpIn
	OpIsNull
	OpNotNull
	// OpRaw carries a prebuilt squirrel expression, used for predicates the
	// column model cannot express (EXISTS subqueries against variables and
	// identity links).
	OpRaw
)

// Predicate is a single filter condition over one column.
type Predicate struct {
	Column string
	Op     Op
	Value  any
	Values []any      // OpIn only
	Expr   sq.Sqlizer // OpRaw only
}

// Eq builds an equality predicate.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpEq, Value: value}
}

// NotEq builds an inequality predicate.
func NotEq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpNotEq, Value: value}
}

// Like builds a case-sensitive LIKE predicate.
func Like(column string, pattern string) Predicate {
	return Predicate{Column: column, Op: OpLike, Value: pattern}
}

// LikeIgnoreCase builds a case-insensitive LIKE predicate.
func LikeIgnoreCase(column string, pattern string) Predicate {
	return Predicate{Column: column, Op: OpLikeIgnoreCase, Value: pattern}
}

// Gt builds a greater-than predicate.
func Gt(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpGT, Value: value}
}

// GtOrEq builds a greater-or-equal predicate.
func GtOrEq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpGTE, Value: value}
}

// Lt builds a less-than predicate.
func Lt(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpLT, Value: value}
}

// LtOrEq builds a less-or-equal predicate.
func LtOrEq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpLTE, Value: value}
}

// In builds a set-membership predicate. An empty set is a valid predicate
// that matches nothing.
func In(column string, values []any) Predicate {
	return Predicate{Column: column, Op: OpIn, Values: values}
}

// IsNull builds a null-test predicate.
func IsNull(column string) Predicate {
	return Predicate{Column: column, Op: OpIsNull}
}

// NotNull builds a not-null-test predicate.
func NotNull(column string) Predicate {
	return Predicate{Column: column, Op: OpNotNull}
}

// Raw wraps a prebuilt squirrel expression as a predicate.
func Raw(expr sq.Sqlizer) Predicate {
	return Predicate{Op: OpRaw, Expr: expr}
}

// matchNothing is emitted for an empty IN set.
var matchNothing = sq.Expr("(1=0)")

func (p Predicate) toSqlizer() sq.Sqlizer {
	switch p.Op {
	case OpEq:
		return sq.Eq{p.Column: p.Value}
	case OpNotEq:
		return sq.NotEq{p.Column: p.Value}
	case OpLike:
		return sq.Like{p.Column: p.Value}
	case OpLikeIgnoreCase:
		return sq.ILike{p.Column: p.Value}
	case OpGT:
		return sq.Gt{p.Column: p.Value}
	case OpGTE:
		return sq.GtOrEq{p.Column: p.Value}
	case OpLT:
		return sq.Lt{p.Column: p.Value}
	case OpLTE:
		return sq.LtOrEq{p.Column: p.Value}
	case OpIn:
		if len(p.Values) == 0 {
			return matchNothing
		}
		return sq.Eq{p.Column: p.Values}
	case OpIsNull:
		return sq.Eq{p.Column: nil}
	case OpNotNull:
		return sq.NotEq{p.Column: nil}
	case OpRaw:
		return p.Expr
	default:
		return matchNothing
	}
}
