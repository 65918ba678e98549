package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/procflow/taskstore/internal/domain"
	"github.com/procflow/taskstore/internal/query"
)

// variableExistsExpr builds an EXISTS probe for the presence of a named
// variable in the given scope, regardless of its value.
func variableExistsExpr(scopeColumn string, scopeType domain.VariableScopeType, name string, exists bool) sq.Sqlizer {
	probe := "EXISTS"
	if !exists {
		probe = "NOT EXISTS"
	}
	return sq.Expr(
		probe+` (SELECT 1 FROM variables v WHERE v.scope_id = `+scopeColumn+
			` AND v.scope_type = ? AND v.name = ?)`,
		scopeType, name,
	)
}

// variableValueExpr builds an EXISTS probe comparing a named variable's value
// type-aware: numeric widths compare through the shared numeric channel,
// explicit null is a distinct queryable value, and opaque binary payloads are
// rejected for value predicates.
func variableValueExpr(
	scopeColumn string,
	scopeType domain.VariableScopeType,
	name string,
	value domain.VariableValue,
	op query.Op,
) (sq.Sqlizer, error) {
	clause, args, err := variableValueClause(value, op)
	if err != nil {
		return nil, err
	}

	sql := `EXISTS (SELECT 1 FROM variables v WHERE v.scope_id = ` + scopeColumn +
		` AND v.scope_type = ? AND v.name = ? AND ` + clause + `)`
	exprArgs := append([]any{scopeType, name}, args...)
	return sq.Expr(sql, exprArgs...), nil
}

func variableValueClause(value domain.VariableValue, op query.Op) (string, []any, error) {
	if !value.Type.IsQueryableByValue() {
		return "", nil, fmt.Errorf("%w: binary variable values cannot be queried by value", domain.ErrIllegalArgument)
	}

	cmp, err := compareOperator(op)
	if err != nil {
		return "", nil, err
	}

	switch op {
	case query.OpEq, query.OpNotEq:
		return equalityClause(value, cmp)
	case query.OpLike, query.OpLikeIgnoreCase:
		if value.Type != domain.VarTypeString {
			return "", nil, fmt.Errorf("%w: like predicates require a string variable value", domain.ErrIllegalArgument)
		}
		return `v.var_type = 'string' AND v.text_value ` + cmp + ` ?`, []any{*value.Text}, nil
	default:
		return rangeClause(value, cmp)
	}
}

func equalityClause(value domain.VariableValue, cmp string) (string, []any, error) {
	switch {
	case value.IsNull():
		if cmp == "<>" {
			return `v.var_type <> 'null'`, nil, nil
		}
		return `v.var_type = 'null'`, nil, nil
	case value.Type.IsNumeric():
		return `v.var_type IN ('short','integer','long') AND v.long_value ` + cmp + ` ?`, []any{*value.Long}, nil
	case value.Type == domain.VarTypeString:
		return `v.var_type = 'string' AND v.text_value ` + cmp + ` ?`, []any{*value.Text}, nil
	case value.Type == domain.VarTypeDouble:
		return `v.var_type = 'double' AND v.double_value ` + cmp + ` ?`, []any{*value.Double}, nil
	case value.Type == domain.VarTypeBoolean:
		return `v.var_type = 'boolean' AND v.long_value ` + cmp + ` ?`, []any{*value.Long}, nil
	case value.Type == domain.VarTypeDate:
		return `v.var_type = 'date' AND v.long_value ` + cmp + ` ?`, []any{*value.Long}, nil
	default:
		return "", nil, fmt.Errorf("%w: unsupported variable type %q", domain.ErrIllegalArgument, value.Type)
	}
}

func rangeClause(value domain.VariableValue, cmp string) (string, []any, error) {
	switch {
	case value.Type.IsNumeric():
		return `v.var_type IN ('short','integer','long') AND v.long_value ` + cmp + ` ?`, []any{*value.Long}, nil
	case value.Type == domain.VarTypeDouble:
		return `v.var_type = 'double' AND v.double_value ` + cmp + ` ?`, []any{*value.Double}, nil
	case value.Type == domain.VarTypeDate:
		return `v.var_type = 'date' AND v.long_value ` + cmp + ` ?`, []any{*value.Long}, nil
	case value.Type == domain.VarTypeString:
		return `v.var_type = 'string' AND v.text_value ` + cmp + ` ?`, []any{*value.Text}, nil
	default:
		return "", nil, fmt.Errorf("%w: range predicates are not defined for variable type %q", domain.ErrIllegalArgument, value.Type)
	}
}

func compareOperator(op query.Op) (string, error) {
	switch op {
	case query.OpEq:
		return "=", nil
	case query.OpNotEq:
		return "<>", nil
	case query.OpLike:
		return "LIKE", nil
	case query.OpLikeIgnoreCase:
		return "ILIKE", nil
	case query.OpGT:
		return ">", nil
	case query.OpGTE:
		return ">=", nil
	case query.OpLT:
		return "<", nil
	case query.OpLTE:
		return "<=", nil
	default:
		return "", fmt.Errorf("%w: operator not valid for variable predicates", domain.ErrIllegalArgument)
	}
}
