package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/taskstore/internal/domain"
)

var variableColumns = []string{
	"id", "scope_id", "scope_type", "name", "var_type",
	"text_value", "long_value", "double_value", "bytes_value",
}

// VariableRepository handles database operations for variable instances.
type VariableRepository struct {
	pool *pgxpool.Pool
}

// NewVariableRepository creates a new VariableRepository.
func NewVariableRepository(pool *pgxpool.Pool) *VariableRepository {
	return &VariableRepository{pool: pool}
}

func scanVariables(rows pgx.Rows) ([]*domain.VariableInstance, error) {
	defer rows.Close()

	var vars []*domain.VariableInstance
	for rows.Next() {
		var v domain.VariableInstance
		err := rows.Scan(
			&v.ID,
			&v.ScopeID,
			&v.ScopeType,
			&v.Name,
			&v.Value.Type,
			&v.Value.Text,
			&v.Value.Long,
			&v.Value.Double,
			&v.Value.Bytes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		vars = append(vars, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return vars, nil
}

// Set upserts a variable by its (scope, name) key.
func (r *VariableRepository) Set(ctx context.Context, tx pgx.Tx, v *domain.VariableInstance) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	query, args, err := psql.
		Insert("variables").
		Columns(variableColumns...).
		Values(
			v.ID, v.ScopeID, v.ScopeType, v.Name, v.Value.Type,
			v.Value.Text, v.Value.Long, v.Value.Double, v.Value.Bytes,
		).
		Suffix(`ON CONFLICT (scope_id, scope_type, name) DO UPDATE SET
			var_type = EXCLUDED.var_type,
			text_value = EXCLUDED.text_value,
			long_value = EXCLUDED.long_value,
			double_value = EXCLUDED.double_value,
			bytes_value = EXCLUDED.bytes_value`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Set query for variable %s: %w", v.Name, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("set variable: %w", err)
	}
	return nil
}

// ListByScope retrieves all variables of one scope.
func (r *VariableRepository) ListByScope(
	ctx context.Context,
	scopeID string,
	scopeType domain.VariableScopeType,
) ([]*domain.VariableInstance, error) {
	query, args, err := psql.
		Select(variableColumns...).
		From("variables").
		Where(sq.Eq{"scope_id": scopeID, "scope_type": scopeType}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByScope query for variables: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", err)
	}
	return scanVariables(rows)
}

// ListByScopeIDs batch-loads the variables of every scope in scopeIDs with
// one query, keyed by scope id. fetchLimit caps the returned rows: a page of
// very variable-heavy entities degrades to truncated collections instead of
// blowing the backend's parameter or row limits.
func (r *VariableRepository) ListByScopeIDs(
	ctx context.Context,
	scopeIDs []string,
	scopeType domain.VariableScopeType,
	fetchLimit int,
) (map[string]map[string]domain.VariableValue, error) {
	result := make(map[string]map[string]domain.VariableValue, len(scopeIDs))
	if len(scopeIDs) == 0 {
		return result, nil
	}

	qb := psql.
		Select(variableColumns...).
		From("variables").
		Where(sq.Eq{"scope_id": scopeIDs, "scope_type": scopeType}).
		OrderBy("scope_id", "name")
	if fetchLimit > 0 {
		qb = qb.Limit(uint64(fetchLimit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByScopeIDs query for variables: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", err)
	}

	vars, err := scanVariables(rows)
	if err != nil {
		return nil, err
	}

	for _, v := range vars {
		byName, ok := result[v.ScopeID]
		if !ok {
			byName = make(map[string]domain.VariableValue)
			result[v.ScopeID] = byName
		}
		byName[v.Name] = v.Value
	}
	return result, nil
}

// Delete removes one variable of a scope. Missing rows are a no-op.
func (r *VariableRepository) Delete(
	ctx context.Context,
	tx pgx.Tx,
	scopeID string,
	scopeType domain.VariableScopeType,
	name string,
) error {
	query, args, err := psql.
		Delete("variables").
		Where(sq.Eq{"scope_id": scopeID, "scope_type": scopeType, "name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Delete query for variable %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete variable: %w", err)
	}
	return nil
}

// DeleteByScope removes all variables of one scope (cascade on task deletion).
func (r *VariableRepository) DeleteByScope(
	ctx context.Context,
	tx pgx.Tx,
	scopeID string,
	scopeType domain.VariableScopeType,
) error {
	query, args, err := psql.
		Delete("variables").
		Where(sq.Eq{"scope_id": scopeID, "scope_type": scopeType}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build DeleteByScope query for variables: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete variables: %w", err)
	}
	return nil
}
