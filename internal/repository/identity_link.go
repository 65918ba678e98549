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

var identityLinkColumns = []string{
	"id", "task_id", "process_instance_id", "user_id", "group_id", "link_type",
}

// IdentityLinkRepository handles database operations for identity links.
type IdentityLinkRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityLinkRepository creates a new IdentityLinkRepository.
func NewIdentityLinkRepository(pool *pgxpool.Pool) *IdentityLinkRepository {
	return &IdentityLinkRepository{pool: pool}
}

func scanIdentityLinks(rows pgx.Rows) ([]*domain.IdentityLink, error) {
	defer rows.Close()

	var links []*domain.IdentityLink
	for rows.Next() {
		var link domain.IdentityLink
		err := rows.Scan(
			&link.ID,
			&link.TaskID,
			&link.ProcessInstanceID,
			&link.UserID,
			&link.GroupID,
			&link.Type,
		)
		if err != nil {
			return nil, fmt.Errorf("scan identity link: %w", err)
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return links, nil
}

// Create inserts an identity link. Duplicates of an existing (task, identity,
// type) tuple are inserted as independent rows on purpose; identity
// existence is not validated either, a link to an unknown user id is legal.
func (r *IdentityLinkRepository) Create(ctx context.Context, tx pgx.Tx, link *domain.IdentityLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}

	query, args, err := psql.
		Insert("identity_links").
		Columns(identityLinkColumns...).
		Values(link.ID, link.TaskID, link.ProcessInstanceID, link.UserID, link.GroupID, link.Type).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for identity link: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create identity link: %w", err)
	}
	return nil
}

// DeleteMatching removes every link of the task carrying the given identity
// and type in one statement, and returns how many rows went away.
func (r *IdentityLinkRepository) DeleteMatching(
	ctx context.Context,
	tx pgx.Tx,
	taskID string,
	userID, groupID *string,
	linkType string,
) (int64, error) {
	query, args, err := psql.
		Delete("identity_links").
		Where(sq.Eq{
			"task_id":   taskID,
			"user_id":   userID,
			"group_id":  groupID,
			"link_type": linkType,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build DeleteMatching query for identity link: %w", err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete identity links: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByTaskID removes all links of a task (cascade on task deletion).
func (r *IdentityLinkRepository) DeleteByTaskID(ctx context.Context, tx pgx.Tx, taskID string) error {
	query, args, err := psql.
		Delete("identity_links").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build DeleteByTaskID query for identity links: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete identity links: %w", err)
	}
	return nil
}

// ListByTaskID retrieves all links of a single task.
func (r *IdentityLinkRepository) ListByTaskID(ctx context.Context, taskID string) ([]*domain.IdentityLink, error) {
	query, args, err := psql.
		Select(identityLinkColumns...).
		From("identity_links").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTaskID query for identity links: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query identity links: %w", err)
	}
	return scanIdentityLinks(rows)
}

// ListByTaskIDs retrieves the links of every task in ids with one query,
// keyed by task id. Used by the eager-include hydrator.
func (r *IdentityLinkRepository) ListByTaskIDs(ctx context.Context, taskIDs []string) (map[string][]*domain.IdentityLink, error) {
	if len(taskIDs) == 0 {
		return map[string][]*domain.IdentityLink{}, nil
	}

	query, args, err := psql.
		Select(identityLinkColumns...).
		From("identity_links").
		Where(sq.Eq{"task_id": taskIDs}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTaskIDs query for identity links: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query identity links: %w", err)
	}

	links, err := scanIdentityLinks(rows)
	if err != nil {
		return nil, err
	}

	byTask := make(map[string][]*domain.IdentityLink, len(taskIDs))
	for _, link := range links {
		if link.TaskID == nil {
			continue
		}
		byTask[*link.TaskID] = append(byTask[*link.TaskID], link)
	}
	return byTask, nil
}
