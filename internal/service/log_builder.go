package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/procflow/taskstore/internal/domain"
	"github.com/procflow/taskstore/internal/identity"
)

// TaskLogEntryBuilder accumulates a caller-supplied log entry. Defaults at
// Add time: the timestamp falls back to now, the user id to the ambient
// authenticated user. The task id is required.
type TaskLogEntryBuilder struct {
	s     *TaskService
	entry domain.TaskLogEntry
}

// NewLogEntryBuilder starts building a log entry for the given task.
func (s *TaskService) NewLogEntryBuilder(taskID string) *TaskLogEntryBuilder {
	return &TaskLogEntryBuilder{s: s, entry: domain.TaskLogEntry{TaskID: taskID}}
}

// Type sets the entry type.
func (b *TaskLogEntryBuilder) Type(entryType string) *TaskLogEntryBuilder {
	b.entry.Type = &entryType
	return b
}

// UserID overrides the ambient user attribution.
func (b *TaskLogEntryBuilder) UserID(userID string) *TaskLogEntryBuilder {
	b.entry.UserID = &userID
	return b
}

// Data sets the opaque payload.
func (b *TaskLogEntryBuilder) Data(data []byte) *TaskLogEntryBuilder {
	b.entry.Data = data
	return b
}

// TimeStamp overrides the default append-time stamp.
func (b *TaskLogEntryBuilder) TimeStamp(t time.Time) *TaskLogEntryBuilder {
	b.entry.TimeStamp = t
	return b
}

// ScopeID sets the scope correlation id.
func (b *TaskLogEntryBuilder) ScopeID(scopeID string) *TaskLogEntryBuilder {
	b.entry.ScopeID = &scopeID
	return b
}

// SubScopeID sets the sub-scope correlation id.
func (b *TaskLogEntryBuilder) SubScopeID(subScopeID string) *TaskLogEntryBuilder {
	b.entry.SubScopeID = &subScopeID
	return b
}

// ScopeType sets the scope correlation type.
func (b *TaskLogEntryBuilder) ScopeType(scopeType string) *TaskLogEntryBuilder {
	b.entry.ScopeType = &scopeType
	return b
}

// TenantID sets the tenant.
func (b *TaskLogEntryBuilder) TenantID(tenantID string) *TaskLogEntryBuilder {
	b.entry.TenantID = &tenantID
	return b
}

// Add appends the entry in its own unit of work and returns it with the
// assigned log number.
func (b *TaskLogEntryBuilder) Add(ctx context.Context) (*domain.TaskLogEntry, error) {
	if b.entry.TaskID == "" {
		return nil, fmt.Errorf("%w: log entry requires a task id", domain.ErrIllegalArgument)
	}
	if b.entry.UserID == nil {
		b.entry.UserID = identity.AuthenticatedUser(ctx)
	}

	tx, err := b.s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	entry := b.entry
	if err := b.s.logRepo.Append(ctx, tx, &entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &entry, nil
}
