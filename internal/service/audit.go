package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/procflow/taskstore/internal/domain"
	"github.com/procflow/taskstore/internal/identity"
	"github.com/procflow/taskstore/internal/repository"
)

// Diff payloads, one struct per audited field so the JSON key order is fixed
// by declaration order: previous value first, then the new one.

type nameDiff struct {
	Previous *string `json:"previousName"`
	New      *string `json:"newName"`
}

type descriptionDiff struct {
	Previous *string `json:"previousDescription"`
	New      *string `json:"newDescription"`
}

type ownerDiff struct {
	Previous *string `json:"previousOwnerId"`
	New      *string `json:"newOwnerId"`
}

type assigneeDiff struct {
	Previous *string `json:"previousAssigneeId"`
	New      *string `json:"newAssigneeId"`
}

type priorityDiff struct {
	Previous int `json:"previousPriority"`
	New      int `json:"newPriority"`
}

type dueDateDiff struct {
	Previous *time.Time `json:"previousDueDate"`
	New      *time.Time `json:"newDueDate"`
}

type categoryDiff struct {
	Previous *string `json:"previousCategory"`
	New      *string `json:"newCategory"`
}

type suspensionDiff struct {
	Previous string `json:"previousSuspensionState"`
	New      string `json:"newSuspensionState"`
}

type identityLinkData struct {
	Type    string  `json:"type"`
	UserID  *string `json:"userId,omitempty"`
	GroupID *string `json:"groupId,omitempty"`
}

// fieldChange is one detected logical change, carrying its reserved type tag
// and marshalled diff payload.
type fieldChange struct {
	entryType domain.LogEntryType
	data      []byte
}

// diffTask compares the persisted snapshot against the mutated task and
// returns one change per audited field. The check order is fixed so that
// composite saves emit entries deterministically: name, description, owner,
// assignee, priority, due date, category, suspension state. Fields set to
// their current value yield no change at all.
func diffTask(old, mutated *domain.Task) ([]fieldChange, error) {
	var changes []fieldChange

	add := func(entryType domain.LogEntryType, payload any) error {
		data, err := marshalPayload(payload)
		if err != nil {
			return err
		}
		changes = append(changes, fieldChange{entryType: entryType, data: data})
		return nil
	}

	if old.Name != mutated.Name {
		if err := add(domain.LogNameChanged, nameDiff{Previous: emptyToNil(old.Name), New: emptyToNil(mutated.Name)}); err != nil {
			return nil, err
		}
	}
	if old.Description != mutated.Description {
		if err := add(domain.LogDescriptionChanged, descriptionDiff{Previous: emptyToNil(old.Description), New: emptyToNil(mutated.Description)}); err != nil {
			return nil, err
		}
	}
	if !equalStrPtr(old.Owner, mutated.Owner) {
		if err := add(domain.LogOwnerChanged, ownerDiff{Previous: old.Owner, New: mutated.Owner}); err != nil {
			return nil, err
		}
	}
	if !equalStrPtr(old.Assignee, mutated.Assignee) {
		if err := add(domain.LogAssigneeChanged, assigneeDiff{Previous: old.Assignee, New: mutated.Assignee}); err != nil {
			return nil, err
		}
	}
	if old.Priority != mutated.Priority {
		if err := add(domain.LogPriorityChanged, priorityDiff{Previous: old.Priority, New: mutated.Priority}); err != nil {
			return nil, err
		}
	}
	if !equalTimePtr(old.DueDate, mutated.DueDate) {
		if err := add(domain.LogDueDateChanged, dueDateDiff{Previous: old.DueDate, New: mutated.DueDate}); err != nil {
			return nil, err
		}
	}
	if !equalStrPtr(old.Category, mutated.Category) {
		if err := add(domain.LogCategoryChanged, categoryDiff{Previous: old.Category, New: mutated.Category}); err != nil {
			return nil, err
		}
	}
	if old.SuspensionState != mutated.SuspensionState {
		if err := add(domain.LogSuspensionStateChanged, suspensionDiff{
			Previous: suspensionLabel(old.SuspensionState),
			New:      suspensionLabel(mutated.SuspensionState),
		}); err != nil {
			return nil, err
		}
	}

	return changes, nil
}

// auditEmitter appends one ordered log entry per logical change, inside the
// same transaction as the mutation it records. Entries become visible only
// once that transaction commits.
type auditEmitter struct {
	logRepo *repository.TaskLogRepository
}

func (e *auditEmitter) entryFor(ctx context.Context, task *domain.Task, entryType domain.LogEntryType, data []byte, at time.Time) *domain.TaskLogEntry {
	t := string(entryType)
	return &domain.TaskLogEntry{
		TaskID:            task.ID,
		Type:              &t,
		TimeStamp:         at,
		UserID:            identity.AuthenticatedUser(ctx),
		Data:              data,
		ExecutionID:       task.ExecutionID,
		ProcessInstanceID: task.ProcessInstanceID,
		ScopeID:           task.ScopeID,
		ScopeType:         task.ScopeType,
		TenantID:          task.TenantID,
	}
}

// emitFieldChanges diffs the snapshot against the mutated task and appends
// the per-field entries in the declared order.
func (e *auditEmitter) emitFieldChanges(ctx context.Context, tx pgx.Tx, old, mutated *domain.Task) error {
	changes, err := diffTask(old, mutated)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, change := range changes {
		entry := e.entryFor(ctx, mutated, change.entryType, change.data, now)
		if err := e.logRepo.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("emit %s: %w", change.entryType, err)
		}
	}
	return nil
}

// emitCreated records the reserved creation entry, stamped with the task's
// own creation time.
func (e *auditEmitter) emitCreated(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	entry := e.entryFor(ctx, task, domain.LogTaskCreated, nil, task.CreateTime)
	return e.logRepo.Append(ctx, tx, entry)
}

// emitCompleted records the reserved completion entry.
func (e *auditEmitter) emitCompleted(ctx context.Context, tx pgx.Tx, task *domain.Task, at time.Time) error {
	entry := e.entryFor(ctx, task, domain.LogTaskCompleted, nil, at)
	return e.logRepo.Append(ctx, tx, entry)
}

// emitIdentityLink records an add or remove of an identity link, tagged
// distinctly from field changes and carrying the link's type and identity.
func (e *auditEmitter) emitIdentityLink(ctx context.Context, tx pgx.Tx, task *domain.Task, link *domain.IdentityLink, added bool) error {
	// Exactly one side of the link is set; the payload carries only that one.
	payload := identityLinkData{Type: link.Type}
	if link.IsUser() {
		payload.UserID = link.UserID
	} else {
		payload.GroupID = link.GroupID
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	entryType := domain.LogIdentityLinkAdded
	if !added {
		entryType = domain.LogIdentityLinkRemoved
	}
	entry := e.entryFor(ctx, task, entryType, data, time.Now())
	return e.logRepo.Append(ctx, tx, entry)
}

func marshalPayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal log payload: %w", err)
	}
	return data, nil
}

func suspensionLabel(s domain.SuspensionState) string {
	if s.IsSuspended() {
		return "suspended"
	}
	return "active"
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
