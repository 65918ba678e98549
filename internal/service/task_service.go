package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/taskstore/internal/domain"
	"github.com/procflow/taskstore/internal/repository"
)

// TaskService coordinates task mutations with their audit entries and the
// historic mirror. Every mutation runs in one transaction: the field change,
// its log entries and the mirror row commit or roll back together.
type TaskService struct {
	pool         *pgxpool.Pool
	taskRepo     *repository.TaskRepository
	historicRepo *repository.HistoricTaskRepository
	linkRepo     *repository.IdentityLinkRepository
	varRepo      *repository.VariableRepository
	logRepo      *repository.TaskLogRepository
	emitter      *auditEmitter
}

// NewTaskService creates a new TaskService.
func NewTaskService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	historicRepo *repository.HistoricTaskRepository,
	linkRepo *repository.IdentityLinkRepository,
	varRepo *repository.VariableRepository,
	logRepo *repository.TaskLogRepository,
) *TaskService {
	return &TaskService{
		pool:         pool,
		taskRepo:     taskRepo,
		historicRepo: historicRepo,
		linkRepo:     linkRepo,
		varRepo:      varRepo,
		logRepo:      logRepo,
		emitter:      &auditEmitter{logRepo: logRepo},
	}
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}

// Create persists a new task, its mirror row and the reserved creation
// entry. A zero priority defaults to DefaultPriority; ids and the creation
// time are filled in when absent. Creation emits exactly one entry, stamped
// with the task's creation time, even when the task starts with an assignee.
func (s *TaskService) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Priority == 0 {
		task.Priority = domain.DefaultPriority
	}
	if task.SuspensionState == 0 {
		task.SuspensionState = domain.SuspensionActive
	}
	if task.CreateTime.IsZero() {
		task.CreateTime = time.Now()
	}
	task.Revision = 1

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := s.taskRepo.Create(ctx, tx, task); err != nil {
		return err
	}
	if err := s.historicRepo.Upsert(ctx, tx, mirrorOf(task)); err != nil {
		return err
	}
	if err := s.emitter.emitCreated(ctx, tx, task); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("task created", "task_id", task.ID)
	return nil
}

// mutate loads the task under lock, applies fn, diffs against the snapshot,
// persists with the revision guard, refreshes the mirror and emits the
// per-field entries. fn returning an error aborts with nothing written; a
// mutation that changes nothing commits without emitting any entry.
func (s *TaskService) mutate(ctx context.Context, taskID string, fn func(*domain.Task) error, post ...func(pgx.Tx, *domain.Task) error) (*domain.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	snapshot := task.Clone()

	if err := fn(task); err != nil {
		return nil, err
	}

	if unchanged(snapshot, task) {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		return task, nil
	}

	if err := s.taskRepo.Update(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := s.historicRepo.Upsert(ctx, tx, mirrorOf(task)); err != nil {
		return nil, err
	}
	if err := s.emitter.emitFieldChanges(ctx, tx, snapshot, task); err != nil {
		return nil, err
	}
	for _, hook := range post {
		if err := hook(tx, task); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return task, nil
}

// Save persists a detached task's field changes. The caller's revision is
// the optimistic lock: a concurrent save in between surfaces as
// ErrRevisionConflict. One entry is emitted per changed audited field, in
// the order documented on diffTask.
func (s *TaskService) Save(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		return s.Create(ctx, task)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	snapshot, err := s.taskRepo.GetByIDForUpdate(ctx, tx, task.ID)
	if err != nil {
		return err
	}

	if unchanged(snapshot, task) {
		return tx.Commit(ctx)
	}

	if err := s.taskRepo.Update(ctx, tx, task); err != nil {
		return err
	}
	if err := s.historicRepo.Upsert(ctx, tx, mirrorOf(task)); err != nil {
		return err
	}
	if err := s.emitter.emitFieldChanges(ctx, tx, snapshot, task); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("task saved", "task_id", task.ID)
	return nil
}

// unchanged reports whether the mutation left every persisted field alone.
// Hydrated collections and the caller's revision are ignored: they are not
// part of the write. Audited fields additionally produce log entries; fields
// like the delegation state persist without one.
func unchanged(snapshot, task *domain.Task) bool {
	a := snapshot.Clone()
	b := task.Clone()
	b.Revision = a.Revision
	return reflect.DeepEqual(a, b)
}

// Claim assigns the task to userID. Claiming a task already assigned to a
// different user fails with ErrTaskAlreadyClaimed; re-claiming one's own
// task is a no-op.
func (s *TaskService) Claim(ctx context.Context, taskID, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrIllegalArgument)
	}

	claimed := false
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		if t.IsAssignedTo(userID) {
			return nil
		}
		if t.Assignee != nil {
			return fmt.Errorf("%w: task %s is assigned to %s", domain.ErrTaskAlreadyClaimed, taskID, *t.Assignee)
		}
		t.Assignee = &userID
		claimed = true
		return nil
	}, func(tx pgx.Tx, t *domain.Task) error {
		return s.historicRepo.SetClaimTime(ctx, tx, t.ID, time.Now())
	})
	if err != nil {
		return err
	}
	if claimed {
		slog.Info("task claimed", "task_id", taskID, "user_id", userID)
	}
	return nil
}

// Unclaim clears the assignee.
func (s *TaskService) Unclaim(ctx context.Context, taskID string) error {
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		t.Assignee = nil
		return nil
	})
	return err
}

// SetAssignee sets the assignee directly, without the claim conflict check.
func (s *TaskService) SetAssignee(ctx context.Context, taskID, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrIllegalArgument)
	}
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		t.Assignee = &userID
		return nil
	})
	return err
}

// SetOwner sets the owner.
func (s *TaskService) SetOwner(ctx context.Context, taskID, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrIllegalArgument)
	}
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		t.Owner = &userID
		return nil
	})
	return err
}

// SetPriority sets the priority.
func (s *TaskService) SetPriority(ctx context.Context, taskID string, priority int) error {
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		t.Priority = priority
		return nil
	})
	return err
}

// SetDueDate sets or clears the due date.
func (s *TaskService) SetDueDate(ctx context.Context, taskID string, dueDate *time.Time) error {
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		t.DueDate = dueDate
		return nil
	})
	return err
}

// Delegate hands the task to userID for resolution. The current assignee
// becomes the owner when no owner is set yet.
func (s *TaskService) Delegate(ctx context.Context, taskID, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrIllegalArgument)
	}
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		if t.Owner == nil {
			t.Owner = t.Assignee
		}
		t.Assignee = &userID
		t.DelegationState = domain.DelegationPending
		return nil
	})
	return err
}

// Resolve hands a delegated task back to its owner.
func (s *TaskService) Resolve(ctx context.Context, taskID string) error {
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		t.Assignee = t.Owner
		t.DelegationState = domain.DelegationResolved
		return nil
	})
	return err
}

// Suspend marks the task suspended, typically on a notification from the
// process interpreter.
func (s *TaskService) Suspend(ctx context.Context, taskID string) error {
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		t.SuspensionState = domain.SuspensionSuspended
		return nil
	})
	return err
}

// Activate reverts a suspension.
func (s *TaskService) Activate(ctx context.Context, taskID string) error {
	_, err := s.mutate(ctx, taskID, func(t *domain.Task) error {
		t.SuspensionState = domain.SuspensionActive
		return nil
	})
	return err
}

// Complete finishes the task: the completion entry is emitted, the mirror
// row is stamped with its end time, and the runtime row with its links and
// local variables is removed. Completing a pending delegation resolves it
// back to the owner instead of finishing the task.
func (s *TaskService) Complete(ctx context.Context, taskID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return err
	}

	if task.IsDelegationPending() {
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return s.Resolve(ctx, taskID)
	}

	now := time.Now()
	if err := s.emitter.emitCompleted(ctx, tx, task, now); err != nil {
		return err
	}
	if err := s.historicRepo.MarkEnded(ctx, tx, taskID, now, nil); err != nil {
		return err
	}
	if err := s.removeRuntime(ctx, tx, taskID, false); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("task completed", "task_id", taskID)
	return nil
}

// Delete removes a standalone task with its identity links, local variables
// and subtasks, and records the reason on the mirror row. Deleting a task
// still owned by a running process is rejected. Already-written log entries
// stay untouched unless removeLog asks for a full cascade, which also takes
// the mirror row with them.
func (s *TaskService) Delete(ctx context.Context, taskID, reason string, removeLog bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if task.IsPartOfProcess() {
		return fmt.Errorf("%w: task %s belongs to process instance %s",
			domain.ErrTaskPartOfProcess, taskID, *task.ProcessInstanceID)
	}

	if err := s.deleteTree(ctx, tx, taskID, reason, removeLog); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("task deleted", "task_id", taskID, "reason", reason)
	return nil
}

func (s *TaskService) deleteTree(ctx context.Context, tx pgx.Tx, taskID, reason string, removeLog bool) error {
	subtaskIDs, err := s.taskRepo.ListSubtaskIDs(ctx, taskID)
	if err != nil {
		return err
	}
	for _, subID := range subtaskIDs {
		if err := s.deleteTree(ctx, tx, subID, reason, removeLog); err != nil {
			return err
		}
	}

	// A cascading delete erases the task's trace: the mirror row goes with
	// the log entries. A plain delete closes the mirror with the reason.
	if removeLog {
		if err := s.historicRepo.Delete(ctx, tx, taskID); err != nil {
			return err
		}
		return s.removeRuntime(ctx, tx, taskID, true)
	}

	var deleteReason *string
	if reason != "" {
		deleteReason = &reason
	}
	if err := s.historicRepo.MarkEnded(ctx, tx, taskID, time.Now(), deleteReason); err != nil {
		return err
	}
	return s.removeRuntime(ctx, tx, taskID, false)
}

func (s *TaskService) removeRuntime(ctx context.Context, tx pgx.Tx, taskID string, removeLog bool) error {
	if err := s.linkRepo.DeleteByTaskID(ctx, tx, taskID); err != nil {
		return err
	}
	if err := s.varRepo.DeleteByScope(ctx, tx, taskID, domain.ScopeTask); err != nil {
		return err
	}
	if removeLog {
		if err := s.logRepo.DeleteByTaskID(ctx, tx, taskID); err != nil {
			return err
		}
	}
	return s.taskRepo.Delete(ctx, tx, taskID)
}

// AddUserIdentityLink links a user to the task under linkType. The user's
// existence is not validated; duplicate links accumulate.
func (s *TaskService) AddUserIdentityLink(ctx context.Context, taskID, userID, linkType string) error {
	if userID == "" || linkType == "" {
		return fmt.Errorf("%w: user id and link type are required", domain.ErrIllegalArgument)
	}
	return s.addIdentityLink(ctx, taskID, &userID, nil, linkType)
}

// AddGroupIdentityLink links a group to the task under linkType.
func (s *TaskService) AddGroupIdentityLink(ctx context.Context, taskID, groupID, linkType string) error {
	if groupID == "" || linkType == "" {
		return fmt.Errorf("%w: group id and link type are required", domain.ErrIllegalArgument)
	}
	return s.addIdentityLink(ctx, taskID, nil, &groupID, linkType)
}

// AddCandidateUser links a user as candidate.
func (s *TaskService) AddCandidateUser(ctx context.Context, taskID, userID string) error {
	return s.AddUserIdentityLink(ctx, taskID, userID, domain.IdentityLinkCandidate)
}

// AddCandidateGroup links a group as candidate.
func (s *TaskService) AddCandidateGroup(ctx context.Context, taskID, groupID string) error {
	return s.AddGroupIdentityLink(ctx, taskID, groupID, domain.IdentityLinkCandidate)
}

func (s *TaskService) addIdentityLink(ctx context.Context, taskID string, userID, groupID *string, linkType string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return err
	}

	link := &domain.IdentityLink{
		TaskID:  &taskID,
		UserID:  userID,
		GroupID: groupID,
		Type:    linkType,
	}
	if err := s.linkRepo.Create(ctx, tx, link); err != nil {
		return err
	}
	if err := s.emitter.emitIdentityLink(ctx, tx, task, link, true); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteUserIdentityLink removes every link of the task matching the user
// and type in one operation, including accumulated duplicates.
func (s *TaskService) DeleteUserIdentityLink(ctx context.Context, taskID, userID, linkType string) error {
	if userID == "" || linkType == "" {
		return fmt.Errorf("%w: user id and link type are required", domain.ErrIllegalArgument)
	}
	return s.deleteIdentityLink(ctx, taskID, &userID, nil, linkType)
}

// DeleteGroupIdentityLink removes every link of the task matching the group
// and type in one operation, including accumulated duplicates.
func (s *TaskService) DeleteGroupIdentityLink(ctx context.Context, taskID, groupID, linkType string) error {
	if groupID == "" || linkType == "" {
		return fmt.Errorf("%w: group id and link type are required", domain.ErrIllegalArgument)
	}
	return s.deleteIdentityLink(ctx, taskID, nil, &groupID, linkType)
}

func (s *TaskService) deleteIdentityLink(ctx context.Context, taskID string, userID, groupID *string, linkType string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return err
	}

	removed, err := s.linkRepo.DeleteMatching(ctx, tx, taskID, userID, groupID, linkType)
	if err != nil {
		return err
	}
	// Removing nothing is a no-op write and must not produce an entry.
	if removed > 0 {
		link := &domain.IdentityLink{TaskID: &taskID, UserID: userID, GroupID: groupID, Type: linkType}
		if err := s.emitter.emitIdentityLink(ctx, tx, task, link, false); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetIdentityLinks lists the task's identity links.
func (s *TaskService) GetIdentityLinks(ctx context.Context, taskID string) ([]*domain.IdentityLink, error) {
	return s.linkRepo.ListByTaskID(ctx, taskID)
}

// SetVariableLocal upserts a task-local variable.
func (s *TaskService) SetVariableLocal(ctx context.Context, taskID, name string, value domain.VariableValue) error {
	if name == "" {
		return fmt.Errorf("%w: variable name is required", domain.ErrIllegalArgument)
	}
	return s.setVariable(ctx, taskID, domain.ScopeTask, name, value)
}

// SetProcessVariable upserts a process-scoped variable.
func (s *TaskService) SetProcessVariable(ctx context.Context, processInstanceID, name string, value domain.VariableValue) error {
	if name == "" {
		return fmt.Errorf("%w: variable name is required", domain.ErrIllegalArgument)
	}
	return s.setVariable(ctx, processInstanceID, domain.ScopeProcess, name, value)
}

func (s *TaskService) setVariable(ctx context.Context, scopeID string, scopeType domain.VariableScopeType, name string, value domain.VariableValue) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	v := &domain.VariableInstance{ScopeID: scopeID, ScopeType: scopeType, Name: name, Value: value}
	if err := s.varRepo.Set(ctx, tx, v); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// mirrorOf projects the live task onto its historic mirror shape.
func mirrorOf(t *domain.Task) *domain.HistoricTask {
	return &domain.HistoricTask{
		ID:                t.ID,
		Name:              t.Name,
		Description:       t.Description,
		Priority:          t.Priority,
		Assignee:          t.Assignee,
		Owner:             t.Owner,
		DueDate:           t.DueDate,
		Category:          t.Category,
		ParentTaskID:      t.ParentTaskID,
		FormKey:           t.FormKey,
		TaskDefinitionKey: t.TaskDefinitionKey,
		ScopeID:           t.ScopeID,
		ScopeType:         t.ScopeType,
		DelegationState:   t.DelegationState,
		ProcessInstanceID: t.ProcessInstanceID,
		ExecutionID:       t.ExecutionID,
		TenantID:          t.TenantID,
		StartTime:         t.CreateTime,
	}
}
