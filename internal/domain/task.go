package domain

import "time"

// DefaultPriority is assigned to tasks created without an explicit priority.
const DefaultPriority = 50

// DelegationState tracks the delegation lifecycle of a task.
type DelegationState string

const (
	DelegationNone     DelegationState = ""
	DelegationPending  DelegationState = "PENDING"
	DelegationResolved DelegationState = "RESOLVED"
)

// IsValid checks if the delegation state is one of the allowed values.
func (s DelegationState) IsValid() bool {
	switch s {
	case DelegationNone, DelegationPending, DelegationResolved:
		return true
	default:
		return false
	}
}

// SuspensionState mirrors the process interpreter's active/suspended flag.
type SuspensionState int

const (
	SuspensionActive    SuspensionState = 1
	SuspensionSuspended SuspensionState = 2
)

// IsSuspended reports whether the state is the suspended one.
func (s SuspensionState) IsSuspended() bool {
	return s == SuspensionSuspended
}

// Task represents an assignable unit of work.
type Task struct {
	ID                string
	Name              string
	Description       string
	Priority          int
	Assignee          *string
	Owner             *string
	DueDate           *time.Time
	Category          *string
	ParentTaskID      *string
	FormKey           *string
	TaskDefinitionKey *string
	TaskDefinitionID  *string
	ScopeID           *string
	ScopeType         *string
	DelegationState   DelegationState
	ProcessInstanceID *string
	ExecutionID       *string
	TenantID          *string
	SuspensionState   SuspensionState
	Revision          int
	CreateTime        time.Time

	// Attached by the eager-include hydrator, never persisted from here.
	TaskLocalVariables map[string]VariableValue
	ProcessVariables   map[string]VariableValue
	IdentityLinks      []*IdentityLink
}

// IsPartOfProcess reports whether a running process instance still owns the task.
func (t *Task) IsPartOfProcess() bool {
	return t.ProcessInstanceID != nil
}

// IsDelegationPending reports whether the task has been delegated and not yet resolved.
func (t *Task) IsDelegationPending() bool {
	return t.DelegationState == DelegationPending
}

// IsAssignedTo checks if the task is currently assigned to the given user.
func (t *Task) IsAssignedTo(userID string) bool {
	return t.Assignee != nil && *t.Assignee == userID
}

// Clone returns a shallow snapshot of the task's persisted fields. The audit
// emitter diffs mutations against such a snapshot to suppress no-op writes.
func (t *Task) Clone() *Task {
	c := *t
	c.TaskLocalVariables = nil
	c.ProcessVariables = nil
	c.IdentityLinks = nil
	return &c
}
