package domain

import "time"

// HistoricTask is the append/update mirror of a Task. It is written whenever a
// task unit of work commits and outlives the task's deletion, so the same
// query engine can answer audit questions after the live row is gone.
type HistoricTask struct {
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
	ScopeID           *string
	ScopeType         *string
	DelegationState   DelegationState
	ProcessInstanceID *string
	ExecutionID       *string
	TenantID          *string
	StartTime         time.Time
	ClaimTime         *time.Time
	EndTime           *time.Time
	DurationMillis    *int64
	DeleteReason      *string

	TaskLocalVariables map[string]VariableValue
	ProcessVariables   map[string]VariableValue
	IdentityLinks      []*IdentityLink
}

// IsFinished reports whether the mirrored task has ended (completed or deleted).
func (h *HistoricTask) IsFinished() bool {
	return h.EndTime != nil
}
