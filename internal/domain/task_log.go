package domain

import "time"

// LogEntryType identifies what kind of change a TaskLogEntry records.
type LogEntryType string

// Reserved system-generated log entry types. Caller-built entries may carry
// any other string, or none at all.
const (
	LogTaskCreated            LogEntryType = "USER_TASK_CREATED"
	LogTaskCompleted          LogEntryType = "USER_TASK_COMPLETED"
	LogNameChanged            LogEntryType = "USER_TASK_NAME_CHANGED"
	LogDescriptionChanged     LogEntryType = "USER_TASK_DESCRIPTION_CHANGED"
	LogAssigneeChanged        LogEntryType = "USER_TASK_ASSIGNEE_CHANGED"
	LogOwnerChanged           LogEntryType = "USER_TASK_OWNER_CHANGED"
	LogPriorityChanged        LogEntryType = "USER_TASK_PRIORITY_CHANGED"
	LogDueDateChanged         LogEntryType = "USER_TASK_DUEDATE_CHANGED"
	LogCategoryChanged        LogEntryType = "USER_TASK_CATEGORY_CHANGED"
	LogSuspensionStateChanged LogEntryType = "USER_TASK_SUSPENSIONSTATE_CHANGED"
	LogIdentityLinkAdded      LogEntryType = "USER_TASK_IDENTITY_LINK_ADDED"
	LogIdentityLinkRemoved    LogEntryType = "USER_TASK_IDENTITY_LINK_REMOVED"
)

// TaskLogEntry is one immutable record in the append-only audit log of a
// task. LogNumber is assigned at append time from a monotonic sequence; it is
// never reused and not required to stay contiguous once entries are deleted.
type TaskLogEntry struct {
	LogNumber         int64
	TaskID            string
	Type              *string
	TimeStamp         time.Time
	UserID            *string
	Data              []byte
	ExecutionID       *string
	ProcessInstanceID *string
	ScopeID           *string
	SubScopeID        *string
	ScopeType         *string
	TenantID          *string
}
