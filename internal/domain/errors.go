package domain

import (
	"errors"
	"fmt"
)

// Error kinds for business logic validation. Every failure aborts the current
// unit of work; only the explicitly idempotent deletes are silent.
var (
	// ErrIllegalArgument covers null/empty required filter arguments, a log
	// entry built without a task id, and malformed builder usage. Raised at
	// build time, before anything touches storage.
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrNotFound is the base kind wrapped by NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrTaskAlreadyClaimed is raised when a task with a different assignee
	// is claimed.
	ErrTaskAlreadyClaimed = errors.New("task already claimed")

	// ErrRevisionConflict is raised when an optimistic-lock save observes a
	// stale revision.
	ErrRevisionConflict = errors.New("task was updated concurrently")

	// ErrAmbiguousResult is raised by SingleResult when the predicate matches
	// more than one row.
	ErrAmbiguousResult = errors.New("query returned more than one result")

	// ErrTaskPartOfProcess rejects deleting a task still owned by a running
	// process instance.
	ErrTaskPartOfProcess = errors.New("task is part of a running process instance")
)

// NotFoundError identifies the entity kind and id an operation targeted.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Unwrap makes errors.Is(err, ErrNotFound) hold for every NotFoundError.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewTaskNotFound builds the not-found error for a task id.
func NewTaskNotFound(id string) error {
	return &NotFoundError{Kind: "task", ID: id}
}

// NewHistoricTaskNotFound builds the not-found error for a historic task id.
func NewHistoricTaskNotFound(id string) error {
	return &NotFoundError{Kind: "historic task", ID: id}
}
