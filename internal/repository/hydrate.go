package repository

import (
	"context"

	"github.com/procflow/taskstore/internal/domain"
)

// Include names an auxiliary collection to eager-load onto a page of query
// results. Hydration always runs after pagination, one batched fetch per
// requested include, scoped to exactly the ids of the page.
type Include int

const (
	IncludeProcessVariables Include = iota
	IncludeTaskLocalVariables
	IncludeIdentityLinks
)

type includeSet map[Include]bool

// hydrator maps requested includes to their batch loaders.
type hydrator struct {
	vars       *VariableRepository
	links      *IdentityLinkRepository
	fetchLimit int
}

// hydrateTasks attaches the requested collections to the page's tasks. With
// no includes requested it issues no queries at all.
func (h *hydrator) hydrateTasks(ctx context.Context, tasks []*domain.Task, includes includeSet) error {
	if len(tasks) == 0 || len(includes) == 0 {
		return nil
	}

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}

	if includes[IncludeTaskLocalVariables] {
		byScope, err := h.vars.ListByScopeIDs(ctx, taskIDs, domain.ScopeTask, h.fetchLimit)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			t.TaskLocalVariables = orEmptyVars(byScope[t.ID])
		}
	}

	if includes[IncludeProcessVariables] {
		byScope, err := h.vars.ListByScopeIDs(ctx, processInstanceIDs(tasks), domain.ScopeProcess, h.fetchLimit)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.ProcessInstanceID != nil {
				t.ProcessVariables = orEmptyVars(byScope[*t.ProcessInstanceID])
			} else {
				t.ProcessVariables = map[string]domain.VariableValue{}
			}
		}
	}

	if includes[IncludeIdentityLinks] {
		byTask, err := h.links.ListByTaskIDs(ctx, taskIDs)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			t.IdentityLinks = byTask[t.ID]
		}
	}

	return nil
}

// hydrateHistoricTasks mirrors hydrateTasks for the historic query surface.
func (h *hydrator) hydrateHistoricTasks(ctx context.Context, tasks []*domain.HistoricTask, includes includeSet) error {
	if len(tasks) == 0 || len(includes) == 0 {
		return nil
	}

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}

	if includes[IncludeTaskLocalVariables] {
		byScope, err := h.vars.ListByScopeIDs(ctx, taskIDs, domain.ScopeTask, h.fetchLimit)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			t.TaskLocalVariables = orEmptyVars(byScope[t.ID])
		}
	}

	if includes[IncludeProcessVariables] {
		ids := make([]string, 0, len(tasks))
		seen := make(map[string]bool)
		for _, t := range tasks {
			if t.ProcessInstanceID != nil && !seen[*t.ProcessInstanceID] {
				seen[*t.ProcessInstanceID] = true
				ids = append(ids, *t.ProcessInstanceID)
			}
		}
		byScope, err := h.vars.ListByScopeIDs(ctx, ids, domain.ScopeProcess, h.fetchLimit)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.ProcessInstanceID != nil {
				t.ProcessVariables = orEmptyVars(byScope[*t.ProcessInstanceID])
			} else {
				t.ProcessVariables = map[string]domain.VariableValue{}
			}
		}
	}

	if includes[IncludeIdentityLinks] {
		byTask, err := h.links.ListByTaskIDs(ctx, taskIDs)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			t.IdentityLinks = byTask[t.ID]
		}
	}

	return nil
}

func processInstanceIDs(tasks []*domain.Task) []string {
	ids := make([]string, 0, len(tasks))
	seen := make(map[string]bool)
	for _, t := range tasks {
		if t.ProcessInstanceID != nil && !seen[*t.ProcessInstanceID] {
			seen[*t.ProcessInstanceID] = true
			ids = append(ids, *t.ProcessInstanceID)
		}
	}
	return ids
}

func orEmptyVars(m map[string]domain.VariableValue) map[string]domain.VariableValue {
	if m == nil {
		return map[string]domain.VariableValue{}
	}
	return m
}
