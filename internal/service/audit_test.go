package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procflow/taskstore/internal/domain"
)

func strPtr(s string) *string { return &s }

func baseTask() *domain.Task {
	return &domain.Task{
		ID:              "task-1",
		Name:            "review order",
		Priority:        domain.DefaultPriority,
		SuspensionState: domain.SuspensionActive,
		Revision:        1,
	}
}

func TestDiffTask_NoChangesYieldsNothing(t *testing.T) {
	task := baseTask()
	task.Assignee = strPtr("kermit")
	task.DueDate = &time.Time{}

	changes, err := diffTask(task, task.Clone())
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiffTask_SettingFieldToCurrentValueYieldsNothing(t *testing.T) {
	task := baseTask()
	task.Assignee = strPtr("kermit")

	mutated := task.Clone()
	mutated.Assignee = strPtr("kermit")
	mutated.Priority = task.Priority

	changes, err := diffTask(task, mutated)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiffTask_OneChangePerLogicalField(t *testing.T) {
	task := baseTask()
	mutated := task.Clone()
	mutated.Assignee = strPtr("kermit")
	mutated.Priority = 80

	changes, err := diffTask(task, mutated)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.LogAssigneeChanged, changes[0].entryType)
	assert.Equal(t, domain.LogPriorityChanged, changes[1].entryType)
}

func TestDiffTask_EmissionOrderIsFixed(t *testing.T) {
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	task := baseTask()
	mutated := task.Clone()
	mutated.Name = "approve order"
	mutated.Description = "second pass"
	mutated.Owner = strPtr("fozzie")
	mutated.Assignee = strPtr("kermit")
	mutated.Priority = 80
	mutated.DueDate = &due
	mutated.Category = strPtr("finance")
	mutated.SuspensionState = domain.SuspensionSuspended

	changes, err := diffTask(task, mutated)
	require.NoError(t, err)

	types := make([]domain.LogEntryType, len(changes))
	for i, c := range changes {
		types[i] = c.entryType
	}
	assert.Equal(t, []domain.LogEntryType{
		domain.LogNameChanged,
		domain.LogDescriptionChanged,
		domain.LogOwnerChanged,
		domain.LogAssigneeChanged,
		domain.LogPriorityChanged,
		domain.LogDueDateChanged,
		domain.LogCategoryChanged,
		domain.LogSuspensionStateChanged,
	}, types)
}

func TestDiffTask_AssigneePayloadShape(t *testing.T) {
	task := baseTask()
	mutated := task.Clone()
	mutated.Assignee = strPtr("newAssignee")

	changes, err := diffTask(task, mutated)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t,
		`{"previousAssigneeId":null,"newAssigneeId":"newAssignee"}`,
		string(changes[0].data))
}

func TestDiffTask_ClearingAssigneePayloadShape(t *testing.T) {
	task := baseTask()
	task.Assignee = strPtr("kermit")
	mutated := task.Clone()
	mutated.Assignee = nil

	changes, err := diffTask(task, mutated)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t,
		`{"previousAssigneeId":"kermit","newAssigneeId":null}`,
		string(changes[0].data))
}

func TestDiffTask_PriorityPayloadShape(t *testing.T) {
	task := baseTask()
	mutated := task.Clone()
	mutated.Priority = 80

	changes, err := diffTask(task, mutated)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, `{"previousPriority":50,"newPriority":80}`, string(changes[0].data))
}

func TestDiffTask_SuspensionPayloadUsesLabels(t *testing.T) {
	task := baseTask()
	mutated := task.Clone()
	mutated.SuspensionState = domain.SuspensionSuspended

	changes, err := diffTask(task, mutated)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t,
		`{"previousSuspensionState":"active","newSuspensionState":"suspended"}`,
		string(changes[0].data))
}

func TestDiffTask_DueDateComparesByInstant(t *testing.T) {
	utc := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	shifted := utc.In(time.FixedZone("CEST", 2*60*60))

	task := baseTask()
	task.DueDate = &utc
	mutated := task.Clone()
	mutated.DueDate = &shifted

	changes, err := diffTask(task, mutated)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestMarshalIdentityLinkData_OmitsAbsentIdentity(t *testing.T) {
	data, err := marshalPayload(identityLinkData{
		Type:    domain.IdentityLinkCandidate,
		GroupID: strPtr("management"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"candidate","groupId":"management"}`, string(data))
}
