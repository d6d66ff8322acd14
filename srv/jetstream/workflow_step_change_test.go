package jetstream

import (
	"context"
	"testing"
	"time"

	"quoteflow/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWorkflowStepChanges(t *testing.T) {
	streamer := NewTestStreamer(t)
	ctx := context.Background()

	step := domain.WorkflowStep{Id: "step_a", WorkflowId: "wf_1", Title: "Finance"}
	require.NoError(t, streamer.AddWorkflowStepChange(ctx, domain.WorkflowStepChange{WorkflowId: "wf_1", Kind: domain.WorkflowStepChangeCreated, Step: &step}))
	require.NoError(t, streamer.AddWorkflowStepChange(ctx, domain.WorkflowStepChange{WorkflowId: "wf_2", Kind: domain.WorkflowStepChangeDeleted, StepId: "elsewhere"}))
	require.NoError(t, streamer.AddWorkflowStepChange(ctx, domain.WorkflowStepChange{WorkflowId: "wf_1", Kind: domain.WorkflowStepChangeDeleted, StepId: "step_a"}))

	changes, continueId, err := streamer.GetWorkflowStepChanges(ctx, "wf_1", "0", 10, 500*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.WorkflowStepChangeCreated, changes[0].Kind)
	assert.Equal(t, "Finance", changes[0].Step.Title)
	assert.Equal(t, domain.WorkflowStepChangeDeleted, changes[1].Kind)
	assert.Equal(t, "3", continueId)
	assert.Equal(t, "3", changes[1].StreamId)

	changes, nextId, err := streamer.GetWorkflowStepChanges(ctx, "wf_1", continueId, 10, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, continueId, nextId)
}

func TestStreamWorkflowStepChanges(t *testing.T) {
	streamer := NewTestStreamer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, streamer.AddWorkflowStepChange(ctx, domain.WorkflowStepChange{WorkflowId: "wf_1", Kind: domain.WorkflowStepChangeDeleted, StepId: "before"}))

	changeCh, errCh := streamer.StreamWorkflowStepChanges(ctx, "wf_1", "$")
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, streamer.AddWorkflowStepChange(ctx, domain.WorkflowStepChange{WorkflowId: "wf_1", Kind: domain.WorkflowStepChangeDeleted, StepId: "after"}))

	select {
	case change := <-changeCh:
		assert.Equal(t, "after", change.StepId)
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}
