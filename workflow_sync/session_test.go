package workflow_sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, remote RemoteStore, opts ...Option) (*Session, *recordingNotifier) {
	notifier := &recordingNotifier{}
	s := NewSession(remote, testUser, append([]Option{WithNotifier(notifier)}, opts...)...)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, notifier
}

// loadedSession opens quote 1 with steps A(0,0) and B(0,1).
func loadedSession(t *testing.T) (*Session, *fakeRemote, *recordingNotifier) {
	remote := newFakeRemote()
	workflow := remote.addWorkflow(1)
	remote.addStep(workflow.Id, "A", 0, 0)
	remote.addStep(workflow.Id, "B", 0, 1)

	s, notifier := newTestSession(t, remote)
	require.NoError(t, s.Open(context.Background(), 1))
	require.Len(t, s.Steps(), 2)
	return s, remote, notifier
}

func transportError(op string) error {
	return &common.TransportError{Op: op, Err: errors.New("connection refused")}
}

func mustStep(t *testing.T, s *Session, title string) domain.WorkflowStep {
	t.Helper()
	step, ok := stepByTitle(s.Steps(), title)
	require.True(t, ok, "step %s not found", title)
	return step
}

func TestLoad_CreatesMissingWorkflow(t *testing.T) {
	remote := newFakeRemote()
	s, notifier := newTestSession(t, remote)

	require.NoError(t, s.Open(context.Background(), 42))

	workflow := s.Workflow()
	require.NotNil(t, workflow)
	assert.Equal(t, int64(42), workflow.QuoteId)
	assert.Equal(t, "Approval Workflow", workflow.Name)
	assert.Empty(t, s.Steps())
	assert.Empty(t, s.Layers())
	assert.NoError(t, s.Err())
	assert.Empty(t, notifier.Ops())
	assert.Equal(t, 1, remote.callCount("CreateWorkflow"))
	assert.Equal(t, 1, remote.callCount("GetWorkflowSteps"))
}

func TestLoad_ExistingWorkflowSortsSteps(t *testing.T) {
	remote := newFakeRemote()
	workflow := remote.addWorkflow(7)
	remote.addStep(workflow.Id, "legal", 1, 0)
	remote.addStep(workflow.Id, "deal desk", 0, 1)
	remote.addStep(workflow.Id, "ae", 0, 0)
	s, _ := newTestSession(t, remote)

	require.NoError(t, s.Open(context.Background(), 7))

	assert.Equal(t, workflow.Id, s.Workflow().Id)
	assert.Equal(t, 0, remote.callCount("CreateWorkflow"))
	layers := s.Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, []string{"ae", "deal desk"}, stepTitles(layers[0].Steps))
	assert.Equal(t, []string{"legal"}, stepTitles(layers[1].Steps))
}

func TestLoad_NotAuthenticated(t *testing.T) {
	remote := newFakeRemote()
	notifier := &recordingNotifier{}
	s := NewSession(remote, domain.UserSession{}, WithNotifier(notifier))
	defer s.Close(context.Background())

	err := s.Open(context.Background(), 1)

	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	assert.ErrorIs(t, s.Err(), common.ErrNotAuthenticated)
	assert.Equal(t, 0, remote.callCount("GetWorkflowByQuoteId"))
	assert.Equal(t, []string{"load workflow"}, notifier.Ops())
}

func TestLoad_NoQuoteSelected(t *testing.T) {
	s, _ := newTestSession(t, newFakeRemote())
	assert.ErrorIs(t, s.Load(context.Background()), common.ErrValidation)
}

func TestLoad_TransportFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.failWith("GetWorkflowByQuoteId", transportError("get workflow"))
	s, _ := newTestSession(t, remote)

	err := s.Open(context.Background(), 1)

	var transportErr *common.TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Nil(t, s.Workflow())
	assert.False(t, s.Loading())
}

func TestLoad_WorkflowMissingWhenCreateFails(t *testing.T) {
	remote := newFakeRemote()
	remote.failWith("CreateWorkflow", transportError("create workflow"))
	s, notifier := newTestSession(t, remote)

	err := s.Open(context.Background(), 1)

	assert.ErrorIs(t, err, common.ErrWorkflowMissing)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.ErrorIs(t, s.Err(), common.ErrWorkflowMissing)
	assert.Nil(t, s.Workflow())
	assert.Equal(t, []string{"create workflow"}, notifier.Ops())
}

func TestLoad_RetryClearsError(t *testing.T) {
	remote := newFakeRemote()
	remote.failWith("GetWorkflowByQuoteId", transportError("get workflow"))
	s, _ := newTestSession(t, remote)
	require.Error(t, s.Open(context.Background(), 1))

	remote.failWith("GetWorkflowByQuoteId", nil)
	require.NoError(t, s.Load(context.Background()))
	assert.NoError(t, s.Err())
	assert.NotNil(t, s.Workflow())
}

func TestLoad_InFlightLoadSuppressesOthers(t *testing.T) {
	remote := newFakeRemote()
	s, _ := newTestSession(t, remote)
	s.SetQuote(1)

	entered, release := remote.block("GetWorkflowByQuoteId")
	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-entered

	assert.True(t, s.Loading())
	assert.NoError(t, s.Load(context.Background()))
	release()
	require.NoError(t, <-done)

	assert.Equal(t, 1, remote.callCount("GetWorkflowByQuoteId"))
	assert.Equal(t, 1, remote.callCount("CreateWorkflow"))
	assert.False(t, s.Loading())
}

func TestSetQuote_ResetsState(t *testing.T) {
	s, _, _ := loadedSession(t)
	a := mustStep(t, s, "A")
	s.UpdateCurrentStage(&a.Id)

	s.SetQuote(2)

	assert.Equal(t, int64(2), s.QuoteId())
	assert.Nil(t, s.Workflow())
	assert.Empty(t, s.Steps())
	assert.Nil(t, s.CurrentStepId())
	assert.NoError(t, s.Err())
}

func TestSetQuote_SameQuoteKeepsState(t *testing.T) {
	s, _, _ := loadedSession(t)
	s.SetQuote(1)
	assert.Len(t, s.Steps(), 2)
	assert.NotNil(t, s.Workflow())
}

func TestSetQuote_DropsReconcileFromPreviousQuote(t *testing.T) {
	s, remote, _ := loadedSession(t)

	entered, release := remote.block("CreateWorkflowStep")
	done := make(chan error, 1)
	go func() {
		_, err := s.CreateStep(context.Background(), stepFields("C", 0, 2))
		done <- err
	}()
	<-entered

	s.SetQuote(2)
	release()
	require.NoError(t, <-done)

	assert.Empty(t, s.Steps())
	assert.Nil(t, s.Workflow())
}

func TestCreateStep_SwapsTempRecordForServerRecord(t *testing.T) {
	s, remote, _ := loadedSession(t)
	before := s.Steps()

	entered, release := remote.block("CreateWorkflowStep")
	done := make(chan *domain.WorkflowStep, 1)
	go func() {
		step, err := s.CreateStep(context.Background(), stepFields("C", 0, 2))
		assert.NoError(t, err)
		done <- step
	}()
	<-entered

	optimistic := mustStep(t, s, "C")
	assert.True(t, IsTempId(optimistic.Id))
	assert.Len(t, s.Steps(), 3)

	release()
	created := <-done
	require.NotNil(t, created)

	steps := s.Steps()
	assert.Len(t, steps, 3)
	assert.False(t, IsTempId(created.Id))
	assert.Equal(t, *created, mustStep(t, s, "C"))
	for _, step := range steps {
		assert.False(t, IsTempId(step.Id))
	}
	assert.Equal(t, before, steps[:2])
	assert.Len(t, remote.serverSteps(created.WorkflowId), 3)
}

func TestCreateStep_FailureLeavesStepsUnchanged(t *testing.T) {
	s, remote, notifier := loadedSession(t)
	before := s.Steps()
	remote.failWith("CreateWorkflowStep", transportError("create step"))

	step, err := s.CreateStep(context.Background(), stepFields("C", 0, 2))

	assert.Nil(t, step)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, before, s.Steps())
	assert.ErrorIs(t, s.Err(), common.ErrTransport)
	assert.Equal(t, []string{"create step"}, notifier.Ops())
}

func TestCreateStep_NoWorkflow(t *testing.T) {
	remote := newFakeRemote()
	s, _ := newTestSession(t, remote)

	step, err := s.CreateStep(context.Background(), stepFields("C", 0, 0))

	assert.NoError(t, err)
	assert.Nil(t, step)
	assert.Equal(t, 0, remote.callCount("CreateWorkflowStep"))
}

func TestCreateStep_InvalidFieldsAreNeverApplied(t *testing.T) {
	s, remote, notifier := loadedSession(t)
	before := s.Steps()

	fields := stepFields("", 0, 2)
	_, err := s.CreateStep(context.Background(), fields)
	assert.ErrorIs(t, err, common.ErrValidation)

	fields = stepFields("C", 0, 2)
	fields.Status = "done"
	_, err = s.CreateStep(context.Background(), fields)
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Equal(t, before, s.Steps())
	assert.Equal(t, 0, remote.callCount("CreateWorkflowStep"))
	assert.Empty(t, notifier.Ops())
	assert.NoError(t, s.Err())
}

func TestUpdateStep_ReplacesWithServerRecord(t *testing.T) {
	s, remote, _ := loadedSession(t)
	a := mustStep(t, s, "A")

	updated, err := s.UpdateStep(context.Background(), a.Id, domain.StepUpdate{
		Status:  domain.Some(domain.StepStatusCompleted),
		Persona: domain.Some(domain.PersonaLegal),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusCompleted, updated.Status)
	current, _ := s.Step(a.Id)
	assert.Equal(t, *updated, current)
	assert.Equal(t, current, remote.serverSteps(a.WorkflowId)[0])
}

func TestUpdateStep_FailureRestoresExactRecord(t *testing.T) {
	s, remote, notifier := loadedSession(t)
	a := mustStep(t, s, "A")
	remote.failWith("UpdateWorkflowStep", transportError("update step"))

	entered, release := remote.block("UpdateWorkflowStep")
	done := make(chan error, 1)
	go func() {
		_, err := s.UpdateStep(context.Background(), a.Id, domain.StepUpdate{
			Title:       domain.Some("Legal review"),
			Status:      domain.Some(domain.StepStatusReady),
			Description: domain.Some("check the terms"),
			DueDate:     domain.Some("2025-03-01"),
		})
		done <- err
	}()
	<-entered

	optimistic, _ := s.Step(a.Id)
	assert.Equal(t, "Legal review", optimistic.Title)
	assert.Equal(t, domain.StepStatusReady, optimistic.Status)

	release()
	assert.ErrorIs(t, <-done, common.ErrTransport)

	restored, _ := s.Step(a.Id)
	assert.Equal(t, a, restored)
	assert.Equal(t, []string{"update step"}, notifier.Ops())
}

func TestUpdateStep_UnknownStep(t *testing.T) {
	s, remote, _ := loadedSession(t)

	_, err := s.UpdateStep(context.Background(), "step_missing", domain.StepUpdate{Title: domain.Some("x")})

	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 0, remote.callCount("UpdateWorkflowStep"))
}

func TestUpdateStep_InvalidUpdateIsNeverApplied(t *testing.T) {
	s, remote, _ := loadedSession(t)
	a := mustStep(t, s, "A")

	_, err := s.UpdateStep(context.Background(), a.Id, domain.StepUpdate{})
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = s.UpdateStep(context.Background(), a.Id, domain.StepUpdate{Title: domain.Null[string]()})
	assert.ErrorIs(t, err, common.ErrValidation)

	current, _ := s.Step(a.Id)
	assert.Equal(t, a, current)
	assert.Equal(t, 0, remote.callCount("UpdateWorkflowStep"))
}

// fourStepSession opens quote 1 with A..D in layer 0 and X in layer 1.
func fourStepSession(t *testing.T) (*Session, *fakeRemote, *recordingNotifier) {
	remote := newFakeRemote()
	workflow := remote.addWorkflow(1)
	for i, title := range []string{"A", "B", "C", "D"} {
		remote.addStep(workflow.Id, title, 0, i)
	}
	remote.addStep(workflow.Id, "X", 1, 0)

	s, notifier := newTestSession(t, remote)
	require.NoError(t, s.Open(context.Background(), 1))
	return s, remote, notifier
}

func TestDeleteStep_RenumbersLaterSiblings(t *testing.T) {
	s, remote, _ := fourStepSession(t)
	b := mustStep(t, s, "B")

	require.NoError(t, s.DeleteStep(context.Background(), b.Id))

	assert.Len(t, s.Steps(), 4)
	assert.Equal(t, 0, mustStep(t, s, "A").PositionInLayer)
	assert.Equal(t, 1, mustStep(t, s, "C").PositionInLayer)
	assert.Equal(t, 2, mustStep(t, s, "D").PositionInLayer)
	assert.Equal(t, 0, mustStep(t, s, "X").PositionInLayer)
	assert.True(t, IsDense(s.Steps()))

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, remote.callCount("ReorderWorkflowSteps"))
	server := remote.serverSteps(b.WorkflowId)
	assert.Equal(t, []string{"A", "C", "D", "X"}, stepTitles(server))
	assert.True(t, IsDense(server))
}

func TestDeleteStep_LastPositionSkipsSync(t *testing.T) {
	s, remote, _ := fourStepSession(t)

	require.NoError(t, s.DeleteStep(context.Background(), mustStep(t, s, "D").Id))
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, 0, remote.callCount("ReorderWorkflowSteps"))
}

func TestDeleteStep_FailureRestoresSnapshot(t *testing.T) {
	s, remote, notifier := fourStepSession(t)
	before := s.Steps()
	b := mustStep(t, s, "B")
	remote.failWith("DeleteWorkflowStep", transportError("delete step"))

	entered, release := remote.block("DeleteWorkflowStep")
	done := make(chan error, 1)
	go func() { done <- s.DeleteStep(context.Background(), b.Id) }()
	<-entered

	assert.Len(t, s.Steps(), 4)
	assert.Equal(t, 1, mustStep(t, s, "C").PositionInLayer)

	release()
	assert.ErrorIs(t, <-done, common.ErrTransport)
	assert.Equal(t, before, s.Steps())
	assert.Contains(t, notifier.Ops(), "delete step")

	// the sibling sync is sent regardless of the delete outcome
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, remote.callCount("ReorderWorkflowSteps"))
}

func TestDeleteStep_SyncFailureIsOnlyReported(t *testing.T) {
	s, remote, notifier := fourStepSession(t)
	remote.failWith("ReorderWorkflowSteps", transportError("reorder"))

	require.NoError(t, s.DeleteStep(context.Background(), mustStep(t, s, "A").Id))
	require.NoError(t, s.Flush(context.Background()))

	assert.Len(t, s.Steps(), 4)
	assert.True(t, IsDense(s.Steps()))
	assert.Equal(t, []string{"sync step positions"}, notifier.Ops())
	assert.ErrorIs(t, s.Err(), common.ErrTransport)
}

func TestDeleteStep_UnknownStep(t *testing.T) {
	s, remote, _ := loadedSession(t)
	assert.ErrorIs(t, s.DeleteStep(context.Background(), "step_missing"), common.ErrNotFound)
	assert.Equal(t, 0, remote.callCount("DeleteWorkflowStep"))
}

func TestReorderSteps_AppliesBatch(t *testing.T) {
	s, remote, _ := loadedSession(t)
	a, b := mustStep(t, s, "A"), mustStep(t, s, "B")

	require.NoError(t, s.ReorderSteps(context.Background(), []domain.StepPosition{
		{Id: a.Id, LayerIndex: 0, PositionInLayer: 1},
		{Id: b.Id, LayerIndex: 0, PositionInLayer: 0},
	}))

	assert.Equal(t, []string{"B", "A"}, stepTitles(s.Steps()))
	assert.Equal(t, []string{"B", "A"}, stepTitles(remote.serverSteps(a.WorkflowId)))
}

func TestReorderSteps_FailureRestoresSnapshot(t *testing.T) {
	s, remote, notifier := loadedSession(t)
	before := s.Steps()
	a, b := mustStep(t, s, "A"), mustStep(t, s, "B")
	remote.failWith("ReorderWorkflowSteps", transportError("reorder"))

	err := s.ReorderSteps(context.Background(), []domain.StepPosition{
		{Id: a.Id, LayerIndex: 0, PositionInLayer: 1},
		{Id: b.Id, LayerIndex: 0, PositionInLayer: 0},
	})

	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, before, s.Steps())
	assert.Equal(t, []string{"reorder steps"}, notifier.Ops())
}

func TestReorderSteps_Validation(t *testing.T) {
	s, remote, _ := loadedSession(t)
	before := s.Steps()
	a := mustStep(t, s, "A")

	assert.ErrorIs(t, s.ReorderSteps(context.Background(), []domain.StepPosition{{Id: a.Id, LayerIndex: -1}}), common.ErrValidation)
	assert.ErrorIs(t, s.ReorderSteps(context.Background(), []domain.StepPosition{{Id: "step_missing"}}), common.ErrNotFound)
	assert.NoError(t, s.ReorderSteps(context.Background(), nil))

	assert.Equal(t, before, s.Steps())
	assert.Equal(t, 0, remote.callCount("ReorderWorkflowSteps"))
}

func TestReorderSteps_SecondReorderStartsFromFirstOptimisticState(t *testing.T) {
	s, remote, _ := loadedSession(t)
	a, b := mustStep(t, s, "A"), mustStep(t, s, "B")

	entered, release := remote.block("ReorderWorkflowSteps")
	first := make(chan error, 1)
	go func() {
		first <- s.ReorderSteps(context.Background(), []domain.StepPosition{{Id: b.Id, LayerIndex: 1, PositionInLayer: 0}})
	}()
	<-entered

	// the second reorder fails, so it rolls back to its own baseline
	remote.failWith("ReorderWorkflowSteps", transportError("reorder"))
	second := make(chan error, 1)
	go func() {
		second <- s.ReorderSteps(context.Background(), []domain.StepPosition{{Id: a.Id, LayerIndex: 0, PositionInLayer: 1}})
	}()
	require.Eventually(t, func() bool { return remote.callCount("ReorderWorkflowSteps") == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, mustStep(t, s, "A").PositionInLayer)

	release()
	require.NoError(t, <-first)
	require.Error(t, <-second)

	movedB := mustStep(t, s, "B")
	assert.Equal(t, 1, movedB.LayerIndex)
	assert.Equal(t, 0, movedB.PositionInLayer)
	assert.Equal(t, 0, mustStep(t, s, "A").PositionInLayer)
}

func TestUpdateCurrentStage(t *testing.T) {
	s, remote, notifier := loadedSession(t)
	a := mustStep(t, s, "A")

	s.UpdateCurrentStage(&a.Id)
	assert.Equal(t, a.Id, *s.CurrentStepId())
	require.NoError(t, s.Flush(context.Background()))

	remote.mu.Lock()
	stored := remote.currentStage[1]
	remote.mu.Unlock()
	require.NotNil(t, stored)
	assert.Equal(t, a.Id, *stored)
	assert.Empty(t, notifier.Ops())

	s.UpdateCurrentStage(nil)
	require.NoError(t, s.Flush(context.Background()))
	assert.Nil(t, s.CurrentStepId())
	remote.mu.Lock()
	assert.Nil(t, remote.currentStage[1])
	remote.mu.Unlock()
}

func TestUpdateCurrentStage_FailureKeepsMarker(t *testing.T) {
	s, remote, notifier := loadedSession(t)
	a := mustStep(t, s, "A")
	before := s.Steps()
	remote.failWith("UpdateQuoteCurrentStage", transportError("current stage"))

	s.UpdateCurrentStage(&a.Id)
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, a.Id, *s.CurrentStepId())
	assert.Equal(t, before, s.Steps())
	assert.ErrorIs(t, s.Err(), common.ErrTransport)
	assert.Equal(t, []string{"update current stage"}, notifier.Ops())
}

func TestClose_DrainsBackgroundCalls(t *testing.T) {
	remote := newFakeRemote()
	workflow := remote.addWorkflow(1)
	remote.addStep(workflow.Id, "A", 0, 0)
	s := NewSession(remote, testUser, WithNotifier(&recordingNotifier{}))
	require.NoError(t, s.Open(context.Background(), 1))

	a := mustStep(t, s, "A")
	s.UpdateCurrentStage(&a.Id)
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, 1, remote.callCount("UpdateQuoteCurrentStage"))
}
