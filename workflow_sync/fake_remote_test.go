package workflow_sync

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/segmentio/ksuid"
)

var testUser = domain.UserSession{UserId: "user_alice", AccessToken: "token-alice"}

// fakeRemote is an in-memory RemoteStore. Operations can be made to fail or
// to block until released.
type fakeRemote struct {
	mu           sync.Mutex
	workflows    map[int64]domain.Workflow
	steps        map[string]domain.WorkflowStep
	currentStage map[int64]*string
	calls        map[string]int
	failures     map[string]error
	gates        map[string]*gate
}

type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		workflows:    make(map[int64]domain.Workflow),
		steps:        make(map[string]domain.WorkflowStep),
		currentStage: make(map[int64]*string),
		calls:        make(map[string]int),
		failures:     make(map[string]error),
		gates:        make(map[string]*gate),
	}
}

func (f *fakeRemote) failWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// block makes the next calls of op wait until the returned release is
// called. entered is closed once the first blocked call arrives.
func (f *fakeRemote) block(op string) (entered <-chan struct{}, release func()) {
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[op] = g
	f.mu.Unlock()
	return g.entered, func() {
		f.mu.Lock()
		delete(f.gates, op)
		f.mu.Unlock()
		close(g.release)
	}
}

func (f *fakeRemote) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) enter(op string, session domain.UserSession) error {
	f.mu.Lock()
	f.calls[op]++
	g := f.gates[op]
	err := f.failures[op]
	f.mu.Unlock()

	if g != nil {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	if !session.IsAuthenticated() {
		return common.ErrNotAuthenticated
	}
	return err
}

func (f *fakeRemote) addWorkflow(quoteId int64) domain.Workflow {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	workflow := domain.Workflow{
		Id:      "wf_" + ksuid.New().String(),
		QuoteId: quoteId,
		UserId:  testUser.UserId,
		Name:    domain.DefaultWorkflowName,
		Status:  domain.WorkflowStatusActive,
		Created: now,
		Updated: now,
	}
	f.workflows[quoteId] = workflow
	return workflow
}

func (f *fakeRemote) addStep(workflowId, title string, layerIndex, position int) domain.WorkflowStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	step := domain.NewWorkflowStep("step_"+ksuid.New().String(), workflowId, stepFields(title, layerIndex, position), time.Now().UTC())
	f.steps[step.Id] = step
	return step
}

func (f *fakeRemote) serverSteps(workflowId string) []domain.WorkflowStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := []domain.WorkflowStep{}
	for _, step := range f.steps {
		if step.WorkflowId == workflowId {
			steps = append(steps, step)
		}
	}
	return SortSteps(steps)
}

func (f *fakeRemote) GetWorkflowByQuoteId(ctx context.Context, session domain.UserSession, quoteId int64) (*domain.Workflow, error) {
	if err := f.enter("GetWorkflowByQuoteId", session); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	workflow, ok := f.workflows[quoteId]
	if !ok {
		return nil, nil
	}
	return &workflow, nil
}

func (f *fakeRemote) CreateWorkflow(ctx context.Context, session domain.UserSession, quoteId int64, name string) (domain.Workflow, error) {
	if err := f.enter("CreateWorkflow", session); err != nil {
		return domain.Workflow{}, err
	}
	f.mu.Lock()
	existing, ok := f.workflows[quoteId]
	f.mu.Unlock()
	if ok {
		return existing, nil
	}
	workflow := f.addWorkflow(quoteId)
	workflow.Name = name
	f.mu.Lock()
	f.workflows[quoteId] = workflow
	f.mu.Unlock()
	return workflow, nil
}

func (f *fakeRemote) GetWorkflowSteps(ctx context.Context, session domain.UserSession, workflowId string) ([]domain.WorkflowStep, error) {
	if err := f.enter("GetWorkflowSteps", session); err != nil {
		return nil, err
	}
	return f.serverSteps(workflowId), nil
}

func (f *fakeRemote) CreateWorkflowStep(ctx context.Context, session domain.UserSession, workflowId string, fields domain.StepFields) (domain.WorkflowStep, error) {
	if err := f.enter("CreateWorkflowStep", session); err != nil {
		return domain.WorkflowStep{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	step := domain.NewWorkflowStep("step_"+ksuid.New().String(), workflowId, fields, time.Now().UTC())
	f.steps[step.Id] = step
	return step, nil
}

func (f *fakeRemote) UpdateWorkflowStep(ctx context.Context, session domain.UserSession, workflowId, stepId string, update domain.StepUpdate) (domain.WorkflowStep, error) {
	if err := f.enter("UpdateWorkflowStep", session); err != nil {
		return domain.WorkflowStep{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	step, ok := f.steps[stepId]
	if !ok || step.WorkflowId != workflowId {
		return domain.WorkflowStep{}, fmt.Errorf("step %s: %w", stepId, common.ErrNotFound)
	}
	step = step.Apply(update, time.Now().UTC())
	f.steps[stepId] = step
	return step, nil
}

func (f *fakeRemote) DeleteWorkflowStep(ctx context.Context, session domain.UserSession, workflowId, stepId string) error {
	if err := f.enter("DeleteWorkflowStep", session); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.steps[stepId]; !ok {
		return fmt.Errorf("step %s: %w", stepId, common.ErrNotFound)
	}
	delete(f.steps, stepId)
	return nil
}

func (f *fakeRemote) ReorderWorkflowSteps(ctx context.Context, session domain.UserSession, workflowId string, positions []domain.StepPosition) error {
	if err := f.enter("ReorderWorkflowSteps", session); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range positions {
		if step, ok := f.steps[p.Id]; !ok || step.WorkflowId != workflowId {
			return fmt.Errorf("step %s: %w", p.Id, common.ErrNotFound)
		}
	}
	for _, p := range positions {
		step := f.steps[p.Id]
		step.LayerIndex = p.LayerIndex
		step.PositionInLayer = p.PositionInLayer
		f.steps[p.Id] = step
	}
	return nil
}

func (f *fakeRemote) UpdateQuoteCurrentStage(ctx context.Context, session domain.UserSession, quoteId int64, stepId *string) error {
	if err := f.enter("UpdateQuoteCurrentStage", session); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentStage[quoteId] = stepId
	return nil
}

func stepFields(title string, layerIndex, position int) domain.StepFields {
	return domain.StepFields{
		Title:           title,
		Assignee:        "Dana",
		Status:          domain.StepStatusPending,
		LayerIndex:      layerIndex,
		PositionInLayer: position,
	}
}

func stepTitles(steps []domain.WorkflowStep) []string {
	titles := make([]string, 0, len(steps))
	for _, step := range SortSteps(steps) {
		titles = append(titles, step.Title)
	}
	return titles
}

func stepByTitle(steps []domain.WorkflowStep, title string) (domain.WorkflowStep, bool) {
	idx := slices.IndexFunc(steps, func(s domain.WorkflowStep) bool { return s.Title == title })
	if idx < 0 {
		return domain.WorkflowStep{}, false
	}
	return steps[idx], true
}

// recordingNotifier collects the ops it was notified about.
type recordingNotifier struct {
	mu  sync.Mutex
	ops []string
}

func (n *recordingNotifier) NotifyError(op string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ops = append(n.ops, op)
}

func (n *recordingNotifier) Ops() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.ops)
}
