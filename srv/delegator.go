package srv

import (
	"context"
	"time"

	"quoteflow/domain"

	"github.com/rs/zerolog/log"
)

/* Delegates calls, but also decorates step storage with streaming for change
 * tracking */
type Delegator struct {
	storage  Storage
	streamer Streamer
}

var _ Service = (*Delegator)(nil)

func NewDelegator(storage Storage, streamer Streamer) *Delegator {
	return &Delegator{
		storage:  storage,
		streamer: streamer,
	}
}

/* implements Storage interface */
func (d Delegator) CheckConnection(ctx context.Context) error {
	return d.storage.CheckConnection(ctx)
}

/* implements QuoteStorage interface */
func (d Delegator) CreateQuote(ctx context.Context, quote domain.Quote) (domain.Quote, error) {
	return d.storage.CreateQuote(ctx, quote)
}

/* implements QuoteStorage interface */
func (d Delegator) GetQuote(ctx context.Context, userId string, quoteId int64) (domain.Quote, error) {
	return d.storage.GetQuote(ctx, userId, quoteId)
}

/* implements QuoteStorage interface */
func (d Delegator) GetQuotes(ctx context.Context, userId string) ([]domain.Quote, error) {
	return d.storage.GetQuotes(ctx, userId)
}

/* implements QuoteStorage interface */
func (d Delegator) UpdateQuoteCurrentStage(ctx context.Context, userId string, quoteId int64, stage *string) error {
	return d.storage.UpdateQuoteCurrentStage(ctx, userId, quoteId, stage)
}

/* implements WorkflowStorage interface */
func (d Delegator) CreateWorkflow(ctx context.Context, workflow domain.Workflow) error {
	return d.storage.CreateWorkflow(ctx, workflow)
}

/* implements WorkflowStorage interface */
func (d Delegator) GetWorkflow(ctx context.Context, workflowId string) (domain.Workflow, error) {
	return d.storage.GetWorkflow(ctx, workflowId)
}

/* implements WorkflowStorage interface */
func (d Delegator) GetWorkflowByQuoteId(ctx context.Context, quoteId int64) (domain.Workflow, error) {
	return d.storage.GetWorkflowByQuoteId(ctx, quoteId)
}

/* implements WorkflowStorage interface */
func (d Delegator) GetQuoteIdsWithoutWorkflow(ctx context.Context, userId string) ([]int64, error) {
	return d.storage.GetQuoteIdsWithoutWorkflow(ctx, userId)
}

/* implements WorkflowStepStorage interface */
func (d Delegator) PersistWorkflowStep(ctx context.Context, step domain.WorkflowStep) error {
	err := d.storage.PersistWorkflowStep(ctx, step)
	if err != nil {
		return err
	}

	d.addChange(ctx, domain.WorkflowStepChange{WorkflowId: step.WorkflowId, Kind: domain.WorkflowStepChangeCreated, Step: &step})
	return nil
}

/* implements WorkflowStepStorage interface */
func (d Delegator) UpdateWorkflowStep(ctx context.Context, workflowId, stepId string, update domain.StepUpdate) (domain.WorkflowStep, error) {
	step, err := d.storage.UpdateWorkflowStep(ctx, workflowId, stepId, update)
	if err != nil {
		return domain.WorkflowStep{}, err
	}
	d.addChange(ctx, domain.WorkflowStepChange{WorkflowId: workflowId, Kind: domain.WorkflowStepChangeUpdated, Step: &step})
	return step, nil
}

/* implements WorkflowStepStorage interface */
func (d Delegator) GetWorkflowStep(ctx context.Context, workflowId, stepId string) (domain.WorkflowStep, error) {
	return d.storage.GetWorkflowStep(ctx, workflowId, stepId)
}

/* implements WorkflowStepStorage interface */
func (d Delegator) GetWorkflowSteps(ctx context.Context, workflowId string) ([]domain.WorkflowStep, error) {
	return d.storage.GetWorkflowSteps(ctx, workflowId)
}

/* implements WorkflowStepStorage interface */
func (d Delegator) DeleteWorkflowStep(ctx context.Context, workflowId, stepId string) error {
	err := d.storage.DeleteWorkflowStep(ctx, workflowId, stepId)
	if err != nil {
		return err
	}
	d.addChange(ctx, domain.WorkflowStepChange{WorkflowId: workflowId, Kind: domain.WorkflowStepChangeDeleted, StepId: stepId})
	return nil
}

/* implements WorkflowStepStorage interface */
func (d Delegator) ReorderWorkflowSteps(ctx context.Context, workflowId string, positions []domain.StepPosition) error {
	err := d.storage.ReorderWorkflowSteps(ctx, workflowId, positions)
	if err != nil {
		return err
	}
	d.addChange(ctx, domain.WorkflowStepChange{WorkflowId: workflowId, Kind: domain.WorkflowStepChangeReordered, Positions: positions})
	return nil
}

// addChange publishes to the change feed. The write already succeeded, so a
// streaming failure is logged and not returned.
func (d Delegator) addChange(ctx context.Context, change domain.WorkflowStepChange) {
	if err := d.streamer.AddWorkflowStepChange(ctx, change); err != nil {
		log.Warn().Err(err).Str("workflowId", change.WorkflowId).Str("kind", string(change.Kind)).Msg("failed to add workflow step change")
	}
}

/* implements WorkflowStepStreamer interface */
func (d Delegator) AddWorkflowStepChange(ctx context.Context, change domain.WorkflowStepChange) error {
	return d.streamer.AddWorkflowStepChange(ctx, change)
}

/* implements WorkflowStepStreamer interface */
func (d Delegator) GetWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string, maxCount int64, blockDuration time.Duration) ([]domain.WorkflowStepChange, string, error) {
	return d.streamer.GetWorkflowStepChanges(ctx, workflowId, streamMessageStartId, maxCount, blockDuration)
}

/* implements WorkflowStepStreamer interface */
func (d Delegator) StreamWorkflowStepChanges(ctx context.Context, workflowId, streamMessageStartId string) (<-chan domain.WorkflowStepChange, <-chan error) {
	return d.streamer.StreamWorkflowStepChanges(ctx, workflowId, streamMessageStartId)
}
