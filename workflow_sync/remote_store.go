package workflow_sync

import (
	"context"

	"quoteflow/client"
	"quoteflow/domain"
)

// RemoteStore is the durable side of a session. Every call carries the
// signed in user explicitly and fails with common.ErrNotAuthenticated when
// there is none.
type RemoteStore interface {
	// GetWorkflowByQuoteId returns nil, nil when the quote has no workflow.
	GetWorkflowByQuoteId(ctx context.Context, session domain.UserSession, quoteId int64) (*domain.Workflow, error)
	// CreateWorkflow resolves a uniqueness conflict to the existing workflow.
	CreateWorkflow(ctx context.Context, session domain.UserSession, quoteId int64, name string) (domain.Workflow, error)
	GetWorkflowSteps(ctx context.Context, session domain.UserSession, workflowId string) ([]domain.WorkflowStep, error)
	CreateWorkflowStep(ctx context.Context, session domain.UserSession, workflowId string, fields domain.StepFields) (domain.WorkflowStep, error)
	UpdateWorkflowStep(ctx context.Context, session domain.UserSession, workflowId, stepId string, update domain.StepUpdate) (domain.WorkflowStep, error)
	DeleteWorkflowStep(ctx context.Context, session domain.UserSession, workflowId, stepId string) error
	ReorderWorkflowSteps(ctx context.Context, session domain.UserSession, workflowId string, positions []domain.StepPosition) error
	UpdateQuoteCurrentStage(ctx context.Context, session domain.UserSession, quoteId int64, stepId *string) error
}

var _ RemoteStore = (*client.Client)(nil)
