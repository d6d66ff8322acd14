package domain

import (
	"context"
	"fmt"
	"time"
)

const DefaultWorkflowName = "Approval Workflow"

type WorkflowStatus string

const (
	WorkflowStatusActive    WorkflowStatus = "active"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

var AllWorkflowStatuses = []WorkflowStatus{
	WorkflowStatusActive,
	WorkflowStatusCompleted,
	WorkflowStatusCancelled,
}

func StringToWorkflowStatus(s string) (WorkflowStatus, error) {
	switch s {
	case "active":
		return WorkflowStatusActive, nil
	case "completed":
		return WorkflowStatusCompleted, nil
	case "cancelled":
		return WorkflowStatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid WorkflowStatus: \"%s\"", s)
	}
}

// Workflow is the approval workflow of a quote. There is at most one per quote.
type Workflow struct {
	Id      string         `json:"id"`
	QuoteId int64          `json:"quote_id"`
	UserId  string         `json:"user_id"`
	Name    string         `json:"name"`
	Status  WorkflowStatus `json:"status"`
	Created time.Time      `json:"created_at"`
	Updated time.Time      `json:"updated_at"`
}

type WorkflowStorage interface {
	// CreateWorkflow fails with common.ErrConflict if the quote already has a
	// workflow.
	CreateWorkflow(ctx context.Context, workflow Workflow) error
	GetWorkflow(ctx context.Context, workflowId string) (Workflow, error)
	// GetWorkflowByQuoteId fails with common.ErrNotFound when the quote has
	// no workflow yet.
	GetWorkflowByQuoteId(ctx context.Context, quoteId int64) (Workflow, error)
	GetQuoteIdsWithoutWorkflow(ctx context.Context, userId string) ([]int64, error)
}
