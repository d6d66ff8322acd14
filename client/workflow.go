package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"quoteflow/common"
	"quoteflow/domain"
)

type workflowResponse struct {
	Workflow *domain.Workflow `json:"workflow"`
}

type workflowsResponse struct {
	Workflows []domain.Workflow `json:"workflows"`
}

// GetWorkflowByQuoteId returns nil without error when the quote has no
// workflow yet.
func (c *Client) GetWorkflowByQuoteId(ctx context.Context, session domain.UserSession, quoteId int64) (*domain.Workflow, error) {
	var resp workflowResponse
	err := c.do(ctx, session, request{op: "get workflow", method: http.MethodGet, path: fmt.Sprintf("/quotes/%d/workflow", quoteId), out: &resp})
	if err != nil {
		return nil, err
	}
	return resp.Workflow, nil
}

type createWorkflowRequest struct {
	Name string `json:"name"`
}

// CreateWorkflow creates the quote's workflow. When one already exists it is
// returned instead.
func (c *Client) CreateWorkflow(ctx context.Context, session domain.UserSession, quoteId int64, name string) (domain.Workflow, error) {
	var resp workflowResponse
	err := c.do(ctx, session, request{
		op:     "create workflow",
		method: http.MethodPost,
		path:   fmt.Sprintf("/quotes/%d/workflow", quoteId),
		body:   createWorkflowRequest{Name: name},
		out:    &resp,
		ok:     []int{http.StatusCreated, http.StatusOK},
	})
	if errors.Is(err, common.ErrConflict) {
		existing, getErr := c.GetWorkflowByQuoteId(ctx, session, quoteId)
		if getErr != nil {
			return domain.Workflow{}, getErr
		}
		if existing == nil {
			return domain.Workflow{}, err
		}
		return *existing, nil
	}
	if err != nil {
		return domain.Workflow{}, err
	}
	if resp.Workflow == nil {
		return domain.Workflow{}, &common.TransportError{Op: "create workflow", Err: errors.New("response has no workflow")}
	}
	return *resp.Workflow, nil
}

func (c *Client) BackfillWorkflows(ctx context.Context, session domain.UserSession) ([]domain.Workflow, error) {
	var resp workflowsResponse
	err := c.do(ctx, session, request{op: "backfill workflows", method: http.MethodPost, path: "/workflows/backfill", out: &resp})
	if err != nil {
		return nil, err
	}
	return resp.Workflows, nil
}
