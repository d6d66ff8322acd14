package client

import (
	"context"
	"fmt"
	"net/http"

	"quoteflow/domain"
)

type stepResponse struct {
	Step domain.WorkflowStep `json:"step"`
}

type stepsResponse struct {
	Steps []domain.WorkflowStep `json:"steps"`
}

type reorderRequest struct {
	StepUpdates []domain.StepPosition `json:"stepUpdates"`
}

func stepsPath(workflowId string) string {
	return fmt.Sprintf("/workflows/%s/steps", workflowId)
}

// GetWorkflowSteps returns steps ordered by layer then position.
func (c *Client) GetWorkflowSteps(ctx context.Context, session domain.UserSession, workflowId string) ([]domain.WorkflowStep, error) {
	var resp stepsResponse
	err := c.do(ctx, session, request{op: "get workflow steps", method: http.MethodGet, path: stepsPath(workflowId), out: &resp})
	if err != nil {
		return nil, err
	}
	if resp.Steps == nil {
		resp.Steps = []domain.WorkflowStep{}
	}
	return resp.Steps, nil
}

func (c *Client) CreateWorkflowStep(ctx context.Context, session domain.UserSession, workflowId string, fields domain.StepFields) (domain.WorkflowStep, error) {
	var resp stepResponse
	err := c.do(ctx, session, request{
		op:     "create workflow step",
		method: http.MethodPost,
		path:   stepsPath(workflowId),
		body:   fields,
		out:    &resp,
		ok:     []int{http.StatusCreated},
	})
	if err != nil {
		return domain.WorkflowStep{}, err
	}
	return resp.Step, nil
}

func (c *Client) UpdateWorkflowStep(ctx context.Context, session domain.UserSession, workflowId, stepId string, update domain.StepUpdate) (domain.WorkflowStep, error) {
	var resp stepResponse
	err := c.do(ctx, session, request{
		op:     "update workflow step",
		method: http.MethodPatch,
		path:   stepsPath(workflowId) + "/" + stepId,
		body:   update,
		out:    &resp,
	})
	if err != nil {
		return domain.WorkflowStep{}, err
	}
	return resp.Step, nil
}

func (c *Client) DeleteWorkflowStep(ctx context.Context, session domain.UserSession, workflowId, stepId string) error {
	err := c.do(ctx, session, request{op: "delete workflow step", method: http.MethodDelete, path: stepsPath(workflowId) + "/" + stepId})
	return err
}

func (c *Client) ReorderWorkflowSteps(ctx context.Context, session domain.UserSession, workflowId string, positions []domain.StepPosition) error {
	err := c.do(ctx, session, request{
		op:     "reorder workflow steps",
		method: http.MethodPost,
		path:   stepsPath(workflowId) + "/reorder",
		body:   reorderRequest{StepUpdates: positions},
	})
	return err
}
