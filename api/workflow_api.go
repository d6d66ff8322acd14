package api

import (
	"errors"
	"net/http"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/gin-gonic/gin"
)

// ownedWorkflow loads the workflow and hides it with a not found error unless
// it belongs to the caller.
func (ctrl *Controller) ownedWorkflow(c *gin.Context) (domain.Workflow, error) {
	workflow, err := ctrl.service.GetWorkflow(c.Request.Context(), c.Param("workflowId"))
	if err != nil {
		return domain.Workflow{}, err
	}
	if workflow.UserId != currentUserId(c) {
		return domain.Workflow{}, common.ErrNotFound
	}
	return workflow, nil
}

// GetQuoteWorkflowHandler responds with a null workflow when the quote has
// none yet.
func (ctrl *Controller) GetQuoteWorkflowHandler(c *gin.Context) {
	quoteId, err := parseQuoteId(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := ctrl.service.GetQuote(ctx, currentUserId(c), quoteId); err != nil {
		ctrl.handleError(c, err)
		return
	}

	workflow, err := ctrl.service.GetWorkflowByQuoteId(ctx, quoteId)
	if errors.Is(err, common.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"workflow": nil})
		return
	}
	if err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflow": workflow})
}

type createWorkflowRequest struct {
	Name string `json:"name"`
}

// CreateQuoteWorkflowHandler is idempotent: when the quote already has a
// workflow, that one is returned with 200.
func (ctrl *Controller) CreateQuoteWorkflowHandler(c *gin.Context) {
	quoteId, err := parseQuoteId(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	var req createWorkflowRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ctrl.handleError(c, common.NewValidationError("", err.Error()))
			return
		}
	}

	ctx := c.Request.Context()
	userId := currentUserId(c)
	if _, err := ctrl.service.GetQuote(ctx, userId, quoteId); err != nil {
		ctrl.handleError(c, err)
		return
	}

	workflow := newWorkflow(userId, quoteId, req.Name)
	err = ctrl.service.CreateWorkflow(ctx, workflow)
	if errors.Is(err, common.ErrConflict) {
		existing, err := ctrl.service.GetWorkflowByQuoteId(ctx, quoteId)
		if err != nil {
			ctrl.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"workflow": existing})
		return
	}
	if err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"workflow": workflow})
}
