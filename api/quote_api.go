package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

func newWorkflow(userId string, quoteId int64, name string) domain.Workflow {
	if name == "" {
		name = domain.DefaultWorkflowName
	}
	now := time.Now().UTC()
	return domain.Workflow{
		Id:      "wf_" + ksuid.New().String(),
		QuoteId: quoteId,
		UserId:  userId,
		Name:    name,
		Status:  domain.WorkflowStatusActive,
		Created: now,
		Updated: now,
	}
}

func (ctrl *Controller) GetQuotesHandler(c *gin.Context) {
	quotes, err := ctrl.service.GetQuotes(c.Request.Context(), currentUserId(c))
	if err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

// CreateQuoteHandler creates the quote along with its approval workflow.
func (ctrl *Controller) CreateQuoteHandler(c *gin.Context) {
	var fields domain.QuoteFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		ctrl.handleError(c, common.NewValidationError("", err.Error()))
		return
	}
	if err := fields.Validate(); err != nil {
		ctrl.handleError(c, err)
		return
	}

	ctx := c.Request.Context()
	userId := currentUserId(c)
	quote, err := ctrl.service.CreateQuote(ctx, domain.NewQuote(userId, fields))
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	workflow := newWorkflow(userId, quote.Id, "")
	if err := ctrl.service.CreateWorkflow(ctx, workflow); err != nil {
		ctrl.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"quote": quote, "workflow": workflow})
}

func (ctrl *Controller) GetQuoteHandler(c *gin.Context) {
	quoteId, err := parseQuoteId(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	quote, err := ctrl.service.GetQuote(c.Request.Context(), currentUserId(c), quoteId)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote})
}

type currentStageRequest struct {
	CurrentStepId json.RawMessage `json:"currentStepId"`
}

// UpdateCurrentStageHandler sets the quote's current stage from a step id, or
// clears it when currentStepId is null. The stage is stored as the step title.
func (ctrl *Controller) UpdateCurrentStageHandler(c *gin.Context) {
	quoteId, err := parseQuoteId(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	var req currentStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.handleError(c, common.NewValidationError("", err.Error()))
		return
	}
	if len(req.CurrentStepId) == 0 {
		ctrl.handleError(c, common.NewValidationError("currentStepId", "required"))
		return
	}

	var stepId *string
	if err := json.Unmarshal(req.CurrentStepId, &stepId); err != nil {
		ctrl.handleError(c, common.NewValidationError("currentStepId", "must be a string or null"))
		return
	}

	ctx := c.Request.Context()
	userId := currentUserId(c)
	if _, err := ctrl.service.GetQuote(ctx, userId, quoteId); err != nil {
		ctrl.handleError(c, err)
		return
	}

	var stage *string
	if stepId != nil {
		workflow, err := ctrl.service.GetWorkflowByQuoteId(ctx, quoteId)
		if err != nil {
			ctrl.handleError(c, err)
			return
		}
		step, err := ctrl.service.GetWorkflowStep(ctx, workflow.Id, *stepId)
		if err != nil {
			ctrl.handleError(c, err)
			return
		}
		stage = &step.Title
	}

	if err := ctrl.service.UpdateQuoteCurrentStage(ctx, userId, quoteId, stage); err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// BackfillWorkflowsHandler creates the default workflow for each of the
// caller's quotes that has none.
func (ctrl *Controller) BackfillWorkflowsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	userId := currentUserId(c)

	quoteIds, err := ctrl.service.GetQuoteIdsWithoutWorkflow(ctx, userId)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	created := []domain.Workflow{}
	for _, quoteId := range quoteIds {
		workflow := newWorkflow(userId, quoteId, "")
		err := ctrl.service.CreateWorkflow(ctx, workflow)
		if errors.Is(err, common.ErrConflict) {
			// created concurrently
			continue
		}
		if err != nil {
			ctrl.handleError(c, err)
			return
		}
		created = append(created, workflow)
	}

	log.Info().Str("userId", userId).Int("created", len(created)).Msg("Backfilled workflows")
	c.JSON(http.StatusOK, gin.H{"workflows": created})
}
