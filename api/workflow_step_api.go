package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
)

// StepRequest is the create payload. The indices are pointers so a missing
// value is told apart from zero.
type StepRequest struct {
	Title           string            `json:"title"`
	Assignee        string            `json:"assignee"`
	AssigneeAvatar  *string           `json:"assignee_avatar"`
	Status          domain.StepStatus `json:"status"`
	DueDate         *string           `json:"due_date"`
	CompletedDate   *string           `json:"completed_date"`
	Description     *string           `json:"description"`
	LayerIndex      *int              `json:"layer_index"`
	PositionInLayer *int              `json:"position_in_layer"`
	Persona         *domain.Persona   `json:"persona"`
}

func (r StepRequest) toFields() (domain.StepFields, error) {
	if r.LayerIndex == nil {
		return domain.StepFields{}, common.NewValidationError("layer_index", "required")
	}
	if r.PositionInLayer == nil {
		return domain.StepFields{}, common.NewValidationError("position_in_layer", "required")
	}

	fields := domain.StepFields{
		Title:           r.Title,
		Assignee:        r.Assignee,
		AssigneeAvatar:  r.AssigneeAvatar,
		Status:          r.Status,
		DueDate:         r.DueDate,
		CompletedDate:   r.CompletedDate,
		Description:     r.Description,
		LayerIndex:      *r.LayerIndex,
		PositionInLayer: *r.PositionInLayer,
		Persona:         r.Persona,
	}
	return fields, fields.Validate()
}

type reorderRequest struct {
	StepUpdates []reorderItem `json:"stepUpdates"`
}

type reorderItem struct {
	Id              string `json:"id"`
	LayerIndex      *int   `json:"layer_index"`
	PositionInLayer *int   `json:"position_in_layer"`
}

func (r reorderRequest) toPositions() ([]domain.StepPosition, error) {
	if r.StepUpdates == nil {
		return nil, common.NewValidationError("stepUpdates", "must be an array")
	}
	positions := make([]domain.StepPosition, 0, len(r.StepUpdates))
	for i, item := range r.StepUpdates {
		if item.Id == "" || item.LayerIndex == nil || item.PositionInLayer == nil {
			return nil, common.NewValidationError(fmt.Sprintf("stepUpdates[%d]", i), "must have id, layer_index and position_in_layer")
		}
		positions = append(positions, domain.StepPosition{
			Id:              item.Id,
			LayerIndex:      *item.LayerIndex,
			PositionInLayer: *item.PositionInLayer,
		})
	}
	return positions, domain.ValidateStepPositions(positions)
}

// decodeStepUpdate rejects fields outside the update allow-list.
func decodeStepUpdate(body io.Reader) (domain.StepUpdate, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return domain.StepUpdate{}, fmt.Errorf("failed to read request body: %w", err)
	}

	var update domain.StepUpdate
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&update); err != nil {
		return domain.StepUpdate{}, common.NewValidationError("", err.Error())
	}
	return update, update.Validate()
}

func (ctrl *Controller) GetWorkflowStepsHandler(c *gin.Context) {
	workflow, err := ctrl.ownedWorkflow(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	steps, err := ctrl.service.GetWorkflowSteps(c.Request.Context(), workflow.Id)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": steps})
}

func (ctrl *Controller) CreateWorkflowStepHandler(c *gin.Context) {
	workflow, err := ctrl.ownedWorkflow(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.handleError(c, common.NewValidationError("", err.Error()))
		return
	}
	fields, err := req.toFields()
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	step := domain.NewWorkflowStep("step_"+ksuid.New().String(), workflow.Id, fields, time.Now().UTC())
	if err := ctrl.service.PersistWorkflowStep(c.Request.Context(), step); err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"step": step})
}

func (ctrl *Controller) UpdateWorkflowStepHandler(c *gin.Context) {
	workflow, err := ctrl.ownedWorkflow(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	update, err := decodeStepUpdate(c.Request.Body)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	updated, err := ctrl.service.UpdateWorkflowStep(c.Request.Context(), workflow.Id, c.Param("stepId"), update)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": updated})
}

func (ctrl *Controller) DeleteWorkflowStepHandler(c *gin.Context) {
	workflow, err := ctrl.ownedWorkflow(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	if err := ctrl.service.DeleteWorkflowStep(c.Request.Context(), workflow.Id, c.Param("stepId")); err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ReorderWorkflowStepsHandler applies the whole batch or none of it.
func (ctrl *Controller) ReorderWorkflowStepsHandler(c *gin.Context) {
	workflow, err := ctrl.ownedWorkflow(c)
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.handleError(c, common.NewValidationError("stepUpdates", err.Error()))
		return
	}
	positions, err := req.toPositions()
	if err != nil {
		ctrl.handleError(c, err)
		return
	}

	if err := ctrl.service.ReorderWorkflowSteps(c.Request.Context(), workflow.Id, positions); err != nil {
		ctrl.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
