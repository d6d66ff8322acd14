package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quoteResponse struct {
	Quote    domain.Quote     `json:"quote"`
	Workflow *domain.Workflow `json:"workflow"`
}

type stepResponse struct {
	Step domain.WorkflowStep `json:"step"`
}

type stepsResponse struct {
	Steps []domain.WorkflowStep `json:"steps"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func createQuote(t *testing.T, s testServer, token string) quoteResponse {
	w := s.do(t, http.MethodPost, "/quotes", token, domain.DefaultQuotes[0])
	requireStatus(t, w, http.StatusCreated)
	return decodeBody[quoteResponse](t, w)
}

func createStep(t *testing.T, s testServer, workflowId, title string, layer, position int) domain.WorkflowStep {
	w := s.do(t, http.MethodPost, fmt.Sprintf("/workflows/%s/steps", workflowId), testToken, map[string]interface{}{
		"title":             title,
		"assignee":          "Sam",
		"status":            "pending",
		"layer_index":       layer,
		"position_in_layer": position,
	})
	requireStatus(t, w, http.StatusCreated)
	return decodeBody[stepResponse](t, w).Step
}

func TestStatusForError(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusBadRequest, statusForError(common.NewValidationError("title", "required")))
	assert.Equal(t, http.StatusUnauthorized, statusForError(common.ErrNotAuthenticated))
	assert.Equal(t, http.StatusNotFound, statusForError(fmt.Errorf("failed to get step: %w", common.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, statusForError(common.ErrConflict))
	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.New("boom")))
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/quotes", "", nil)
	requireStatus(t, w, http.StatusUnauthorized)
	assert.Equal(t, common.ErrNotAuthenticated.Error(), decodeBody[errorResponse](t, w).Error)

	w = s.do(t, http.MethodGet, "/quotes", "not-a-token", nil)
	requireStatus(t, w, http.StatusUnauthorized)

	w = s.do(t, http.MethodGet, "/quotes", testToken, nil)
	requireStatus(t, w, http.StatusOK)
}

func TestHealthzNeedsNoToken(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	requireStatus(t, w, http.StatusOK)
}

func TestCreateQuoteCreatesWorkflow(t *testing.T) {
	s := newTestServer(t)

	created := createQuote(t, s, testToken)
	require.NotNil(t, created.Workflow)
	assert.Equal(t, created.Quote.Id, created.Workflow.QuoteId)
	assert.Equal(t, domain.DefaultWorkflowName, created.Workflow.Name)
	assert.Equal(t, domain.WorkflowStatusActive, created.Workflow.Status)

	w := s.do(t, http.MethodGet, fmt.Sprintf("/quotes/%d/workflow", created.Quote.Id), testToken, nil)
	requireStatus(t, w, http.StatusOK)
	fetched := decodeBody[quoteResponse](t, w)
	require.NotNil(t, fetched.Workflow)
	assert.Equal(t, created.Workflow.Id, fetched.Workflow.Id)

	w = s.do(t, http.MethodPost, "/quotes", testToken, map[string]string{"name": "Missing fields"})
	requireStatus(t, w, http.StatusBadRequest)
}

func TestGetQuote(t *testing.T) {
	s := newTestServer(t)
	created := createQuote(t, s, testToken)

	w := s.do(t, http.MethodGet, fmt.Sprintf("/quotes/%d", created.Quote.Id), testToken, nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, created.Quote.Name, decodeBody[quoteResponse](t, w).Quote.Name)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/quotes/%d", created.Quote.Id), otherUserToken, nil)
	requireStatus(t, w, http.StatusNotFound)

	w = s.do(t, http.MethodGet, "/quotes/abc", testToken, nil)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestQuoteWorkflowLifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	quote, err := s.storage.CreateQuote(ctx, domain.NewQuote(testUserId, domain.DefaultQuotes[1]))
	require.NoError(t, err)
	path := fmt.Sprintf("/quotes/%d/workflow", quote.Id)

	w := s.do(t, http.MethodGet, path, testToken, nil)
	requireStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"workflow": null}`, w.Body.String())

	w = s.do(t, http.MethodPost, path, testToken, map[string]string{"name": "Approval Workflow"})
	requireStatus(t, w, http.StatusCreated)
	first := decodeBody[quoteResponse](t, w).Workflow
	require.NotNil(t, first)

	// a second create resolves to the existing workflow
	w = s.do(t, http.MethodPost, path, testToken, nil)
	requireStatus(t, w, http.StatusOK)
	second := decodeBody[quoteResponse](t, w).Workflow
	require.NotNil(t, second)
	assert.Equal(t, first.Id, second.Id)
}

func TestWorkflowSteps(t *testing.T) {
	s := newTestServer(t)
	workflow := createQuote(t, s, testToken).Workflow
	stepsPath := fmt.Sprintf("/workflows/%s/steps", workflow.Id)

	legal := createStep(t, s, workflow.Id, "Legal", 0, 0)
	finance := createStep(t, s, workflow.Id, "Finance", 0, 1)
	cro := createStep(t, s, workflow.Id, "CRO", 1, 0)
	assert.Contains(t, legal.Id, "step_")

	w := s.do(t, http.MethodGet, stepsPath, testToken, nil)
	requireStatus(t, w, http.StatusOK)
	steps := decodeBody[stepsResponse](t, w).Steps
	require.Len(t, steps, 3)
	assert.Equal(t, []string{legal.Id, finance.Id, cro.Id}, []string{steps[0].Id, steps[1].Id, steps[2].Id})

	t.Run("other users cannot see the workflow", func(t *testing.T) {
		w := s.do(t, http.MethodGet, stepsPath, otherUserToken, nil)
		requireStatus(t, w, http.StatusNotFound)
	})

	t.Run("create requires indices", func(t *testing.T) {
		w := s.do(t, http.MethodPost, stepsPath, testToken, map[string]interface{}{
			"title": "No layer", "assignee": "Sam", "status": "pending", "position_in_layer": 0,
		})
		requireStatus(t, w, http.StatusBadRequest)
		assert.Contains(t, decodeBody[errorResponse](t, w).Error, "layer_index")
	})

	t.Run("create rejects invalid status", func(t *testing.T) {
		w := s.do(t, http.MethodPost, stepsPath, testToken, map[string]interface{}{
			"title": "Bad", "assignee": "Sam", "status": "done", "layer_index": 2, "position_in_layer": 0,
		})
		requireStatus(t, w, http.StatusBadRequest)
	})

	t.Run("patch updates allowed fields", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, stepsPath+"/"+legal.Id, testToken, `{"title": "Legal review", "description": "MSA redlines"}`)
		requireStatus(t, w, http.StatusOK)
		updated := decodeBody[stepResponse](t, w).Step
		assert.Equal(t, "Legal review", updated.Title)
		require.NotNil(t, updated.Description)
		assert.Equal(t, "MSA redlines", *updated.Description)

		w = s.do(t, http.MethodPatch, stepsPath+"/"+legal.Id, testToken, `{"description": null}`)
		requireStatus(t, w, http.StatusOK)
		assert.Nil(t, decodeBody[stepResponse](t, w).Step.Description)
	})

	t.Run("patch rejects fields outside the allow-list", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, stepsPath+"/"+legal.Id, testToken, `{"workflow_id": "wf_other"}`)
		requireStatus(t, w, http.StatusBadRequest)
	})

	t.Run("patch with no fields", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, stepsPath+"/"+legal.Id, testToken, `{}`)
		requireStatus(t, w, http.StatusBadRequest)
		assert.Equal(t, "no valid fields to update", decodeBody[errorResponse](t, w).Error)
	})

	t.Run("patch unknown step", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, stepsPath+"/step_missing", testToken, `{"title": "x"}`)
		requireStatus(t, w, http.StatusNotFound)
	})

	t.Run("reorder", func(t *testing.T) {
		w := s.do(t, http.MethodPost, stepsPath+"/reorder", testToken, map[string]interface{}{
			"stepUpdates": []map[string]interface{}{
				{"id": finance.Id, "layer_index": 0, "position_in_layer": 0},
				{"id": legal.Id, "layer_index": 0, "position_in_layer": 1},
			},
		})
		requireStatus(t, w, http.StatusOK)

		steps := decodeBody[stepsResponse](t, s.do(t, http.MethodGet, stepsPath, testToken, nil)).Steps
		assert.Equal(t, finance.Id, steps[0].Id)
		assert.Equal(t, legal.Id, steps[1].Id)
	})

	t.Run("reorder validation", func(t *testing.T) {
		w := s.do(t, http.MethodPost, stepsPath+"/reorder", testToken, `{"stepUpdates": [{"id": "x", "layer_index": 0}]}`)
		requireStatus(t, w, http.StatusBadRequest)

		w = s.do(t, http.MethodPost, stepsPath+"/reorder", testToken, `{}`)
		requireStatus(t, w, http.StatusBadRequest)
	})

	t.Run("reorder unknown step changes nothing", func(t *testing.T) {
		w := s.do(t, http.MethodPost, stepsPath+"/reorder", testToken, map[string]interface{}{
			"stepUpdates": []map[string]interface{}{
				{"id": cro.Id, "layer_index": 5, "position_in_layer": 0},
				{"id": "step_missing", "layer_index": 0, "position_in_layer": 0},
			},
		})
		requireStatus(t, w, http.StatusNotFound)

		step, err := s.storage.GetWorkflowStep(context.Background(), workflow.Id, cro.Id)
		require.NoError(t, err)
		assert.Equal(t, 1, step.LayerIndex)
	})

	t.Run("delete", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, stepsPath+"/"+cro.Id, testToken, nil)
		requireStatus(t, w, http.StatusOK)

		w = s.do(t, http.MethodDelete, stepsPath+"/"+cro.Id, testToken, nil)
		requireStatus(t, w, http.StatusNotFound)
	})

	t.Run("patch after delete does not recreate the step", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, stepsPath+"/"+cro.Id, testToken, `{"title": "edited"}`)
		requireStatus(t, w, http.StatusNotFound)

		_, err := s.storage.GetWorkflowStep(context.Background(), workflow.Id, cro.Id)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestUpdateCurrentStage(t *testing.T) {
	s := newTestServer(t)
	created := createQuote(t, s, testToken)
	step := createStep(t, s, created.Workflow.Id, "Deal Desk", 0, 0)
	path := fmt.Sprintf("/quotes/%d/current-stage", created.Quote.Id)

	w := s.do(t, http.MethodPatch, path, testToken, map[string]interface{}{"currentStepId": step.Id})
	requireStatus(t, w, http.StatusOK)

	quote, err := s.storage.GetQuote(context.Background(), testUserId, created.Quote.Id)
	require.NoError(t, err)
	require.NotNil(t, quote.CurrentStage)
	assert.Equal(t, "Deal Desk", *quote.CurrentStage)

	w = s.do(t, http.MethodPatch, path, testToken, `{"currentStepId": null}`)
	requireStatus(t, w, http.StatusOK)
	quote, err = s.storage.GetQuote(context.Background(), testUserId, created.Quote.Id)
	require.NoError(t, err)
	assert.Nil(t, quote.CurrentStage)

	w = s.do(t, http.MethodPatch, path, testToken, `{"currentStepId": 7}`)
	requireStatus(t, w, http.StatusBadRequest)

	w = s.do(t, http.MethodPatch, path, testToken, `{}`)
	requireStatus(t, w, http.StatusBadRequest)

	w = s.do(t, http.MethodPatch, path, testToken, map[string]interface{}{"currentStepId": "step_missing"})
	requireStatus(t, w, http.StatusNotFound)

	w = s.do(t, http.MethodPatch, "/quotes/0/current-stage", testToken, `{"currentStepId": null}`)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestBackfillWorkflows(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for _, fields := range domain.DefaultQuotes[:3] {
		_, err := s.storage.CreateQuote(ctx, domain.NewQuote(testUserId, fields))
		require.NoError(t, err)
	}
	createQuote(t, s, testToken)

	w := s.do(t, http.MethodPost, "/workflows/backfill", testToken, nil)
	requireStatus(t, w, http.StatusOK)
	result := decodeBody[struct {
		Workflows []domain.Workflow `json:"workflows"`
	}](t, w)
	assert.Len(t, result.Workflows, 3)

	w = s.do(t, http.MethodPost, "/workflows/backfill", testToken, nil)
	requireStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"workflows": []}`, w.Body.String())
}
