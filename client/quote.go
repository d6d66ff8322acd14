package client

import (
	"context"
	"fmt"
	"net/http"

	"quoteflow/domain"
)

type quotesResponse struct {
	Quotes []domain.Quote `json:"quotes"`
}

type quoteResponse struct {
	Quote    domain.Quote     `json:"quote"`
	Workflow *domain.Workflow `json:"workflow"`
}

func (c *Client) GetQuotes(ctx context.Context, session domain.UserSession) ([]domain.Quote, error) {
	var resp quotesResponse
	err := c.do(ctx, session, request{op: "get quotes", method: http.MethodGet, path: "/quotes", out: &resp})
	if err != nil {
		return nil, err
	}
	return resp.Quotes, nil
}

func (c *Client) GetQuote(ctx context.Context, session domain.UserSession, quoteId int64) (domain.Quote, error) {
	var resp quoteResponse
	err := c.do(ctx, session, request{op: "get quote", method: http.MethodGet, path: fmt.Sprintf("/quotes/%d", quoteId), out: &resp})
	if err != nil {
		return domain.Quote{}, err
	}
	return resp.Quote, nil
}

// CreateQuote returns the new quote and the workflow created with it.
func (c *Client) CreateQuote(ctx context.Context, session domain.UserSession, fields domain.QuoteFields) (domain.Quote, *domain.Workflow, error) {
	var resp quoteResponse
	err := c.do(ctx, session, request{
		op:     "create quote",
		method: http.MethodPost,
		path:   "/quotes",
		body:   fields,
		out:    &resp,
		ok:     []int{http.StatusCreated},
	})
	if err != nil {
		return domain.Quote{}, nil, err
	}
	return resp.Quote, resp.Workflow, nil
}

// SeedDefaultQuotes creates the sample quotes for the session's user.
func (c *Client) SeedDefaultQuotes(ctx context.Context, session domain.UserSession) ([]domain.Quote, error) {
	quotes := make([]domain.Quote, 0, len(domain.DefaultQuotes))
	for _, fields := range domain.DefaultQuotes {
		quote, _, err := c.CreateQuote(ctx, session, fields)
		if err != nil {
			return quotes, fmt.Errorf("failed to seed quote %q: %w", fields.Name, err)
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

type currentStageRequest struct {
	CurrentStepId *string `json:"currentStepId"`
}

// UpdateQuoteCurrentStage points the quote at a step, or clears its stage
// when stepId is nil.
func (c *Client) UpdateQuoteCurrentStage(ctx context.Context, session domain.UserSession, quoteId int64, stepId *string) error {
	err := c.do(ctx, session, request{
		op:     "update current stage",
		method: http.MethodPatch,
		path:   fmt.Sprintf("/quotes/%d/current-stage", quoteId),
		body:   currentStageRequest{CurrentStepId: stepId},
	})
	return err
}
