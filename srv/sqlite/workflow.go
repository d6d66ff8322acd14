package sqlite

import (
	"context"
	"fmt"

	"quoteflow/common"
	"quoteflow/domain"

	"go.opentelemetry.io/otel/attribute"
)

var _ domain.WorkflowStorage = (*Storage)(nil)

const workflowColumns = `id, quote_id, user_id, name, status, created_at, updated_at`

func scanWorkflow(row rowScanner) (domain.Workflow, error) {
	var workflow domain.Workflow
	err := row.Scan(
		&workflow.Id, &workflow.QuoteId, &workflow.UserId, &workflow.Name,
		&workflow.Status, &workflow.Created, &workflow.Updated,
	)
	return workflow, err
}

func (s *Storage) CreateWorkflow(ctx context.Context, workflow domain.Workflow) error {
	ctx, span := startSpan(ctx, "Storage.CreateWorkflow", "INSERT",
		attribute.String("workflow_id", workflow.Id),
		attribute.Int64("quote_id", workflow.QuoteId),
	)
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, quote_id, user_id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		workflow.Id, workflow.QuoteId, workflow.UserId, workflow.Name, workflow.Status,
		workflow.Created.UTC(), workflow.Updated.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return recordError(span, fmt.Errorf("%w: quote %d already has a workflow", common.ErrConflict, workflow.QuoteId))
		}
		return recordError(span, fmt.Errorf("failed to create workflow: %w", err))
	}
	return nil
}

func (s *Storage) GetWorkflow(ctx context.Context, workflowId string) (domain.Workflow, error) {
	ctx, span := startSpan(ctx, "Storage.GetWorkflow", "SELECT", attribute.String("workflow_id", workflowId))
	defer span.End()

	row := s.db.QueryRowContext(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE id = ?", workflowId)
	workflow, err := scanWorkflow(row)
	if err != nil {
		return domain.Workflow{}, recordError(span, notFoundOr(err, "get workflow"))
	}
	return workflow, nil
}

func (s *Storage) GetWorkflowByQuoteId(ctx context.Context, quoteId int64) (domain.Workflow, error) {
	ctx, span := startSpan(ctx, "Storage.GetWorkflowByQuoteId", "SELECT", attribute.Int64("quote_id", quoteId))
	defer span.End()

	row := s.db.QueryRowContext(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE quote_id = ?", quoteId)
	workflow, err := scanWorkflow(row)
	if err != nil {
		return domain.Workflow{}, recordError(span, notFoundOr(err, "get workflow by quote id"))
	}
	return workflow, nil
}

func (s *Storage) GetQuoteIdsWithoutWorkflow(ctx context.Context, userId string) ([]int64, error) {
	ctx, span := startSpan(ctx, "Storage.GetQuoteIdsWithoutWorkflow", "SELECT", attribute.String("user_id", userId))
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id FROM quotes q
		LEFT JOIN workflows w ON w.quote_id = q.id
		WHERE q.user_id = ? AND w.id IS NULL
		ORDER BY q.id`, userId)
	if err != nil {
		return nil, recordError(span, fmt.Errorf("failed to query quotes without workflow: %w", err))
	}
	defer rows.Close()

	quoteIds := []int64{}
	for rows.Next() {
		var quoteId int64
		if err := rows.Scan(&quoteId); err != nil {
			return nil, recordError(span, fmt.Errorf("failed to scan quote id: %w", err))
		}
		quoteIds = append(quoteIds, quoteId)
	}
	if err := rows.Err(); err != nil {
		return nil, recordError(span, fmt.Errorf("error iterating quote ids: %w", err))
	}
	return quoteIds, nil
}
