package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"quoteflow/common"
	"quoteflow/domain"

	"go.opentelemetry.io/otel/attribute"
)

var _ domain.QuoteStorage = (*Storage)(nil)

const quoteColumns = `id, user_id, name, customer_slug, status, amount, owner, current_stage, generated_order_form_url, created_at`

func scanQuote(row rowScanner) (domain.Quote, error) {
	var quote domain.Quote
	var currentStage, orderFormUrl sql.NullString
	err := row.Scan(
		&quote.Id, &quote.UserId, &quote.Name, &quote.CustomerSlug, &quote.Status,
		&quote.Amount, &quote.Owner, &currentStage, &orderFormUrl, &quote.Created,
	)
	if err != nil {
		return domain.Quote{}, err
	}
	quote.CurrentStage = nullableString(currentStage)
	quote.GeneratedOrderFormUrl = nullableString(orderFormUrl)
	return quote, nil
}

// CreateQuote assigns the next id unless quote.Id is already set.
func (s *Storage) CreateQuote(ctx context.Context, quote domain.Quote) (domain.Quote, error) {
	ctx, span := startSpan(ctx, "Storage.CreateQuote", "INSERT", attribute.String("user_id", quote.UserId))
	defer span.End()

	quote.Created = quote.Created.UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (
			id, user_id, name, customer_slug, status, amount, owner, current_stage,
			generated_order_form_url, created_at
		) VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		quote.Id, quote.UserId, quote.Name, quote.CustomerSlug, quote.Status, quote.Amount, quote.Owner,
		quote.CurrentStage, quote.GeneratedOrderFormUrl, quote.Created,
	)
	if err != nil {
		return domain.Quote{}, recordError(span, fmt.Errorf("failed to create quote: %w", err))
	}

	quote.Id, err = result.LastInsertId()
	if err != nil {
		return domain.Quote{}, recordError(span, fmt.Errorf("failed to get quote id: %w", err))
	}
	span.SetAttributes(attribute.Int64("quote_id", quote.Id))
	return quote, nil
}

func (s *Storage) GetQuote(ctx context.Context, userId string, quoteId int64) (domain.Quote, error) {
	ctx, span := startSpan(ctx, "Storage.GetQuote", "SELECT",
		attribute.String("user_id", userId),
		attribute.Int64("quote_id", quoteId),
	)
	defer span.End()

	row := s.db.QueryRowContext(ctx, "SELECT "+quoteColumns+" FROM quotes WHERE id = ? AND user_id = ?", quoteId, userId)
	quote, err := scanQuote(row)
	if err != nil {
		return domain.Quote{}, recordError(span, notFoundOr(err, "get quote"))
	}
	return quote, nil
}

func (s *Storage) GetQuotes(ctx context.Context, userId string) ([]domain.Quote, error) {
	ctx, span := startSpan(ctx, "Storage.GetQuotes", "SELECT", attribute.String("user_id", userId))
	defer span.End()

	rows, err := s.db.QueryContext(ctx, "SELECT "+quoteColumns+" FROM quotes WHERE user_id = ? ORDER BY created_at DESC, id DESC", userId)
	if err != nil {
		return nil, recordError(span, fmt.Errorf("failed to query quotes: %w", err))
	}
	defer rows.Close()

	quotes := []domain.Quote{}
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, recordError(span, fmt.Errorf("failed to scan quote: %w", err))
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, recordError(span, fmt.Errorf("error iterating quotes: %w", err))
	}
	return quotes, nil
}

func (s *Storage) UpdateQuoteCurrentStage(ctx context.Context, userId string, quoteId int64, stage *string) error {
	ctx, span := startSpan(ctx, "Storage.UpdateQuoteCurrentStage", "UPDATE",
		attribute.String("user_id", userId),
		attribute.Int64("quote_id", quoteId),
	)
	defer span.End()

	result, err := s.db.ExecContext(ctx, "UPDATE quotes SET current_stage = ? WHERE id = ? AND user_id = ?", stage, quoteId, userId)
	if err != nil {
		return recordError(span, fmt.Errorf("failed to update quote current stage: %w", err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return recordError(span, fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return recordError(span, common.ErrNotFound)
	}
	return nil
}
