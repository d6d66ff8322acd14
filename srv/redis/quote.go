package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"quoteflow/common"
	"quoteflow/domain"
)

var _ domain.QuoteStorage = (*Storage)(nil)

func quoteKey(quoteId int64) string {
	return fmt.Sprintf("quote:%d", quoteId)
}

func userQuotesKey(userId string) string {
	return fmt.Sprintf("user:%s:quotes", userId)
}

func (s Storage) CreateQuote(ctx context.Context, quote domain.Quote) (domain.Quote, error) {
	if quote.Id == 0 {
		id, err := s.Client.Incr(ctx, "quote_seq").Result()
		if err != nil {
			return domain.Quote{}, fmt.Errorf("failed to allocate quote id: %w", err)
		}
		quote.Id = id
	}

	record, err := marshal(quote)
	if err != nil {
		return domain.Quote{}, err
	}

	pipe := s.Client.TxPipeline()
	pipe.Set(ctx, quoteKey(quote.Id), record, 0)
	pipe.SAdd(ctx, userQuotesKey(quote.UserId), quote.Id)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Quote{}, fmt.Errorf("failed to persist quote: %w", err)
	}
	return quote, nil
}

func (s Storage) GetQuote(ctx context.Context, userId string, quoteId int64) (domain.Quote, error) {
	var quote domain.Quote
	if err := s.getJSON(ctx, quoteKey(quoteId), &quote); err != nil {
		return domain.Quote{}, err
	}
	if quote.UserId != userId {
		return domain.Quote{}, common.ErrNotFound
	}
	return quote, nil
}

func (s Storage) userQuoteIds(ctx context.Context, userId string) ([]int64, error) {
	members, err := s.Client.SMembers(ctx, userQuotesKey(userId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get quote ids: %w", err)
	}

	quoteIds := make([]int64, 0, len(members))
	for _, member := range members {
		quoteId, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid quote id %q in %s: %w", member, userQuotesKey(userId), err)
		}
		quoteIds = append(quoteIds, quoteId)
	}
	sort.Slice(quoteIds, func(i, j int) bool { return quoteIds[i] < quoteIds[j] })
	return quoteIds, nil
}

func (s Storage) GetQuotes(ctx context.Context, userId string) ([]domain.Quote, error) {
	quoteIds, err := s.userQuoteIds(ctx, userId)
	if err != nil {
		return nil, err
	}

	quotes := []domain.Quote{}
	for i := len(quoteIds) - 1; i >= 0; i-- {
		quote, err := s.GetQuote(ctx, userId, quoteIds[i])
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

func (s Storage) UpdateQuoteCurrentStage(ctx context.Context, userId string, quoteId int64, stage *string) error {
	quote, err := s.GetQuote(ctx, userId, quoteId)
	if err != nil {
		return err
	}
	quote.CurrentStage = stage

	record, err := marshal(quote)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, quoteKey(quoteId), record, 0).Err(); err != nil {
		return fmt.Errorf("failed to update quote current stage: %w", err)
	}
	return nil
}
