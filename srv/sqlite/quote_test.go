package sqlite

import (
	"context"
	"testing"

	"quoteflow/common"
	"quoteflow/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetQuote(t *testing.T) {
	storage := NewTestSqliteStorage(t, "quote_test")
	ctx := context.Background()

	orderForm := "https://files.example.com/order-form.pdf"
	fields := domain.DefaultQuotes[1]
	fields.GeneratedOrderFormUrl = &orderForm

	quote, err := storage.CreateQuote(ctx, domain.NewQuote("user_1", fields))
	require.NoError(t, err)
	assert.NotZero(t, quote.Id)

	retrieved, err := storage.GetQuote(ctx, "user_1", quote.Id)
	require.NoError(t, err)
	assert.Equal(t, "Mobile App Development", retrieved.Name)
	assert.Equal(t, "tech-solutions", retrieved.CustomerSlug)
	assert.Equal(t, "$25,000", retrieved.Amount)
	assert.Equal(t, &orderForm, retrieved.GeneratedOrderFormUrl)
	assert.Nil(t, retrieved.CurrentStage)
	assert.True(t, quote.Created.Equal(retrieved.Created))

	_, err = storage.GetQuote(ctx, "user_2", quote.Id)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetQuotes(t *testing.T) {
	storage := NewTestSqliteStorage(t, "quote_test")
	ctx := context.Background()

	for _, fields := range domain.DefaultQuotes[:3] {
		_, err := storage.CreateQuote(ctx, domain.NewQuote("user_1", fields))
		require.NoError(t, err)
	}
	_, err := storage.CreateQuote(ctx, domain.NewQuote("user_2", domain.DefaultQuotes[4]))
	require.NoError(t, err)

	quotes, err := storage.GetQuotes(ctx, "user_1")
	require.NoError(t, err)
	assert.Len(t, quotes, 3)

	quotes, err = storage.GetQuotes(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestUpdateQuoteCurrentStage(t *testing.T) {
	storage := NewTestSqliteStorage(t, "quote_test")
	ctx := context.Background()

	quote, err := storage.CreateQuote(ctx, domain.NewQuote("user_1", domain.DefaultQuotes[0]))
	require.NoError(t, err)

	stage := "Legal review"
	require.NoError(t, storage.UpdateQuoteCurrentStage(ctx, "user_1", quote.Id, &stage))
	retrieved, err := storage.GetQuote(ctx, "user_1", quote.Id)
	require.NoError(t, err)
	assert.Equal(t, &stage, retrieved.CurrentStage)

	require.NoError(t, storage.UpdateQuoteCurrentStage(ctx, "user_1", quote.Id, nil))
	retrieved, err = storage.GetQuote(ctx, "user_1", quote.Id)
	require.NoError(t, err)
	assert.Nil(t, retrieved.CurrentStage)

	err = storage.UpdateQuoteCurrentStage(ctx, "user_2", quote.Id, &stage)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
