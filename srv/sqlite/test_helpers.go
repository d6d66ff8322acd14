package sqlite

import (
	"context"
	"testing"
	"time"

	"quoteflow/domain"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/require"
)

func NewTestSqliteStorage(t *testing.T, dbName string) *Storage {
	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	storage := NewStorage(client)
	require.NoError(t, storage.MigrateUp(dbName))

	return storage
}

// CreateTestWorkflow persists a quote owned by userId along with its
// workflow, which steps need as their parent.
func CreateTestWorkflow(t *testing.T, storage *Storage, userId string) domain.Workflow {
	ctx := context.Background()
	quote, err := storage.CreateQuote(ctx, domain.NewQuote(userId, domain.DefaultQuotes[0]))
	require.NoError(t, err)

	now := time.Now().UTC()
	workflow := domain.Workflow{
		Id:      "wf_" + ksuid.New().String(),
		QuoteId: quote.Id,
		UserId:  userId,
		Name:    domain.DefaultWorkflowName,
		Status:  domain.WorkflowStatusActive,
		Created: now,
		Updated: now,
	}
	require.NoError(t, storage.CreateWorkflow(ctx, workflow))
	return workflow
}
