package srv

import (
	"context"

	"quoteflow/domain"
)

type Service interface {
	Storage
	Streamer
}

type Storage interface {
	domain.QuoteStorage
	domain.WorkflowStorage
	domain.WorkflowStepStorage

	CheckConnection(ctx context.Context) error
}

type Streamer interface {
	domain.WorkflowStepStreamer
}
