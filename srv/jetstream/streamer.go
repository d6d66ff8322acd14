package jetstream

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Streamer struct {
	js jetstream.JetStream
}

const PersistentStreamName = "QUOTEFLOW_PERSISTENT"

func NewStreamer(nc *nats.Conn) (*Streamer, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Ensure the persistent stream exists (this is idempotent)
	_, err = js.CreateOrUpdateStream(context.Background(), jetstream.StreamConfig{
		Name:     PersistentStreamName,
		Subjects: []string{"workflow_steps.changes.*"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil && err != jetstream.ErrStreamNameAlreadyInUse {
		return nil, fmt.Errorf("failed to create persistent stream: %w", err)
	}

	return &Streamer{js: js}, nil
}
