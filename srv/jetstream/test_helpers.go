package jetstream

import (
	"context"
	"fmt"
	"testing"

	"quoteflow/common"
	"quoteflow/nats"

	natspkg "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

const TestNatsServerPort = 28866

// NewTestStreamer starts an embedded NATS server with its own store dir.
// Tests using it must not run in parallel since they share the port.
func NewTestStreamer(t *testing.T) *Streamer {
	server, err := nats.NewTestServer(nats.ServerOptions{
		Port:            TestNatsServerPort,
		JetStreamDomain: "quoteflow_test",
		StoreDir:        t.TempDir(),
	})
	require.NoError(t, err)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(server.Shutdown)

	nc, err := natspkg.Connect(fmt.Sprintf("nats://%s:%d", common.GetNatsServerHost(), TestNatsServerPort))
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	streamer, err := NewStreamer(nc)
	require.NoError(t, err)

	return streamer
}
