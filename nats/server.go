package nats

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"quoteflow/common"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServerOptions configures the embedded NATS server that backs the
// jetstream change feed.
type ServerOptions struct {
	Port            int
	JetStreamDomain string
	// StoreDir holds JetStream file storage.
	StoreDir   string
	ServerName string

	// Defaults to 256MB when zero.
	JetStreamMaxMemory int64
	// Defaults to 4GB when zero.
	JetStreamMaxStore int64
}

type Server struct {
	natsServer *server.Server
	log        zerolog.Logger
	startOnce  sync.Once
}

var (
	embedded     *Server
	embeddedErr  error
	embeddedOnce sync.Once
)

// GetOrNewServer returns the process-wide embedded server, creating it on
// first use.
func GetOrNewServer() (*Server, error) {
	embeddedOnce.Do(func() {
		embedded, embeddedErr = newServer()
	})
	return embedded, embeddedErr
}

func newServer() (*Server, error) {
	dataHome, err := common.GetDataHome()
	if err != nil {
		return nil, fmt.Errorf("failed to get quoteflow data home: %w", err)
	}

	return newServerWithOptions(ServerOptions{
		Port:            common.GetNatsServerPort(),
		JetStreamDomain: "quoteflow_embedded",
		StoreDir:        filepath.Join(dataHome, "nats-jetstream"),
		ServerName:      "quoteflow_embedded_nats_server",
	})
}

func NewTestServer(opts ServerOptions) (*Server, error) {
	return newServerWithOptions(opts)
}

func newServerWithOptions(opts ServerOptions) (*Server, error) {
	if opts.JetStreamMaxMemory == 0 {
		opts.JetStreamMaxMemory = 256 * 1024 * 1024
	}
	if opts.JetStreamMaxStore == 0 {
		opts.JetStreamMaxStore = 4 * 1024 * 1024 * 1024
	}

	natsServer, err := server.NewServer(&server.Options{
		ServerName:         opts.ServerName,
		Host:               common.GetNatsServerHost(),
		Port:               opts.Port,
		JetStream:          true,
		JetStreamDomain:    opts.JetStreamDomain,
		StoreDir:           opts.StoreDir,
		JetStreamMaxMemory: opts.JetStreamMaxMemory,
		JetStreamMaxStore:  opts.JetStreamMaxStore,
		// the api server and cli connect over the port, never in-process
		DontListen: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}
	natsServer.SetLogger(newNATSLogger(), false, false)

	return &Server{
		natsServer: natsServer,
		log:        log.With().Str("component", "nats-server").Logger(),
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.natsServer.Start()
	})

	if !s.natsServer.ReadyForConnections(5 * time.Second) {
		return fmt.Errorf("NATS server failed to start within 5s timeout")
	}
	s.log.Info().Str("url", s.natsServer.ClientURL()).Msg("NATS server ready")
	return nil
}

// Stop drains clients before shutting down.
func (s *Server) Stop() error {
	s.natsServer.LameDuckShutdown()
	return nil
}

// Shutdown stops the server immediately and waits for it to exit.
func (s *Server) Shutdown() {
	s.natsServer.Shutdown()
	s.natsServer.WaitForShutdown()
}

func newNATSLogger() server.Logger {
	return &natsLogger{
		log: log.With().Str("component", "nats").Logger().Level(zerolog.WarnLevel),
	}
}

// natsLogger forwards NATS server logs to zerolog.
type natsLogger struct {
	log zerolog.Logger
}

func (n *natsLogger) Noticef(format string, v ...interface{}) { n.log.Info().Msgf(format, v...) }
func (n *natsLogger) Warnf(format string, v ...interface{})   { n.log.Warn().Msgf(format, v...) }
func (n *natsLogger) Fatalf(format string, v ...interface{})  { n.log.Fatal().Msgf(format, v...) }
func (n *natsLogger) Errorf(format string, v ...interface{})  { n.log.Error().Msgf(format, v...) }
func (n *natsLogger) Debugf(format string, v ...interface{})  { n.log.Debug().Msgf(format, v...) }
func (n *natsLogger) Tracef(format string, v ...interface{})  { n.log.Trace().Msgf(format, v...) }
