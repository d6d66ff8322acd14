package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quoteflow"
	"quoteflow/api"
	"quoteflow/common"
	"quoteflow/nats"
	"quoteflow/telemetry"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the quoteflow api server",
		Description: "Serves the api with the storage and streamer from the config file. " +
			"The embedded NATS server is started with --nats, or whenever the jetstream streamer is configured.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "nats",
				Aliases: []string{"n"},
				Usage:   "Start the embedded NATS server",
			},
		},
		Action: handleServeCommand,
	}
}

func handleServeCommand(ctx context.Context, cmd *cli.Command) error {
	config, err := common.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTracer, err := telemetry.InitTracer("quoteflow-api")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to shut down tracer")
		}
	}()

	if cmd.Bool("nats") || config.Server.Streamer == common.StreamerTypeJetstream {
		log.Info().Msg("Starting NATS server...")
		natsServer, err := nats.GetOrNewServer()
		if err != nil {
			return fmt.Errorf("failed to create NATS server: %w", err)
		}
		if err := natsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start NATS server: %w", err)
		}
		defer func() {
			log.Info().Msg("Stopping NATS server...")
			if err := natsServer.Stop(); err != nil {
				log.Error().Err(err).Msg("Error stopping NATS server")
			}
		}()
	}

	service, closer, err := quoteflow.GetService(config.Server)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer closer.Close()

	ctrl, err := api.NewController(service, config.Server)
	if err != nil {
		return err
	}
	srv, err := api.RunServer(ctrl)
	if err != nil {
		return err
	}

	if waitForServer(5 * time.Second) {
		fmt.Printf("quoteflow %s listening on %s\n", version, common.GetServerBaseURL())
	} else {
		log.Warn().Msg("Server did not become ready in time")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received...")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful API server shutdown failed")
	}
	log.Info().Msg("Shut down gracefully")
	return nil
}

// waitForServer polls the health endpoint until it responds or times out
func waitForServer(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if checkServerStatus(common.GetServerBaseURL()) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func checkServerStatus(baseURL string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(baseURL + "/healthz")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
