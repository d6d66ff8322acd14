package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quoteflow"
	"quoteflow/api"
	"quoteflow/common"
	"quoteflow/logger"
	"quoteflow/telemetry"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Standalone API server, for running without the cli.
func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal().Err(err).Msg("Error loading .env file")
	}
	logger.Install()

	config, err := common.LoadLocalConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	shutdownTracer, err := telemetry.InitTracer("quoteflow-api")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracer")
	}
	defer shutdownTracer(context.Background())

	service, closer, err := quoteflow.GetService(config.Server)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize service")
	}
	defer closer.Close()

	ctrl, err := api.NewController(service, config.Server)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize controller")
	}
	srv, err := api.RunServer(ctrl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start API server")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
