package main

import (
	"context"
	"fmt"
	"os"

	"quoteflow/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "quoteflow",
		Usage:   "Quote approval workflows",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Base url of the quoteflow api",
				Sources: cli.EnvVars("QF_SERVER_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Api token, defaults to client.token from the config file",
				Sources: cli.EnvVars("QF_API_TOKEN"),
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewQuoteCommand(),
			NewSeedCommand(),
			NewBackfillCommand(),
			NewWorkflowCommand(),
			NewStepCommand(),
			NewLayerCommand(),
			NewStageCommand(),
		},
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Warning: failed to load .env file")
	}
	logger.Install()

	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
