package main

import (
	"context"
	"fmt"
	"time"

	"quoteflow/client"
	"quoteflow/common"
	"quoteflow/domain"
	"quoteflow/workflow_sync"

	"github.com/erikgeiser/promptkit/selection"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func quoteFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "quote",
		Aliases: []string{"q"},
		Usage:   "Quote id, prompted for when omitted",
	}
}

func stepFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "step",
		Aliases:  []string{"s"},
		Usage:    "Step id",
		Required: true,
	}
}

func newClient(cmd *cli.Command) *client.Client {
	if url := cmd.String("server"); url != "" {
		return client.NewClient(url)
	}
	return client.NewDefaultClient()
}

func userSession(cmd *cli.Command, config common.LocalConfig) domain.UserSession {
	token := cmd.String("token")
	if token == "" {
		token = config.Client.Token
	}
	return domain.UserSession{AccessToken: token}
}

// commandEnv is what every client command needs: the api client, the user
// and the loaded config.
type commandEnv struct {
	client *client.Client
	user   domain.UserSession
	config common.LocalConfig
}

func loadCommandEnv(cmd *cli.Command) (commandEnv, error) {
	config, err := common.LoadLocalConfig()
	if err != nil {
		return commandEnv{}, fmt.Errorf("failed to load config: %w", err)
	}
	return commandEnv{
		client: newClient(cmd),
		user:   userSession(cmd, config),
		config: config,
	}, nil
}

// resolveQuoteId returns --quote, or lets the user pick one of their quotes.
func resolveQuoteId(ctx context.Context, cmd *cli.Command, env commandEnv) (int64, error) {
	if id := int64(cmd.Int("quote")); id != 0 {
		return id, nil
	}

	quotes, err := env.client.GetQuotes(ctx, env.user)
	if err != nil {
		return 0, err
	}
	if len(quotes) == 0 {
		return 0, cli.Exit("No quotes yet, create one with `quoteflow quotes create` or `quoteflow seed`.", 1)
	}

	labels := make([]string, len(quotes))
	for i, quote := range quotes {
		labels[i] = quoteLabel(quote)
	}
	choice, err := selection.New("Select a quote", labels).RunPrompt()
	if err != nil {
		return 0, err
	}
	for i, label := range labels {
		if label == choice {
			return quotes[i].Id, nil
		}
	}
	return 0, fmt.Errorf("unknown quote %q", choice)
}

func quoteLabel(quote domain.Quote) string {
	return fmt.Sprintf("#%d %s (%s)", quote.Id, quote.Name, quote.CustomerSlug)
}

// withSession opens the workflow of the selected quote, runs fn against it
// and prints the resulting layers. Background calls are flushed before
// returning.
func withSession(fn func(ctx context.Context, cmd *cli.Command, session *workflow_sync.Session) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		env, err := loadCommandEnv(cmd)
		if err != nil {
			return err
		}
		quoteId, err := resolveQuoteId(ctx, cmd, env)
		if err != nil {
			return err
		}

		session := workflow_sync.NewSession(env.client, env.user,
			workflow_sync.WithEditDebounce(env.config.Client.EditDebounce),
		)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := session.Close(closeCtx); err != nil {
				log.Error().Err(err).Msg("Failed to flush pending workflow changes")
			}
		}()

		if err := session.Open(ctx, quoteId); err != nil {
			return err
		}
		if err := fn(ctx, cmd, session); err != nil {
			return err
		}
		if err := session.Flush(ctx); err != nil {
			return err
		}
		if err := session.Err(); err != nil {
			return err
		}

		renderWorkflow(cmd.Root().Writer, session.Workflow(), session.Layers(), session.CurrentStepId())
		return nil
	}
}
