package main

import (
	"context"
	"fmt"

	"quoteflow/domain"

	"github.com/urfave/cli/v3"
)

func NewQuoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "quotes",
		Usage: "List and create quotes",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List your quotes",
				Action: handleListQuotes,
			},
			{
				Name:  "create",
				Usage: "Create a quote along with its approval workflow",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "customer", Usage: "Customer slug", Required: true},
					&cli.StringFlag{Name: "amount", Required: true},
					&cli.StringFlag{Name: "owner", Required: true},
					&cli.StringFlag{Name: "status", Value: domain.DefaultQuoteStatus},
				},
				Action: handleCreateQuote,
			},
		},
	}
}

func handleListQuotes(ctx context.Context, cmd *cli.Command) error {
	env, err := loadCommandEnv(cmd)
	if err != nil {
		return err
	}
	quotes, err := env.client.GetQuotes(ctx, env.user)
	if err != nil {
		return err
	}
	renderQuotes(cmd.Root().Writer, quotes)
	return nil
}

func handleCreateQuote(ctx context.Context, cmd *cli.Command) error {
	env, err := loadCommandEnv(cmd)
	if err != nil {
		return err
	}
	fields := domain.QuoteFields{
		Name:         cmd.String("name"),
		CustomerSlug: cmd.String("customer"),
		Amount:       cmd.String("amount"),
		Owner:        cmd.String("owner"),
		Status:       cmd.String("status"),
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	quote, workflow, err := env.client.CreateQuote(ctx, env.user, fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "Created quote #%d %s\n", quote.Id, quote.Name)
	if workflow != nil {
		fmt.Fprintf(cmd.Root().Writer, "Workflow %s\n", workflow.Id)
	}
	return nil
}

func NewSeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create the sample quotes for your user",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := loadCommandEnv(cmd)
			if err != nil {
				return err
			}
			quotes, err := env.client.SeedDefaultQuotes(ctx, env.user)
			if len(quotes) > 0 {
				renderQuotes(cmd.Root().Writer, quotes)
			}
			return err
		},
	}
}

func NewBackfillCommand() *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "Create the approval workflow of every quote that has none",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := loadCommandEnv(cmd)
			if err != nil {
				return err
			}
			workflows, err := env.client.BackfillWorkflows(ctx, env.user)
			if err != nil {
				return err
			}
			for _, workflow := range workflows {
				fmt.Fprintf(cmd.Root().Writer, "Created workflow %s for quote #%d\n", workflow.Id, workflow.QuoteId)
			}
			fmt.Fprintf(cmd.Root().Writer, "%d workflows created\n", len(workflows))
			return nil
		},
	}
}
