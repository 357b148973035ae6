package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/kiwimedia/agentdesk/cmd/app/commands"
	"github.com/kiwimedia/agentdesk/internal/app"
	"github.com/kiwimedia/agentdesk/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP API server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "worker",
			Usage: "Start the mutation dispatch worker",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "once",
					Aliases: []string{"1"},
					Value:   false,
					Usage:   "Process a single batch and exit",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunWorker(ctx, version, cmd.Bool("once"))
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBConnectionString)
			},
		},
	}
}
