package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/kiwimedia/agentdesk/cmd/app/commands"
	"github.com/kiwimedia/agentdesk/internal/app"
	"github.com/kiwimedia/agentdesk/internal/config"
)

func getMaintenanceCommands() []*cli.Command {
	formatFlag := func() *cli.StringFlag {
		return &cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   "text",
			Usage:   "Output format: 'text' or 'json'",
		}
	}
	dryRunFlag := func() *cli.BoolFlag {
		return &cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Value:   false,
			Usage:   "Show how many rows would be deleted without deleting",
		}
	}

	return []*cli.Command{
		{
			Name:  "clean-mutations",
			Usage: "Delete mutation jobs past their retention window",
			Flags: []cli.Flag{
				dryRunFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				jobRepo, err := container.JobRepository()
				if err != nil {
					return err
				}

				return commands.RunCleanMutations(
					ctx,
					jobRepo,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "clean-audit-logs",
			Usage: "Delete audit events past their retention window",
			Flags: []cli.Flag{
				dryRunFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				auditUseCase, err := container.AuditUseCase()
				if err != nil {
					return err
				}

				return commands.RunCleanAuditLogs(
					ctx,
					auditUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
	}
}
