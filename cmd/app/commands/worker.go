package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiwimedia/agentdesk/internal/app"
	"github.com/kiwimedia/agentdesk/internal/config"
)

// RunWorker starts the mutation dispatch worker. With once set, a single
// claim batch is processed and the process exits; otherwise the worker polls
// until receiving SIGINT/SIGTERM.
func RunWorker(ctx context.Context, version string, once bool) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting mutation worker",
		slog.String("version", version),
		slog.Bool("once", once),
	)

	defer closeContainer(container, logger)

	worker, err := container.Worker()
	if err != nil {
		return fmt.Errorf("failed to initialize worker: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if once {
		processed, err := worker.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("worker batch failed: %w", err)
		}
		logger.Info("worker batch completed", slog.Int("processed", processed))
		return nil
	}

	if err := worker.Run(ctx); err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}

	logger.Info("worker stopped")
	return nil
}
