package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/kiwimedia/agentdesk/internal/mutation/dispatch"
	mutationRepository "github.com/kiwimedia/agentdesk/internal/mutation/repository"
	mutationUsecase "github.com/kiwimedia/agentdesk/internal/mutation/usecase"
)

// JobRepository returns the mutation job repository instance.
func (c *Container) JobRepository() (mutationUsecase.JobRepository, error) {
	c.jobRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["jobRepo"] = fmt.Errorf("failed to get database for job repository: %w", err)
			return
		}
		c.jobRepo = mutationRepository.NewPostgreSQLJobRepository(db)
	})
	if storedErr, exists := c.initErrors["jobRepo"]; exists {
		return nil, storedErr
	}
	return c.jobRepo, nil
}

// Dispatcher returns the HTTP dispatch adapter for the upstream subscription
// system.
func (c *Container) Dispatcher() (dispatch.Dispatcher, error) {
	c.dispatcherInit.Do(func() {
		c.dispatcher = dispatch.NewHTTPDispatcher(dispatch.Config{
			BaseURL:      c.config.DispatchBaseURL,
			Timeout:      c.config.DispatchTimeout,
			DryRun:       c.config.DispatchDryRun,
			RatePerSec:   c.config.DispatchRatePerSec,
			Burst:        c.config.DispatchBurst,
			ClientID:     c.config.DispatchClientID,
			ClientSecret: c.config.DispatchClientSecret,
		})
	})
	return c.dispatcher, nil
}

// JobUseCase returns the operator-facing mutation store use case.
func (c *Container) JobUseCase() (*mutationUsecase.JobUseCase, error) {
	c.jobUseCaseInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["jobUseCase"] = fmt.Errorf("failed to get tx manager for job use case: %w", err)
			return
		}

		jobRepo, err := c.JobRepository()
		if err != nil {
			c.initErrors["jobUseCase"] = fmt.Errorf("failed to get job repository for job use case: %w", err)
			return
		}

		auditUseCase, err := c.AuditUseCase()
		if err != nil {
			c.initErrors["jobUseCase"] = fmt.Errorf("failed to get audit use case for job use case: %w", err)
			return
		}

		c.jobUseCase = mutationUsecase.NewJobUseCase(
			txManager,
			jobRepo,
			auditUseCase,
			mutationUsecase.JobConfig{
				Enabled:     c.config.MutationStoreEnabled,
				MaxAttempts: c.config.MutationMaxAttempts,
				Retention:   c.config.MutationRetention,
			},
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["jobUseCase"]; exists {
		return nil, storedErr
	}
	return c.jobUseCase, nil
}

// Worker returns the mutation dispatch worker.
func (c *Container) Worker() (*mutationUsecase.Worker, error) {
	c.workerInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["worker"] = fmt.Errorf("failed to get tx manager for worker: %w", err)
			return
		}

		jobRepo, err := c.JobRepository()
		if err != nil {
			c.initErrors["worker"] = fmt.Errorf("failed to get job repository for worker: %w", err)
			return
		}

		dispatcher, err := c.Dispatcher()
		if err != nil {
			c.initErrors["worker"] = fmt.Errorf("failed to get dispatcher for worker: %w", err)
			return
		}

		auditUseCase, err := c.AuditUseCase()
		if err != nil {
			c.initErrors["worker"] = fmt.Errorf("failed to get audit use case for worker: %w", err)
			return
		}

		orchestrator, err := c.Orchestrator()
		if err != nil {
			c.initErrors["worker"] = fmt.Errorf("failed to get orchestrator for worker: %w", err)
			return
		}

		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["worker"] = fmt.Errorf("failed to get business metrics for worker: %w", err)
			return
		}

		c.worker = mutationUsecase.NewWorker(
			txManager,
			jobRepo,
			dispatcher,
			auditUseCase,
			orchestrator,
			businessMetrics,
			mutationUsecase.WorkerConfig{
				Enabled:         c.config.MutationStoreEnabled,
				WorkerID:        workerID(),
				BatchSize:       c.config.WorkerBatchSize,
				Sleep:           c.config.WorkerSleep,
				Lease:           c.config.MutationLease,
				DispatchTimeout: c.config.DispatchTimeout,
				MaxAge:          c.config.MutationMaxAge,
				SweepInterval:   c.config.WorkerSweepInterval,
			},
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["worker"]; exists {
		return nil, storedErr
	}
	return c.worker, nil
}

// workerID builds a claim owner id unique to this process.
func workerID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.Must(uuid.NewV7()).String())
}
