package app

import (
	"fmt"

	requestRepository "github.com/kiwimedia/agentdesk/internal/request/repository"
	requestUsecase "github.com/kiwimedia/agentdesk/internal/request/usecase"
)

// RequestRepository returns the operation request repository instance.
func (c *Container) RequestRepository() (requestUsecase.RequestRepository, error) {
	c.requestRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["requestRepo"] = fmt.Errorf("failed to get database for request repository: %w", err)
			return
		}
		c.requestRepo = requestRepository.NewPostgreSQLRequestRepository(db)
	})
	if storedErr, exists := c.initErrors["requestRepo"]; exists {
		return nil, storedErr
	}
	return c.requestRepo, nil
}

// Orchestrator returns the idempotent subscription request orchestrator.
func (c *Container) Orchestrator() (*requestUsecase.Orchestrator, error) {
	c.orchestratorInit.Do(func() {
		requestRepo, err := c.RequestRepository()
		if err != nil {
			c.initErrors["orchestrator"] = fmt.Errorf("failed to get request repository for orchestrator: %w", err)
			return
		}

		jobUseCase, err := c.JobUseCase()
		if err != nil {
			c.initErrors["orchestrator"] = fmt.Errorf("failed to get job use case for orchestrator: %w", err)
			return
		}

		dispatcher, err := c.Dispatcher()
		if err != nil {
			c.initErrors["orchestrator"] = fmt.Errorf("failed to get dispatcher for orchestrator: %w", err)
			return
		}

		auditUseCase, err := c.AuditUseCase()
		if err != nil {
			c.initErrors["orchestrator"] = fmt.Errorf("failed to get audit use case for orchestrator: %w", err)
			return
		}

		c.orchestrator = requestUsecase.NewOrchestrator(
			requestRepo,
			jobUseCase,
			dispatcher,
			auditUseCase,
			requestUsecase.OrchestratorConfig{
				Enabled:       c.config.MutationStoreEnabled,
				InlineTimeout: c.config.OrchestratorInlineTimeout,
				MaxAttempts:   c.config.OrchestratorMaxAttempts,
			},
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["orchestrator"]; exists {
		return nil, storedErr
	}
	return c.orchestrator, nil
}
