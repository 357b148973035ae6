package app

import (
	"fmt"

	auditRepository "github.com/kiwimedia/agentdesk/internal/audit/repository"
	auditUsecase "github.com/kiwimedia/agentdesk/internal/audit/usecase"
)

// AuditRepository returns the audit event repository instance.
func (c *Container) AuditRepository() (auditUsecase.AuditRepository, error) {
	c.auditRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["auditRepo"] = fmt.Errorf("failed to get database for audit repository: %w", err)
			return
		}
		c.auditRepo = auditRepository.NewPostgreSQLAuditRepository(db)
	})
	if storedErr, exists := c.initErrors["auditRepo"]; exists {
		return nil, storedErr
	}
	return c.auditRepo, nil
}

// AuditUseCase returns the audit trail use case instance.
func (c *Container) AuditUseCase() (*auditUsecase.AuditUseCase, error) {
	c.auditUseCaseInit.Do(func() {
		auditRepo, err := c.AuditRepository()
		if err != nil {
			c.initErrors["auditUseCase"] = fmt.Errorf("failed to get audit repository for audit use case: %w", err)
			return
		}
		c.auditUseCase = auditUsecase.NewAuditUseCase(auditRepo, c.config.AuditRetention, c.Logger())
	})
	if storedErr, exists := c.initErrors["auditUseCase"]; exists {
		return nil, storedErr
	}
	return c.auditUseCase, nil
}
