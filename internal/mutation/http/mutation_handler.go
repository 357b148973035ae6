// Package http provides HTTP handlers for the mutation store: enqueueing
// durable commands and inspecting or operating on stored jobs.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kiwimedia/agentdesk/internal/httputil"
	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
	"github.com/kiwimedia/agentdesk/internal/mutation/http/dto"
	"github.com/kiwimedia/agentdesk/internal/mutation/usecase"
	customValidation "github.com/kiwimedia/agentdesk/internal/validation"
)

// JobService is the mutation store surface the HTTP handlers call.
type JobService interface {
	Enqueue(ctx context.Context, input usecase.EnqueueInput) (*domain.Job, error)
	Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Job, error)
	List(ctx context.Context, filter domain.ListFilter, actor domain.Actor) (*domain.Page, error)
	Summarize(ctx context.Context, filter domain.SummaryFilter, actor domain.Actor) (domain.Summary, error)
	RequestRetry(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Job, error)
	RequestCancel(ctx context.Context, id uuid.UUID, actor domain.Actor, reason string) (*domain.Job, error)
}

// MutationHandler handles HTTP requests for the mutation store.
type MutationHandler struct {
	jobService JobService
	logger     *slog.Logger
}

// NewMutationHandler creates a new mutation handler with required dependencies.
func NewMutationHandler(jobService JobService, logger *slog.Logger) *MutationHandler {
	return &MutationHandler{
		jobService: jobService,
		logger:     logger,
	}
}

// EnqueueHandler stores a new mutation command.
// POST /v1/mutations - Returns 201 Created with the stored job. Resubmitting
// with a known clientRequestId returns the originally created job.
func (h *MutationHandler) EnqueueHandler(c *gin.Context) {
	var req dto.EnqueueMutationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	var clientRequestID *uuid.UUID
	if req.ClientRequestID != nil {
		parsed, err := uuid.Parse(*req.ClientRequestID)
		if err != nil {
			httputil.HandleValidationErrorGin(
				c,
				fmt.Errorf("invalid clientRequestId: %w", err),
				h.logger,
			)
			return
		}
		clientRequestID = &parsed
	}

	input := usecase.EnqueueInput{
		CommandType: domain.CommandType(req.CommandType),
		Payload: domain.JobPayload{
			Request:        req.Request,
			CustomerID:     req.CustomerID,
			SubscriptionID: req.SubscriptionID,
			CorrelationID:  httputil.CorrelationID(c),
		},
		ClientRequestID: clientRequestID,
		Actor:           actorFrom(c),
	}

	job, err := h.jobService.Enqueue(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapJobToResponse(job))
}

// ListHandler retrieves a page of mutation jobs.
// GET /v1/mutations - Supports status, customerId, createdBy, cursor and
// limit query parameters. Non-supervisors only ever see their own jobs.
func (h *MutationHandler) ListHandler(c *gin.Context) {
	cursor, limit, err := httputil.ParseCursorPagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	filter := domain.ListFilter{
		Cursor: cursor,
		Limit:  limit,
	}

	if value := c.Query("status"); value != "" {
		status := domain.Status(value)
		if !status.IsValid() {
			httputil.HandleBadRequestGin(c, fmt.Errorf("unknown status %q", value), h.logger)
			return
		}
		filter.Status = &status
	}

	customerID, err := parseCustomerID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	filter.CustomerID = customerID

	if value := c.Query("createdBy"); value != "" {
		filter.CreatedByUser = &value
	}

	page, err := h.jobService.List(c.Request.Context(), filter, actorFrom(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPageToResponse(page))
}

// SummaryHandler reports per-status job counts.
// GET /v1/mutations/summary - Supports an optional customerId filter.
func (h *MutationHandler) SummaryHandler(c *gin.Context) {
	customerID, err := parseCustomerID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	filter := domain.SummaryFilter{CustomerID: customerID}

	summary, err := h.jobService.Summarize(c.Request.Context(), filter, actorFrom(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSummaryToResponse(summary))
}

// GetHandler retrieves a single job with its payload and event history.
// GET /v1/mutations/:id
func (h *MutationHandler) GetHandler(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	job, err := h.jobService.Get(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToDetailResponse(job))
}

// RetryHandler re-activates a failed, cancelled or scheduled job.
// POST /v1/mutations/:id/retry - Requires an elevated role or job ownership.
func (h *MutationHandler) RetryHandler(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	job, err := h.jobService.RequestRetry(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}

// CancelHandler cancels a non-terminal job with an operator-supplied reason.
// POST /v1/mutations/:id/cancel - Requires an elevated role or job ownership.
func (h *MutationHandler) CancelHandler(c *gin.Context) {
	id, err := parseJobID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	var req dto.CancelMutationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	job, err := h.jobService.RequestCancel(c.Request.Context(), id, actorFrom(c), req.Reason)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}

// parseJobID extracts and validates the job id path parameter.
func parseJobID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job id: %w", err)
	}
	return id, nil
}

// parseCustomerID extracts the optional customerId query parameter.
func parseCustomerID(c *gin.Context) (*int64, error) {
	value := c.Query("customerId")
	if value == "" {
		return nil, nil
	}

	customerID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid customerId: %w", err)
	}

	return &customerID, nil
}

// actorFrom reads the authenticated actor placed on the context by the server
// middleware.
func actorFrom(c *gin.Context) domain.Actor {
	value, ok := c.Get(httputil.ContextActorKey)
	if !ok {
		return domain.Actor{}
	}

	actor, _ := value.(domain.Actor)
	return actor
}
