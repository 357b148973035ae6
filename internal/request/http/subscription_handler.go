// Package http provides HTTP handlers for idempotent subscription requests.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/kiwimedia/agentdesk/internal/httputil"
	mutationDomain "github.com/kiwimedia/agentdesk/internal/mutation/domain"
	"github.com/kiwimedia/agentdesk/internal/request/usecase"
)

// idempotencyKeyHeader is the fallback source of the request id when the
// body carries none.
const idempotencyKeyHeader = "Idempotency-Key"

// SubscriptionService is the orchestrator surface the HTTP handlers call.
type SubscriptionService interface {
	Submit(ctx context.Context, input usecase.SubmitInput) (*usecase.Resolution, error)
	GetStatus(ctx context.Context, requestID string) (*usecase.Resolution, error)
}

// SubscriptionHandler handles HTTP requests for subscription creation.
type SubscriptionHandler struct {
	service SubscriptionService
	logger  *slog.Logger
}

// NewSubscriptionHandler creates a new subscription handler with required
// dependencies.
func NewSubscriptionHandler(service SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		logger:  logger,
	}
}

// SubmitHandler creates a subscription idempotently.
// POST /v1/subscriptions - The request id is taken from the body's requestId
// field or the Idempotency-Key header. The id itself is stripped from the
// payload before hashing so both transports hash identically.
//
// Responds 201 on synchronous success, 202 when the request fell back to a
// durable job, 409 when the request id was reused with a different payload.
func (h *SubscriptionHandler) SubmitHandler(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid JSON body: %w", err), h.logger)
		return
	}

	requestID := extractRequestID(c, payload)
	if requestID == "" {
		httputil.HandleBadRequestGin(
			c,
			fmt.Errorf("requestId is required in the body or the %s header", idempotencyKeyHeader),
			h.logger,
		)
		return
	}
	delete(payload, "requestId")

	normalized, err := json.Marshal(payload)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	input := usecase.SubmitInput{
		RequestID:     requestID,
		Payload:       normalized,
		Actor:         actorFrom(c),
		CorrelationID: httputil.CorrelationID(c),
	}

	resolution, err := h.service.Submit(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(resolution.HTTPStatus, resolution.Body)
}

// StatusHandler reports the state of a previously submitted request.
// GET /v1/subscriptions/requests/:request_id
func (h *SubscriptionHandler) StatusHandler(c *gin.Context) {
	requestID := c.Param("request_id")
	if requestID == "" {
		httputil.HandleBadRequestGin(c, fmt.Errorf("request id is required"), h.logger)
		return
	}

	resolution, err := h.service.GetStatus(c.Request.Context(), requestID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(resolution.HTTPStatus, resolution.Body)
}

// extractRequestID reads the request id from the payload or the idempotency
// header, in that order.
func extractRequestID(c *gin.Context, payload map[string]any) string {
	if value, ok := payload["requestId"].(string); ok && value != "" {
		return value
	}
	return c.GetHeader(idempotencyKeyHeader)
}

// actorFrom reads the authenticated actor placed on the context by the server
// middleware.
func actorFrom(c *gin.Context) mutationDomain.Actor {
	value, ok := c.Get(httputil.ContextActorKey)
	if !ok {
		return mutationDomain.Actor{}
	}

	actor, _ := value.(mutationDomain.Actor)
	return actor
}
