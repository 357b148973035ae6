// Package usecase implements the idempotent subscription request
// orchestrator: synchronous dispatch first, durable queue fallback when the
// upstream is slow or down.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/kiwimedia/agentdesk/internal/audit/domain"
	apperrors "github.com/kiwimedia/agentdesk/internal/errors"
	"github.com/kiwimedia/agentdesk/internal/mutation/dispatch"
	mutationDomain "github.com/kiwimedia/agentdesk/internal/mutation/domain"
	mutationUsecase "github.com/kiwimedia/agentdesk/internal/mutation/usecase"
	"github.com/kiwimedia/agentdesk/internal/request/domain"
)

// OrchestratorConfig holds the orchestrator tunables.
type OrchestratorConfig struct {
	Enabled       bool
	InlineTimeout time.Duration
	MaxAttempts   int
}

// SubmitInput is one idempotent subscription request.
type SubmitInput struct {
	RequestID     string
	Payload       json.RawMessage
	Actor         mutationDomain.Actor
	CorrelationID string
}

// Resolution is the orchestrator's answer to a submit or status call: the
// HTTP status to return and the response document.
type Resolution struct {
	HTTPStatus int
	Body       map[string]any
}

// Orchestrator coordinates idempotent subscription creation. A request is
// tried synchronously within a bounded timeout; a transient upstream failure
// falls back to a durable mutation job whose terminal outcome later resolves
// the request record.
type Orchestrator struct {
	requestRepo RequestRepository
	enqueuer    JobEnqueuer
	dispatcher  dispatch.Dispatcher
	audit       AuditRecorder
	config      OrchestratorConfig
	logger      *slog.Logger
}

// NewOrchestrator creates a new Orchestrator with the provided dependencies.
func NewOrchestrator(
	requestRepo RequestRepository,
	enqueuer JobEnqueuer,
	dispatcher dispatch.Dispatcher,
	audit AuditRecorder,
	config OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		requestRepo: requestRepo,
		enqueuer:    enqueuer,
		dispatcher:  dispatcher,
		audit:       audit,
		config:      config,
		logger:      logger,
	}
}

// Submit handles one subscription request. A replayed request id returns the
// recorded outcome verbatim when the payload matches, and a conflict when it
// does not.
func (o *Orchestrator) Submit(ctx context.Context, input SubmitInput) (*Resolution, error) {
	if !o.config.Enabled {
		return nil, apperrors.ErrStoreDisabled
	}

	payloadHash, err := domain.CanonicalPayloadHash(input.Payload)
	if err != nil {
		return nil, err
	}

	existing, err := o.requestRepo.GetByRequestID(ctx, input.RequestID)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.PayloadHash != payloadHash {
			return &Resolution{
				HTTPStatus: http.StatusConflict,
				Body: map[string]any{
					"status":    "conflict",
					"requestId": input.RequestID,
					"message":   "Idempotency key already used with different payload",
				},
			}, nil
		}
		return replayResolution(existing), nil
	}

	jobPayload := mutationDomain.JobPayload{
		Request:       input.Payload,
		RequestID:     input.RequestID,
		CorrelationID: input.CorrelationID,
	}
	if err := mutationDomain.ValidatePayload(mutationDomain.CommandSignup, jobPayload); err != nil {
		return nil, err
	}

	record := &domain.OperationRequest{
		RequestID:     input.RequestID,
		OperationType: domain.OperationSubscriptionCreate,
		PayloadHash:   payloadHash,
		Status:        domain.StatusPending,
	}
	if input.CorrelationID != "" {
		correlationID := input.CorrelationID
		record.CorrelationID = &correlationID
	}
	if err := o.requestRepo.Create(ctx, record); err != nil {
		// A concurrent submit with the same request id won the insert.
		if apperrors.Is(err, apperrors.ErrConflict) {
			return o.Submit(ctx, input)
		}
		return nil, err
	}

	var payloadSnapshot map[string]any
	if err := json.Unmarshal(input.Payload, &payloadSnapshot); err == nil {
		o.recordAudit(ctx, input, auditDomain.EventSubscriptionRequested,
			payloadSnapshot, map[string]any{"mode": "sync-first"})
	}

	outcome := o.dispatchInline(ctx, jobPayload)
	switch {
	case outcome.Success:
		return o.resolveSucceeded(ctx, input, outcome)
	case outcome.Retryable:
		return o.resolveQueued(ctx, input, jobPayload, outcome)
	default:
		return o.resolveFailed(ctx, input, outcome)
	}
}

// GetStatus reports the current state of a previously submitted request.
func (o *Orchestrator) GetStatus(ctx context.Context, requestID string) (*Resolution, error) {
	if !o.config.Enabled {
		return nil, apperrors.ErrStoreDisabled
	}

	existing, err := o.requestRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return &Resolution{
				HTTPStatus: http.StatusNotFound,
				Body:       map[string]any{"status": "not_found", "requestId": requestID},
			}, nil
		}
		return nil, err
	}

	switch existing.Status {
	case domain.StatusSucceeded:
		result := existing.Result
		if result == nil {
			result = map[string]any{}
		}
		return &Resolution{
			HTTPStatus: http.StatusOK,
			Body: map[string]any{
				"status":    "succeeded",
				"requestId": requestID,
				"result":    result,
			},
		}, nil
	case domain.StatusPending, domain.StatusQueued:
		return &Resolution{
			HTTPStatus: http.StatusOK,
			Body: map[string]any{
				"status":    "pending",
				"requestId": requestID,
				"result":    existing.Result,
			},
		}, nil
	default:
		return &Resolution{
			HTTPStatus: http.StatusOK,
			Body: map[string]any{
				"status":    "failed",
				"requestId": requestID,
				"error":     existing.Error,
			},
		}, nil
	}
}

// ResolveDelivered closes the request record after its fallback job was
// delivered.
func (o *Orchestrator) ResolveDelivered(ctx context.Context, requestID string, job *mutationDomain.Job) error {
	err := o.requestRepo.UpdateStatus(ctx, requestID, domain.StatusSucceeded,
		map[string]any{"jobId": job.ID.String()}, nil, true)
	if err != nil {
		return err
	}

	o.audit.RecordBestEffort(ctx, &auditDomain.Event{
		EventType:     auditDomain.EventSubscriptionSucceeded,
		EntityType:    auditDomain.EntitySubscriptionRequest,
		EntityID:      requestID,
		RequestID:     &requestID,
		CorrelationID: correlationOf(job),
		AfterRedacted: map[string]any{"jobId": job.ID.String()},
	})
	return nil
}

// ResolveFailed closes the request record after its fallback job failed for
// good.
func (o *Orchestrator) ResolveFailed(ctx context.Context, requestID string, job *mutationDomain.Job) error {
	errorDetail := map[string]any{"code": "retry_exhausted"}
	if job.LastErrorCode != nil {
		errorDetail["code"] = *job.LastErrorCode
	}
	if job.LastErrorMsg != nil {
		errorDetail["message"] = *job.LastErrorMsg
	}

	err := o.requestRepo.UpdateStatus(ctx, requestID, domain.StatusFailed, nil, errorDetail, true)
	if err != nil {
		return err
	}

	o.audit.RecordBestEffort(ctx, &auditDomain.Event{
		EventType:     auditDomain.EventSubscriptionFailed,
		EntityType:    auditDomain.EntitySubscriptionRequest,
		EntityID:      requestID,
		RequestID:     &requestID,
		CorrelationID: correlationOf(job),
		AfterRedacted: errorDetail,
	})
	return nil
}

// dispatchInline runs one synchronous attempt with an ephemeral job. The job
// is never persisted; only its classified outcome matters here.
func (o *Orchestrator) dispatchInline(
	ctx context.Context,
	jobPayload mutationDomain.JobPayload,
) dispatch.Outcome {
	job := &mutationDomain.Job{
		ID:          uuid.Must(uuid.NewV7()),
		CommandType: mutationDomain.CommandSignup,
		Payload:     jobPayload,
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, o.config.InlineTimeout)
	defer cancel()

	return o.dispatcher.Dispatch(dispatchCtx, job)
}

func (o *Orchestrator) resolveSucceeded(
	ctx context.Context,
	input SubmitInput,
	outcome dispatch.Outcome,
) (*Resolution, error) {
	var upstream map[string]any
	_ = json.Unmarshal(outcome.Body, &upstream)

	subscriptionID := upstream["subscriptionId"]
	if subscriptionID == nil {
		subscriptionID = upstream["id"]
	}

	err := o.requestRepo.UpdateStatus(ctx, input.RequestID, domain.StatusSucceeded,
		map[string]any{"upstream": upstream, "subscriptionId": subscriptionID}, nil, true)
	if err != nil {
		return nil, err
	}

	o.recordAudit(ctx, input, auditDomain.EventSubscriptionSucceeded,
		map[string]any{"subscriptionId": subscriptionID}, nil)

	return &Resolution{
		HTTPStatus: http.StatusCreated,
		Body: map[string]any{
			"status":         "succeeded",
			"requestId":      input.RequestID,
			"subscriptionId": subscriptionID,
		},
	}, nil
}

func (o *Orchestrator) resolveQueued(
	ctx context.Context,
	input SubmitInput,
	jobPayload mutationDomain.JobPayload,
	outcome dispatch.Outcome,
) (*Resolution, error) {
	job, err := o.enqueuer.Enqueue(ctx, mutationUsecase.EnqueueInput{
		CommandType: mutationDomain.CommandSignup,
		Payload:     jobPayload,
		Actor:       input.Actor,
		MaxAttempts: o.config.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	err = o.requestRepo.UpdateStatus(ctx, input.RequestID, domain.StatusQueued,
		map[string]any{"jobId": job.ID.String(), "status": "pending"}, nil, false)
	if err != nil {
		return nil, err
	}

	o.recordAudit(ctx, input, auditDomain.EventSubscriptionQueued,
		map[string]any{"jobId": job.ID.String(), "reason": outcome.ErrorMessage}, nil)

	o.logger.Info("subscription request queued",
		slog.String("request_id", input.RequestID),
		slog.String("job_id", job.ID.String()),
		slog.String("error_code", outcome.ErrorCode),
	)

	return &Resolution{
		HTTPStatus: http.StatusAccepted,
		Body: map[string]any{
			"status":    "pending",
			"requestId": input.RequestID,
			"jobId":     job.ID.String(),
		},
	}, nil
}

func (o *Orchestrator) resolveFailed(
	ctx context.Context,
	input SubmitInput,
	outcome dispatch.Outcome,
) (*Resolution, error) {
	errorDetail := map[string]any{
		"code":    outcome.ErrorCode,
		"message": outcome.ErrorMessage,
	}

	err := o.requestRepo.UpdateStatus(ctx, input.RequestID, domain.StatusFailed,
		nil, errorDetail, true)
	if err != nil {
		return nil, err
	}

	o.recordAudit(ctx, input, auditDomain.EventSubscriptionFailed,
		map[string]any{"error": outcome.ErrorMessage},
		map[string]any{"statusCode": httpStatusOf(outcome)})

	return &Resolution{
		HTTPStatus: httpStatusOf(outcome),
		Body: map[string]any{
			"status":    "failed",
			"requestId": input.RequestID,
			"error":     outcome.ErrorMessage,
		},
	}, nil
}

// replayResolution reproduces the response of an already-recorded request.
func replayResolution(existing *domain.OperationRequest) *Resolution {
	switch existing.Status {
	case domain.StatusSucceeded:
		result := existing.Result
		if result == nil {
			result = map[string]any{}
		}
		return &Resolution{
			HTTPStatus: http.StatusCreated,
			Body: map[string]any{
				"status":         "succeeded",
				"requestId":      existing.RequestID,
				"subscriptionId": result["subscriptionId"],
			},
		}
	case domain.StatusPending, domain.StatusQueued:
		result := existing.Result
		if result == nil {
			result = map[string]any{}
		}
		return &Resolution{
			HTTPStatus: http.StatusAccepted,
			Body: map[string]any{
				"status":    "pending",
				"requestId": existing.RequestID,
				"jobId":     result["jobId"],
			},
		}
	default:
		return &Resolution{
			HTTPStatus: http.StatusOK,
			Body: map[string]any{
				"status":    "failed",
				"requestId": existing.RequestID,
				"error":     existing.Error,
			},
		}
	}
}

func (o *Orchestrator) recordAudit(
	ctx context.Context,
	input SubmitInput,
	eventType string,
	after map[string]any,
	metadata map[string]any,
) {
	event := &auditDomain.Event{
		EventType:     eventType,
		EntityType:    auditDomain.EntitySubscriptionRequest,
		EntityID:      input.RequestID,
		RequestID:     &input.RequestID,
		AfterRedacted: after,
		Metadata:      metadata,
	}
	if input.Actor.User != "" {
		actor := input.Actor.User
		event.ActorID = &actor
	}
	if input.CorrelationID != "" {
		correlationID := input.CorrelationID
		event.CorrelationID = &correlationID
	}
	o.audit.RecordBestEffort(ctx, event)
}

// httpStatusOf picks the response status of a failed synchronous attempt:
// the upstream status when there was one, 502 for transport-level failures.
func httpStatusOf(outcome dispatch.Outcome) int {
	if outcome.HTTPStatus != nil && *outcome.HTTPStatus >= http.StatusBadRequest {
		return *outcome.HTTPStatus
	}
	return http.StatusBadGateway
}

func correlationOf(job *mutationDomain.Job) *string {
	if job.Payload.CorrelationID == "" {
		return nil
	}
	correlationID := job.Payload.CorrelationID
	return &correlationID
}
