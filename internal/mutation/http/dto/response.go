package dto

import (
	"encoding/json"
	"time"

	mutationDomain "github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

// MutationResponse represents a mutation job in API responses. The raw
// command payload is only included in detail responses.
type MutationResponse struct {
	ID              string           `json:"id"`
	CommandType     string           `json:"commandType"`
	OrderingKey     string           `json:"orderingKey"`
	Status          string           `json:"status"`
	AttemptCount    int              `json:"attemptCount"`
	MaxAttempts     int              `json:"maxAttempts"`
	NextAttemptAt   time.Time        `json:"nextAttemptAt"`
	FirstAttemptAt  *time.Time       `json:"firstAttemptAt,omitempty"`
	LastAttemptAt   *time.Time       `json:"lastAttemptAt,omitempty"`
	LastErrorCode   *string          `json:"lastErrorCode,omitempty"`
	LastErrorMsg    *string          `json:"lastErrorMessage,omitempty"`
	LastHTTPStatus  *int             `json:"lastHttpStatus,omitempty"`
	FailureClass    *string          `json:"failureClass,omitempty"`
	CreatedByUser   *string          `json:"createdByUser,omitempty"`
	CustomerID      *int64           `json:"customerId,omitempty"`
	SubscriptionID  *int64           `json:"subscriptionId,omitempty"`
	ClientRequestID *string          `json:"clientRequestId,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
	CancelReason    *string          `json:"cancelReason,omitempty"`
	Request         json.RawMessage  `json:"request,omitempty"`
	Events          []EventResponse  `json:"events,omitempty"`
}

// EventResponse represents one entry of a job's event history.
type EventResponse struct {
	ID             int64          `json:"id"`
	EventType      string         `json:"eventType"`
	PreviousStatus *string        `json:"previousStatus,omitempty"`
	NextStatus     *string        `json:"nextStatus,omitempty"`
	AttemptCount   *int           `json:"attemptCount,omitempty"`
	ErrorCode      *string        `json:"errorCode,omitempty"`
	ErrorMessage   *string        `json:"errorMessage,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// ListMutationsResponse is a keyset-paginated page of jobs.
type ListMutationsResponse struct {
	Items      []MutationResponse `json:"items"`
	NextCursor *string            `json:"nextCursor,omitempty"`
}

// SummaryResponse reports per-status job counts plus derived totals.
type SummaryResponse struct {
	Queued         int `json:"queued"`
	Dispatching    int `json:"dispatching"`
	RetryScheduled int `json:"retryScheduled"`
	Delivered      int `json:"delivered"`
	Failed         int `json:"failed"`
	Cancelled      int `json:"cancelled"`
	Pending        int `json:"pending"`
	Total          int `json:"total"`
}

// MapJobToResponse converts a domain job to an API response without payload
// or event history.
func MapJobToResponse(job *mutationDomain.Job) MutationResponse {
	response := MutationResponse{
		ID:             job.ID.String(),
		CommandType:    string(job.CommandType),
		OrderingKey:    job.OrderingKey,
		Status:         string(job.Status),
		AttemptCount:   job.AttemptCount,
		MaxAttempts:    job.MaxAttempts,
		NextAttemptAt:  job.NextAttemptAt,
		FirstAttemptAt: job.FirstAttemptAt,
		LastAttemptAt:  job.LastAttemptAt,
		LastErrorCode:  job.LastErrorCode,
		LastErrorMsg:   job.LastErrorMsg,
		LastHTTPStatus: job.LastHTTPStatus,
		CreatedByUser:  job.CreatedByUser,
		CustomerID:     job.CustomerID,
		SubscriptionID: job.SubscriptionID,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
		CompletedAt:    job.CompletedAt,
		CancelReason:   job.CancelReason,
	}
	if job.FailureClass != nil {
		failureClass := string(*job.FailureClass)
		response.FailureClass = &failureClass
	}
	if job.ClientRequestID != nil {
		clientRequestID := job.ClientRequestID.String()
		response.ClientRequestID = &clientRequestID
	}
	return response
}

// MapJobToDetailResponse converts a domain job to an API response including
// the command payload and the event history.
func MapJobToDetailResponse(job *mutationDomain.Job) MutationResponse {
	response := MapJobToResponse(job)
	response.Request = job.Payload.Request
	response.Events = make([]EventResponse, 0, len(job.Events))
	for _, event := range job.Events {
		response.Events = append(response.Events, mapEvent(event))
	}
	return response
}

// MapPageToResponse converts a page of jobs to an API response.
func MapPageToResponse(page *mutationDomain.Page) ListMutationsResponse {
	response := ListMutationsResponse{
		Items: make([]MutationResponse, 0, len(page.Items)),
	}
	for _, job := range page.Items {
		response.Items = append(response.Items, MapJobToResponse(job))
	}
	if page.NextCursor != nil {
		cursor := page.NextCursor.String()
		response.NextCursor = &cursor
	}
	return response
}

// MapSummaryToResponse converts a status summary to an API response.
func MapSummaryToResponse(summary mutationDomain.Summary) SummaryResponse {
	return SummaryResponse{
		Queued:         summary.Queued,
		Dispatching:    summary.Dispatching,
		RetryScheduled: summary.RetryScheduled,
		Delivered:      summary.Delivered,
		Failed:         summary.Failed,
		Cancelled:      summary.Cancelled,
		Pending:        summary.Pending(),
		Total:          summary.Total(),
	}
}

func mapEvent(event *mutationDomain.Event) EventResponse {
	response := EventResponse{
		ID:           event.ID,
		EventType:    string(event.EventType),
		AttemptCount: event.AttemptCount,
		ErrorCode:    event.ErrorCode,
		ErrorMessage: event.ErrorMessage,
		Metadata:     event.Metadata,
		CreatedAt:    event.CreatedAt,
	}
	if event.PreviousStatus != nil {
		previous := string(*event.PreviousStatus)
		response.PreviousStatus = &previous
	}
	if event.NextStatus != nil {
		next := string(*event.NextStatus)
		response.NextStatus = &next
	}
	return response
}
