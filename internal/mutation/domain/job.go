// Package domain defines the core mutation domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/kiwimedia/agentdesk/internal/errors"
)

// Status represents the lifecycle state of a mutation job.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusDispatching    Status = "dispatching"
	StatusRetryScheduled Status = "retry_scheduled"
	StatusDelivered      Status = "delivered"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
)

// IsTerminal reports whether no further status transition is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed || s == StatusCancelled
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusDispatching, StatusRetryScheduled,
		StatusDelivered, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// FailureClass classifies the most recent dispatch failure of a job.
type FailureClass string

const (
	FailureTransient    FailureClass = "transient"
	FailurePermanent    FailureClass = "permanent"
	FailureManualReview FailureClass = "manual_review_required"
)

// CommandType identifies the upstream operation a job performs.
type CommandType string

const (
	CommandSignup          CommandType = "subscription.signup"
	CommandUpdate          CommandType = "subscription.update"
	CommandCancel          CommandType = "subscription.cancel"
	CommandDeceasedActions CommandType = "subscription.deceased_actions"
)

// IsValid reports whether c is a known command type.
func (c CommandType) IsValid() bool {
	switch c {
	case CommandSignup, CommandUpdate, CommandCancel, CommandDeceasedActions:
		return true
	}
	return false
}

// EventType identifies an entry in a job's append-only event log.
type EventType string

const (
	EventQueued          EventType = "queued"
	EventDispatchStarted EventType = "dispatch_started"
	EventDelivered       EventType = "delivered"
	EventRetryScheduled  EventType = "retry_scheduled"
	EventFailed          EventType = "failed"
	EventRetryRequested  EventType = "retry_requested"
	EventCancelRequested EventType = "cancel_requested"
)

// Job is one durable unit of pending upstream work (the outbox record).
// The repository is the sole mutator of status, attempt counters and
// timestamps; dispatch adapters never touch the record.
type Job struct {
	ID              uuid.UUID
	CommandType     CommandType
	OrderingKey     string
	Payload         JobPayload
	Status          Status
	AttemptCount    int
	MaxAttempts     int
	NextAttemptAt   time.Time
	FirstAttemptAt  *time.Time
	LastAttemptAt   *time.Time
	LastErrorCode   *string
	LastErrorMsg    *string
	LastHTTPStatus  *int
	FailureClass    *FailureClass
	CreatedByUser   *string
	CreatedByRoles  []string
	CustomerID      *int64
	SubscriptionID  *int64
	ClientRequestID *uuid.UUID
	LockedBy        *string
	LockedUntil     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	ExpiresAt       time.Time
	CancelReason    *string
	Events          []*Event
}

// Event is one append-only entry in a job's audit trail. Events are never
// mutated or deleted except by the retention sweep cascading from the job.
type Event struct {
	ID             int64
	JobID          uuid.UUID
	EventType      EventType
	PreviousStatus *Status
	NextStatus     *Status
	AttemptCount   *int
	ErrorCode      *string
	ErrorMessage   *string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// Domain-specific errors for mutation operations.
var (
	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = errors.Wrap(errors.ErrNotFound, "mutation job not found")

	// ErrJobNotRetryable indicates the job's current status does not permit an
	// operator retry.
	ErrJobNotRetryable = errors.Wrap(errors.ErrConflict, "mutation job cannot be retried in current state")

	// ErrJobAlreadyTerminal indicates the job already reached a terminal status.
	ErrJobAlreadyTerminal = errors.Wrap(errors.ErrConflict, "mutation job is already terminal")

	// ErrClientRequestConflict indicates the client request id was seen before
	// with a different payload.
	ErrClientRequestConflict = errors.Wrap(errors.ErrConflict,
		"client request id was already used with a different payload")

	// ErrJobStateChanged indicates the job left dispatching while its attempt
	// was in flight, usually through an operator cancel.
	ErrJobStateChanged = errors.Wrap(errors.ErrConflict, "mutation job changed state during dispatch")

	// ErrUnknownCommandType indicates the command type tag is not recognized.
	ErrUnknownCommandType = errors.Wrap(errors.ErrInvalidInput, "unknown command type")

	// ErrInvalidPayload indicates the command payload failed validation.
	ErrInvalidPayload = errors.Wrap(errors.ErrInvalidInput, "invalid command payload")
)

// Summary holds per-status job counts plus derived totals.
type Summary struct {
	Queued         int
	Dispatching    int
	RetryScheduled int
	Delivered      int
	Failed         int
	Cancelled      int
}

// Pending is the number of jobs in a non-terminal status.
func (s Summary) Pending() int {
	return s.Queued + s.Dispatching + s.RetryScheduled
}

// Total is the number of jobs across all statuses.
func (s Summary) Total() int {
	return s.Queued + s.Dispatching + s.RetryScheduled + s.Delivered + s.Failed + s.Cancelled
}

// Actor identifies the user performing an operation, with the roles granted by
// the session. Stored on the job for later retry/cancel authorization.
type Actor struct {
	User  string
	Roles []string
}

// Supervisor roles may read and manage every job; other users only their own.
var supervisorRoles = map[string]struct{}{
	"agentdesk.supervisor": {},
	"agentdesk.admin":      {},
	"agentdesk.dev":        {},
}

// IsSupervisor reports whether the actor carries an elevated role.
func (a Actor) IsSupervisor() bool {
	for _, role := range a.Roles {
		if _, ok := supervisorRoles[role]; ok {
			return true
		}
	}
	return false
}

// CanManage reports whether the actor may retry or cancel the given job:
// supervisors always, everyone else only for jobs they created.
func (a Actor) CanManage(job *Job) bool {
	if a.IsSupervisor() {
		return true
	}
	return job.CreatedByUser != nil && a.User != "" && *job.CreatedByUser == a.User
}

// CanRead reports whether the actor may see the given job.
func (a Actor) CanRead(job *Job) bool {
	if a.IsSupervisor() {
		return true
	}
	return job.CreatedByUser == nil || (a.User != "" && *job.CreatedByUser == a.User)
}
