// Package domain defines the audit timeline entities. Every state-changing
// operation appends one event with the acting user, the touched entity and
// redacted before/after snapshots.
package domain

import "time"

// Event types recorded by the dispatcher and orchestrator.
const (
	EventSubscriptionRequested = "subscription.requested"
	EventSubscriptionQueued    = "subscription.queued"
	EventSubscriptionSucceeded = "subscription.succeeded"
	EventSubscriptionFailed    = "subscription.failed"
	EventMutationEnqueued      = "mutation.enqueued"
	EventMutationDelivered     = "mutation.delivered"
	EventMutationFailed        = "mutation.failed"
	EventMutationRetried       = "mutation.retry_requested"
	EventMutationCancelled     = "mutation.cancel_requested"
)

// Entity types referenced by audit events.
const (
	EntityMutationJob         = "mutation_job"
	EntitySubscriptionRequest = "subscription_request"
)

// Event is one entry in the append-only audit timeline.
type Event struct {
	ID             int64
	EventType      string
	ActorID        *string
	EntityType     string
	EntityID       string
	RequestID      *string
	CorrelationID  *string
	BeforeRedacted map[string]any
	AfterRedacted  map[string]any
	Metadata       map[string]any
	CreatedAt      time.Time
}

// ListFilter narrows an audit listing. Cursor is the id of the last event of
// the previous page (ids are monotonically increasing).
type ListFilter struct {
	EntityType *string
	EntityID   *string
	RequestID  *string
	Cursor     *int64
	Limit      int
}
