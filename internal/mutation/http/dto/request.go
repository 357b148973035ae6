// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/json"

	validation "github.com/jellydator/validation"
)

// EnqueueMutationRequest contains the parameters for storing a new mutation
// command. ClientRequestID is the caller's idempotency key; resubmitting with
// the same id returns the original job.
type EnqueueMutationRequest struct {
	CommandType     string          `json:"commandType"`
	Request         json.RawMessage `json:"request"`
	CustomerID      *int64          `json:"customerId,omitempty"`
	SubscriptionID  *int64          `json:"subscriptionId,omitempty"`
	ClientRequestID *string         `json:"clientRequestId,omitempty"`
}

// Validate checks if the enqueue request is valid.
func (r *EnqueueMutationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CommandType, validation.Required.Error("commandType is required")),
		validation.Field(&r.Request, validation.Required.Error("request is required")),
	)
}

// CancelMutationRequest carries the operator-supplied cancellation reason.
type CancelMutationRequest struct {
	Reason string `json:"reason"`
}

// Validate checks if the cancel request is valid.
func (r *CancelMutationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required.Error("reason is required")),
	)
}
