// Package domain defines the idempotent operation request model: one record
// per client request id, tracking whether the subscription it asked for was
// created synchronously, handed to the queue, or rejected.
package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kiwimedia/agentdesk/internal/errors"
)

// Status is the lifecycle state of an operation request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// OperationSubscriptionCreate is the only operation type the orchestrator
// currently handles.
const OperationSubscriptionCreate = "subscription_create"

// OperationRequest is one idempotency record. RequestID is the caller-chosen
// key; PayloadHash pins the key to one payload so a reused key with a
// different body is rejected instead of silently replayed.
type OperationRequest struct {
	RequestID     string
	OperationType string
	PayloadHash   string
	Status        Status
	CorrelationID *string
	Result        map[string]any
	Error         map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// Open reports whether the request is still awaiting a terminal outcome.
func (r *OperationRequest) Open() bool {
	return r.Status == StatusPending || r.Status == StatusQueued
}

// CanonicalPayloadHash hashes the canonical JSON form of the payload: object
// keys sorted, no insignificant whitespace. Two differently formatted bodies
// with the same content produce the same hash.
func CanonicalPayloadHash(payload json.RawMessage) (string, error) {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", errors.Wrap(err, "failed to parse request payload")
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(decoded); err != nil {
		return "", errors.Wrap(err, "failed to serialize request payload")
	}

	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:]), nil
}
