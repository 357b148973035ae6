package dispatch

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

func TestClassifyHTTPStatus_Success(t *testing.T) {
	for _, status := range []int{200, 201, 202, 204, 299} {
		outcome := ClassifyHTTPStatus(status, "")
		assert.True(t, outcome.Success, "status %d", status)
		assert.False(t, outcome.Retryable, "status %d", status)
		assert.Equal(t, status, *outcome.HTTPStatus)
	}
}

func TestClassifyHTTPStatus_Transient(t *testing.T) {
	for _, status := range []int{408, 425, 429, 500, 502, 503, 504} {
		outcome := ClassifyHTTPStatus(status, "upstream overloaded")
		assert.False(t, outcome.Success, "status %d", status)
		assert.True(t, outcome.Retryable, "status %d", status)
		assert.Equal(t, domain.FailureTransient, outcome.FailureClass, "status %d", status)
		assert.Equal(t, "upstream overloaded", outcome.ErrorMessage)
	}
}

func TestClassifyHTTPStatus_Permanent(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 409, 410, 422} {
		outcome := ClassifyHTTPStatus(status, "")
		assert.False(t, outcome.Success, "status %d", status)
		assert.False(t, outcome.Retryable, "status %d", status)
		assert.Equal(t, domain.FailurePermanent, outcome.FailureClass, "status %d", status)
	}
}

func TestClassifyHTTPStatus_ManualReview(t *testing.T) {
	// Unclassified statuses must surface for human inspection rather than
	// loop silently.
	for _, status := range []int{301, 418, 451, 501, 599} {
		outcome := ClassifyHTTPStatus(status, "")
		assert.False(t, outcome.Success, "status %d", status)
		assert.False(t, outcome.Retryable, "status %d", status)
		assert.Equal(t, domain.FailureManualReview, outcome.FailureClass, "status %d", status)
	}
}

func TestClassifyHTTPStatus_ErrorCode(t *testing.T) {
	outcome := ClassifyHTTPStatus(503, "")
	assert.Equal(t, "http_503", outcome.ErrorCode)
	assert.Equal(t, "HTTP 503", outcome.ErrorMessage)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		class     domain.FailureClass
		code      string
	}{
		{"deadline exceeded", context.DeadlineExceeded, true, domain.FailureTransient, "timeout"},
		{"context cancelled on shutdown", context.Canceled, true, domain.FailureTransient, "cancelled"},
		{"net timeout", timeoutError{}, true, domain.FailureTransient, "timeout"},
		{"connection refused", syscall.ECONNREFUSED, true, domain.FailureTransient, "connection_refused"},
		{"connection reset", syscall.ECONNRESET, true, domain.FailureTransient, "connection_reset"},
		{"tls handshake failure", errors.New("tls: bad certificate"), false, domain.FailureManualReview, "transport_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := ClassifyTransportError(tt.err)
			assert.False(t, outcome.Success)
			assert.Equal(t, tt.retryable, outcome.Retryable)
			assert.Equal(t, tt.class, outcome.FailureClass)
			assert.Equal(t, tt.code, outcome.ErrorCode)
			assert.Nil(t, outcome.HTTPStatus)
		})
	}
}
