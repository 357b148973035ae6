// Package dispatch classifies dispatch results and executes mutation commands
// against the upstream subscription system.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

// Outcome is the classified result of one dispatch attempt. It is the single
// source of truth for retry eligibility: the worker loop and orchestrator act
// on Retryable and FailureClass, never on raw status codes.
type Outcome struct {
	Success      bool
	Retryable    bool
	FailureClass domain.FailureClass
	ErrorCode    string
	ErrorMessage string
	HTTPStatus   *int

	// Body is the (truncated) upstream response body of a successful
	// attempt, kept so the orchestrator can read the created resource.
	Body []byte
}

// transientStatuses are upstream responses worth retrying.
var transientStatuses = map[int]struct{}{
	408: {}, 425: {}, 429: {}, 500: {}, 502: {}, 503: {}, 504: {},
}

// permanentStatuses are upstream rejections that retrying cannot fix.
var permanentStatuses = map[int]struct{}{
	400: {}, 401: {}, 403: {}, 404: {}, 409: {}, 410: {}, 422: {},
}

// Delivered builds a success outcome for the given HTTP status.
func Delivered(httpStatus int) Outcome {
	return Outcome{
		Success:    true,
		HTTPStatus: &httpStatus,
	}
}

// ClassifyHTTPStatus maps an upstream HTTP status (plus optional body excerpt)
// to an outcome. Statuses outside the known transient and permanent sets are
// flagged for manual review instead of being retried silently.
func ClassifyHTTPStatus(httpStatus int, responseBody string) Outcome {
	if httpStatus >= 200 && httpStatus < 300 {
		return Delivered(httpStatus)
	}

	message := responseBody
	if message == "" {
		message = fmt.Sprintf("HTTP %d", httpStatus)
	}

	outcome := Outcome{
		ErrorCode:    fmt.Sprintf("http_%d", httpStatus),
		ErrorMessage: message,
		HTTPStatus:   &httpStatus,
	}

	if _, ok := transientStatuses[httpStatus]; ok {
		outcome.Retryable = true
		outcome.FailureClass = domain.FailureTransient
		return outcome
	}

	if _, ok := permanentStatuses[httpStatus]; ok {
		outcome.FailureClass = domain.FailurePermanent
		return outcome
	}

	outcome.FailureClass = domain.FailureManualReview
	return outcome
}

// ClassifyTransportError maps a transport-level error to an outcome. Timeouts
// and refused connections are transient; anything else needs a human to look
// at it before another attempt is made.
func ClassifyTransportError(err error) Outcome {
	outcome := Outcome{
		ErrorMessage: err.Error(),
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome.Retryable = true
		outcome.FailureClass = domain.FailureTransient
		outcome.ErrorCode = "timeout"

	// worker shutdown mid-flight, not an undeliverable command
	case errors.Is(err, context.Canceled):
		outcome.Retryable = true
		outcome.FailureClass = domain.FailureTransient
		outcome.ErrorCode = "cancelled"

	case errors.As(err, &netErr) && netErr.Timeout():
		outcome.Retryable = true
		outcome.FailureClass = domain.FailureTransient
		outcome.ErrorCode = "timeout"

	case errors.Is(err, syscall.ECONNREFUSED):
		outcome.Retryable = true
		outcome.FailureClass = domain.FailureTransient
		outcome.ErrorCode = "connection_refused"

	case errors.Is(err, syscall.ECONNRESET):
		outcome.Retryable = true
		outcome.FailureClass = domain.FailureTransient
		outcome.ErrorCode = "connection_reset"

	default:
		outcome.FailureClass = domain.FailureManualReview
		outcome.ErrorCode = "transport_error"
	}

	return outcome
}
