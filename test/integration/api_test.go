// Package integration provides end-to-end integration tests for the mutation
// dispatcher API. The tests run the full stack (router, use cases,
// repositories, worker) against a real PostgreSQL database and a stubbed
// upstream subscription system.
package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwimedia/agentdesk/internal/app"
	"github.com/kiwimedia/agentdesk/internal/config"
	"github.com/kiwimedia/agentdesk/internal/testutil"
)

const (
	testUserEmail = "carol@example.com"
	testUserRoles = "agentdesk.agent"
)

// upstreamStub simulates the upstream subscription system. Tests switch the
// response per scenario to drive the outcome classifier.
type upstreamStub struct {
	mu     sync.Mutex
	status int
	body   string
	calls  int
}

func newUpstreamStub() *upstreamStub {
	return &upstreamStub{
		status: http.StatusCreated,
		body:   `{"subscriptionId": 9001}`,
	}
}

func (u *upstreamStub) respond(status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = status
	u.body = body
}

func (u *upstreamStub) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func (u *upstreamStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		status, body := u.status, u.body
		u.calls++
		u.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// integrationTestContext holds all dependencies and state for integration
// testing.
type integrationTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
	upstream  *upstreamStub
}

// makeRequest performs an HTTP request and returns the response and body.
// When withIdentity is set, the identity headers normally injected by the
// authentication gateway are added.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body interface{},
	withIdentity bool,
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if withIdentity {
		req.Header.Set("X-User-Email", testUserEmail)
		req.Header.Set("X-User-Roles", testUserRoles)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

// runWorkerOnce drains one claim batch through the dispatch worker.
func (ctx *integrationTestContext) runWorkerOnce(t *testing.T) int {
	t.Helper()

	worker, err := ctx.container.Worker()
	require.NoError(t, err, "failed to get worker")

	processed, err := worker.RunOnce(context.Background())
	require.NoError(t, err, "worker run failed")

	return processed
}

// setupIntegrationTest initializes all components for integration testing.
func setupIntegrationTest(t *testing.T) *integrationTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := testutil.SetupPostgresDB(t)

	upstream := newUpstreamStub()
	upstreamServer := httptest.NewServer(upstream.handler())

	cfg := &config.Config{
		DBConnectionString:        testutil.GetPostgresTestDSN(),
		DBMaxOpenConnections:      10,
		DBMaxIdleConnections:      5,
		DBConnMaxLifetime:         time.Hour,
		ServerHost:                "localhost",
		ServerPort:                8080,
		LogLevel:                  "error",
		MutationStoreEnabled:      true,
		MutationMaxAttempts:       5,
		MutationMaxAge:            24 * time.Hour,
		MutationRetention:         30 * 24 * time.Hour,
		MutationLease:             time.Minute,
		WorkerBatchSize:           10,
		WorkerSleep:               10 * time.Millisecond,
		WorkerSweepInterval:       time.Hour,
		DispatchBaseURL:           upstreamServer.URL,
		DispatchTimeout:           5 * time.Second,
		DispatchRatePerSec:        100,
		DispatchBurst:             100,
		OrchestratorInlineTimeout: 5 * time.Second,
		OrchestratorMaxAttempts:   3,
		AuditRetention:            30 * 24 * time.Hour,
	}

	container := app.NewContainer(cfg)

	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")

	handler := httpSrv.GetHandler()
	require.NotNil(t, handler, "handler should not be nil after SetupRouter")

	testServer := httptest.NewServer(handler)
	t.Cleanup(func() {
		upstreamServer.Close()
	})

	return &integrationTestContext{
		container: container,
		db:        db,
		server:    testServer,
		upstream:  upstream,
	}
}

// teardownIntegrationTest cleans up all resources.
func teardownIntegrationTest(t *testing.T, ctx *integrationTestContext) {
	t.Helper()

	if ctx.server != nil {
		ctx.server.Close()
	}

	if ctx.container != nil {
		if err := ctx.container.Shutdown(context.Background()); err != nil {
			t.Logf("Warning: container shutdown error: %v", err)
		}
	}

	if ctx.db != nil {
		testutil.TeardownDB(t, ctx.db)
	}
}

func TestIntegration_Health_BasicChecks(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := setupIntegrationTest(t)
	defer teardownIntegrationTest(t, ctx)

	// [1/2] Test GET /health - Health check endpoint
	t.Run("01_HealthCheck", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodGet, "/health", nil, false)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]string
		err := json.Unmarshal(body, &response)
		require.NoError(t, err)
		assert.Equal(t, "healthy", response["status"])
	})

	// [2/2] Test GET /ready - Readiness check endpoint
	t.Run("02_ReadinessCheck", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodGet, "/ready", nil, false)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]string
		err := json.Unmarshal(body, &response)
		require.NoError(t, err)
		assert.Equal(t, "ready", response["status"])
	})
}

// TestIntegration_Mutations_CompleteFlow exercises the full lifecycle of a
// stored mutation: enqueue, idempotent replay, listing, dispatch through the
// worker, failure escalation, operator retry and cancellation.
func TestIntegration_Mutations_CompleteFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := setupIntegrationTest(t)
	defer teardownIntegrationTest(t, ctx)

	clientRequestID := uuid.Must(uuid.NewV7()).String()
	var jobID string

	// [1/10] Enqueue a cancellation command
	t.Run("01_Enqueue", func(t *testing.T) {
		enqueueReq := map[string]interface{}{
			"commandType":     "subscription.cancel",
			"customerId":      301,
			"subscriptionId":  77,
			"clientRequestId": clientRequestID,
			"request": map[string]interface{}{
				"endDate": "2026-09-30",
				"reason":  "customer request",
			},
		}

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/mutations", enqueueReq, true)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var response map[string]interface{}
		err := json.Unmarshal(body, &response)
		require.NoError(t, err)
		assert.Equal(t, "queued", response["status"])
		assert.Equal(t, "subscription.cancel", response["commandType"])
		assert.Equal(t, testUserEmail, response["createdByUser"])

		jobID = response["id"].(string)
		require.NotEmpty(t, jobID)
	})

	// [2/10] Replaying the same clientRequestId returns the original job
	t.Run("02_IdempotentReplay", func(t *testing.T) {
		enqueueReq := map[string]interface{}{
			"commandType":     "subscription.cancel",
			"customerId":      301,
			"subscriptionId":  77,
			"clientRequestId": clientRequestID,
			"request": map[string]interface{}{
				"endDate": "2026-09-30",
				"reason":  "customer request",
			},
		}

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/mutations", enqueueReq, true)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var response map[string]interface{}
		err := json.Unmarshal(body, &response)
		require.NoError(t, err)
		assert.Equal(t, jobID, response["id"])
	})

	// [3/10] Get the job detail with payload and event history
	t.Run("03_GetDetail", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/mutations/"+jobID, nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]interface{}
		err := json.Unmarshal(body, &response)
		require.NoError(t, err)
		assert.Equal(t, "queued", response["status"])
		assert.NotNil(t, response["request"])

		events := response["events"].([]interface{})
		require.NotEmpty(t, events)
		firstEvent := events[0].(map[string]interface{})
		assert.Equal(t, "queued", firstEvent["eventType"])
	})

	// [4/10] List queued jobs
	t.Run("04_List", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/mutations?status=queued", nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response struct {
			Items []map[string]interface{} `json:"items"`
		}
		err := json.Unmarshal(body, &response)
		require.NoError(t, err)
		require.Len(t, response.Items, 1)
		assert.Equal(t, jobID, response.Items[0]["id"])
	})

	// [5/10] Summary reflects the queued job
	t.Run("05_Summary", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/mutations/summary", nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]int
		err := json.Unmarshal(body, &response)
		require.NoError(t, err)
		assert.Equal(t, 1, response["queued"])
		assert.Equal(t, 1, response["pending"])
		assert.Equal(t, 1, response["total"])
	})

	// [6/10] The worker dispatches the job and marks it delivered
	t.Run("06_WorkerDelivers", func(t *testing.T) {
		ctx.upstream.respond(http.StatusOK, `{}`)

		processed := ctx.runWorkerOnce(t)
		assert.Equal(t, 1, processed)
		assert.GreaterOrEqual(t, ctx.upstream.callCount(), 1)

		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/mutations/"+jobID, nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]interface{}
		err := json.Unmarshal(body, &response)
		require.NoError(t, err)
		assert.Equal(t, "delivered", response["status"])
		assert.NotNil(t, response["completedAt"])

		eventTypes := collectEventTypes(response)
		assert.Contains(t, eventTypes, "dispatch_started")
		assert.Contains(t, eventTypes, "delivered")
	})

	// [7/10] Cancelling a delivered job is rejected
	t.Run("07_CancelTerminalRejected", func(t *testing.T) {
		cancelReq := map[string]interface{}{"reason": "no longer needed"}

		resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/mutations/"+jobID+"/cancel", cancelReq, true)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	var failedJobID string

	// [8/10] A permanent upstream rejection escalates the job to failed
	t.Run("08_PermanentFailure", func(t *testing.T) {
		ctx.upstream.respond(http.StatusBadRequest, `{"error": "unknown subscription"}`)

		enqueueReq := map[string]interface{}{
			"commandType":    "subscription.cancel",
			"customerId":     302,
			"subscriptionId": 78,
			"request": map[string]interface{}{
				"endDate": "2026-10-31",
			},
		}

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/mutations", enqueueReq, true)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &created))
		failedJobID = created["id"].(string)

		processed := ctx.runWorkerOnce(t)
		assert.Equal(t, 1, processed)

		resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/mutations/"+failedJobID, nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "failed", response["status"])
		assert.Equal(t, "permanent", response["failureClass"])
		assert.Equal(t, "http_400", response["lastErrorCode"])
	})

	// [9/10] An operator retry re-activates the failed job
	t.Run("09_RetryAfterFailure", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/mutations/"+failedJobID+"/retry", nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "queued", response["status"])

		ctx.upstream.respond(http.StatusOK, `{}`)
		processed := ctx.runWorkerOnce(t)
		assert.Equal(t, 1, processed)

		resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/mutations/"+failedJobID, nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "delivered", response["status"])
	})

	// [10/10] A queued job can be cancelled with a reason
	t.Run("10_CancelQueued", func(t *testing.T) {
		enqueueReq := map[string]interface{}{
			"commandType":    "subscription.cancel",
			"customerId":     303,
			"subscriptionId": 79,
			"request": map[string]interface{}{
				"endDate": "2026-11-30",
			},
		}

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/mutations", enqueueReq, true)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &created))
		queuedJobID := created["id"].(string)

		cancelReq := map[string]interface{}{"reason": "duplicate order"}
		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/mutations/"+queuedJobID+"/cancel", cancelReq, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "cancelled", response["status"])
		assert.Equal(t, "duplicate order", response["cancelReason"])
	})
}

// TestIntegration_Mutations_RequestValidation covers the gateway contract:
// requests without identity headers are rejected and malformed enqueue
// payloads never reach the store.
func TestIntegration_Mutations_RequestValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := setupIntegrationTest(t)
	defer teardownIntegrationTest(t, ctx)

	t.Run("01_MissingIdentityHeaders", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/mutations", nil, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var response map[string]string
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "unauthorized", response["error"])
	})

	t.Run("02_MissingCommandType", func(t *testing.T) {
		enqueueReq := map[string]interface{}{
			"request": map[string]interface{}{"endDate": "2026-09-30"},
		}

		resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/mutations", enqueueReq, true)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("03_InvalidPayloadForCommand", func(t *testing.T) {
		// cancel without customer/subscription ids cannot be routed upstream
		enqueueReq := map[string]interface{}{
			"commandType": "subscription.cancel",
			"request":     map[string]interface{}{"endDate": "2026-09-30"},
		}

		resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/mutations", enqueueReq, true)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("04_UnknownCommandType", func(t *testing.T) {
		enqueueReq := map[string]interface{}{
			"commandType": "subscription.unknown",
			"request":     map[string]interface{}{},
		}

		resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/mutations", enqueueReq, true)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

// TestIntegration_Subscriptions_CompleteFlow exercises the idempotent request
// orchestrator: inline dispatch, replay, payload conflict detection and the
// queued fallback resolved by the worker.
func TestIntegration_Subscriptions_CompleteFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := setupIntegrationTest(t)
	defer teardownIntegrationTest(t, ctx)

	requestID := uuid.Must(uuid.NewV7()).String()

	signupBody := func(reqID string) map[string]interface{} {
		return map[string]interface{}{
			"requestId": reqID,
			"recipient": map[string]interface{}{"personId": 12345},
			"offerId":   "OFFER-123",
			"startDate": "2026-10-01",
		}
	}

	// [1/7] A successful inline dispatch resolves the request immediately
	t.Run("01_SubmitSucceedsInline", func(t *testing.T) {
		ctx.upstream.respond(http.StatusCreated, `{"subscriptionId": 9001}`)

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/subscriptions", signupBody(requestID), true)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "succeeded", response["status"])
		assert.Equal(t, requestID, response["requestId"])
		assert.Equal(t, float64(9001), response["subscriptionId"])
	})

	// [2/7] Replaying the same request does not call upstream again
	t.Run("02_ReplayDoesNotRedispatch", func(t *testing.T) {
		callsBefore := ctx.upstream.callCount()

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/subscriptions", signupBody(requestID), true)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "succeeded", response["status"])
		assert.Equal(t, callsBefore, ctx.upstream.callCount())
	})

	// [3/7] The same request id with a different payload is a conflict
	t.Run("03_PayloadConflict", func(t *testing.T) {
		conflicting := signupBody(requestID)
		conflicting["offerId"] = "OFFER-999"

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/subscriptions", conflicting, true)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "conflict", response["status"])
	})

	// [4/7] The status endpoint reports the stored resolution
	t.Run("04_StatusSucceeded", func(t *testing.T) {
		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/subscriptions/requests/"+requestID, nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "succeeded", response["status"])
	})

	// [5/7] A transient upstream outage falls back to a queued job
	queuedRequestID := uuid.Must(uuid.NewV7()).String()
	t.Run("05_TransientFailureQueuesFallback", func(t *testing.T) {
		ctx.upstream.respond(http.StatusServiceUnavailable, `{"error": "maintenance"}`)

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/subscriptions", signupBody(queuedRequestID), true)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "pending", response["status"])
		assert.NotEmpty(t, response["jobId"])

		resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/subscriptions/requests/"+queuedRequestID, nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "pending", response["status"])
	})

	// [6/7] The worker delivers the fallback job and resolves the request
	t.Run("06_WorkerResolvesQueuedRequest", func(t *testing.T) {
		ctx.upstream.respond(http.StatusCreated, `{"subscriptionId": 9002}`)

		processed := ctx.runWorkerOnce(t)
		assert.Equal(t, 1, processed)

		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/subscriptions/requests/"+queuedRequestID, nil, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "succeeded", response["status"])
	})

	// [7/7] Unknown request ids return not found
	t.Run("07_StatusNotFound", func(t *testing.T) {
		unknownID := uuid.Must(uuid.NewV7()).String()

		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/subscriptions/requests/"+unknownID, nil, true)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &response))
		assert.Equal(t, "not_found", response["status"])
	})
}

// TestIntegration_Subscriptions_RequestIDExtraction covers the request id
// contract: body field, Idempotency-Key header fallback, and rejection when
// both are absent.
func TestIntegration_Subscriptions_RequestIDExtraction(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := setupIntegrationTest(t)
	defer teardownIntegrationTest(t, ctx)

	t.Run("01_HeaderFallback", func(t *testing.T) {
		ctx.upstream.respond(http.StatusCreated, `{"subscriptionId": 9003}`)
		requestID := uuid.Must(uuid.NewV7()).String()

		body := map[string]interface{}{
			"recipient": map[string]interface{}{"personId": 555},
			"offerId":   "OFFER-7",
		}
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, ctx.server.URL+"/v1/subscriptions", bytes.NewReader(bodyBytes))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", requestID)
		req.Header.Set("X-User-Email", testUserEmail)
		req.Header.Set("X-User-Roles", testUserRoles)

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
		assert.Equal(t, requestID, response["requestId"])
	})

	t.Run("02_MissingRequestID", func(t *testing.T) {
		body := map[string]interface{}{
			"recipient": map[string]interface{}{"personId": 555},
			"offerId":   "OFFER-7",
		}

		resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/subscriptions", body, true)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

// collectEventTypes extracts the eventType values from a job detail response.
func collectEventTypes(response map[string]interface{}) []string {
	events, ok := response["events"].([]interface{})
	if !ok {
		return nil
	}

	types := make([]string, 0, len(events))
	for _, raw := range events {
		event, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		types = append(types, fmt.Sprintf("%v", event["eventType"]))
	}
	return types
}
