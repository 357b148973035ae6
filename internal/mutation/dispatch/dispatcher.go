package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kiwimedia/agentdesk/internal/mutation/domain"
)

// maxResponseExcerpt bounds how much of an upstream response body is kept as
// error detail on the job.
const maxResponseExcerpt = 1000

// Dispatcher executes one command against the upstream subscription system
// and returns a classified outcome. Implementations are stateless with
// respect to the job record.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.Job) Outcome
}

// Config holds the settings of the HTTP dispatcher.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	DryRun       bool
	RatePerSec   float64
	Burst        int
	ClientID     string
	ClientSecret string
}

// HTTPDispatcher dispatches mutation commands over HTTP. The instance owns
// its token cache and outbound rate limiter; nothing about the upstream
// session lives in process-wide state.
type HTTPDispatcher struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewHTTPDispatcher creates a new HTTPDispatcher.
func NewHTTPDispatcher(config Config) *HTTPDispatcher {
	limit := rate.Inf
	if config.RatePerSec > 0 {
		limit = rate.Limit(config.RatePerSec)
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}

	return &HTTPDispatcher{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// route maps a command type to the upstream HTTP method and path.
func route(job *domain.Job) (method, path string, ok bool) {
	payload := job.Payload

	switch job.CommandType {
	case domain.CommandSignup:
		return http.MethodPost, "/api/v1/workflows/subscription-signup", true

	case domain.CommandUpdate:
		if payload.CustomerID == nil || payload.SubscriptionID == nil {
			return "", "", false
		}
		return http.MethodPatch,
			fmt.Sprintf("/api/v1/subscriptions/%d/%d", *payload.CustomerID, *payload.SubscriptionID),
			true

	case domain.CommandCancel:
		if payload.CustomerID == nil || payload.SubscriptionID == nil {
			return "", "", false
		}
		return http.MethodPost,
			fmt.Sprintf("/api/v1/subscriptions/%d/%d", *payload.CustomerID, *payload.SubscriptionID),
			true

	case domain.CommandDeceasedActions:
		if payload.CustomerID == nil {
			return "", "", false
		}
		return http.MethodPost,
			fmt.Sprintf("/api/v1/subscriptions/%d/deceased-actions", *payload.CustomerID),
			true
	}

	return "", "", false
}

// Dispatch executes the job's command against the upstream system. The
// context bounds the whole attempt, including the rate limiter wait.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, job *domain.Job) Outcome {
	if d.config.DryRun {
		return Delivered(http.StatusOK)
	}

	method, path, ok := route(job)
	if !ok {
		return Outcome{
			FailureClass: domain.FailureManualReview,
			ErrorCode:    "invalid_command_payload",
			ErrorMessage: fmt.Sprintf("unsupported command payload for %s", job.CommandType),
		}
	}

	if d.config.BaseURL == "" {
		return Outcome{
			FailureClass: domain.FailureManualReview,
			ErrorCode:    "target_unconfigured",
			ErrorMessage: "MUTATION_TARGET_BASE_URL is not configured",
		}
	}

	requestURL, err := url.JoinPath(d.config.BaseURL, path)
	if err != nil {
		return Outcome{
			FailureClass: domain.FailureManualReview,
			ErrorCode:    "invalid_target_url",
			ErrorMessage: err.Error(),
		}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return ClassifyTransportError(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(job.Payload.Request))
	if err != nil {
		return Outcome{
			FailureClass: domain.FailureManualReview,
			ErrorCode:    "request_build_failed",
			ErrorMessage: err.Error(),
		}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Mutation-Id", job.ID.String())
	if job.Payload.CorrelationID != "" {
		req.Header.Set("X-Correlation-Id", job.Payload.CorrelationID)
	}
	if job.ClientRequestID != nil {
		req.Header.Set("Idempotency-Key", job.ClientRequestID.String())
	}

	if token, err := d.bearerToken(ctx); err != nil {
		return ClassifyTransportError(err)
	} else if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return ClassifyTransportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	excerpt := readExcerpt(resp.Body)
	message := extractErrorMessage(resp.Header.Get("Content-Type"), excerpt)

	outcome := ClassifyHTTPStatus(resp.StatusCode, message)
	if outcome.Success {
		outcome.Body = []byte(excerpt)
	}
	return outcome
}

// bearerToken returns a cached upstream token, fetching a fresh one when the
// cache is empty or about to expire. Returns "" when no credentials are
// configured (the upstream is assumed open in that case, e.g. a stub).
func (d *HTTPDispatcher) bearerToken(ctx context.Context) (string, error) {
	if d.config.ClientID == "" || d.config.ClientSecret == "" {
		return "", nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.token != "" && time.Now().Before(d.tokenExpiry.Add(-30*time.Second)) {
		return d.token, nil
	}

	tokenURL, err := url.JoinPath(d.config.BaseURL, "/auth/token")
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]string{
		"clientId":     d.config.ClientID,
		"clientSecret": d.config.ClientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int    `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}

	d.token = tokenResp.AccessToken
	d.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return d.token, nil
}

// readExcerpt reads at most maxResponseExcerpt bytes of the response body.
func readExcerpt(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseExcerpt))
	if err != nil {
		return ""
	}
	return string(data)
}

// extractErrorMessage pulls a human-readable message out of a JSON error
// response, falling back to the raw excerpt.
func extractErrorMessage(contentType, excerpt string) string {
	if excerpt == "" || !strings.HasPrefix(contentType, "application/json") {
		return excerpt
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(excerpt), &parsed); err != nil {
		return excerpt
	}

	if errObj, ok := parsed["error"].(map[string]any); ok {
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return msg
	}

	return excerpt
}
