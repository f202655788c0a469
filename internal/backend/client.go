package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"skillwizard/internal/config"
	apperrors "skillwizard/internal/errors"
	"skillwizard/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Operation names one backend endpoint
type Operation string

const (
	OpSubmitResume  Operation = "submit_resume"
	OpGenerateTest  Operation = "generate_test"
	OpEvaluateTest  Operation = "evaluate_test"
	OpRecommendJobs Operation = "recommend_jobs"
)

// Operations lists every backend operation
var Operations = []Operation{OpSubmitResume, OpGenerateTest, OpEvaluateTest, OpRecommendJobs}

const (
	msgUnavailable = "The assessment service is temporarily unavailable. Please try again shortly."
	msgTimeout     = "The assessment service did not respond in time. Please try again."
)

// rawResponse is what travels through the breaker
type rawResponse struct {
	status int
	body   []byte
}

// rejectedError marks a non-success response that is not the backend's fault
type rejectedError struct {
	status int
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("backend rejected request with status %d", e.status)
}

// failedError marks a 5xx response
type failedError struct {
	status int
}

func (e *failedError) Error() string {
	return fmt.Sprintf("backend failed with status %d", e.status)
}

// Client calls the assessment backend. Every method issues exactly one
// request; nothing is retried.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	paths        map[Operation]string
	apiKey       string
	apiKeyHeader string
	maxBodySize  int64
	breakers     map[Operation]*Breaker
	logger       *apperrors.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a backend client from configuration
func NewClient(cfg config.BackendConfig, logger *apperrors.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		paths: map[Operation]string{
			OpSubmitResume:  cfg.Endpoints.SubmitResume,
			OpGenerateTest:  cfg.Endpoints.GenerateTest,
			OpEvaluateTest:  cfg.Endpoints.EvaluateTest,
			OpRecommendJobs: cfg.Endpoints.RecommendJobs,
		},
		apiKey:       cfg.APIKey,
		apiKeyHeader: cfg.APIKeyHeader,
		maxBodySize:  cfg.MaxBodySize,
		breakers:     make(map[Operation]*Breaker),
		logger:       logger,
	}
	if c.maxBodySize <= 0 {
		c.maxBodySize = 4 << 20
	}
	for _, op := range Operations {
		c.breakers[op] = NewBreaker(op, cfg.CircuitBreaker, logger)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitResume sends the profile as entered and returns the normalized one
func (c *Client) SubmitResume(ctx context.Context, profile types.ResumeProfile) (types.ResumeProfile, error) {
	return call[types.ResumeProfile](ctx, c, OpSubmitResume, profile)
}

// GenerateTest requests a fresh set of questions
func (c *Client) GenerateTest(ctx context.Context, req types.GenerateTestRequest) ([]types.TestQuestion, error) {
	return call[[]types.TestQuestion](ctx, c, OpGenerateTest, req)
}

// EvaluateTest submits questions with their answers for grading
func (c *Client) EvaluateTest(ctx context.Context, req types.EvaluateTestRequest) (types.TestResults, error) {
	return call[types.TestResults](ctx, c, OpEvaluateTest, req)
}

// RecommendJobs asks for postings matching the profile
func (c *Client) RecommendJobs(ctx context.Context, profile types.ResumeProfile) ([]types.JobRecommendation, error) {
	return call[[]types.JobRecommendation](ctx, c, OpRecommendJobs, profile)
}

// Stats reports breaker state per operation
func (c *Client) Stats() map[string]any {
	stats := make(map[string]any, len(c.breakers))
	for op, b := range c.breakers {
		stats[string(op)] = b.Stats()
	}
	return stats
}

// Healthy reports whether no breaker is open
func (c *Client) Healthy() bool {
	for _, b := range c.breakers {
		if !b.IsHealthy() {
			return false
		}
	}
	return true
}

func call[Resp any](ctx context.Context, c *Client, op Operation, payload any) (Resp, error) {
	var zero Resp

	tracer := otel.Tracer("skillwizard.backend")
	ctx, span := tracer.Start(ctx, "backend."+string(op))
	defer span.End()
	span.SetAttributes(attribute.String("backend.operation", string(op)))

	body, err := json.Marshal(payload)
	if err != nil {
		return zero, apperrors.NewInternalError(apperrors.ErrCodeInvalidRequest, "", fmt.Errorf("encode %s request: %w", op, err))
	}

	start := time.Now()
	resp, err := c.breakers[op].Execute(func() (*rawResponse, error) {
		return c.do(ctx, op, body)
	})
	duration := time.Since(start)

	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		appErr := c.classify(op, resp, err)
		if c.logger != nil {
			c.logger.Warn("Backend call failed",
				"operation", string(op),
				"duration_ms", duration.Milliseconds(),
				"error_code", appErr.Code,
				"error", err.Error())
		}
		return zero, appErr
	}

	var out Resp
	if err := json.Unmarshal(resp.body, &out); err != nil {
		span.RecordError(err)
		return zero, apperrors.NewBackendError(apperrors.ErrCodeInvalidResponse, "",
			fmt.Errorf("decode %s response: %w", op, err)).WithContext("operation", string(op))
	}

	if c.logger != nil {
		c.logger.Debug("Backend call succeeded",
			"operation", string(op),
			"status", resp.status,
			"duration_ms", duration.Milliseconds())
	}
	return out, nil
}

// do performs the HTTP exchange. Non-2xx statuses are returned as errors
// alongside the response so the caller can extract the detail text.
func (c *Client) do(ctx context.Context, op Operation, body []byte) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.paths[op], bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" && c.apiKeyHeader != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}

	resp := &rawResponse{status: httpResp.StatusCode, body: data}
	switch {
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		return resp, nil
	case httpResp.StatusCode >= 500:
		return resp, &failedError{status: httpResp.StatusCode}
	default:
		return resp, &rejectedError{status: httpResp.StatusCode}
	}
}

// classify converts a failed exchange into an AppError whose Message is the
// user facing detail, left empty when the caller should use its own fallback.
func (c *Client) classify(op Operation, resp *rawResponse, err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case isBreakerRejection(err):
		appErr = apperrors.NewBackendError(apperrors.ErrCodeBackendUnavailable, msgUnavailable, err)
	case resp != nil:
		appErr = apperrors.NewBackendError(apperrors.ErrCodeBackendRejected, ExtractDetail(resp.body), err).
			WithContext("status", resp.status)
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		appErr = apperrors.NewNetworkError(apperrors.ErrCodeNetworkTimeout, msgTimeout, err)
	default:
		appErr = apperrors.NewNetworkError(apperrors.ErrCodeBackendUnavailable, "", err)
	}
	return appErr.WithContext("operation", string(op))
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// ExtractDetail pulls the human readable "detail" out of an error body. It
// understands a plain string and a list of validation entries with "msg".
func ExtractDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var entries []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if m := strings.TrimSpace(e.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return ""
}
