// Package client talks to the pipeline API that owns approvals and jobs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/decision"
	"github.com/MEKXH/reviewdesk/internal/jobs"
	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

// Client is an HTTP client for the pipeline API.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithTimeout sets the per-request timeout. A client passed through
// WithHTTPClient is copied, not changed.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported api url scheme: %q", parsed.Scheme)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.httpClient.Timeout != c.timeout {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type retryResponse struct {
	JobID string `json:"job_id"`
}

type errorResponse struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Status    approval.Status `json:"status,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// GetApproval fetches one approval request.
func (c *Client) GetApproval(ctx context.Context, id string) (approval.Request, error) {
	var req approval.Request
	err := c.do(ctx, "fetch approval", id, http.MethodGet, "/api/approvals/"+url.PathEscape(id), nil, &req)
	return req, err
}

// ListApprovals lists approvals matching query.
func (c *Client) ListApprovals(ctx context.Context, query approval.Query) ([]approval.Request, error) {
	values := url.Values{}
	if query.Status != "" {
		values.Set("status", string(query.Status))
	}
	if strings.TrimSpace(query.PipelineStep) != "" {
		values.Set("pipeline_step", strings.TrimSpace(query.PipelineStep))
	}
	if strings.TrimSpace(query.JobID) != "" {
		values.Set("job_id", strings.TrimSpace(query.JobID))
	}
	path := "/api/approvals"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var list []approval.Request
	if err := c.do(ctx, "list approvals", "", http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []approval.Request{}
	}
	return list, nil
}

// Decide submits a decision for approvalID.
func (c *Client) Decide(ctx context.Context, approvalID string, req decision.Request) error {
	var resp successResponse
	if err := c.do(ctx, "submit decision", approvalID, http.MethodPost, "/api/approvals/"+url.PathEscape(approvalID)+"/decide", req, &resp); err != nil {
		return err
	}
	return requireSuccess("submit decision", resp)
}

// RetryStep re-queues the step behind approvalID and returns the new job id.
func (c *Client) RetryStep(ctx context.Context, approvalID string) (string, error) {
	var resp retryResponse
	if err := c.do(ctx, "retry step", approvalID, http.MethodPost, "/api/approvals/"+url.PathEscape(approvalID)+"/retry", struct{}{}, &resp); err != nil {
		return "", err
	}
	jobID := strings.TrimSpace(resp.JobID)
	if jobID == "" {
		return "", &approval.TransportError{Op: "retry step", Err: errors.New("response did not include a job id")}
	}
	return jobID, nil
}

// JobStatus fetches the status of jobID.
func (c *Client) JobStatus(ctx context.Context, jobID string) (jobs.View, error) {
	var view jobs.View
	if err := c.do(ctx, "poll job status", "", http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &view); err != nil {
		return jobs.View{}, err
	}
	if view.JobID == "" {
		view.JobID = jobID
	}
	return view, nil
}

// CancelJob cancels jobID.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	var resp successResponse
	if err := c.do(ctx, "cancel job", "", http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/cancel", struct{}{}, &resp); err != nil {
		return err
	}
	return requireSuccess("cancel job", resp)
}

func requireSuccess(op string, resp successResponse) error {
	if resp.Success {
		return nil
	}
	message := strings.TrimSpace(resp.Message)
	if message == "" {
		message = "backend reported failure"
	}
	return &approval.TransportError{Op: op, Err: errors.New(message)}
}

func (c *Client) do(ctx context.Context, op, approvalID, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &approval.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &approval.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	slog.Debug("pipeline api call",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"latency_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode >= 400 {
		return classify(op, approvalID, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &approval.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classify(op, approvalID string, status int, body []byte) error {
	var parsed errorResponse
	_ = json.Unmarshal(body, &parsed)
	message := strings.TrimSpace(parsed.Message)
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusConflict:
		return &approval.ConflictError{ApprovalID: approvalID, Status: parsed.Status}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		code := strings.TrimSpace(parsed.Code)
		if code == "" {
			code = "rejected_by_server"
		}
		return approval.NewValidationError(code, fmt.Sprintf("%s: %s", op, message), nil)
	}
	return &approval.TransportError{Op: op, StatusCode: status, Err: errors.New(message)}
}
