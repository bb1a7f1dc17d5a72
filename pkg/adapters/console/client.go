package console

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

	"github.com/aretw0/pipeprep/internal/logging"
	"github.com/aretw0/pipeprep/pkg/domain"
)

// DefaultTimeout bounds a single console request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// APIError is a non-2xx response from the console API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("console api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("console api %d: %s", e.Status, e.Message)
}

// Client talks to the pipeline console API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a console API client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchProcessingParams implements ports.ParamFetcher.
func (c *Client) FetchProcessingParams(ctx context.Context, pipelineID, nodeID string) (*domain.ProcessingParams, error) {
	path := fmt.Sprintf("/rag/pipelines/%s/workflows/draft/processing/parameters?node_id=%s",
		url.PathEscape(pipelineID), url.QueryEscape(nodeID))

	var params domain.ProcessingParams
	if err := c.do(ctx, http.MethodGet, path, nil, &params); err != nil {
		return nil, err
	}
	if params.Variables == nil {
		params.Variables = []domain.Variable{}
	}
	return &params, nil
}

// Dispatcher returns a ports.RunDispatcher that runs the draft workflow of pipelineID.
func (c *Client) Dispatcher(pipelineID string) *Dispatcher {
	return &Dispatcher{client: c, pipelineID: pipelineID}
}

// Dispatcher posts run requests to the console.
type Dispatcher struct {
	client     *Client
	pipelineID string
}

type runResponse struct {
	WorkflowRunID string `json:"workflow_run_id"`
	TaskID        string `json:"task_id"`
}

// HandleRun implements ports.RunDispatcher.
func (d *Dispatcher) HandleRun(ctx context.Context, req domain.RunRequest) (string, error) {
	path := fmt.Sprintf("/rag/pipelines/%s/workflows/draft/run", url.PathEscape(d.pipelineID))

	var resp runResponse
	if err := d.client.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}
	if resp.WorkflowRunID != "" {
		return resp.WorkflowRunID, nil
	}
	if resp.TaskID != "" {
		return resp.TaskID, nil
	}
	return "", errors.New("console run response carries no run id")
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("console request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("console request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode console response: %w", err)
	}
	return nil
}
