package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/difyrun/internal/core/domain"
)

// DefaultBaseURL is the public Dify API endpoint.
const DefaultBaseURL = "https://api.dify.ai/v1"

// Client invokes the Dify workflow-run API in blocking mode.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Dify API client. An empty baseURL falls back to
// DefaultBaseURL; timeout bounds the whole request including the body read.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type runRequest struct {
	Inputs       map[string]string `json:"inputs"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

type runResponse struct {
	WorkflowRunID string `json:"workflow_run_id"`
	TaskID        string `json:"task_id"`
	Data          struct {
		ID      string         `json:"id"`
		Status  string         `json:"status"`
		Outputs map[string]any `json:"outputs"`
		Error   string         `json:"error"`
	} `json:"data"`
}

// RunWorkflow executes the workflow synchronously for one set of inputs.
// Non-2xx responses map to the typed errors in this package.
func (c *Client) RunWorkflow(ctx context.Context, inputs map[string]string, user string) (*domain.CallResult, error) {
	reqBody := runRequest{
		Inputs:       inputs,
		ResponseMode: "blocking",
		User:         user,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/workflows/run", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workflow call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: string(body)}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, &ValidationError{StatusCode: resp.StatusCode, Message: string(body)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: resp.Header.Get("Retry-After")}
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var runResp runResponse
	if err := json.Unmarshal(body, &runResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// A 200 can still carry a failed workflow run.
	if runResp.Data.Status != "" && runResp.Data.Status != "succeeded" {
		return nil, &APIError{StatusCode: resp.StatusCode,
			Body: fmt.Sprintf("workflow run %s: %s", runResp.Data.Status, runResp.Data.Error)}
	}

	return &domain.CallResult{
		WorkflowRunID: runResp.WorkflowRunID,
		Outputs:       runResp.Data.Outputs,
	}, nil
}
