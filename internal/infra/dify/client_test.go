package dify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRunWorkflowSuccess(t *testing.T) {
	var gotAuth string
	var gotBody runRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/workflows/run" {
			t.Errorf("got path %s, want /workflows/run", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"workflow_run_id": "run-123",
			"task_id":         "task-1",
			"data": map[string]any{
				"id":      "run-123",
				"status":  "succeeded",
				"outputs": map[string]any{"answer": "42"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	result, err := client.RunWorkflow(context.Background(), map[string]string{"query": "meaning"}, "batch-executor")
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("got auth header %q, want Bearer test-key", gotAuth)
	}
	if gotBody.ResponseMode != "blocking" {
		t.Errorf("got response_mode %q, want blocking", gotBody.ResponseMode)
	}
	if gotBody.Inputs["query"] != "meaning" {
		t.Errorf("got inputs %v", gotBody.Inputs)
	}
	if result.WorkflowRunID != "run-123" {
		t.Errorf("got run id %q, want run-123", result.WorkflowRunID)
	}
	if result.Outputs["answer"] != "42" {
		t.Errorf("got outputs %v", result.Outputs)
	}
}

func TestRunWorkflowErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		check      func(t *testing.T, err error)
	}{
		{
			name:       "401 maps to AuthError",
			statusCode: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Errorf("got %T, want *AuthError", err)
				}
			},
		},
		{
			name:       "403 maps to AuthError",
			statusCode: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Errorf("got %T, want *AuthError", err)
				}
			},
		},
		{
			name:       "400 maps to ValidationError",
			statusCode: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				var valErr *ValidationError
				if !errors.As(err, &valErr) {
					t.Errorf("got %T, want *ValidationError", err)
				}
			},
		},
		{
			name:       "429 maps to RateLimitError",
			statusCode: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var rlErr *RateLimitError
				if !errors.As(err, &rlErr) {
					t.Errorf("got %T, want *RateLimitError", err)
				}
			},
		},
		{
			name:       "500 maps to APIError",
			statusCode: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Errorf("got %T, want *APIError", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := NewClient(server.URL, "test-key", 5*time.Second)
			_, err := client.RunWorkflow(context.Background(), map[string]string{}, "batch-executor")
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestRunWorkflowFailedRun(t *testing.T) {
	// A 200 response can still report a failed workflow run.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"workflow_run_id": "run-9",
			"data": map[string]any{
				"status": "failed",
				"error":  "node timed out",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	_, err := client.RunWorkflow(context.Background(), map[string]string{}, "batch-executor")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want *APIError for failed run", err)
	}
}

func TestNewClientDefaultBaseURL(t *testing.T) {
	client := NewClient("", "key", time.Second)
	if client.baseURL != DefaultBaseURL {
		t.Errorf("got %q, want %q", client.baseURL, DefaultBaseURL)
	}
}
