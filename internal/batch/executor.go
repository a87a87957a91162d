package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/difyrun/internal/batch/metrics"
	"github.com/vietddude/difyrun/internal/batch/retry"
	"github.com/vietddude/difyrun/internal/core/domain"
)

// Invoker performs one remote workflow call.
type Invoker interface {
	RunWorkflow(ctx context.Context, inputs map[string]string, user string) (*domain.CallResult, error)
}

// DefaultUser identifies this tool to the workflow API.
const DefaultUser = "batch-executor"

// Executor resolves one row to a terminal outcome, retrying transient
// failures with exponential backoff. Stateless across calls; the backoff
// sleeps are its only suspension points.
type Executor struct {
	invoker    Invoker
	policy     retry.Policy
	maxRetries int
	user       string

	// sleep waits for the backoff delay; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a row executor. maxRetries is the number of retries
// after the first attempt; 0 means a single attempt.
func NewExecutor(invoker Invoker, maxRetries int, policy retry.Policy) *Executor {
	return &Executor{
		invoker:    invoker,
		policy:     policy,
		maxRetries: maxRetries,
		user:       DefaultUser,
		sleep:      sleepCtx,
	}
}

// Execute attempts the workflow call for one row. Attempt n transitions to
// attempt n+1 only on a retryable error with n < maxRetries, gated by a
// backoff sleep. There is no sleep after the final failed attempt.
func (e *Executor) Execute(ctx context.Context, row domain.Row) domain.Outcome {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		result, err := e.invoker.RunWorkflow(ctx, row.Inputs, e.user)
		metrics.APICallLatency.Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.APICallsTotal.WithLabelValues("success").Inc()
			return domain.Outcome{
				Status: domain.StatusSuccess,
				ID:     row.ID,
				Record: &domain.SuccessRecord{
					ID:            row.ID,
					Status:        string(domain.StatusSuccess),
					Inputs:        row.Inputs,
					Outputs:       result.Outputs,
					WorkflowRunID: result.WorkflowRunID,
					ExecutedAt:    time.Now().UTC().Format(time.RFC3339),
					RetryCount:    attempt,
				},
				RetryCount: attempt,
			}
		}
		metrics.APICallsTotal.WithLabelValues("error").Inc()

		switch retry.Classify(err) {
		case domain.ClassFatal:
			return domain.Outcome{Status: domain.StatusFatal, ID: row.ID, Err: err, RetryCount: attempt}
		case domain.ClassSkippable:
			return domain.Outcome{Status: domain.StatusSkipped, ID: row.ID, Err: err, RetryCount: attempt}
		}

		if attempt >= e.maxRetries {
			return domain.Outcome{Status: domain.StatusExhausted, ID: row.ID, Err: err, RetryCount: attempt}
		}

		delay := e.policy.Delay(attempt)
		slog.Warn("Retrying row",
			"id", row.ID,
			"delay", delay.Round(time.Millisecond),
			"attempt", attempt+1,
			"max_retries", e.maxRetries,
			"error", err)
		metrics.RetriesTotal.Inc()

		if err := e.sleep(ctx, delay); err != nil {
			return domain.Outcome{Status: domain.StatusExhausted, ID: row.ID, Err: err, RetryCount: attempt}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
