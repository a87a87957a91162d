package domain

// Status is the terminal classification of processing one row.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusSkipped   Status = "skipped"
	StatusFatal     Status = "fatal"
	StatusExhausted Status = "exhausted"
)

// Class buckets a workflow call error by how the batch reacts to it.
type Class int

const (
	// ClassRetryable covers transient failures: rate limits, timeouts, 5xx, network.
	ClassRetryable Class = iota
	// ClassSkippable covers row-local input rejections. Other rows are unaffected.
	ClassSkippable
	// ClassFatal covers credential/authorization failures that invalidate the whole run.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassSkippable:
		return "skippable"
	case ClassFatal:
		return "fatal"
	default:
		return "retryable"
	}
}

// Outcome is the terminal result of processing one row, retries included.
// Record is set only when Status is StatusSuccess; Err carries the last
// error for the failure variants.
type Outcome struct {
	Status     Status
	ID         string
	Record     *SuccessRecord
	Err        error
	RetryCount int
}

// SuccessRecord is one line of the output log.
type SuccessRecord struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Inputs        map[string]string `json:"inputs"`
	Outputs       map[string]any    `json:"outputs"`
	WorkflowRunID string            `json:"workflow_run_id"`
	ExecutedAt    string            `json:"executed_at"`
	RetryCount    int               `json:"retry_count"`
}

// CallResult is the payload of one successful workflow call.
type CallResult struct {
	WorkflowRunID string
	Outputs       map[string]any
}
