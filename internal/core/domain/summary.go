package domain

import "time"

// RunSummary reports the counts of one batch invocation.
type RunSummary struct {
	RunID     string
	Total     int // rows in the working set
	Processed int // rows attempted, the aborting row included
	Success   int
	Skipped   int
	Exhausted int
	Aborted   bool
	AbortedID string // row that triggered the fatal abort, if any
	Remaining int    // rows never attempted due to an abort
	Elapsed   time.Duration
}
