package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/difyrun/internal/batch/metrics"
	"github.com/vietddude/difyrun/internal/core/domain"
	"github.com/vietddude/difyrun/internal/infra/ledger"
)

// Options controls one batch invocation.
type Options struct {
	// RetryMode restricts the working set to ids in the retry ledger.
	RetryMode bool
	// Wait is an optional delay between successive rows, skipped after the
	// last row. It throttles request rate; retries of one row are governed
	// by the backoff policy instead.
	Wait time.Duration
}

// Processor runs the batch loop: one row fully resolved, retries included,
// before the next row begins. The only abort condition is a fatal outcome.
type Processor struct {
	executor *Executor
	ledger   *ledger.Ledger
	progress *Progress
	log      *slog.Logger
	out      io.Writer

	// wait implements the inter-row throttle delay; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewProcessor creates a batch processor writing outcomes to lgr.
func NewProcessor(executor *Executor, lgr *ledger.Ledger) *Processor {
	return &Processor{
		executor: executor,
		ledger:   lgr,
		log:      slog.Default(),
		out:      os.Stdout,
		wait:     sleepCtx,
	}
}

// Run processes the working set in input order. The returned summary is
// always non-nil; the error is non-nil only on a fatal abort and wraps the
// triggering error.
func (p *Processor) Run(ctx context.Context, rows []domain.Row, opts Options) (*domain.RunSummary, error) {
	start := time.Now()
	summary := &domain.RunSummary{RunID: uuid.NewString()}

	if opts.RetryMode {
		if rows = p.filterForRetry(rows); rows == nil {
			summary.Elapsed = time.Since(start)
			return summary, nil
		}
	}

	summary.Total = len(rows)
	if summary.Total == 0 {
		p.log.Info("No rows to process")
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	p.log.Info("Starting batch processing", "run_id", summary.RunID, "rows", summary.Total)
	p.progress = NewProgress(summary.Total)
	p.progress.out = p.out

	var fatalErr error
	for i, row := range rows {
		p.log.Info("Processing row", "index", fmt.Sprintf("%d/%d", i+1, summary.Total), "id", row.ID)

		outcome := p.executor.Execute(ctx, row)
		summary.Processed++
		metrics.RowsProcessed.WithLabelValues(string(outcome.Status)).Inc()

		switch outcome.Status {
		case domain.StatusSuccess:
			// Success wins over a stale ledger entry: append first, then
			// clear, so a crash between the two is re-derivable.
			if err := p.ledger.AppendSuccess(outcome.Record); err != nil {
				return summary, fmt.Errorf("append success for %s: %w", row.ID, err)
			}
			if err := p.ledger.ClearFailed(row.ID); err != nil {
				return summary, fmt.Errorf("clear failed id %s: %w", row.ID, err)
			}
			summary.Success++
			p.progress.Update(domain.StatusSuccess)

		case domain.StatusSkipped:
			summary.Skipped++
			p.log.Warn("Skipping row, input rejected", "id", row.ID, "error", outcome.Err)
			p.progress.Update(domain.StatusSkipped)

		case domain.StatusExhausted:
			if err := p.ledger.MarkFailed(row.ID); err != nil {
				return summary, fmt.Errorf("mark failed id %s: %w", row.ID, err)
			}
			summary.Exhausted++
			p.log.Error("Row failed after retries", "id", row.ID, "retries", outcome.RetryCount, "error", outcome.Err)
			p.progress.Update(domain.StatusExhausted)

		case domain.StatusFatal:
			summary.Aborted = true
			summary.AbortedID = row.ID
			summary.Remaining = summary.Total - summary.Processed
			summary.Elapsed = time.Since(start)
			fatalErr = fmt.Errorf("fatal error on row %s, aborting batch: %w", row.ID, outcome.Err)
			p.log.Error("Fatal error, aborting batch",
				"id", row.ID,
				"processed", summary.Processed,
				"remaining", summary.Remaining,
				"error", outcome.Err)
			p.finish(summary)
			return summary, fatalErr
		}

		if i < summary.Total-1 && opts.Wait > 0 {
			if err := p.wait(ctx, opts.Wait); err != nil {
				summary.Remaining = summary.Total - summary.Processed
				summary.Elapsed = time.Since(start)
				return summary, err
			}
		}
	}

	summary.Elapsed = time.Since(start)
	p.finish(summary)
	return summary, nil
}

// filterForRetry restricts rows to ids in the retry ledger. A ledger id with
// no matching input row is a warning, not an error, and stays in the ledger.
// A nil return means there was nothing to retry.
func (p *Processor) filterForRetry(rows []domain.Row) []domain.Row {
	failedIDs := p.ledger.FailedIDs()
	if len(failedIDs) == 0 {
		p.log.Info("No failed ids in retry ledger. Nothing to retry.")
		return nil
	}
	p.log.Info("Retry mode", "failed_ids", len(failedIDs))

	failed := make(map[string]struct{}, len(failedIDs))
	for _, id := range failedIDs {
		failed[id] = struct{}{}
	}

	filtered := make([]domain.Row, 0, len(failedIDs))
	for _, row := range rows {
		if _, ok := failed[row.ID]; ok {
			filtered = append(filtered, row)
			delete(failed, row.ID)
		}
	}
	for id := range failed {
		p.log.Warn("Failed id has no matching input row, leaving it in the ledger", "id", id)
	}
	return filtered
}

func (p *Processor) finish(summary *domain.RunSummary) {
	if p.progress != nil {
		p.progress.Summary()
	}

	remaining := p.ledger.FailedIDs()
	if len(remaining) > 0 {
		p.log.Info("Some rows failed. Retry with --retry.", "failed", len(remaining))
		return
	}
	if !summary.Aborted {
		p.log.Info("All rows processed successfully")
		if err := p.ledger.Clear(); err != nil {
			p.log.Warn("Failed to remove retry ledger", "error", err)
		}
	}
}
