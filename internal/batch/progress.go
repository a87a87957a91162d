package batch

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vietddude/difyrun/internal/core/domain"
)

const barLength = 20

// Progress renders a console progress bar with counts and an ETA estimate.
// Purely observational; it never influences control flow.
type Progress struct {
	total     int
	success   int
	skipped   int
	failed    int
	startTime time.Time
	out       io.Writer
}

// NewProgress creates a tracker for total rows, writing to stdout.
func NewProgress(total int) *Progress {
	return &Progress{
		total:     total,
		startTime: time.Now(),
		out:       os.Stdout,
	}
}

// Update records one terminal outcome and redraws the bar.
func (p *Progress) Update(status domain.Status) {
	switch status {
	case domain.StatusSuccess:
		p.success++
	case domain.StatusSkipped:
		p.skipped++
	default:
		p.failed++
	}

	current := p.success + p.skipped + p.failed
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(current) / float64(p.total) * 100
	}

	eta := "N/A"
	if current > 0 {
		elapsed := time.Since(p.startTime)
		avg := elapsed / time.Duration(current)
		eta = formatDuration(avg * time.Duration(p.total-current))
	}

	filled := 0
	if p.total > 0 {
		filled = barLength * current / p.total
	}
	if filled > barLength-1 {
		filled = barLength - 1
	}
	bar := strings.Repeat("=", filled) + ">" + strings.Repeat(" ", barLength-filled-1)

	fmt.Fprintf(p.out, "\rProgress: [%s] %d/%d (%.1f%%) | Success: %d | Skipped: %d | Failed: %d | ETA: %s",
		bar, current, p.total, percentage, p.success, p.skipped, p.failed, eta)
}

// Summary prints the final result block.
func (p *Progress) Summary() {
	fmt.Fprintln(p.out)
	line := strings.Repeat("=", 40)
	fmt.Fprintln(p.out, line)
	fmt.Fprintln(p.out, "Batch Processing Complete")
	fmt.Fprintln(p.out, line)
	fmt.Fprintf(p.out, "Total processed: %d\n", p.success+p.skipped+p.failed)
	fmt.Fprintf(p.out, "Successful: %d\n", p.success)
	fmt.Fprintf(p.out, "Skipped: %d\n", p.skipped)
	fmt.Fprintf(p.out, "Failed: %d\n", p.failed)
	fmt.Fprintf(p.out, "Total time: %s\n", formatDuration(time.Since(p.startTime)))
	fmt.Fprintln(p.out, line)
}

func formatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}
