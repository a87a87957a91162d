package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vietddude/difyrun/internal/core/domain"
)

// RetrySuffix is appended to the output path to derive the retry ledger file.
const RetrySuffix = ".retry"

// utf8BOM keeps the artifacts loadable by spreadsheet tools.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RetryPath derives the retry ledger path for an output log path.
func RetryPath(outputPath string) string {
	return outputPath + RetrySuffix
}

// Ledger owns the two persisted artifacts of a batch run: the append-only
// JSONL output log and the retry ledger holding currently failed ids. A
// single Ledger is the only writer of both for the process's lifetime.
type Ledger struct {
	outputPath string
	retryPath  string
	out        *os.File
	failed     map[string]struct{}
}

// Open loads the retry ledger (missing file means no known failures) and
// opens the output log for appending, creating it with a BOM if new.
func Open(outputPath string) (*Ledger, error) {
	failed, err := LoadFailedIDs(outputPath)
	if err != nil {
		return nil, err
	}

	out, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output log: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("stat output log: %w", err)
	}
	if info.Size() == 0 {
		if _, err := out.Write(utf8BOM); err != nil {
			out.Close()
			return nil, fmt.Errorf("write bom: %w", err)
		}
	}

	return &Ledger{
		outputPath: outputPath,
		retryPath:  RetryPath(outputPath),
		out:        out,
		failed:     failed,
	}, nil
}

// AppendSuccess durably appends one success record to the output log.
// Existing bytes are never rewritten.
func (l *Ledger) AppendSuccess(rec *domain.SuccessRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.out.Write(data); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	if err := l.out.Sync(); err != nil {
		return fmt.Errorf("sync output log: %w", err)
	}
	return nil
}

// MarkFailed ensures id is present in the retry ledger. Idempotent.
func (l *Ledger) MarkFailed(id string) error {
	if _, ok := l.failed[id]; ok {
		return nil
	}
	l.failed[id] = struct{}{}
	return l.writeRetryFile()
}

// ClearFailed removes id from the retry ledger if present. No-op if absent.
func (l *Ledger) ClearFailed(id string) error {
	if _, ok := l.failed[id]; !ok {
		return nil
	}
	delete(l.failed, id)
	return l.writeRetryFile()
}

// FailedIDs returns the currently outstanding failed ids, sorted.
func (l *Ledger) FailedIDs() []string {
	ids := make([]string, 0, len(l.failed))
	for id := range l.failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear removes the retry ledger file entirely.
func (l *Ledger) Clear() error {
	l.failed = make(map[string]struct{})
	if err := os.Remove(l.retryPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove retry ledger: %w", err)
	}
	return nil
}

// Close closes the output log.
func (l *Ledger) Close() error {
	return l.out.Close()
}

// writeRetryFile rewrites the whole current failed-id set. The write goes
// through a temp file and a rename so a crash never leaves a half-written
// ledger visible to the next run.
func (l *Ledger) writeRetryFile() error {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	for _, id := range l.FailedIDs() {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.retryPath), ".retry-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.retryPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit retry ledger: %w", err)
	}
	return nil
}

// LoadFailedIDs reads the retry ledger for an output path. A missing or
// empty file both mean no currently known failures.
func LoadFailedIDs(outputPath string) (map[string]struct{}, error) {
	f, err := os.Open(RetryPath(outputPath))
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]struct{}), nil
		}
		return nil, fmt.Errorf("open retry ledger: %w", err)
	}
	defer f.Close()

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, string(utf8BOM))
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ids[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read retry ledger: %w", err)
	}
	return ids, nil
}

// CountSuccesses counts the records in an output log. Used by the status
// command; a missing log counts as zero.
func CountSuccesses(outputPath string) (int, error) {
	f, err := os.Open(outputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open output log: %w", err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), string(utf8BOM)))
		if line != "" {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read output log: %w", err)
	}
	return count, nil
}
