package input

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vietddude/difyrun/internal/core/domain"
)

// Reader parses the input CSV into rows. The first column set must contain
// an "id" column; ids must be unique across the file.
type Reader struct {
	path string
}

// NewReader validates that the input file exists.
func NewReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("input file not found: %s", path)
	}
	return &Reader{path: path}, nil
}

// Rows reads the whole file in order. Rows with an empty id are skipped
// with a warning; a duplicate id is a format error.
func (r *Reader) Rows() ([]domain.Row, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(stripBOM(f))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("input file has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idCol := -1
	for i, h := range headers {
		if h == "id" {
			idCol = i
			break
		}
	}
	if idCol == -1 {
		return nil, fmt.Errorf("input file must have an 'id' column")
	}

	var rows []domain.Row
	seen := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		id := ""
		if idCol < len(record) {
			id = strings.TrimSpace(record[idCol])
		}
		if id == "" {
			slog.Warn("Skipping row with empty id")
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate id %q in input", id)
		}
		seen[id] = struct{}{}

		inputs := make(map[string]string, len(headers)-1)
		for i, h := range headers {
			if i == idCol || i >= len(record) {
				continue
			}
			inputs[h] = record[i]
		}
		rows = append(rows, domain.Row{ID: id, Inputs: inputs})
	}

	return rows, nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err == nil && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}
