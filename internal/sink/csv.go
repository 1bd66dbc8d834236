package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/dgellow/oauth-bench/internal/benchmark"
)

var _ benchmark.Sink = (*CSVSink)(nil)

// CSVSink appends records to a local CSV file, writing the header when
// the file is new or empty
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSVSink creates a sink appending to path
func NewCSVSink(path string) (*CSVSink, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return &CSVSink{path: path}, nil
}

func (c *CSVSink) Write(_ context.Context, rec benchmark.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", c.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(benchmark.Fields); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	values := rec.Values()
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = formatCell(v)
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	w.Flush()
	return w.Error()
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
