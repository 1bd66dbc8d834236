package sink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgellow/oauth-bench/internal/benchmark"
	"github.com/dgellow/oauth-bench/internal/config"
	"github.com/dgellow/oauth-bench/internal/log"
)

var _ benchmark.Sink = Multi(nil)

// Multi writes each record to every sink in order. A failing sink does
// not stop the others; their errors are joined.
type Multi []benchmark.Sink

func (m Multi) Write(ctx context.Context, rec benchmark.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// New builds the configured sinks. Sinks created before a failure are closed.
func New(ctx context.Context, cfgs []config.SinkConfig) (Multi, error) {
	sinks := make(Multi, 0, len(cfgs))
	for i, cfg := range cfgs {
		s, err := newSink(ctx, cfg)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("sinks[%d]: %w", i, err)
		}
		sinks = append(sinks, s)
	}

	if len(sinks) == 0 {
		log.LogWarn("No sinks configured, benchmark records will only be logged")
	}
	return sinks, nil
}

func newSink(ctx context.Context, cfg config.SinkConfig) (benchmark.Sink, error) {
	switch cfg.Kind {
	case config.SinkSheets:
		return NewSheetsSink(ctx, cfg)
	case config.SinkFirestore:
		collection := cfg.Collection
		if collection == "" {
			collection = config.DefaultResultsCollection
		}
		return NewFirestoreSink(ctx, cfg.GCPProject, cfg.FirestoreDatabase, collection)
	case config.SinkCSV:
		path := cfg.Path
		if path == "" {
			path = config.DefaultCSVPath
		}
		return NewCSVSink(path)
	default:
		return nil, fmt.Errorf("unsupported sink kind %q", cfg.Kind)
	}
}
