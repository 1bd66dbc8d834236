package sink

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/oauth-bench/internal/benchmark"
)

var _ benchmark.Sink = (*FirestoreSink)(nil)

// FirestoreSink adds one document per record to a collection
type FirestoreSink struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreSink creates a sink writing to projectID/database/collection
func NewFirestoreSink(ctx context.Context, projectID, database, collection string) (*FirestoreSink, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error

	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreSink{client: client, collection: collection}, nil
}

func (f *FirestoreSink) Write(ctx context.Context, rec benchmark.Record) error {
	if _, _, err := f.client.Collection(f.collection).Add(ctx, rec); err != nil {
		return fmt.Errorf("failed to store benchmark record: %w", err)
	}
	return nil
}

// Close closes the Firestore client
func (f *FirestoreSink) Close() error {
	return f.client.Close()
}
