package session

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/oauth-bench/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Registry = (*FirestoreRegistry)(nil)

// FirestoreRegistry stores one document per state. Expired documents are
// hidden on read and deleted in batches by CleanupExpired.
type FirestoreRegistry struct {
	client     *firestore.Client
	collection string
	ttl        time.Duration
}

// sessionDoc represents a session document in Firestore
type sessionDoc struct {
	Provider  string    `firestore:"provider"`
	State     string    `firestore:"state"`
	StartTime time.Time `firestore:"start_time"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// NewFirestoreRegistry creates a registry backed by a Firestore collection
func NewFirestoreRegistry(ctx context.Context, projectID, database, collection string, ttl time.Duration) (*FirestoreRegistry, error) {
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

	return &FirestoreRegistry{
		client:     client,
		collection: collection,
		ttl:        ttl,
	}, nil
}

func (f *FirestoreRegistry) Store(ctx context.Context, s Session) error {
	s = stampExpiry(s, time.Now(), f.ttl)

	doc := sessionDoc{
		Provider:  s.Provider,
		State:     s.State,
		StartTime: s.StartTime,
		ExpiresAt: s.ExpiresAt,
	}
	if _, err := f.client.Collection(f.collection).Doc(s.State).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (f *FirestoreRegistry) Get(ctx context.Context, state string) (Session, bool, error) {
	snap, err := f.client.Collection(f.collection).Doc(state).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("failed to get session: %w", err)
	}
	return sessionFromSnapshot(snap, time.Now())
}

// Take reads and deletes the document in one transaction; a concurrent
// Take on the same state aborts and retries, then finds it gone
func (f *FirestoreRegistry) Take(ctx context.Context, state string) (Session, bool, error) {
	ref := f.client.Collection(f.collection).Doc(state)

	var s Session
	var ok bool
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		s, ok = Session{}, false

		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		if s, ok, err = sessionFromSnapshot(snap, time.Now()); err != nil {
			return err
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to take session: %w", err)
	}
	return s, ok, nil
}

func sessionFromSnapshot(snap *firestore.DocumentSnapshot, now time.Time) (Session, bool, error) {
	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return Session{}, false, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	s := Session{
		Provider:  doc.Provider,
		State:     doc.State,
		StartTime: doc.StartTime,
		ExpiresAt: doc.ExpiresAt,
	}
	if s.Expired(now) {
		return Session{}, false, nil
	}
	return s, true, nil
}

func (f *FirestoreRegistry) Clear(ctx context.Context, state string) error {
	if _, err := f.client.Collection(f.collection).Doc(state).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (f *FirestoreRegistry) CleanupExpired(ctx context.Context) (int, error) {
	iter := f.client.Collection(f.collection).
		Where("expires_at", "<=", time.Now()).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	batch := f.client.BulkWriter(ctx)
	defer batch.End()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to iterate expired sessions: %w", err)
		}
		if _, err := batch.Delete(doc.Ref); err != nil {
			return count, fmt.Errorf("failed to queue delete: %w", err)
		}
		count++
	}

	if count > 0 {
		log.LogDebugWithFields("firestore", "Deleted expired sessions", map[string]any{
			"count": count,
		})
	}
	return count, nil
}

func (f *FirestoreRegistry) Close() error {
	return f.client.Close()
}
