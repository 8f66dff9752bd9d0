// Package index provides access to the vector index holding embedded
// document chunks. A single Backend interface covers the four wire
// operations (search, bulk upsert, index-exists, index-create); the
// SessionClient wraps any Backend with session rebuild on auth expiry.
package index

import (
	"context"
	"errors"
	"fmt"
)

// ChunkRecord is one indexed chunk of a review document. Offsets are
// character positions into the original document text.
type ChunkRecord struct {
	ReviewID   string
	DocID      string
	DocName    string
	ChunkID    string
	ChunkIndex int
	CharStart  int
	CharEnd    int
	Text       string
	Embedding  []float32
}

// Hit is a similarity search result. Score is cosine similarity; higher
// is more relevant.
type Hit struct {
	ReviewID  string
	DocID     string
	DocName   string
	ChunkID   string
	CharStart int
	CharEnd   int
	Text      string
	Score     float32
}

// Query is a bounded top-K similarity search scoped to a single review.
type Query struct {
	Vector   []float32
	TopK     int
	ReviewID string
}

// Schema describes the index to create. Backends that manage their own
// schema may ignore fields they do not need.
type Schema struct {
	VectorDim int
}

// Backend is the wire contract of the vector index. Implementations must
// return an error wrapping ErrAuthExpired when the backend signals an
// authentication/session failure, so the SessionClient can rebuild.
type Backend interface {
	Search(ctx context.Context, q Query) ([]Hit, error)
	BulkIndex(ctx context.Context, records []ChunkRecord) error
	IndexExists(ctx context.Context) (bool, error)
	CreateIndex(ctx context.Context, schema Schema) error
}

// ErrAuthExpired signals that the index session/credentials are no longer
// valid and the connection must be rebuilt before retrying.
var ErrAuthExpired = errors.New("index auth expired")

// ErrUnavailable matches any UnavailableError via errors.Is.
var ErrUnavailable = errors.New("index unavailable")

// UnavailableError is fatal for the operation that produced it: either the
// single auth-expiry retry was exhausted or the backend could not be
// reached at all.
type UnavailableError struct {
	Op      string
	Retried bool
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Retried {
		return fmt.Sprintf("index unavailable: %s failed after session rebuild: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("index unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }
