package index

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// DialFunc builds a fresh authenticated Backend. It is called lazily on
// first use and again whenever a session rebuild is needed, so it must
// obtain fresh credentials on every call.
type DialFunc func(ctx context.Context) (Backend, error)

// SessionClient wraps a Backend with a retry-once-on-auth-expiry policy.
//
// The connection handle is shared process-wide. Rebuilds are guarded by a
// mutex and a generation counter: concurrent callers that observed the same
// stale generation either reuse the connection another caller already
// rebuilt, or perform exactly one rebuild themselves. The handle is always
// replaced atomically, never mutated in place.
type SessionClient struct {
	dial   DialFunc
	logger *slog.Logger

	mu      sync.Mutex
	backend Backend
	gen     uint64
}

// NewSessionClient creates a SessionClient around dial. No connection is
// established until the first operation.
func NewSessionClient(dial DialFunc) *SessionClient {
	return &SessionClient{dial: dial, logger: slog.Default()}
}

// current returns the live backend and its generation, dialing on first use.
func (c *SessionClient) current(ctx context.Context) (Backend, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		b, err := c.dial(ctx)
		if err != nil {
			return nil, 0, err
		}
		c.backend = b
		c.gen++
	}
	return c.backend, c.gen, nil
}

// rebuild replaces the backend unless another caller already rebuilt past
// the generation this caller observed.
func (c *SessionClient) rebuild(ctx context.Context, seen uint64) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != seen && c.backend != nil {
		return c.backend, nil
	}

	b, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.backend = b
	c.gen++
	return b, nil
}

// do runs fn against the current backend, rebuilding the session and
// retrying exactly once if the backend signals auth expiry. A second
// failure after the retry surfaces as an UnavailableError and is never
// retried again.
func (c *SessionClient) do(ctx context.Context, op string, fn func(Backend) error) error {
	b, gen, err := c.current(ctx)
	if err != nil {
		return &UnavailableError{Op: op, Err: err}
	}

	err = fn(b)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrAuthExpired) {
		return err
	}

	c.logger.Warn("index session expired, rebuilding client", "op", op)

	nb, rerr := c.rebuild(ctx, gen)
	if rerr != nil {
		return &UnavailableError{Op: op, Retried: true, Err: rerr}
	}
	if err := fn(nb); err != nil {
		return &UnavailableError{Op: op, Retried: true, Err: err}
	}
	return nil
}

// Search runs a similarity query under the session retry policy.
func (c *SessionClient) Search(ctx context.Context, q Query) ([]Hit, error) {
	var hits []Hit
	err := c.do(ctx, "search", func(b Backend) error {
		h, err := b.Search(ctx, q)
		if err != nil {
			return err
		}
		hits = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// BulkIndex upserts chunk records under the session retry policy.
func (c *SessionClient) BulkIndex(ctx context.Context, records []ChunkRecord) error {
	return c.do(ctx, "bulk_index", func(b Backend) error {
		return b.BulkIndex(ctx, records)
	})
}

// IndexExists reports whether the index exists under the session retry policy.
func (c *SessionClient) IndexExists(ctx context.Context) (bool, error) {
	var exists bool
	err := c.do(ctx, "index_exists", func(b Backend) error {
		ok, err := b.IndexExists(ctx)
		if err != nil {
			return err
		}
		exists = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CreateIndex creates the index under the session retry policy.
func (c *SessionClient) CreateIndex(ctx context.Context, schema Schema) error {
	return c.do(ctx, "create_index", func(b Backend) error {
		return b.CreateIndex(ctx, schema)
	})
}

// EnsureIndex creates the index if it does not already exist. Creation is
// idempotent on all backends.
func (c *SessionClient) EnsureIndex(ctx context.Context, schema Schema) error {
	exists, err := c.IndexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return c.CreateIndex(ctx, schema)
}
