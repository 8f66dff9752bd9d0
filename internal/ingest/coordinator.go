package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/clearpath-legal/riskline/internal/index"
)

var (
	// ErrNoDocuments indicates the review has no documents to ingest.
	ErrNoDocuments = errors.New("review has no documents")
	// ErrRetrievalEmpty indicates retrieval found nothing even after an
	// automatic re-ingest.
	ErrRetrievalEmpty = errors.New("retrieval returned no hits")
)

// Document is a review document ready for chunking.
type Document struct {
	ID   string
	Name string
	Text string
}

// DocumentSource loads the documents attached to a review.
type DocumentSource interface {
	Documents(ctx context.Context, reviewID string) ([]Document, error)
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer is the index write surface the coordinator needs.
type Indexer interface {
	EnsureIndex(ctx context.Context, schema index.Schema) error
	BulkIndex(ctx context.Context, records []index.ChunkRecord) error
}

// Status tracks a review's ingestion lifecycle within this process.
type Status string

const (
	StatusNotIngested Status = "NOT_INGESTED"
	StatusIngesting   Status = "INGESTING"
	StatusIngested    Status = "INGESTED"
	StatusReingesting Status = "REINGESTING"
)

// Info summarizes what an ingestion pass did.
type Info struct {
	IngestedDocs     int    `json:"ingestedDocs"`
	IngestedChunks   int    `json:"ingestedChunks"`
	SkippedDocs      int    `json:"skippedDocs"`
	Reason           string `json:"reason,omitempty"`
	AutoReingestUsed bool   `json:"autoReingestUsed,omitempty"`
}

// Coordinator serializes ingestion per review and triggers at most one
// automatic re-ingest when retrieval comes back empty.
type Coordinator struct {
	source   DocumentSource
	embedder Embedder
	indexer  Indexer
	logger   *slog.Logger

	// Overlap applies to every chunk window; chunk size comes from the
	// retrieval profile per call.
	Overlap int

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	status map[string]Status
}

// NewCoordinator creates a Coordinator with a 200-character chunk overlap.
func NewCoordinator(source DocumentSource, embedder Embedder, indexer Indexer, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		source:   source,
		embedder: embedder,
		indexer:  indexer,
		logger:   logger,
		Overlap:  200,
		locks:    make(map[string]*sync.Mutex),
		status:   make(map[string]Status),
	}
}

func (c *Coordinator) reviewLock(reviewID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[reviewID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[reviewID] = l
	}
	return l
}

func (c *Coordinator) getStatus(reviewID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.status[reviewID]
	if !ok {
		return StatusNotIngested
	}
	return s
}

func (c *Coordinator) setStatus(reviewID string, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[reviewID] = s
}

// Ensure ingests the review's documents unless they are already indexed.
// force re-ingests even when the review is marked ingested; this is the
// single re-ingest path and callers must not loop on it.
func (c *Coordinator) Ensure(ctx context.Context, reviewID string, chunkSize int, force bool) (Info, error) {
	lock := c.reviewLock(reviewID)
	lock.Lock()
	defer lock.Unlock()

	if c.getStatus(reviewID) == StatusIngested && !force {
		return Info{Reason: "already_ingested"}, nil
	}

	if force {
		c.setStatus(reviewID, StatusReingesting)
	} else {
		c.setStatus(reviewID, StatusIngesting)
	}

	info, err := c.ingest(ctx, reviewID, chunkSize)
	if err != nil {
		c.setStatus(reviewID, StatusNotIngested)
		return info, err
	}
	c.setStatus(reviewID, StatusIngested)
	return info, nil
}

// Status reports the review's current ingestion state.
func (c *Coordinator) StatusFor(reviewID string) Status {
	return c.getStatus(reviewID)
}

func (c *Coordinator) ingest(ctx context.Context, reviewID string, chunkSize int) (Info, error) {
	docs, err := c.source.Documents(ctx, reviewID)
	if err != nil {
		return Info{}, fmt.Errorf("loading documents for review %s: %w", reviewID, err)
	}
	if len(docs) == 0 {
		return Info{Reason: "no_docs"}, ErrNoDocuments
	}

	var info Info
	var records []index.ChunkRecord
	var texts []string
	for _, doc := range docs {
		if doc.Text == "" {
			info.SkippedDocs++
			continue
		}
		chunks := ChunkText(doc.Text, chunkSize, c.Overlap)
		if len(chunks) == 0 {
			info.SkippedDocs++
			continue
		}
		for _, ch := range chunks {
			records = append(records, index.ChunkRecord{
				ReviewID:   reviewID,
				DocID:      doc.ID,
				DocName:    doc.Name,
				ChunkID:    ch.ID,
				ChunkIndex: ch.Index,
				CharStart:  ch.CharStart,
				CharEnd:    ch.CharEnd,
				Text:       ch.Text,
			})
			texts = append(texts, ch.Text)
		}
		info.IngestedDocs++
	}

	if len(records) == 0 {
		info.Reason = "no_docs"
		return info, ErrNoDocuments
	}

	vecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return info, fmt.Errorf("embedding chunks for review %s: %w", reviewID, err)
	}
	for i := range records {
		records[i].Embedding = vecs[i]
	}

	if err := c.indexer.EnsureIndex(ctx, index.Schema{VectorDim: len(vecs[0])}); err != nil {
		return info, fmt.Errorf("ensuring index: %w", err)
	}
	if err := c.indexer.BulkIndex(ctx, records); err != nil {
		return info, fmt.Errorf("indexing chunks for review %s: %w", reviewID, err)
	}

	info.IngestedChunks = len(records)
	c.logger.Info("review ingested",
		"review_id", reviewID,
		"docs", info.IngestedDocs,
		"chunks", info.IngestedChunks,
		"skipped", info.SkippedDocs)
	return info, nil
}

// Run ensures the review is ingested, executes retrieve, and re-ingests
// exactly once if retrieval comes back empty. retrieve reports how many
// hits it found. A second empty retrieval is ErrRetrievalEmpty.
func (c *Coordinator) Run(ctx context.Context, reviewID string, chunkSize int, retrieve func(context.Context) (int, error)) (Info, error) {
	info, err := c.Ensure(ctx, reviewID, chunkSize, false)
	if err != nil {
		return info, err
	}

	hits, err := retrieve(ctx)
	if err != nil {
		return info, err
	}
	if hits > 0 {
		return info, nil
	}

	c.logger.Warn("retrieval empty, re-ingesting once", "review_id", reviewID)
	reInfo, err := c.Ensure(ctx, reviewID, chunkSize, true)
	if err != nil {
		return reInfo, err
	}
	reInfo.AutoReingestUsed = true

	hits, err = retrieve(ctx)
	if err != nil {
		return reInfo, err
	}
	if hits == 0 {
		return reInfo, ErrRetrievalEmpty
	}
	return reInfo, nil
}
