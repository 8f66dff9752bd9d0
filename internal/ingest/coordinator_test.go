package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/clearpath-legal/riskline/internal/index"
)

type mockSource struct {
	documentsFunc func(ctx context.Context, reviewID string) ([]Document, error)
}

func (m *mockSource) Documents(ctx context.Context, reviewID string) ([]Document, error) {
	return m.documentsFunc(ctx, reviewID)
}

type mockEmbedder struct{}

func (mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type mockIndexer struct {
	mu          sync.Mutex
	bulkCalls   int
	ensureCalls int
	records     []index.ChunkRecord
	bulkErr     error
}

func (m *mockIndexer) EnsureIndex(ctx context.Context, schema index.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
	return nil
}

func (m *mockIndexer) BulkIndex(ctx context.Context, records []index.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkCalls++
	m.records = records
	return m.bulkErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func oneDocSource() *mockSource {
	return &mockSource{
		documentsFunc: func(ctx context.Context, reviewID string) ([]Document, error) {
			return []Document{{
				ID:   "doc-1",
				Name: "msa.pdf",
				Text: strings.Repeat("the contractor shall perform ", 40),
			}}, nil
		},
	}
}

func TestEnsureIngestsOnce(t *testing.T) {
	indexer := &mockIndexer{}
	c := NewCoordinator(oneDocSource(), mockEmbedder{}, indexer, discardLogger())

	info, err := c.Ensure(context.Background(), "rev-1", 900, false)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if info.IngestedDocs != 1 || info.IngestedChunks == 0 {
		t.Errorf("info = %+v, want 1 doc and some chunks", info)
	}
	if c.StatusFor("rev-1") != StatusIngested {
		t.Errorf("status = %q, want INGESTED", c.StatusFor("rev-1"))
	}

	info, err = c.Ensure(context.Background(), "rev-1", 900, false)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if info.Reason != "already_ingested" {
		t.Errorf("reason = %q, want already_ingested", info.Reason)
	}
	if indexer.bulkCalls != 1 {
		t.Errorf("bulk calls = %d, want 1", indexer.bulkCalls)
	}
}

func TestEnsureNoDocuments(t *testing.T) {
	source := &mockSource{
		documentsFunc: func(ctx context.Context, reviewID string) ([]Document, error) {
			return nil, nil
		},
	}
	c := NewCoordinator(source, mockEmbedder{}, &mockIndexer{}, discardLogger())

	info, err := c.Ensure(context.Background(), "rev-1", 900, false)
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("err = %v, want ErrNoDocuments", err)
	}
	if info.Reason != "no_docs" {
		t.Errorf("reason = %q, want no_docs", info.Reason)
	}
	if c.StatusFor("rev-1") == StatusIngested {
		t.Error("review marked ingested despite failure")
	}
}

func TestEnsureSkipsEmptyDocs(t *testing.T) {
	source := &mockSource{
		documentsFunc: func(ctx context.Context, reviewID string) ([]Document, error) {
			return []Document{
				{ID: "doc-1", Name: "empty.pdf", Text: ""},
				{ID: "doc-2", Name: "sow.pdf", Text: "deliverables must be accepted in writing"},
			}, nil
		},
	}
	indexer := &mockIndexer{}
	c := NewCoordinator(source, mockEmbedder{}, indexer, discardLogger())

	info, err := c.Ensure(context.Background(), "rev-1", 900, false)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if info.SkippedDocs != 1 || info.IngestedDocs != 1 {
		t.Errorf("info = %+v, want 1 skipped and 1 ingested", info)
	}
	for _, r := range indexer.records {
		if r.DocID != "doc-2" {
			t.Errorf("indexed record from %q, want only doc-2", r.DocID)
		}
		if r.ReviewID != "rev-1" {
			t.Errorf("record review id = %q, want rev-1", r.ReviewID)
		}
	}
}

func TestRunReingestsOnceOnEmptyRetrieval(t *testing.T) {
	indexer := &mockIndexer{}
	c := NewCoordinator(oneDocSource(), mockEmbedder{}, indexer, discardLogger())

	attempts := 0
	info, err := c.Run(context.Background(), "rev-1", 900, func(ctx context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, nil
		}
		return 5, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !info.AutoReingestUsed {
		t.Error("AutoReingestUsed = false, want true")
	}
	if attempts != 2 {
		t.Errorf("retrieve attempts = %d, want 2", attempts)
	}
	if indexer.bulkCalls != 2 {
		t.Errorf("bulk calls = %d, want 2 (initial + reingest)", indexer.bulkCalls)
	}
}

func TestRunStopsAfterSecondEmptyRetrieval(t *testing.T) {
	indexer := &mockIndexer{}
	c := NewCoordinator(oneDocSource(), mockEmbedder{}, indexer, discardLogger())

	attempts := 0
	_, err := c.Run(context.Background(), "rev-1", 900, func(ctx context.Context) (int, error) {
		attempts++
		return 0, nil
	})
	if !errors.Is(err, ErrRetrievalEmpty) {
		t.Fatalf("err = %v, want ErrRetrievalEmpty", err)
	}
	if attempts != 2 {
		t.Errorf("retrieve attempts = %d, want exactly 2 (never a third)", attempts)
	}
	if indexer.bulkCalls != 2 {
		t.Errorf("bulk calls = %d, want 2", indexer.bulkCalls)
	}
}

func TestRunNoReingestWhenHitsFound(t *testing.T) {
	indexer := &mockIndexer{}
	c := NewCoordinator(oneDocSource(), mockEmbedder{}, indexer, discardLogger())

	info, err := c.Run(context.Background(), "rev-1", 900, func(ctx context.Context) (int, error) {
		return 3, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if info.AutoReingestUsed {
		t.Error("AutoReingestUsed = true without an empty retrieval")
	}
	if indexer.bulkCalls != 1 {
		t.Errorf("bulk calls = %d, want 1", indexer.bulkCalls)
	}
}
