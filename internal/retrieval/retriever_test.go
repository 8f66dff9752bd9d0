package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/clearpath-legal/riskline/internal/index"
)

type mockEmbedClient struct {
	embedFunc func(ctx context.Context, model, text string) ([]float32, error)
}

func (m *mockEmbedClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return m.embedFunc(ctx, model, text)
}

type mockSearcher struct {
	mu         sync.Mutex
	calls      []index.Query
	searchFunc func(ctx context.Context, q index.Query) ([]index.Hit, error)
}

func (m *mockSearcher) Search(ctx context.Context, q index.Query) ([]index.Hit, error) {
	m.mu.Lock()
	m.calls = append(m.calls, q)
	m.mu.Unlock()
	return m.searchFunc(ctx, q)
}

func unitEmbedder() *Embedder {
	return NewEmbedder(&mockEmbedClient{
		embedFunc: func(ctx context.Context, model, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}, "test-embed")
}

func hit(docID, chunkID string, score float32) index.Hit {
	return index.Hit{DocID: docID, ChunkID: chunkID, Score: score, Text: "t"}
}

func TestRetrieveMergesSectionsAndDedupes(t *testing.T) {
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, q index.Query) ([]index.Hit, error) {
			// Same hit returned for every query; the duplicate must
			// survive only once per section.
			return []index.Hit{
				hit("doc-1", "0:0:900", 0.9),
				hit("doc-1", "1:700:1600", 0.6),
			}, nil
		},
	}

	r := NewRetriever(unitEmbedder(), searcher)
	res, err := r.Retrieve(context.Background(), "rev-1", []SectionQuery{
		{SectionID: "termination", Query: "termination rights"},
		{SectionID: "termination", Query: "notice period"},
		{SectionID: "liability", Query: "liability cap"},
	}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if res.RetrievedTotal != 6 {
		t.Errorf("RetrievedTotal = %d, want 6 (raw hits before dedup)", res.RetrievedTotal)
	}
	if got := res.Counts["termination"]; got != 2 {
		t.Errorf("termination count = %d, want 2 after dedup", got)
	}
	if got := res.Counts["liability"]; got != 2 {
		t.Errorf("liability count = %d, want 2", got)
	}
	if len(searcher.calls) != 3 {
		t.Errorf("search calls = %d, want 3", len(searcher.calls))
	}
	for _, q := range searcher.calls {
		if q.ReviewID != "rev-1" {
			t.Errorf("query review id = %q, want rev-1", q.ReviewID)
		}
		if q.TopK != 5 {
			t.Errorf("query topK = %d, want 5", q.TopK)
		}
	}
}

func TestRetrieveStableOrdering(t *testing.T) {
	// Two hits with equal scores: chunk id ascending breaks the tie.
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, q index.Query) ([]index.Hit, error) {
			return []index.Hit{
				hit("doc-1", "2:1400:2300", 0.5),
				hit("doc-1", "1:700:1600", 0.5),
				hit("doc-1", "0:0:900", 0.8),
			}, nil
		},
	}

	r := NewRetriever(unitEmbedder(), searcher)
	for run := 0; run < 3; run++ {
		res, err := r.Retrieve(context.Background(), "rev-1", []SectionQuery{
			{SectionID: "payment", Query: "payment terms"},
		}, 3)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		hits := res.HitsBySection["payment"]
		want := []string{"0:0:900", "1:700:1600", "2:1400:2300"}
		for i, w := range want {
			if hits[i].ChunkID != w {
				t.Fatalf("run %d: hits[%d].ChunkID = %q, want %q", run, i, hits[i].ChunkID, w)
			}
		}
	}
}

func TestRetrieveClampsTopK(t *testing.T) {
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, q index.Query) ([]index.Hit, error) {
			return nil, nil
		},
	}
	r := NewRetriever(unitEmbedder(), searcher)

	res, err := r.Retrieve(context.Background(), "rev-1", []SectionQuery{
		{SectionID: "s", Query: "q"},
	}, 500)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.TopKEffective != 50 {
		t.Errorf("TopKEffective = %d, want 50", res.TopKEffective)
	}

	res, err = r.Retrieve(context.Background(), "rev-1", []SectionQuery{
		{SectionID: "s", Query: "q"},
	}, 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.TopKEffective != 1 {
		t.Errorf("TopKEffective = %d, want 1", res.TopKEffective)
	}
}

func TestRetrieveSearchErrorNamesSection(t *testing.T) {
	wantErr := errors.New("index down")
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, q index.Query) ([]index.Hit, error) {
			return nil, wantErr
		},
	}
	r := NewRetriever(unitEmbedder(), searcher)
	_, err := r.Retrieve(context.Background(), "rev-1", []SectionQuery{
		{SectionID: "ip", Query: "intellectual property"},
	}, 4)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestRetrieveEmbedError(t *testing.T) {
	embedder := NewEmbedder(&mockEmbedClient{
		embedFunc: func(ctx context.Context, model, text string) ([]float32, error) {
			return nil, fmt.Errorf("embed backend: connection refused")
		},
	}, "test-embed")
	r := NewRetriever(embedder, &mockSearcher{
		searchFunc: func(ctx context.Context, q index.Query) ([]index.Hit, error) {
			t.Fatal("search must not run when embedding fails")
			return nil, nil
		},
	})
	_, err := r.Retrieve(context.Background(), "rev-1", []SectionQuery{
		{SectionID: "s", Query: "q"},
	}, 4)
	if err == nil {
		t.Fatal("expected error from failed embedding")
	}
}
