// Package retrieval issues per-section similarity queries against the
// vector index and joins the hits into a deterministic, reproducible
// result set for evidence assembly.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/clearpath-legal/riskline/internal/index"
)

// Searcher is the similarity search operation the Retriever depends on.
// *index.SessionClient satisfies it.
type Searcher interface {
	Search(ctx context.Context, q index.Query) ([]index.Hit, error)
}

// SectionQuery is one retrieval question targeting an analysis section.
// Several queries may target the same section; their hits are merged.
type SectionQuery struct {
	SectionID string
	Query     string
}

// Result is the joined output of a retrieval pass.
type Result struct {
	// HitsBySection maps section id to its merged, deduplicated hits,
	// ordered by score descending with chunk id ascending on ties.
	HitsBySection map[string][]index.Hit
	// Counts is the per-section merged hit count.
	Counts map[string]int
	// RetrievedTotal is the sum of raw hit counts across all queries,
	// before per-section deduplication.
	RetrievedTotal int
	// TopKEffective is the k actually used after profile and backend clamps.
	TopKEffective int
}

// Retriever combines embedding and vector search to find relevant context
// for each analysis section.
type Retriever struct {
	embedder *Embedder
	searcher Searcher
	// maxTopK mirrors the backend's hard clamp so TopKEffective reflects
	// what the index will actually use.
	maxTopK int
}

// NewRetriever creates a Retriever backed by the given Embedder and Searcher.
func NewRetriever(embedder *Embedder, searcher Searcher) *Retriever {
	return &Retriever{embedder: embedder, searcher: searcher, maxTopK: 50}
}

// Retrieve embeds each section query and runs top-K searches concurrently,
// scoped to reviewID. Hit ordering for a given index state and query set is
// stable across calls.
func (r *Retriever) Retrieve(ctx context.Context, reviewID string, queries []SectionQuery, topK int) (Result, error) {
	res := Result{
		HitsBySection: make(map[string][]index.Hit),
		Counts:        make(map[string]int),
	}
	if len(queries) == 0 {
		return res, nil
	}

	k := topK
	if k < 1 {
		k = 1
	}
	if k > r.maxTopK {
		k = r.maxTopK
	}
	res.TopKEffective = k

	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.Query
	}
	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embedding section queries: %w", err)
	}

	// Parallel fan-out: section queries are independent reads.
	perQuery := make([][]index.Hit, len(queries))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range queries {
		i := i
		g.Go(func() error {
			hits, err := r.searcher.Search(gCtx, index.Query{
				Vector:   vecs[i],
				TopK:     k,
				ReviewID: reviewID,
			})
			if err != nil {
				return fmt.Errorf("section %s: %w", queries[i].SectionID, err)
			}
			perQuery[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// Join: merge hits per section, dedupe by (doc, chunk), re-sort.
	seen := make(map[string]map[string]struct{})
	for i, q := range queries {
		res.RetrievedTotal += len(perQuery[i])
		dedup := seen[q.SectionID]
		if dedup == nil {
			dedup = make(map[string]struct{})
			seen[q.SectionID] = dedup
		}
		for _, h := range perQuery[i] {
			key := h.DocID + "::" + h.ChunkID
			if _, ok := dedup[key]; ok {
				continue
			}
			dedup[key] = struct{}{}
			res.HitsBySection[q.SectionID] = append(res.HitsBySection[q.SectionID], h)
		}
	}

	for id, hits := range res.HitsBySection {
		sortHits(hits)
		res.Counts[id] = len(hits)
	}

	return res, nil
}

// sortHits orders hits by score descending, then chunk id ascending, then
// doc id ascending. The full ordering keeps evidence selection reproducible
// for identical inputs.
func sortHits(hits []index.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].ChunkID != hits[j].ChunkID {
			return hits[i].ChunkID < hits[j].ChunkID
		}
		return hits[i].DocID < hits[j].DocID
	})
}
