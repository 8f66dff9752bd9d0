package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxRemoteTopK is the hard clamp the remote index imposes on k.
const maxRemoteTopK = 50

// TokenSource returns a bearer token for the remote index. It is called
// once per dial, so rebuilt sessions pick up rotated credentials.
type TokenSource func(ctx context.Context) (string, error)

// RemoteBackend talks to an OpenSearch-compatible index over HTTP using a
// bearer token obtained at dial time. A 401/403 from the backend is
// reported as ErrAuthExpired so the SessionClient can rebuild.
type RemoteBackend struct {
	baseURL    string
	index      string
	token      string
	httpClient *http.Client
}

// DialRemote returns a DialFunc that builds RemoteBackends with fresh
// tokens from source. timeout bounds each HTTP call; pass 0 for the
// default of 30 seconds.
func DialRemote(baseURL, indexName string, source TokenSource, timeout time.Duration) DialFunc {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func(ctx context.Context) (Backend, error) {
		token, err := source(ctx)
		if err != nil {
			return nil, fmt.Errorf("obtaining index token: %w", err)
		}
		return &RemoteBackend{
			baseURL:    strings.TrimRight(baseURL, "/"),
			index:      indexName,
			token:      token,
			httpClient: &http.Client{Timeout: timeout},
		}, nil
	}
}

func (b *RemoteBackend) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// classifyStatus maps an unexpected HTTP status to a backend error.
// 401/403 indicate the session token is no longer accepted.
func classifyStatus(op string, status int) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%s: status %d: %w", op, status, ErrAuthExpired)
	}
	return fmt.Errorf("%s: unexpected status %d", op, status)
}

// searchBody is the kNN query sent to POST /{index}/_search.
type searchBody struct {
	Size  int         `json:"size"`
	Query searchQuery `json:"query"`
}

type searchQuery struct {
	Bool boolQuery `json:"bool"`
}

type boolQuery struct {
	Must   []map[string]any `json:"must"`
	Filter []map[string]any `json:"filter,omitempty"`
}

// searchResponse mirrors the hits envelope of the _search reply.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float32   `json:"_score"`
			Source hitSource `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type hitSource struct {
	ReviewID string  `json:"review_id"`
	DocID    string  `json:"document_id"`
	DocName  string  `json:"doc_name"`
	ChunkID  string  `json:"chunk_id"`
	Text     string  `json:"chunk_text"`
	Meta     hitMeta `json:"meta"`
}

type hitMeta struct {
	CharStart  int `json:"char_start"`
	CharEnd    int `json:"char_end"`
	ChunkIndex int `json:"chunk_index"`
}

// Search runs a kNN query filtered by review_id.
func (b *RemoteBackend) Search(ctx context.Context, q Query) ([]Hit, error) {
	if len(q.Vector) == 0 {
		return nil, nil
	}

	k := q.TopK
	if k < 1 {
		k = 1
	}
	if k > maxRemoteTopK {
		k = maxRemoteTopK
	}

	sb := searchBody{
		Size: k,
		Query: searchQuery{
			Bool: boolQuery{
				Must: []map[string]any{
					{"knn": map[string]any{"embedding": map[string]any{"vector": q.Vector, "k": k}}},
				},
			},
		},
	}
	if q.ReviewID != "" {
		sb.Query.Bool.Filter = []map[string]any{
			{"term": map[string]any{"review_id": q.ReviewID}},
		}
	}

	body, err := json.Marshal(sb)
	if err != nil {
		return nil, err
	}

	req, err := b.newRequest(ctx, http.MethodPost, "/"+b.index+"/_search", body)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("search", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits.Hits))
	for _, h := range result.Hits.Hits {
		hits = append(hits, Hit{
			ReviewID:  h.Source.ReviewID,
			DocID:     h.Source.DocID,
			DocName:   h.Source.DocName,
			ChunkID:   h.Source.ChunkID,
			CharStart: h.Source.Meta.CharStart,
			CharEnd:   h.Source.Meta.CharEnd,
			Text:      h.Source.Text,
			Score:     h.Score,
		})
	}
	return hits, nil
}

// BulkIndex writes chunk records via the _bulk NDJSON endpoint. Records are
// addressed by "{doc_id}::{chunk_id}" so re-ingesting a document overwrites
// its prior chunks.
func (b *RemoteBackend) BulkIndex(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		action := map[string]any{
			"index": map[string]any{
				"_index": b.index,
				"_id":    r.DocID + "::" + r.ChunkID,
			},
		}
		source := map[string]any{
			"review_id":   r.ReviewID,
			"document_id": r.DocID,
			"doc_name":    r.DocName,
			"chunk_id":    r.ChunkID,
			"chunk_text":  r.Text,
			"meta": map[string]any{
				"char_start":  r.CharStart,
				"char_end":    r.CharEnd,
				"chunk_index": r.ChunkIndex,
			},
			"embedding": r.Embedding,
		}
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(source); err != nil {
			return err
		}
	}

	req, err := b.newRequest(ctx, http.MethodPost, "/_bulk?refresh=true", buf.Bytes())
	if err != nil {
		return fmt.Errorf("creating bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus("bulk_index", resp.StatusCode)
	}

	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}
	if result.Errors {
		return fmt.Errorf("bulk_index: one or more items failed")
	}
	return nil
}

// IndexExists issues HEAD /{index}.
func (b *RemoteBackend) IndexExists(ctx context.Context) (bool, error) {
	req, err := b.newRequest(ctx, http.MethodHead, "/"+b.index, nil)
	if err != nil {
		return false, fmt.Errorf("creating exists request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("exists request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, classifyStatus("index_exists", resp.StatusCode)
	}
}

// CreateIndex issues PUT /{index} with kNN settings and the chunk mapping.
func (b *RemoteBackend) CreateIndex(ctx context.Context, schema Schema) error {
	dim := schema.VectorDim
	if dim <= 0 {
		dim = 768
	}

	body, err := json.Marshal(map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"knn":                true,
				"number_of_shards":   1,
				"number_of_replicas": 1,
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"review_id":   map[string]any{"type": "keyword"},
				"document_id": map[string]any{"type": "keyword"},
				"chunk_id":    map[string]any{"type": "keyword"},
				"doc_name":    map[string]any{"type": "keyword"},
				"chunk_text":  map[string]any{"type": "text"},
				"meta":        map[string]any{"type": "object", "enabled": true},
				"embedding":   map[string]any{"type": "knn_vector", "dimension": dim},
			},
		},
	})
	if err != nil {
		return err
	}

	req, err := b.newRequest(ctx, http.MethodPut, "/"+b.index, body)
	if err != nil {
		return fmt.Errorf("creating create-index request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create-index request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return classifyStatus("create_index", resp.StatusCode)
	}
	return nil
}
