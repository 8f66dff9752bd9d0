package index

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"
)

// Compile-time check that SQLiteBackend implements Backend.
var _ Backend = (*SQLiteBackend)(nil)

// SQLiteBackend provides vector storage and brute-force cosine similarity
// search backed by SQLite. It is the default backend for single-node
// deployments; the remote backend replaces it when an OpenSearch cluster
// is available.
type SQLiteBackend struct {
	db    *sql.DB
	table string
}

// NewSQLiteBackend wraps an existing *sql.DB for index operations. The
// table is created on CreateIndex (EnsureIndex handles the idempotent
// exists-then-create sequence).
func NewSQLiteBackend(db *sql.DB, table string) *SQLiteBackend {
	if table == "" {
		table = "doc_chunks"
	}
	return &SQLiteBackend{db: db, table: table}
}

// DialSQLite returns a DialFunc handing out the same backend. SQLite has
// no session to expire, so the session client never rebuilds it.
func DialSQLite(db *sql.DB, table string) DialFunc {
	b := NewSQLiteBackend(db, table)
	return func(ctx context.Context) (Backend, error) {
		return b, nil
	}
}

// IndexExists checks sqlite_master for the chunk table.
func (b *SQLiteBackend) IndexExists(ctx context.Context) (bool, error) {
	var name string
	err := b.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, b.table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking index table: %w", err)
	}
	return true, nil
}

// CreateIndex creates the chunk table. Idempotent.
func (b *SQLiteBackend) CreateIndex(ctx context.Context, schema Schema) error {
	_, err := b.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+b.table+` (
		id TEXT PRIMARY KEY,
		review_id TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		doc_name TEXT NOT NULL,
		chunk_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		char_start INTEGER NOT NULL,
		char_end INTEGER NOT NULL,
		chunk_text TEXT NOT NULL,
		embedding BLOB NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating index table: %w", err)
	}
	_, err = b.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_`+b.table+`_review ON `+b.table+` (review_id)`)
	if err != nil {
		return fmt.Errorf("creating review index: %w", err)
	}
	return nil
}

// BulkIndex replaces the chunks of every document present in the batch.
// Deleting by doc_id first keeps re-ingest from leaving stale chunks behind
// when a document shrinks.
func (b *SQLiteBackend) BulkIndex(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning bulk transaction: %w", err)
	}

	docIDs := make(map[string]struct{})
	for _, r := range records {
		docIDs[r.DocID] = struct{}{}
	}
	for docID := range docIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+b.table+` WHERE doc_id = ?`, docID); err != nil {
			tx.Rollback()
			return fmt.Errorf("clearing chunks for doc %s: %w", docID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO `+b.table+`
		(id, review_id, doc_id, doc_name, chunk_id, chunk_index, char_start, char_end, chunk_text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing bulk insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		blob := encodeFloat32s(r.Embedding)
		id := r.DocID + "::" + r.ChunkID
		if _, err := stmt.ExecContext(ctx, id, r.ReviewID, r.DocID, r.DocName, r.ChunkID,
			r.ChunkIndex, r.CharStart, r.CharEnd, r.Text, blob); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// chunkScore holds only the row ID and score during the scan phase of
// Search. Full rows are fetched only for top-K winners.
type chunkScore struct {
	ID      string
	ChunkID string
	Score   float32
}

// Search performs brute-force cosine similarity over the review's chunks,
// returning the top-K most similar records ordered by score descending with
// ties broken by chunk_id ascending.
func (b *SQLiteBackend) Search(ctx context.Context, q Query) ([]Hit, error) {
	if len(q.Vector) == 0 {
		return nil, nil
	}

	topK := q.TopK
	if topK < 1 {
		topK = 1
	}

	// Phase 1: scan id + embedding only. Rows are ordered by chunk id so
	// the strict > comparison keeps the lowest chunk id on score ties.
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, chunk_id, embedding FROM `+b.table+` WHERE review_id = ? ORDER BY chunk_id ASC`,
		q.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	queryNorm := norm(q.Vector)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &chunkScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id, chunkID string
		var blob []byte
		if err := rows.Scan(&id, &chunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(q.Vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, chunkScore{ID: id, ChunkID: chunkID, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = chunkScore{ID: id, ChunkID: chunkID, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full rows for the winners.
	scores := make(map[string]float32, h.Len())
	args := make([]interface{}, 0, h.Len())
	placeholders := ""
	for h.Len() > 0 {
		item := heap.Pop(h).(chunkScore)
		scores[item.ID] = item.Score
		if placeholders != "" {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, item.ID)
	}

	fullRows, err := b.db.QueryContext(ctx, `
		SELECT id, review_id, doc_id, doc_name, chunk_id, char_start, char_end, chunk_text
		FROM `+b.table+` WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K rows: %w", err)
	}
	defer fullRows.Close()

	var hits []Hit
	for fullRows.Next() {
		var id string
		var hit Hit
		if err := fullRows.Scan(&id, &hit.ReviewID, &hit.DocID, &hit.DocName, &hit.ChunkID,
			&hit.CharStart, &hit.CharEnd, &hit.Text); err != nil {
			return nil, fmt.Errorf("scanning full row: %w", err)
		}
		hit.Score = scores[id]
		hits = append(hits, hit)
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full rows: %w", err)
	}

	// Stable ordering: score descending, chunk_id ascending on ties.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	return hits, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * bNorm). aNorm is the precomputed
// L2 norm of vector a.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// chunkScoreHeap is a min-heap of chunkScore ordered by Score, breaking
// ties so that higher chunk IDs are evicted first.
type chunkScoreHeap []chunkScore

func (h chunkScoreHeap) Len() int { return len(h) }
func (h chunkScoreHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].ChunkID > h[j].ChunkID
}
func (h chunkScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *chunkScoreHeap) Push(x interface{}) { *h = append(*h, x.(chunkScore)) }
func (h *chunkScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
