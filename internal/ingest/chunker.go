// Package ingest chunks review documents, embeds the chunks and writes
// them to the vector index, coordinating so each review is ingested once.
package ingest

import "fmt"

// Chunk is one window of a document's text. Text is the exact slice
// [CharStart:CharEnd) of the source, so offsets are always quotable.
type Chunk struct {
	ID        string
	Index     int
	CharStart int
	CharEnd   int
	Text      string
}

// ChunkText splits text into overlapping windows. size is floored at 200
// characters and overlap is clamped to [0, size-1] so the window always
// advances. Returns nil for empty text.
func ChunkText(text string, size, overlap int) []Chunk {
	if text == "" {
		return nil
	}
	if size < 200 {
		size = 200
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > size-1 {
		overlap = size - 1
	}

	var out []Chunk
	start := 0
	for i := 0; ; {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		out = append(out, Chunk{
			ID:        fmt.Sprintf("%d:%d:%d", i, start, end),
			Index:     i,
			CharStart: start,
			CharEnd:   end,
			Text:      text[start:end],
		})
		i++
		if end >= len(text) {
			break
		}
		start = end - overlap
	}
	return out
}
