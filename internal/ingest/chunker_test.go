package ingest

import (
	"fmt"
	"strings"
	"testing"
)

func TestChunkTextOffsetsAreExactSlices(t *testing.T) {
	text := strings.Repeat("abcdefghij", 100) // 1000 chars
	chunks := ChunkText(text, 300, 50)

	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	for _, ch := range chunks {
		if ch.CharStart >= ch.CharEnd || ch.CharEnd > len(text) {
			t.Errorf("chunk %s has invalid offsets [%d, %d)", ch.ID, ch.CharStart, ch.CharEnd)
		}
		if got := text[ch.CharStart:ch.CharEnd]; got != ch.Text {
			t.Errorf("chunk %s text does not match its slice", ch.ID)
		}
		if want := fmt.Sprintf("%d:%d:%d", ch.Index, ch.CharStart, ch.CharEnd); ch.ID != want {
			t.Errorf("chunk id = %q, want %q", ch.ID, want)
		}
	}
	if last := chunks[len(chunks)-1]; last.CharEnd != len(text) {
		t.Errorf("last chunk ends at %d, want %d (full coverage)", last.CharEnd, len(text))
	}
}

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("x", 700)
	chunks := ChunkText(text, 300, 100)

	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want at least 2", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		gap := chunks[i].CharStart - chunks[i-1].CharEnd
		if gap != -100 {
			t.Errorf("window %d overlap = %d chars, want 100", i, -gap)
		}
	}
}

func TestChunkTextClampsSizeAndOverlap(t *testing.T) {
	text := strings.Repeat("y", 500)

	// size below the floor is raised to 200
	chunks := ChunkText(text, 50, 0)
	if chunks[0].CharEnd != 200 {
		t.Errorf("first window end = %d, want 200 (floored size)", chunks[0].CharEnd)
	}

	// overlap >= size must still advance the window
	chunks = ChunkText(text, 200, 10_000)
	for i := 1; i < len(chunks); i++ {
		if chunks[i].CharStart <= chunks[i-1].CharStart {
			t.Fatalf("window %d did not advance: start %d after %d", i, chunks[i].CharStart, chunks[i-1].CharStart)
		}
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if got := ChunkText("", 900, 200); got != nil {
		t.Errorf("ChunkText(\"\") = %v, want nil", got)
	}
}

func TestChunkTextShorterThanWindow(t *testing.T) {
	chunks := ChunkText("short document", 900, 200)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Text != "short document" || chunks[0].ID != "0:0:14" {
		t.Errorf("got chunk %+v", chunks[0])
	}
}
