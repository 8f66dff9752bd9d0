package analysis

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseGeneration(t *testing.T) {
	text := `The agreement covers cloud hosting for a federal agency.

- Unbounded indemnification clause in section 12
- unbounded INDEMNIFICATION clause in section 12
- Payment terms are net 90, longer than policy allows
not a bullet line
-missing space is not a bullet`

	summary, candidates := ParseGeneration(text, 20)
	if !strings.HasPrefix(summary, "The agreement covers") {
		t.Errorf("summary = %q, want the full response text", summary)
	}
	want := []string{
		"Unbounded indemnification clause in section 12",
		"Payment terms are net 90, longer than policy allows",
	}
	if !reflect.DeepEqual(candidates, want) {
		t.Errorf("candidates = %v, want %v (case-insensitive dedup)", candidates, want)
	}
}

func TestParseGenerationCapsCandidateLength(t *testing.T) {
	long := strings.Repeat("risk ", 60) // 300 chars
	_, candidates := ParseGeneration("- "+long, 20)
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if len(candidates[0]) > 160 {
		t.Errorf("candidate length = %d, want <= 160", len(candidates[0]))
	}
	if !strings.HasSuffix(candidates[0], "...") {
		t.Errorf("capped candidate missing ellipsis: %q", candidates[0])
	}
}

func TestParseGenerationBoundsCount(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("- candidate number ")
		b.WriteByte(byte('a' + i))
		b.WriteString("\n")
	}
	_, candidates := ParseGeneration(b.String(), 5)
	if len(candidates) != 5 {
		t.Errorf("candidates = %d, want bounded at 5", len(candidates))
	}
}

func TestParseGenerationEmpty(t *testing.T) {
	summary, candidates := ParseGeneration("", 20)
	if summary != "" || candidates != nil {
		t.Errorf("got (%q, %v), want empty", summary, candidates)
	}
}
