// Package evidence turns raw retrieval hits into per-section evidence
// items with verifiable character offsets and confidence tiers.
package evidence

import (
	"errors"
	"fmt"

	"github.com/clearpath-legal/riskline/internal/index"
)

// ErrNoUsableEvidence indicates that retrieval produced no non-empty
// evidence for any section, so analysis cannot proceed.
var ErrNoUsableEvidence = errors.New("no usable evidence")

// Tier is the qualitative confidence band derived from a similarity score.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Tier thresholds. Scores are cosine similarities in [0, 1]; the bands are
// monotonic so a higher score never lands in a lower tier.
const (
	tierHighMin   = 0.78
	tierMediumMin = 0.55
)

// TierFor maps a similarity score to its confidence tier.
func TierFor(score float32) Tier {
	switch {
	case score >= tierHighMin:
		return TierHigh
	case score >= tierMediumMin:
		return TierMedium
	default:
		return TierLow
	}
}

// Item is one evidence snippet attributed to a source document. The offsets
// always satisfy document.text[CharStart:CharEnd] == Text, even after
// excerpting or truncation.
type Item struct {
	DocID     string  `json:"docId"`
	Doc       string  `json:"doc"`
	ChunkID   string  `json:"chunkId"`
	CharStart int     `json:"charStart"`
	CharEnd   int     `json:"charEnd"`
	Score     float32 `json:"score"`
	Tier      Tier    `json:"tier"`
	Text      string  `json:"text"`
}

// SectionDef identifies an analysis section evidence should be grouped under.
type SectionDef struct {
	ID    string
	Title string
	Owner string
}

// Section is an analysis section populated with its supporting evidence.
// Findings, Gaps and RecommendedActions are filled in later by generation.
type Section struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Owner              string   `json:"owner,omitempty"`
	Findings           []string `json:"findings"`
	Gaps               []string `json:"gaps"`
	RecommendedActions []string `json:"recommendedActions"`
	Evidence           []Item   `json:"evidence"`
}

// Assembler converts retrieval hits into evidence sections, applying
// per-section caps and snippet length limits.
type Assembler struct {
	// MaxPerSection caps how many evidence items a section keeps.
	MaxPerSection int
	// MaxSnippetChars caps each evidence item's text length.
	MaxSnippetChars int
}

// NewAssembler returns an Assembler with the given caps. Non-positive
// values fall back to the defaults (10 items, 800 characters).
func NewAssembler(maxPerSection, maxSnippetChars int) *Assembler {
	a := &Assembler{MaxPerSection: maxPerSection, MaxSnippetChars: maxSnippetChars}
	if a.MaxPerSection <= 0 {
		a.MaxPerSection = 10
	}
	if a.MaxSnippetChars <= 0 {
		a.MaxSnippetChars = 800
	}
	return a
}

// Assemble builds one Section per definition, in definition order, from the
// hits retrieved for each section id. Empty-text hits are dropped, each
// snippet is excerpted around its strongest obligation language, duplicates
// (same document and offsets) are kept once, and at most MaxPerSection items
// survive per section. Hit order is preserved, so callers should pass hits
// already sorted by relevance.
func (a *Assembler) Assemble(defs []SectionDef, hitsBySection map[string][]index.Hit) []Section {
	sections := make([]Section, 0, len(defs))
	for _, def := range defs {
		sec := Section{
			ID:                 def.ID,
			Title:              def.Title,
			Owner:              def.Owner,
			Findings:           []string{},
			Gaps:               []string{},
			RecommendedActions: []string{},
			Evidence:           []Item{},
		}
		seen := make(map[string]struct{})
		for _, h := range hitsBySection[def.ID] {
			if len(sec.Evidence) >= a.MaxPerSection {
				break
			}
			item, ok := a.itemFromHit(h)
			if !ok {
				continue
			}
			key := fmt.Sprintf("%s|%d|%d", item.DocID, item.CharStart, item.CharEnd)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			sec.Evidence = append(sec.Evidence, item)
		}
		sections = append(sections, sec)
	}
	return sections
}

// itemFromHit excerpts and truncates a hit's text while keeping CharStart
// and CharEnd pointing at the exact bytes kept.
func (a *Assembler) itemFromHit(h index.Hit) (Item, bool) {
	if h.Text == "" {
		return Item{}, false
	}
	offset, excerpt := ObligationExcerpt(h.Text, a.MaxSnippetChars)
	if excerpt == "" {
		return Item{}, false
	}
	start := h.CharStart + offset
	return Item{
		DocID:     h.DocID,
		Doc:       docName(h),
		ChunkID:   h.ChunkID,
		CharStart: start,
		CharEnd:   start + len(excerpt),
		Score:     h.Score,
		Tier:      TierFor(h.Score),
		Text:      excerpt,
	}, true
}

func docName(h index.Hit) string {
	if h.DocName != "" {
		return h.DocName
	}
	return h.DocID
}

// Usable reports whether any section carries at least one evidence item
// that resolves back into a source document: a non-empty document identity
// and a non-empty offset range.
func Usable(sections []Section) bool {
	for _, s := range sections {
		for _, item := range s.Evidence {
			if item.DocID != "" && item.CharStart < item.CharEnd {
				return true
			}
		}
	}
	return false
}
