// Package composer assembles the grounding context sent to the model,
// packing evidence snippets into a fixed character budget.
package composer

import (
	"fmt"
	"strings"

	"github.com/clearpath-legal/riskline/internal/evidence"
)

// Context is the packed prompt context.
type Context struct {
	Text      string
	UsedChars int
	// Truncated is true when packing stopped before all evidence was
	// included.
	Truncated bool
}

const blockSep = "\n\n"

// Build packs the signal block and evidence sections into maxChars.
//
// The signal block is always included whole; it is deterministic triage
// output and dropping it would make runs non-reproducible. Evidence
// snippets are then packed in section order until the next block no longer
// fits: packing stops at the first over-budget block, so the context is
// always a prefix of the full evidence sequence. Snippets are never split
// mid-text, so character offsets stay quotable.
func Build(signals string, sections []evidence.Section, maxChars int) Context {
	var (
		parts     []string
		used      int
		truncated bool
	)

	add := func(s string) {
		if len(parts) > 0 {
			used += len(blockSep)
		}
		used += len(s)
		parts = append(parts, s)
	}
	cost := func(s string) int {
		c := len(s)
		if len(parts) > 0 {
			c += len(blockSep)
		}
		return c
	}

	if signals != "" {
		add(signals)
	}

pack:
	for _, sec := range sections {
		if len(sec.Evidence) == 0 {
			continue
		}
		header := "## " + sec.Title
		headerWritten := false
		for _, item := range sec.Evidence {
			block := formatSnippet(item)
			var need int
			if headerWritten {
				need = cost(block)
			} else {
				need = cost(header) + len(blockSep) + len(block)
			}
			if used+need > maxChars {
				truncated = true
				break pack
			}
			if !headerWritten {
				add(header)
				headerWritten = true
			}
			add(block)
		}
	}

	text := strings.Join(parts, blockSep)
	return Context{Text: text, UsedChars: len(text), Truncated: truncated}
}

// formatSnippet renders one evidence item with its provenance so quoted
// language stays attributable to a document and character range.
func formatSnippet(item evidence.Item) string {
	return fmt.Sprintf("[%s | chars %d-%d | %s confidence]\n%s",
		item.Doc, item.CharStart, item.CharEnd, item.Tier, item.Text)
}
