package composer

import (
	"fmt"
	"strings"
)

// Signal is one deterministic triage hit rendered into the prompt's signal
// block. These come from keyword scans, not from model output.
type Signal struct {
	Label    string
	Severity string
	Key      string
}

const maxSignalLines = 25

// RenderSignals formats deterministic flags, heuristic hits and low-confidence
// inference candidates into a clearly delimited block. The block is labeled as
// non-evidence so the model cannot mistake triage hints for contract text.
// Returns "" when there is nothing to render.
func RenderSignals(flags, heuristics []Signal, inference []string) string {
	var parts []string

	if len(flags) > 0 {
		parts = append(parts, "AUTOFLAGS (deterministic hits)")
		for i, s := range flags {
			if i >= maxSignalLines {
				break
			}
			if s.Label == "" {
				continue
			}
			sev := s.Severity
			if sev == "" {
				sev = "High"
			}
			line := fmt.Sprintf("- %s (src=autoFlag, severity=%s", s.Label, sev)
			if s.Key != "" {
				line += fmt.Sprintf(", key=%s", s.Key)
			}
			line += ")"
			parts = append(parts, line)
		}
	}

	if len(heuristics) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "")
		}
		parts = append(parts, "HEURISTIC HITS (semi-deterministic)")
		for i, s := range heuristics {
			if i >= maxSignalLines {
				break
			}
			if s.Label == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("- %s (src=heuristic)", s.Label))
		}
	}

	if len(inference) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "")
		}
		parts = append(parts, "INFERENCE CANDIDATES (LLM suggestions; lowest confidence)")
		for i, c := range inference {
			if i >= maxSignalLines {
				break
			}
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			parts = append(parts, "- "+c)
		}
	}

	block := strings.TrimSpace(strings.Join(parts, "\n"))
	if block == "" {
		return ""
	}
	return "BEGIN DETERMINISTIC SIGNALS\nNOT CONTRACT EVIDENCE\n" + block + "\nEND DETERMINISTIC SIGNALS"
}
