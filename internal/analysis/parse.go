package analysis

import "strings"

const maxCandidateChars = 160

// ParseGeneration splits a model response into the narrative summary and
// the bulleted risk candidates. Candidate lines start with "- "; each is
// flattened to one line, capped at 160 characters and deduplicated
// case-insensitively. maxCandidates bounds the list.
func ParseGeneration(text string, maxCandidates int) (string, []string) {
	summary := strings.TrimSpace(text)

	var candidates []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		cand := safeLine(strings.TrimSpace(line[2:]), maxCandidateChars)
		if cand == "" {
			continue
		}
		key := strings.ToLower(cand)
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, cand)
		if len(candidates) >= maxCandidates {
			break
		}
	}
	return summary, candidates
}

// safeLine flattens newlines and caps length with an ellipsis.
func safeLine(s string, maxLen int) string {
	t := strings.ReplaceAll(s, "\r", " ")
	t = strings.ReplaceAll(t, "\n", " ")
	t = strings.TrimSpace(t)
	if maxLen > 0 && len(t) > maxLen {
		t = strings.TrimRight(t[:maxLen-3], " ") + "..."
	}
	return t
}
