package evidence

import "regexp"

// Deterministic text heuristics shared by evidence scoring and the prompt
// signal block. These never depend on model output.
var (
	signalRe     = regexp.MustCompile(`(?i)\b(shall|must|required|will|will not|shall not)\b`)
	complianceRe = regexp.MustCompile(`(?i)\b(NIST|RMF|CMMC|FedRAMP|DFARS|FAR|ITAR|HIPAA|SOX|PCI|CJIS|800-53|800-171)\b`)
	glossaryRe   = regexp.MustCompile(`(?i)\b(glossary|definitions?)\b`)
)

// IsGlossary reports whether a chunk looks like glossary or definitions
// boilerplate rather than operative contract language.
func IsGlossary(text string) bool {
	if text == "" {
		return false
	}
	return glossaryRe.MatchString(text)
}

// SignalScore rates how much obligation or compliance signal a chunk
// carries. Obligation verbs score +3, compliance frameworks +2, and
// glossary boilerplate -3.
func SignalScore(text string) int {
	if text == "" {
		return 0
	}
	score := 0
	if signalRe.MatchString(text) {
		score += 3
	}
	if complianceRe.MatchString(text) {
		score += 2
	}
	if IsGlossary(text) {
		score -= 3
	}
	return score
}

// ObligationExcerpt windows text around the first obligation or compliance
// match, keeping up to 250 characters of lead-in. It returns the offset of
// the excerpt within text together with the excerpt itself, so callers can
// keep character offsets aligned with the source document. When no signal
// matches, the excerpt is simply the head of the text.
func ObligationExcerpt(text string, maxLen int) (int, string) {
	if text == "" || maxLen <= 0 {
		return 0, ""
	}
	loc := signalRe.FindStringIndex(text)
	if loc == nil {
		loc = complianceRe.FindStringIndex(text)
	}
	if loc == nil {
		if len(text) > maxLen {
			return 0, text[:maxLen]
		}
		return 0, text
	}
	start := loc[0] - 250
	if start < 0 {
		start = 0
	}
	// A short window could otherwise end before the match it anchored on;
	// slide it forward until the match fits, but never past the match start.
	if start+maxLen < loc[1] {
		start = loc[1] - maxLen
		if start > loc[0] {
			start = loc[0]
		}
	}
	end := start + maxLen
	if end > len(text) {
		end = len(text)
	}
	return start, text[start:end]
}
