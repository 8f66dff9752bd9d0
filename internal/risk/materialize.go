package risk

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Field and register caps protect the persistence budget.
const (
	maxRegister  = 200
	maxRationale = 2000
	maxFlags     = 50
)

// identity normalizes a candidate for dedup: label and category,
// case-insensitive.
func identity(c Candidate) string {
	return strings.ToLower(strings.TrimSpace(c.Label)) + "|" + strings.ToLower(strings.TrimSpace(c.Category))
}

// Materialize merges heuristic and inferred candidates into one register.
// When both origins discover the same identity, the heuristic entry wins
// (rule-based evidence is authoritative over generative inference) and the
// two flag lists are unioned. Materialize is total: malformed candidates
// are capped or defaulted, never rejected with an error. Output ordering is
// severity High, Medium, Low, then discovery order within a severity.
func Materialize(heuristic, inferred []Candidate) []Candidate {
	type entry struct {
		c     Candidate
		order int
	}
	byID := make(map[string]*entry)
	var order []string

	add := func(c Candidate) {
		c.Severity = NormalizeSeverity(c.Severity)
		key := identity(c)
		if existing, ok := byID[key]; ok {
			existing.c.RelatedFlags = unionFlags(existing.c.RelatedFlags, c.RelatedFlags)
			return
		}
		byID[key] = &entry{c: c, order: len(order)}
		order = append(order, key)
	}

	// Heuristics first so they hold the identity on collision.
	for _, c := range heuristic {
		c.SourceType = SourceHeuristic
		add(c)
	}
	for _, c := range inferred {
		c.SourceType = SourceInference
		add(c)
	}

	out := make([]Candidate, 0, len(order))
	for _, key := range order {
		c := byID[key].c
		c.Rationale = capText(c.Rationale, maxRationale)
		if len(c.RelatedFlags) > maxFlags {
			c.RelatedFlags = c.RelatedFlags[:maxFlags]
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return severityRank(out[i].Severity) < severityRank(out[j].Severity)
	})

	if len(out) > maxRegister {
		out = out[:maxRegister]
	}
	return out
}

// capText truncates s to at most limit bytes, backing off to a rune
// boundary so a multibyte character is never split.
func capText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// unionFlags merges two flag lists preserving first-seen order.
func unionFlags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, f := range append(append([]string{}, a...), b...) {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
