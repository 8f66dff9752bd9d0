package retrieval

import "strings"

// Profile names the retrieval depth/latency trade-off for an analysis call.
type Profile string

const (
	ProfileFast     Profile = "fast"
	ProfileBalanced Profile = "balanced"
	ProfileDeep     Profile = "deep"
)

// ProfileFor normalizes a user-supplied profile name, defaulting to fast.
func ProfileFor(name string) Profile {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "deep":
		return ProfileDeep
	case "balanced", "standard":
		return ProfileBalanced
	default:
		return ProfileFast
	}
}

// EffectiveTopK clamps the requested k to the profile's bounds. The result
// is always at least 1.
func (p Profile) EffectiveTopK(requested int) int {
	k := requested
	if k <= 0 {
		k = 1
	}
	switch p {
	case ProfileDeep:
		return clamp(k, 8, 20)
	case ProfileBalanced:
		return clamp(k, 4, 12)
	default:
		return clamp(k, 1, 4)
	}
}

// ContextChars is the character budget for the assembled grounding context.
func (p Profile) ContextChars() int {
	switch p {
	case ProfileDeep:
		return 80000
	case ProfileBalanced:
		return 32000
	default:
		return 16000
	}
}

// SnippetChars caps each evidence snippet's length.
func (p Profile) SnippetChars() int {
	switch p {
	case ProfileDeep:
		return 2200
	case ProfileBalanced:
		return 1400
	default:
		return 900
	}
}

// ChunkSize is the ingestion chunk window for the profile.
func (p Profile) ChunkSize() int {
	switch p {
	case ProfileDeep:
		return 1400
	case ProfileBalanced:
		return 1000
	default:
		return 900
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
