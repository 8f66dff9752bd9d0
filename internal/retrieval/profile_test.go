package retrieval

import "testing"

func TestProfileFor(t *testing.T) {
	tests := []struct {
		in   string
		want Profile
	}{
		{"fast", ProfileFast},
		{"balanced", ProfileBalanced},
		{"standard", ProfileBalanced},
		{"deep", ProfileDeep},
		{"DEEP", ProfileDeep},
		{"", ProfileFast},
		{"unknown", ProfileFast},
	}
	for _, tt := range tests {
		if got := ProfileFor(tt.in); got != tt.want {
			t.Errorf("ProfileFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEffectiveTopKClamps(t *testing.T) {
	tests := []struct {
		profile Profile
		in      int
		want    int
	}{
		{ProfileFast, 0, 1},
		{ProfileFast, 3, 3},
		{ProfileFast, 10, 4},
		{ProfileBalanced, 1, 4},
		{ProfileBalanced, 8, 8},
		{ProfileBalanced, 30, 12},
		{ProfileDeep, 2, 8},
		{ProfileDeep, 15, 15},
		{ProfileDeep, 100, 20},
	}
	for _, tt := range tests {
		if got := tt.profile.EffectiveTopK(tt.in); got != tt.want {
			t.Errorf("%s.EffectiveTopK(%d) = %d, want %d", tt.profile, tt.in, got, tt.want)
		}
	}
}

func TestProfileBudgets(t *testing.T) {
	tests := []struct {
		profile      Profile
		contextChars int
		snippetChars int
		chunkSize    int
	}{
		{ProfileFast, 16000, 900, 900},
		{ProfileBalanced, 32000, 1400, 1000},
		{ProfileDeep, 80000, 2200, 1400},
	}
	for _, tt := range tests {
		if got := tt.profile.ContextChars(); got != tt.contextChars {
			t.Errorf("%s.ContextChars() = %d, want %d", tt.profile, got, tt.contextChars)
		}
		if got := tt.profile.SnippetChars(); got != tt.snippetChars {
			t.Errorf("%s.SnippetChars() = %d, want %d", tt.profile, got, tt.snippetChars)
		}
		if got := tt.profile.ChunkSize(); got != tt.chunkSize {
			t.Errorf("%s.ChunkSize() = %d, want %d", tt.profile, got, tt.chunkSize)
		}
	}
}
