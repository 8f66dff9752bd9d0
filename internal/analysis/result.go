package analysis

import (
	"github.com/clearpath-legal/riskline/internal/evidence"
	"github.com/clearpath-legal/riskline/internal/ingest"
	"github.com/clearpath-legal/riskline/internal/risk"
)

// Stats carries the per-request pipeline accounting surfaced to callers.
type Stats struct {
	RetrievedTotal   int            `json:"retrieved_total"`
	RetrievedCounts  map[string]int `json:"retrieved_counts"`
	TopKEffective    int            `json:"top_k_effective"`
	ContextUsedChars int            `json:"context_used_chars"`
	ContextMaxChars  int            `json:"context_max_chars"`
	AutoReingestUsed bool           `json:"auto_reingest_used"`
	Ingest           ingest.Info    `json:"ingest"`
}

// Result is the full analysis response. It is returned uncompacted; size
// caps apply only at the persistence boundary.
type Result struct {
	ReviewID     string             `json:"reviewId"`
	Intent       string             `json:"intent"`
	Summary      string             `json:"summary"`
	Sections     []evidence.Section `json:"sections"`
	RiskRegister []risk.Candidate   `json:"riskRegister"`
	Warnings     []string           `json:"warnings"`
	Stats        Stats              `json:"stats"`
}

// Warning codes surfaced alongside a still-returned result.
const (
	WarnPromptTruncated  = "prompt_truncated"
	WarnGenerationFailed = "generation_failed"
)

// AddWarning appends a warning code once.
func (r *Result) AddWarning(code string) {
	for _, w := range r.Warnings {
		if w == code {
			return
		}
	}
	r.Warnings = append(r.Warnings, code)
}
