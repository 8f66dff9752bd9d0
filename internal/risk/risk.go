// Package risk discovers contract risks from two independent paths,
// deterministic keyword rules and model inference, and merges them into a
// single deduplicated register.
package risk

import (
	"strings"

	"github.com/clearpath-legal/riskline/internal/evidence"
)

// Severity buckets for register ordering.
const (
	SeverityHigh   = "High"
	SeverityMedium = "Medium"
	SeverityLow    = "Low"
)

// Source of a candidate: rule-based scans are authoritative over model
// inference when both discover the same risk.
const (
	SourceHeuristic = "heuristic"
	SourceInference = "inference"
)

// Candidate is one discovered risk before merging.
type Candidate struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	Category     string          `json:"category"`
	Severity     string          `json:"severity"`
	Scope        string          `json:"scope,omitempty"`
	DocumentName string          `json:"documentName,omitempty"`
	Rationale    string          `json:"rationale,omitempty"`
	RelatedFlags []string        `json:"relatedFlags,omitempty"`
	SourceType   string          `json:"sourceType"`
	Tier         evidence.Tier   `json:"sourceConfidenceTier,omitempty"`
	Evidence     []evidence.Item `json:"evidence,omitempty"`
}

// NormalizeSeverity maps free-form severity text onto the three buckets,
// defaulting to Medium.
func NormalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical":
		return SeverityHigh
	case "low":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

func severityRank(s string) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}
