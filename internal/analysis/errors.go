package analysis

import (
	"github.com/clearpath-legal/riskline/internal/evidence"
	"github.com/clearpath-legal/riskline/internal/index"
	"github.com/clearpath-legal/riskline/internal/ingest"
)

// The pipeline's error taxonomy. Each failure is owned by the stage that
// detects it; these aliases give callers one import for matching.
var (
	// ErrIndexUnavailable: the vector index stayed unreachable after the
	// single auth-expiry retry.
	ErrIndexUnavailable = index.ErrUnavailable
	// ErrNoDocuments: the review has nothing to ingest.
	ErrNoDocuments = ingest.ErrNoDocuments
	// ErrRetrievalEmpty: zero hits even after the one automatic re-ingest.
	ErrRetrievalEmpty = ingest.ErrRetrievalEmpty
	// ErrNoUsableEvidence: hits came back but none carried a resolvable
	// document and offset pair. Remediation differs from ErrRetrievalEmpty:
	// this points at ingestion metadata, not at the index content.
	ErrNoUsableEvidence = evidence.ErrNoUsableEvidence
)
