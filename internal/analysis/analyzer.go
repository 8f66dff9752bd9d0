// Package analysis orchestrates the review pipeline: ingest, retrieve,
// assemble evidence, build the prompt context, generate, and materialize
// the risk register.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clearpath-legal/riskline/internal/composer"
	"github.com/clearpath-legal/riskline/internal/evidence"
	"github.com/clearpath-legal/riskline/internal/ingest"
	"github.com/clearpath-legal/riskline/internal/retrieval"
	"github.com/clearpath-legal/riskline/internal/risk"
)

// Generator is the opaque generation collaborator. Failures are surfaced
// as a warning on a degraded result, never retried here.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request describes one analysis call.
type Request struct {
	ReviewID string
	Intent   string
	Profile  string
	TopK     int
}

const (
	maxInferredCandidates = 20
	maxTargetedQuestions  = 10
)

// Analyzer runs the whole pipeline synchronously within one request; it
// completes, fails or times out as a unit and commits no partial results.
type Analyzer struct {
	coordinator *ingest.Coordinator
	retriever   *retrieval.Retriever
	source      ingest.DocumentSource
	generator   Generator
	logger      *slog.Logger
}

// NewAnalyzer wires the pipeline stages together.
func NewAnalyzer(coordinator *ingest.Coordinator, retriever *retrieval.Retriever, source ingest.DocumentSource, generator Generator, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		coordinator: coordinator,
		retriever:   retriever,
		source:      source,
		generator:   generator,
		logger:      logger,
	}
}

// Analyze runs one review through the pipeline.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	profile := retrieval.ProfileFor(req.Profile)
	intent := normalizeIntent(req.Intent)
	topK := profile.EffectiveTopK(req.TopK)

	result := &Result{
		ReviewID: req.ReviewID,
		Intent:   intent,
		Warnings: []string{},
	}

	// Deterministic pre-pass: scan the raw documents for keyword-triggered
	// risks. These also decide which targeted follow-up questions to ask.
	heuristics, docText, err := a.scanDocuments(ctx, req.ReviewID)
	if err != nil {
		return nil, err
	}
	var targeted []string
	if intent == IntentRiskTriage {
		targeted = risk.TargetedQuestions(risk.DetectAreas(docText), maxTargetedQuestions)
	}
	queries := SectionQueries(intent, targeted)

	var retrieved retrieval.Result
	info, err := a.coordinator.Run(ctx, req.ReviewID, profile.ChunkSize(), func(ctx context.Context) (int, error) {
		r, err := a.retriever.Retrieve(ctx, req.ReviewID, queries, topK)
		if err != nil {
			return 0, err
		}
		retrieved = r
		return r.RetrievedTotal, nil
	})
	result.Stats.Ingest = info
	result.Stats.AutoReingestUsed = info.AutoReingestUsed
	if err != nil {
		return nil, fmt.Errorf("analyzing review %s: %w", req.ReviewID, err)
	}

	result.Stats.RetrievedTotal = retrieved.RetrievedTotal
	result.Stats.RetrievedCounts = retrieved.Counts
	result.Stats.TopKEffective = retrieved.TopKEffective

	assembler := evidence.NewAssembler(0, profile.SnippetChars())
	sections := assembler.Assemble(SectionDefs(intent), retrieved.HitsBySection)
	if !evidence.Usable(sections) {
		return nil, fmt.Errorf("review %s: %w", req.ReviewID, evidence.ErrNoUsableEvidence)
	}
	result.Sections = sections

	signals := composer.RenderSignals(nil, heuristicSignals(heuristics), nil)
	promptCtx := composer.Build(signals, sections, profile.ContextChars())
	result.Stats.ContextUsedChars = promptCtx.UsedChars
	result.Stats.ContextMaxChars = profile.ContextChars()
	if promptCtx.Truncated {
		result.AddWarning(WarnPromptTruncated)
	}

	// Generation failure degrades the result rather than failing it: the
	// heuristic risks are still worth returning.
	var inferred []risk.Candidate
	response, err := a.generator.Generate(ctx, buildPrompt(intent, promptCtx.Text))
	if err != nil {
		a.logger.Warn("generation failed, returning heuristic-only result",
			"review_id", req.ReviewID, "error", err)
		result.AddWarning(WarnGenerationFailed)
	} else {
		summary, candidates := ParseGeneration(response, maxInferredCandidates)
		result.Summary = summary
		inferred = inferredCandidates(candidates)
	}

	result.RiskRegister = risk.Materialize(heuristics, inferred)

	a.logger.Info("analysis complete",
		"review_id", req.ReviewID,
		"intent", intent,
		"retrieved_total", result.Stats.RetrievedTotal,
		"risks", len(result.RiskRegister),
		"warnings", len(result.Warnings))
	return result, nil
}

// scanDocuments loads the review's documents and produces heuristic risk
// candidates, along with the concatenated text used for area triggers.
func (a *Analyzer) scanDocuments(ctx context.Context, reviewID string) ([]risk.Candidate, string, error) {
	docs, err := a.source.Documents(ctx, reviewID)
	if err != nil {
		return nil, "", fmt.Errorf("scanning documents for review %s: %w", reviewID, err)
	}
	var heuristics []risk.Candidate
	var blob strings.Builder
	for _, doc := range docs {
		heuristics = append(heuristics, risk.Scan(doc.Name, doc.Text)...)
		blob.WriteString(doc.Text)
		blob.WriteString("\n")
	}
	return heuristics, blob.String(), nil
}

func heuristicSignals(candidates []risk.Candidate) []composer.Signal {
	signals := make([]composer.Signal, 0, len(candidates))
	for _, c := range candidates {
		signals = append(signals, composer.Signal{Label: c.Label, Severity: c.Severity, Key: c.ID})
	}
	return signals
}

// inferredCandidates lifts parsed bullet lines into risk candidates,
// categorized by the same keyword triggers used for documents.
func inferredCandidates(lines []string) []risk.Candidate {
	out := make([]risk.Candidate, 0, len(lines))
	for i, line := range lines {
		category := "general"
		if areas := risk.DetectAreas(line); len(areas) > 0 {
			category = areas[0]
		}
		out = append(out, risk.Candidate{
			ID:         fmt.Sprintf("inference:%d", i),
			Label:      line,
			Category:   category,
			Severity:   risk.SeverityMedium,
			Rationale:  "suggested by generation over retrieved evidence",
			SourceType: risk.SourceInference,
			Tier:       evidence.TierLow,
		})
	}
	return out
}

func normalizeIntent(intent string) string {
	if strings.ToLower(strings.TrimSpace(intent)) == IntentRiskTriage {
		return IntentRiskTriage
	}
	return IntentStrictSummary
}

// buildPrompt frames the packed context with the response contract the
// parser expects: narrative first, then "- " candidate lines.
func buildPrompt(intent, contextText string) string {
	var b strings.Builder
	b.WriteString("You are reviewing contract documents. Use ONLY the evidence below; do not invent facts.\n")
	if intent == IntentRiskTriage {
		b.WriteString("Goal: triage risks for internal owners (security/legal/PM/finance).\n")
	} else {
		b.WriteString("Goal: produce a strict factual summary of the contract documents.\n")
	}
	b.WriteString("\nRULES\n")
	b.WriteString("- Start with a concise narrative summary grounded in the evidence.\n")
	b.WriteString("- Then list risk candidates, one per line, starting with '- '.\n")
	b.WriteString("- Keep each candidate <= 160 characters.\n")
	b.WriteString("- Phrase uncertain items as 'May be missing/unclear'.\n")
	b.WriteString("\nCONTEXT\n")
	b.WriteString(contextText)
	b.WriteString("\n")
	return b.String()
}
