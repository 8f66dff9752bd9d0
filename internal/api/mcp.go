package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clearpath-legal/riskline/internal/analysis"
	"github.com/clearpath-legal/riskline/internal/retrieval"
	"github.com/clearpath-legal/riskline/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Analyzer  Analyzer
	Retriever *retrieval.Retriever
}

// NewMCPServer creates an MCP server with all riskline tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"riskline",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("riskline — evidence-grounded contract review: ingest documents, retrieve cited evidence, and produce risk registers."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("analyze_review",
			mcp.WithDescription("Run the full analysis pipeline for a review and return the result with a cited risk register."),
			mcp.WithString("review_id", mcp.Description("Review to analyze"), mcp.Required()),
			mcp.WithString("intent", mcp.Description("Analysis intent: strict_summary (default) or risk_triage")),
			mcp.WithString("profile", mcp.Description("Retrieval profile: fast, balanced, or deep")),
			mcp.WithNumber("top_k", mcp.Description("Hits per retrieval query (profile default when omitted)")),
		),
		mcpAnalyzeReview(deps),
	)

	s.AddTool(
		mcp.NewTool("search_evidence",
			mcp.WithDescription("Semantically search a review's indexed documents and return scored chunks with character offsets."),
			mcp.WithString("review_id", mcp.Description("Review to search"), mcp.Required()),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5, cap 50)")),
		),
		mcpSearchEvidence(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"riskline://reviews",
			"Recent Reviews",
			mcp.WithResourceDescription("Last 10 reviews as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceReviews(deps),
	)

	return s
}

func mcpAnalyzeReview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reviewID, err := req.RequireString("review_id")
		if err != nil {
			return mcpError("review_id is required"), nil
		}

		result, err := deps.Analyzer.Analyze(ctx, analysis.Request{
			ReviewID: reviewID,
			Intent:   req.GetString("intent", ""),
			Profile:  req.GetString("profile", ""),
			TopK:     req.GetInt("top_k", 0),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchEvidence(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reviewID, err := req.RequireString("review_id")
		if err != nil {
			return mcpError("review_id is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		res, err := deps.Retriever.Retrieve(ctx, reviewID, []retrieval.SectionQuery{
			{SectionID: "adhoc", Query: query},
		}, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		hits := res.HitsBySection["adhoc"]
		if len(hits) == 0 {
			return mcpText("[]"), nil
		}

		type hitResult struct {
			DocID     string  `json:"docId"`
			DocName   string  `json:"docName"`
			ChunkID   string  `json:"chunkId"`
			CharStart int     `json:"charStart"`
			CharEnd   int     `json:"charEnd"`
			Score     float32 `json:"score"`
			Text      string  `json:"text"`
		}

		results := make([]hitResult, len(hits))
		for i, h := range hits {
			results[i] = hitResult{
				DocID:     h.DocID,
				DocName:   h.DocName,
				ChunkID:   h.ChunkID,
				CharStart: h.CharStart,
				CharEnd:   h.CharEnd,
				Score:     h.Score,
				Text:      h.Text,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceReviews(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		reviews, err := deps.Store.ListReviews(10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list reviews: %w", err)
		}

		type reviewSummary struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Profile   string `json:"profile"`
			CreatedAt string `json:"created_at"`
		}

		summaries := make([]reviewSummary, len(reviews))
		for i, rv := range reviews {
			title := rv.Title
			if utf8.RuneCountInString(title) > 200 {
				runes := []rune(title)
				title = string(runes[:200]) + "..."
			}
			summaries[i] = reviewSummary{
				ID:        rv.ID,
				Title:     title,
				Profile:   rv.Profile,
				CreatedAt: rv.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal reviews: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
