// Package api exposes the review pipeline over HTTP and MCP.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clearpath-legal/riskline/internal/analysis"
	"github.com/clearpath-legal/riskline/internal/compact"
	"github.com/clearpath-legal/riskline/internal/evidence"
	"github.com/clearpath-legal/riskline/internal/extract"
	"github.com/clearpath-legal/riskline/internal/index"
	"github.com/clearpath-legal/riskline/internal/storage"
)

const maxDocumentBodySize = 20 << 20 // 20MB
const maxRequestBodySize = 1 << 20   // 1MB

// Analyzer abstracts the pipeline for the API layer.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

type AppDeps struct {
	Store    *storage.Store
	Analyzer Analyzer
	Token    string
	Logger   *slog.Logger

	// Defaults applied when an analyze request omits them.
	DefaultProfile string
	DefaultTopK    int
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/reviews", handleCreateReview(deps))
		r.Get("/reviews", handleListReviews(deps))
		r.Get("/reviews/{id}", handleGetReview(deps))
		r.Post("/reviews/{id}/documents", handleAddDocument(deps))
		r.Post("/reviews/{id}/analyze", handleAnalyze(deps))
		r.Get("/reviews/{id}/analysis", handleLatestAnalysis(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type createReviewRequest struct {
	Title   string `json:"title"`
	Profile string `json:"profile"`
}

func handleCreateReview(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		review := storage.Review{
			ID:        uuid.New().String(),
			Title:     req.Title,
			Profile:   req.Profile,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.CreateReview(review); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create review: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": review.ID})
	}
}

func handleListReviews(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 100)
		offset := parseIntParam(r, "offset", 0)
		reviews, err := deps.Store.ListReviews(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list reviews: %v", err)
			return
		}
		if reviews == nil {
			reviews = []storage.Review{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reviews)
	}
}

func handleGetReview(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		review, err := deps.Store.GetReview(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "review not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get review: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(review)
	}
}

type addDocumentRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "text" (default) or "file" (base64 content)
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

func handleAddDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodySize)
		defer r.Body.Close()

		reviewID := chi.URLParam(r, "id")
		if _, err := deps.Store.GetReview(reviewID); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "review not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get review: %v", err)
			return
		}

		var req addDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		raw := []byte(req.Content)
		if req.Type == "file" {
			decoded, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
				return
			}
			raw = decoded
		}

		text, err := extract.Text(req.Name, req.ContentType, raw)
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "extraction_error", "failed to extract text: %v", err)
			return
		}

		doc := storage.Document{
			ID:          uuid.New().String(),
			ReviewID:    reviewID,
			Name:        req.Name,
			ContentType: req.ContentType,
			Text:        text,
			CreatedAt:   time.Now().UTC(),
		}
		if err := deps.Store.AddDocument(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": doc.ID, "chars": len(text)})
	}
}

type analyzeRequest struct {
	Intent  string `json:"intent"`
	Profile string `json:"profile"`
	TopK    int    `json:"topK"`
}

func handleAnalyze(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		reviewID := chi.URLParam(r, "id")
		review, err := deps.Store.GetReview(reviewID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "review not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get review: %v", err)
			return
		}

		var req analyzeRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
		}
		profile := req.Profile
		if profile == "" {
			profile = review.Profile
		}
		if profile == "" {
			profile = deps.DefaultProfile
		}
		topK := req.TopK
		if topK == 0 {
			topK = deps.DefaultTopK
		}

		result, err := deps.Analyzer.Analyze(r.Context(), analysis.Request{
			ReviewID: reviewID,
			Intent:   req.Intent,
			Profile:  profile,
			TopK:     topK,
		})
		if err != nil {
			writeAnalyzeError(w, err)
			return
		}

		// Persist the compacted record; the caller gets the full result.
		record, err := compact.Compact(result)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "persistence_overflow", "failed to compact analysis: %v", err)
			return
		}
		recordJSON, err := json.Marshal(record)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to encode analysis record: %v", err)
			return
		}
		if err := deps.Store.SaveAnalysis(storage.Analysis{
			ID:         uuid.New().String(),
			ReviewID:   reviewID,
			Intent:     result.Intent,
			RecordJSON: string(recordJSON),
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to persist analysis: %v", err)
			return
		}
		if deps.Logger != nil {
			deps.Logger.Info("analysis persisted",
				"review_id", reviewID,
				"intent", result.Intent,
				"record_bytes", record.Size())
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// writeAnalyzeError maps the pipeline error taxonomy onto HTTP reason codes.
func writeAnalyzeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrNoDocuments):
		httpError(w, http.StatusUnprocessableEntity, "no_docs", "review has no ingestible documents")
	case errors.Is(err, analysis.ErrRetrievalEmpty):
		httpError(w, http.StatusUnprocessableEntity, "retrieval_empty", "retrieval found no content even after re-ingest")
	case errors.Is(err, evidence.ErrNoUsableEvidence):
		httpError(w, http.StatusUnprocessableEntity, "evidence_unusable", "retrieved evidence carries no resolvable document offsets")
	case errors.Is(err, index.ErrUnavailable):
		httpError(w, http.StatusBadGateway, "index_unavailable", "vector index unavailable: %v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "analysis failed: %v", err)
	}
}

func handleLatestAnalysis(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := deps.Store.LatestAnalysis(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no analysis persisted for review")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load analysis: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":        record.ID,
			"reviewId":  record.ReviewID,
			"intent":    record.Intent,
			"createdAt": record.CreatedAt,
			"record":    json.RawMessage(record.RecordJSON),
		})
	}
}

func parseIntParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
