package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerate(t *testing.T) {
	var gotModel, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		gotModel = req.Model
		gotPrompt = req.Prompt
		json.NewEncoder(w).Encode(generateResponse{Response: "SUMMARY: looks risky"})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	out, err := c.Generate(context.Background(), "mistral-nemo", "analyze this")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "SUMMARY: looks risky" {
		t.Errorf("response = %q", out)
	}
	if gotModel != "mistral-nemo" || gotPrompt != "analyze this" {
		t.Errorf("request model=%q prompt=%q", gotModel, gotPrompt)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	if _, err := c.Generate(context.Background(), "m", "p"); err == nil {
		t.Fatal("Generate succeeded, want error")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	vec, err := c.Embed(context.Background(), "nomic-embed-text", "some chunk")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d dims, want 3", len(vec))
	}
}

func TestEmbed_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	if _, err := c.Embed(context.Background(), "m", "t"); err == nil {
		t.Fatal("Embed succeeded on empty embeddings, want error")
	}
}
