package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReviewRoundTrip(t *testing.T) {
	s := openTestStore(t)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.CreateReview(Review{ID: "rev-1", Title: "MSA renewal", Profile: "balanced", CreatedAt: created}); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}

	got, err := s.GetReview("rev-1")
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	if got.Title != "MSA renewal" || got.Profile != "balanced" {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}

	if _, err := s.GetReview("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetReview(missing) err = %v, want ErrNotFound", err)
	}
}

func TestCreateReviewDefaultsProfile(t *testing.T) {
	s := openTestStore(t)
	if err := s.CreateReview(Review{ID: "rev-1", Title: "t", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	got, err := s.GetReview("rev-1")
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	if got.Profile != "fast" {
		t.Errorf("profile = %q, want fast default", got.Profile)
	}
}

func TestDocumentsScopedToReview(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	for _, r := range []string{"rev-1", "rev-2"} {
		if err := s.CreateReview(Review{ID: r, Title: r, CreatedAt: now}); err != nil {
			t.Fatalf("CreateReview %s: %v", r, err)
		}
	}
	docs := []Document{
		{ID: "doc-1", ReviewID: "rev-1", Name: "msa.pdf", Text: "alpha", CreatedAt: now},
		{ID: "doc-2", ReviewID: "rev-1", Name: "sow.pdf", Text: "beta", CreatedAt: now.Add(time.Second)},
		{ID: "doc-3", ReviewID: "rev-2", Name: "other.pdf", Text: "gamma", CreatedAt: now},
	}
	for _, d := range docs {
		if err := s.AddDocument(d); err != nil {
			t.Fatalf("AddDocument %s: %v", d.ID, err)
		}
	}

	got, err := s.Documents(context.Background(), "rev-1")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("documents = %d, want 2", len(got))
	}
	if got[0].ID != "doc-1" || got[1].ID != "doc-2" {
		t.Errorf("order = %s, %s; want doc-1, doc-2", got[0].ID, got[1].ID)
	}
	if got[0].Text != "alpha" {
		t.Errorf("text = %q, want alpha", got[0].Text)
	}
}

func TestLatestAnalysis(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	if err := s.CreateReview(Review{ID: "rev-1", Title: "t", CreatedAt: now}); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}

	if _, err := s.LatestAnalysis("rev-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestAnalysis err = %v, want ErrNotFound before any save", err)
	}

	records := []Analysis{
		{ID: "an-1", ReviewID: "rev-1", Intent: "strict_summary", RecordJSON: `{"v":1}`, CreatedAt: now},
		{ID: "an-2", ReviewID: "rev-1", Intent: "risk_triage", RecordJSON: `{"v":2}`, CreatedAt: now.Add(time.Minute)},
	}
	for _, a := range records {
		if err := s.SaveAnalysis(a); err != nil {
			t.Fatalf("SaveAnalysis %s: %v", a.ID, err)
		}
	}

	got, err := s.LatestAnalysis("rev-1")
	if err != nil {
		t.Fatalf("LatestAnalysis: %v", err)
	}
	if got.ID != "an-2" || got.RecordJSON != `{"v":2}` {
		t.Errorf("got %+v, want the newer record", got)
	}
}

func TestMigrationsApplyOnce(t *testing.T) {
	s := openTestStore(t)
	// Re-running migrate on an initialized database is a no-op.
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
