// Package storage persists reviews, their documents and compacted analysis
// records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clearpath-legal/riskline/internal/ingest"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for reviews, documents and
// analyses.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "riskline.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for components that share the database
// file, such as the embedded vector index.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Reviews ---

func (s *Store) CreateReview(r Review) error {
	profile := r.Profile
	if profile == "" {
		profile = "fast"
	}
	_, err := s.db.Exec(`
		INSERT INTO reviews (id, title, profile, created_at)
		VALUES (?, ?, ?, ?)`,
		r.ID, r.Title, profile, r.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetReview(id string) (Review, error) {
	var r Review
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, title, profile, created_at FROM reviews WHERE id = ?`, id,
	).Scan(&r.ID, &r.Title, &r.Profile, &createdAt)
	if err == sql.ErrNoRows {
		return Review{}, ErrNotFound
	}
	if err != nil {
		return Review{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Review{}, fmt.Errorf("parsing review created_at: %w", err)
	}
	r.CreatedAt = t
	return r, nil
}

func (s *Store) ListReviews(limit, offset int) ([]Review, error) {
	rows, err := s.db.Query(`
		SELECT id, title, profile, created_at FROM reviews
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var r Review
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Title, &r.Profile, &createdAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Documents ---

func (s *Store) AddDocument(d Document) error {
	contentType := d.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (id, review_id, name, content_type, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.ReviewID, d.Name, contentType, d.Text, d.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListDocuments(reviewID string) ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, review_id, name, content_type, text, created_at
		FROM documents WHERE review_id = ? ORDER BY created_at ASC, id ASC`, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var createdAt string
		if err := rows.Scan(&d.ID, &d.ReviewID, &d.Name, &d.ContentType, &d.Text, &createdAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			d.CreatedAt = t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Documents implements the ingestion document source over the store.
func (s *Store) Documents(ctx context.Context, reviewID string) ([]ingest.Document, error) {
	docs, err := s.ListDocuments(reviewID)
	if err != nil {
		return nil, err
	}
	out := make([]ingest.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, ingest.Document{ID: d.ID, Name: d.Name, Text: d.Text})
	}
	return out, nil
}

// --- Analyses ---

func (s *Store) SaveAnalysis(a Analysis) error {
	_, err := s.db.Exec(`
		INSERT INTO analyses (id, review_id, intent, record_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.ReviewID, a.Intent, a.RecordJSON, a.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// LatestAnalysis returns the most recent analysis persisted for a review.
func (s *Store) LatestAnalysis(reviewID string) (Analysis, error) {
	var a Analysis
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, review_id, intent, record_json, created_at
		FROM analyses WHERE review_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, reviewID,
	).Scan(&a.ID, &a.ReviewID, &a.Intent, &a.RecordJSON, &createdAt)
	if err == sql.ErrNoRows {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		a.CreatedAt = t
	}
	return a, nil
}
