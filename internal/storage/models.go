package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Review is one contract review: a named bundle of documents analyzed
// together.
type Review struct {
	ID        string
	Title     string
	Profile   string
	CreatedAt time.Time
}

// Document is an uploaded review document with its extracted text.
type Document struct {
	ID          string
	ReviewID    string
	Name        string
	ContentType string
	Text        string
	CreatedAt   time.Time
}

// Analysis is a persisted, compacted analysis record.
type Analysis struct {
	ID         string
	ReviewID   string
	Intent     string
	RecordJSON string // compacted record stored as JSON text
	CreatedAt  time.Time
}
