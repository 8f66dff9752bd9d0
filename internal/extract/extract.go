// Package extract pulls plain text out of uploaded review documents.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Text extracts the full text of a document from its raw bytes. PDF input
// is detected by extension or content type; everything else is treated as
// plain text.
func Text(name, contentType string, data []byte) (string, error) {
	if isPDF(name, contentType, data) {
		return pdfText(data)
	}
	return string(data), nil
}

func isPDF(name, contentType string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	if strings.EqualFold(contentType, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// pdfText renders every page's text in order. The reader needs a
// ReaderAt, so the bytes are staged in a temp file.
func pdfText(data []byte) (string, error) {
	f, err := os.CreateTemp("", "riskline-extract-*.pdf")
	if err != nil {
		return "", fmt.Errorf("staging pdf: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("staging pdf: %w", err)
	}

	r, err := pdf.NewReader(f, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	return buf.String(), nil
}
