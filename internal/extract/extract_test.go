package extract

import "testing"

func TestTextPlain(t *testing.T) {
	got, err := Text("notes.txt", "text/plain", []byte("the contractor shall deliver"))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "the contractor shall deliver" {
		t.Errorf("got %q", got)
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        []byte
		want        bool
	}{
		{"contract.PDF", "", nil, true},
		{"contract.bin", "application/pdf", nil, true},
		{"contract.bin", "", []byte("%PDF-1.7 rest"), true},
		{"contract.txt", "text/plain", []byte("plain words"), false},
	}
	for _, tt := range tests {
		if got := isPDF(tt.name, tt.contentType, tt.data); got != tt.want {
			t.Errorf("isPDF(%q, %q) = %v, want %v", tt.name, tt.contentType, got, tt.want)
		}
	}
}

func TestTextInvalidPDF(t *testing.T) {
	if _, err := Text("broken.pdf", "", []byte("%PDF- not a real pdf")); err == nil {
		t.Error("expected error for malformed pdf")
	}
}
