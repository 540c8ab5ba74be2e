package categorize

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRules_Categorize(t *testing.T) {
	r := NewRules(nil, "")

	tests := []struct {
		path string
		want string
	}{
		{"report.pdf", "documents/pdf"},
		{"photo.JPG", "images/photos"},
		{"archive.tar", "archives"},
		{"main.go", "code"},
		{"config.yaml", "code/data"},
		{"Screenshot 2026-08-01.png", "images/screenshots"},
		{"invoice-march.pdf", "documents/invoices"},
		{"mystery.xyz", "misc/other"},
		{"noextension", "misc/other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := r.Categorize(tt.path)
			if err != nil {
				t.Fatalf("Categorize(%s): %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("Categorize(%s): got %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestRules_Overrides(t *testing.T) {
	r := NewRules(map[string]string{
		"pdf": "paperwork",
		".md": "notes",
	}, "unsorted")

	if got, _ := r.Categorize("a.pdf"); got != "paperwork" {
		t.Errorf("override: got %s, want paperwork", got)
	}
	if got, _ := r.Categorize("a.md"); got != "notes" {
		t.Errorf("dotted override: got %s, want notes", got)
	}
	if got, _ := r.Categorize("a.unknown"); got != "unsorted" {
		t.Errorf("fallback: got %s, want unsorted", got)
	}
	// Non-overridden built-ins survive.
	if got, _ := r.Categorize("a.png"); got != "images/graphics" {
		t.Errorf("builtin: got %s, want images/graphics", got)
	}
}

func TestRules_ContentSniff(t *testing.T) {
	dir := t.TempDir()
	r := NewRules(nil, "")

	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{"pdfdata", []byte("%PDF-1.7 rest of header"), "documents/pdf"},
		{"pngdata", []byte("\x89PNG\r\n\x1a\n more"), "images/graphics"},
		{"script", []byte("#!/bin/sh\necho hi\n"), "code"},
		{"plain", []byte("just some text"), "misc/other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, tt.content, 0644); err != nil {
				t.Fatal(err)
			}
			got, err := r.Categorize(path)
			if err != nil {
				t.Fatalf("Categorize: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
