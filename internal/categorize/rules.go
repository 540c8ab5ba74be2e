// Package categorize decides which category directory a file belongs in.
package categorize

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// Categorizer maps a file to a category path relative to the organized
// root, e.g. "documents/pdf". Implementations may be backed by anything
// from a lookup table to an external classifier; callers treat failure
// or an empty result as "uncategorizable" and fall back themselves.
type Categorizer interface {
	Categorize(path string) (string, error)
}

// Rules categorizes by extension first, then by filename heuristics,
// then by a small content sniff, falling back to a configured default.
type Rules struct {
	extensions map[string]string
	fallback   string
}

// defaultExtensions is the built-in extension map. Keys are lower-case
// extensions without the dot.
var defaultExtensions = map[string]string{
	"pdf":  "documents/pdf",
	"doc":  "documents/word",
	"docx": "documents/word",
	"odt":  "documents/word",
	"txt":  "documents/text",
	"md":   "documents/text",
	"rtf":  "documents/text",
	"xls":  "documents/spreadsheets",
	"xlsx": "documents/spreadsheets",
	"ods":  "documents/spreadsheets",
	"csv":  "documents/spreadsheets",
	"ppt":  "documents/presentations",
	"pptx": "documents/presentations",
	"odp":  "documents/presentations",

	"jpg":  "images/photos",
	"jpeg": "images/photos",
	"png":  "images/graphics",
	"gif":  "images/graphics",
	"bmp":  "images/graphics",
	"webp": "images/graphics",
	"svg":  "images/vector",
	"heic": "images/photos",
	"raw":  "images/raw",

	"mp4":  "videos",
	"mkv":  "videos",
	"avi":  "videos",
	"mov":  "videos",
	"webm": "videos",

	"mp3":  "audio",
	"wav":  "audio",
	"flac": "audio",
	"ogg":  "audio",
	"m4a":  "audio",

	"zip": "archives",
	"tar": "archives",
	"gz":  "archives",
	"bz2": "archives",
	"xz":  "archives",
	"rar": "archives",
	"7z":  "archives",

	"exe": "installers",
	"msi": "installers",
	"dmg": "installers",
	"deb": "installers",
	"rpm": "installers",
	"apk": "installers",

	"go":   "code",
	"py":   "code",
	"js":   "code",
	"ts":   "code",
	"c":    "code",
	"h":    "code",
	"cpp":  "code",
	"rs":   "code",
	"java": "code",
	"sh":   "code",
	"sql":  "code",
	"json": "code/data",
	"yaml": "code/data",
	"yml":  "code/data",
	"toml": "code/data",
	"xml":  "code/data",

	"epub": "books",
	"mobi": "books",
	"azw3": "books",

	"ttf":   "fonts",
	"otf":   "fonts",
	"woff":  "fonts",
	"woff2": "fonts",

	"ics": "calendar",
	"eml": "mail",
	"iso": "disk-images",
	"log": "logs",
}

// nameHints routes common filename patterns that extensions alone miss.
var nameHints = []struct {
	substr   string
	category string
}{
	{"screenshot", "images/screenshots"},
	{"screen shot", "images/screenshots"},
	{"invoice", "documents/invoices"},
	{"receipt", "documents/invoices"},
	{"resume", "documents/personal"},
	{"cv_", "documents/personal"},
	{"statement", "documents/financial"},
	{"backup", "backups"},
}

// DefaultFallback is where uncategorizable files land.
const DefaultFallback = "misc/other"

// NewRules builds a categorizer. Overrides map extensions (without dot)
// to category paths and shadow the built-in map. An empty fallback uses
// DefaultFallback.
func NewRules(overrides map[string]string, fallback string) *Rules {
	ext := make(map[string]string, len(defaultExtensions)+len(overrides))
	for k, v := range defaultExtensions {
		ext[k] = v
	}
	for k, v := range overrides {
		ext[strings.ToLower(strings.TrimPrefix(k, "."))] = v
	}
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &Rules{extensions: ext, fallback: fallback}
}

// Categorize returns the category path for a file. It never fails;
// the error is part of the Categorizer contract for implementations
// that can.
func (r *Rules) Categorize(path string) (string, error) {
	name := strings.ToLower(filepath.Base(path))

	for _, hint := range nameHints {
		if strings.Contains(name, hint.substr) {
			return hint.category, nil
		}
	}

	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext != "" {
		if cat, ok := r.extensions[ext]; ok {
			return cat, nil
		}
	}

	if cat := sniffContent(path); cat != "" {
		return cat, nil
	}

	return r.fallback, nil
}

// Fallback returns the category for uncategorizable files.
func (r *Rules) Fallback() string {
	return r.fallback
}

// sniffContent inspects the first bytes of extensionless or unknown
// files for a few well-known magic numbers. Empty string means no match.
func sniffContent(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 16)
	n, err := f.Read(buf)
	if err != nil || n < 4 {
		return ""
	}
	buf = buf[:n]

	switch {
	case bytes.HasPrefix(buf, []byte("%PDF")):
		return "documents/pdf"
	case bytes.HasPrefix(buf, []byte("\x89PNG")):
		return "images/graphics"
	case bytes.HasPrefix(buf, []byte("\xff\xd8\xff")):
		return "images/photos"
	case bytes.HasPrefix(buf, []byte("GIF8")):
		return "images/graphics"
	case bytes.HasPrefix(buf, []byte("PK\x03\x04")):
		return "archives"
	case bytes.HasPrefix(buf, []byte("\x1f\x8b")):
		return "archives"
	case bytes.HasPrefix(buf, []byte("#!")):
		return "code"
	}
	return ""
}
