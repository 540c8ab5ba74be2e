// Package organizer moves, copies and renames files into categorized
// directories, logging every attempt to the operation history.
package organizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arvidh/sortify/internal/fsutil"
)

// ResolveDest returns the destination path for a file placed in the
// given category under root, with conflicts resolved.
func ResolveDest(root, category, fileName string) string {
	return ConflictFree(filepath.Join(root, filepath.FromSlash(category), fileName))
}

// ConflictFree returns path unchanged when nothing occupies it, or the
// first free numbered variant: name_1.ext, name_2.ext and so on. The
// counter goes before the extension so sorted listings keep variants
// together.
func ConflictFree(path string) string {
	if !fsutil.FileExists(path) && !fsutil.DirExists(path) {
		return path
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if !fsutil.FileExists(candidate) && !fsutil.DirExists(candidate) {
			return candidate
		}
	}
}
