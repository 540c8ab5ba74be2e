// Package fsutil holds the filesystem primitives shared by the executor
// and the undo engine.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileSize returns the size of path in bytes, 0 when unknown.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// MoveFile moves src to dst, creating dst's parent directory as needed.
// Rename is tried first; when src and dst are on different devices it
// falls back to copy-and-delete.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	return copyAndDelete(src, dst)
}

// CopyFile copies src to dst, creating dst's parent directory as needed.
// Permissions are carried over from src.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	return copyContents(src, dst)
}

func copyAndDelete(src, dst string) error {
	if err := copyContents(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		// dst is complete at this point; removing it would lose less
		// than keeping both, so leave the duplicate and report.
		return fmt.Errorf("copied %s but failed to remove source: %w", dst, err)
	}
	return nil
}

func copyContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy contents: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to finish copy: %w", err)
	}
	return nil
}
