package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "a.txt")
	dst := filepath.Join(dir, "deep", "nested", "a.txt")

	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("contents: got %q, want %q", data, "payload")
	}
	if FileExists(src) {
		t.Error("source still exists after move")
	}
}

func TestMoveFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := MoveFile(filepath.Join(dir, "nope.txt"), filepath.Join(dir, "out", "nope.txt"))
	if err == nil {
		t.Fatal("moving a missing file succeeded")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "copies", "a.txt")

	if err := os.WriteFile(src, []byte("payload"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	if !FileExists(src) {
		t.Error("copy removed the source")
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("contents: got %q, want %q", data, "payload")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions: got %v, want 0600", info.Mode().Perm())
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) {
		t.Error("regular file reported missing")
	}
	if FileExists(dir) {
		t.Error("directory reported as file")
	}
	if FileExists(filepath.Join(dir, "nope")) {
		t.Error("missing path reported as file")
	}
	if !DirExists(dir) {
		t.Error("directory reported missing")
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := FileSize(file); got != 5 {
		t.Errorf("size: got %d, want 5", got)
	}
	if got := FileSize(filepath.Join(dir, "nope")); got != 0 {
		t.Errorf("missing file size: got %d, want 0", got)
	}
}
