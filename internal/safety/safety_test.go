package safety

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type denyAll struct{}

func (denyAll) Confirm(string) bool { return false }

func TestGate(t *testing.T) {
	tests := []struct {
		name      string
		confirmer Confirmer
		enabled   bool
		want      bool
	}{
		{"disabled gate skips confirmer", denyAll{}, false, true},
		{"enabled gate consults confirmer", denyAll{}, true, false},
		{"auto approve", AutoApprove{}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(tt.confirmer, tt.enabled)
			if got := g.Allow("proceed?"); got != tt.want {
				t.Errorf("Allow: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyUndo(t *testing.T) {
	dir := t.TempDir()
	moved := filepath.Join(dir, "docs", "a.txt")
	original := filepath.Join(dir, "inbox", "a.txt")

	if err := os.MkdirAll(filepath.Dir(moved), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(moved, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if check := VerifyUndo(original, moved); !check.OK {
		t.Errorf("feasible undo rejected: %s", check.Reason)
	}

	t.Run("missing file", func(t *testing.T) {
		check := VerifyUndo(original, filepath.Join(dir, "gone.txt"))
		if check.OK {
			t.Fatal("undo of a vanished file allowed")
		}
		if !strings.Contains(check.Reason, "no longer exists") {
			t.Errorf("unexpected reason: %q", check.Reason)
		}
	})

	t.Run("occupied original", func(t *testing.T) {
		if err := os.MkdirAll(filepath.Dir(original), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(original, []byte("squatter"), 0644); err != nil {
			t.Fatal(err)
		}
		check := VerifyUndo(original, moved)
		if check.OK {
			t.Fatal("undo over an occupied original allowed")
		}
		if !strings.Contains(check.Reason, "occupied") {
			t.Errorf("unexpected reason: %q", check.Reason)
		}
	})
}

func TestBackups_Keep(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	b := NewBackups(filepath.Join(dir, "backups"), true)
	kept, err := b.Keep(src)
	if err != nil {
		t.Fatalf("Keep: %v", err)
	}
	data, err := os.ReadFile(kept)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("backup contents: got %q", data)
	}

	disabled := NewBackups(filepath.Join(dir, "unused"), false)
	kept, err = disabled.Keep(src)
	if err != nil || kept != "" {
		t.Errorf("disabled Keep: got (%q, %v), want empty no-op", kept, err)
	}
}

func TestBackups_CleanupOld(t *testing.T) {
	dir := t.TempDir()
	b := NewBackups(dir, true)

	oldFile := filepath.Join(dir, "20250101-000000_old.txt")
	newFile := filepath.Join(dir, time.Now().Format("20060102-150405")+"_new.txt")
	for _, f := range []string{oldFile, newFile} {
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}

	if removed := b.CleanupOld(7); removed != 1 {
		t.Errorf("removed %d backups, want 1", removed)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("stale backup survived cleanup")
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Error("fresh backup was removed")
	}
}
