package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sortify.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
name: mysort
base_dir: /srv/organized
data_dir: /srv/sortify-data
rules:
  extensions:
    pdf: paperwork
  fallback: unsorted
watch:
  enabled: true
  ignore: ["*.tmp"]
  min_file_age: 2s
  stable_for: 1s
  max_wait: 30s
schedules:
  - name: nightly
    dir: /srv/inbox
    daily_at: "03:00"
    recursive: true
retention_days: 90
safety:
  confirmations: true
  backups: true
  backup_retention_days: 14
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Name != "mysort" {
		t.Errorf("name: got %s", cfg.Name)
	}
	if cfg.BaseDir != "/srv/organized" {
		t.Errorf("base_dir: got %s", cfg.BaseDir)
	}
	if cfg.Rules.Extensions["pdf"] != "paperwork" || cfg.Rules.Fallback != "unsorted" {
		t.Errorf("rules: got %+v", cfg.Rules)
	}
	if !cfg.Watch.Enabled || len(cfg.Watch.Ignore) != 1 {
		t.Errorf("watch: got %+v", cfg.Watch)
	}
	if len(cfg.Schedules) != 1 || cfg.Schedules[0].DailyAt != "03:00" || !cfg.Schedules[0].Recursive {
		t.Errorf("schedules: got %+v", cfg.Schedules)
	}
	if cfg.RetentionDays != 90 {
		t.Errorf("retention_days: got %d", cfg.RetentionDays)
	}
	if !cfg.Safety.Confirmations || !cfg.Safety.Backups || cfg.Safety.BackupRetentionDays != 14 {
		t.Errorf("safety: got %+v", cfg.Safety)
	}
	if cfg.HistoryPath() != filepath.Join("/srv/sortify-data", "history.db") {
		t.Errorf("history path: got %s", cfg.HistoryPath())
	}
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeConfig(t, `name: sparse`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("retention default: got %d, want 30", cfg.RetentionDays)
	}
	if cfg.Rules.Fallback != "misc/other" {
		t.Errorf("fallback default: got %s", cfg.Rules.Fallback)
	}
	if len(cfg.Watch.Ignore) == 0 {
		t.Error("ignore defaults missing")
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("loading a missing file succeeded")
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeConfig(t, "rules: [not, a, mapping")
	if _, err := Load(path); err == nil {
		t.Error("loading malformed YAML succeeded")
	}
}

func TestWatchDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.MinFileAge = "3s"
	cfg.Watch.StableFor = "garbage"
	cfg.Watch.MaxWait = ""

	minAge, stableFor, maxWait := cfg.WatchDurations()
	if minAge != 3*time.Second {
		t.Errorf("min age: got %s", minAge)
	}
	if stableFor != 500*time.Millisecond {
		t.Errorf("malformed stable_for did not fall back: got %s", stableFor)
	}
	if maxWait != 10*time.Second {
		t.Errorf("empty max_wait did not fall back: got %s", maxWait)
	}
}

func TestBackupDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	if got := cfg.BackupDir(); got != filepath.Join("/data", "backups") {
		t.Errorf("default backup dir: got %s", got)
	}

	cfg.Safety.BackupDir = "/elsewhere"
	if got := cfg.BackupDir(); got != "/elsewhere" {
		t.Errorf("explicit backup dir: got %s", got)
	}
}

func TestReload(t *testing.T) {
	path := writeConfig(t, "name: before\nretention_days: 10\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "before" {
		t.Fatalf("name: got %s", cfg.Name)
	}

	if err := os.WriteFile(path, []byte("name: after\nretention_days: 20\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cfg.Name != "after" || cfg.RetentionDays != 20 {
		t.Errorf("after reload: name=%s retention=%d", cfg.Name, cfg.RetentionDays)
	}
}

func TestHasChanged(t *testing.T) {
	path := writeConfig(t, "name: x\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HasChanged() {
		t.Error("freshly loaded config reports changed")
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if !cfg.HasChanged() {
		t.Error("touched config not reported changed")
	}
}
