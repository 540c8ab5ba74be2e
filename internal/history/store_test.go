package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/arvidh/sortify/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	mgr := database.NewManager(filepath.Join(dir, "history.db"))
	t.Cleanup(mgr.CloseAll)

	store, err := NewStore(mgr, dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func mustAdd(t *testing.T, s *Store, name, from, to, opType, status string) int64 {
	t.Helper()
	id, ok := s.AddEntry(name, from, to, 100, opType, status)
	if !ok {
		t.Fatalf("AddEntry(%s) failed", name)
	}
	return id
}

func TestStore_AddAndRecent(t *testing.T) {
	s := newTestStore(t)

	mustAdd(t, s, "a.txt", "/src/a.txt", "/dst/a.txt", OpMove, StatusSuccess)
	mustAdd(t, s, "b.txt", "/src/b.txt", "/dst/b.txt", OpMove, StatusFailed)

	ops, err := s.Recent(DefaultPage())
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d operations, want 2", len(ops))
	}
	// Same-second inserts: id DESC tiebreak puts the later insert first.
	if ops[0].FileName != "b.txt" {
		t.Errorf("newest first: got %s, want b.txt", ops[0].FileName)
	}
	if ops[0].FileSize != 100 {
		t.Errorf("file size: got %d, want 100", ops[0].FileSize)
	}
	if ops[0].Timestamp.IsZero() {
		t.Error("timestamp not populated")
	}
}

func TestStore_Filters(t *testing.T) {
	s := newTestStore(t)

	mustAdd(t, s, "report.pdf", "/in/report.pdf", "/docs/report.pdf", OpMove, StatusSuccess)
	mustAdd(t, s, "photo.jpg", "/in/photo.jpg", "/img/photo.jpg", OpCopy, StatusSuccess)
	mustAdd(t, s, "notes.txt", "/in/notes.txt", "/docs/notes.txt", OpMove, StatusFailed)

	tests := []struct {
		name string
		run  func() ([]Operation, error)
		want int
	}{
		{"by type move", func() ([]Operation, error) { return s.ByType(OpMove, DefaultPage()) }, 2},
		{"by type copy", func() ([]Operation, error) { return s.ByType(OpCopy, DefaultPage()) }, 1},
		{"by status failed", func() ([]Operation, error) { return s.ByStatus(StatusFailed, DefaultPage()) }, 1},
		{"search name", func() ([]Operation, error) { return s.SearchByName("photo", DefaultPage()) }, 1},
		{"search path", func() ([]Operation, error) { return s.SearchByPath("/docs/", DefaultPage()) }, 2},
		{"search path miss", func() ([]Operation, error) { return s.SearchByPath("/nope/", DefaultPage()) }, 0},
		{"undoable", func() ([]Operation, error) { return s.UndoableOperations(10) }, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := tt.run()
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if len(ops) != tt.want {
				t.Errorf("got %d operations, want %d", len(ops), tt.want)
			}
		})
	}
}

func TestStore_ByDateRange(t *testing.T) {
	s := newTestStore(t)
	mustAdd(t, s, "a.txt", "/src/a.txt", "/dst/a.txt", OpMove, StatusSuccess)

	now := time.Now().UTC()
	ops, err := s.ByDateRange(now.Add(-time.Hour), now.Add(time.Hour), DefaultPage())
	if err != nil {
		t.Fatalf("ByDateRange: %v", err)
	}
	if len(ops) != 1 {
		t.Errorf("in-range: got %d, want 1", len(ops))
	}

	ops, err = s.ByDateRange(now.Add(-2*time.Hour), now.Add(-time.Hour), DefaultPage())
	if err != nil {
		t.Fatalf("ByDateRange: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("out-of-range: got %d, want 0", len(ops))
	}
}

func TestStore_Paging(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		mustAdd(t, s, fmt.Sprintf("f%d.txt", i), "/src", "/dst", OpMove, StatusSuccess)
	}

	first, err := s.Recent(Page{Limit: 2})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	second, err := s.Recent(Page{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Recent offset: %v", err)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("page sizes: got %d and %d, want 2 and 2", len(first), len(second))
	}
	if first[0].ID == second[0].ID {
		t.Error("pages overlap")
	}
}

func TestStore_PurgeBoundary(t *testing.T) {
	s := newTestStore(t)
	conn, err := s.conn()
	if err != nil {
		t.Fatalf("conn: %v", err)
	}

	// One row well past the cutoff, one exactly at it, one recent.
	insert := func(name, ts string) {
		t.Helper()
		_, err := conn.Execute(`
			INSERT INTO history (file_name, original_path, new_path, operation_type, status, timestamp)
			VALUES (?, '/a', '/b', 'move', 'success', ?)`, name, ts)
		if err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}
	insert("ancient.txt", time.Now().UTC().AddDate(0, 0, -40).Format(sqliteTimeLayout))
	insert("recent.txt", time.Now().UTC().Format(sqliteTimeLayout))

	// Pin the at-cutoff row with sqlite's own clock so it cannot drift
	// below the cutoff between insert and purge.
	if _, err := conn.Execute(`
		INSERT INTO history (file_name, original_path, new_path, operation_type, status, timestamp)
		VALUES ('boundary.txt', '/a', '/b', 'move', 'success', datetime('now', '-30 days'))`); err != nil {
		t.Fatalf("insert boundary: %v", err)
	}

	deleted, err := s.PurgeOlderThan(30)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d rows, want 1 (only the ancient row)", deleted)
	}

	ops, err := s.Recent(DefaultPage())
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	names := map[string]bool{}
	for _, op := range ops {
		names[op.FileName] = true
	}
	if names["ancient.txt"] {
		t.Error("row older than cutoff survived purge")
	}
	if !names["boundary.txt"] {
		t.Error("row exactly at cutoff was purged; the boundary is exclusive")
	}
	if !names["recent.txt"] {
		t.Error("recent row was purged")
	}
}

func TestStore_ConcurrentAddEntry(t *testing.T) {
	s := newTestStore(t)

	const workers = 8
	const perWorker = 20

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			view := s.WithWorker(fmt.Sprintf("worker-%d", w))
			for i := 0; i < perWorker; i++ {
				name := fmt.Sprintf("w%d-f%d.txt", w, i)
				if _, ok := view.AddEntry(name, "/src/"+name, "/dst/"+name, 10, OpMove, StatusSuccess); !ok {
					t.Errorf("AddEntry(%s) failed", name)
				}
			}
		}(w)
	}
	wg.Wait()

	ops, err := s.Recent(Page{Limit: workers*perWorker + 1})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(ops) != workers*perWorker {
		t.Errorf("got %d rows, want %d", len(ops), workers*perWorker)
	}
	seen := map[int64]bool{}
	for _, op := range ops {
		if seen[op.ID] {
			t.Fatalf("duplicate id %d", op.ID)
		}
		seen[op.ID] = true
	}
}

func TestStore_MigrateTwice(t *testing.T) {
	dir := t.TempDir()
	mgr := database.NewManager(filepath.Join(dir, "history.db"))
	defer mgr.CloseAll()

	s1, err := NewStore(mgr, dir)
	if err != nil {
		t.Fatalf("first NewStore: %v", err)
	}
	mustAdd(t, s1, "a.txt", "/src/a.txt", "/dst/a.txt", OpMove, StatusSuccess)

	// Reopening against an existing database must not lose rows.
	s2, err := NewStore(mgr, dir)
	if err != nil {
		t.Fatalf("second NewStore: %v", err)
	}
	ops, err := s2.Recent(DefaultPage())
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(ops) != 1 {
		t.Errorf("got %d rows after reopen, want 1", len(ops))
	}
}

func TestNewStore_RecreatesCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")
	if err := os.WriteFile(dbPath, []byte("this is not a database"), 0644); err != nil {
		t.Fatal(err)
	}

	mgr := database.NewManager(dbPath)
	defer mgr.CloseAll()

	s, err := NewStore(mgr, dir)
	if err != nil {
		t.Fatalf("NewStore over a corrupted file: %v", err)
	}

	// The garbled file was quarantined and a working one took its place.
	if _, err := os.Stat(dbPath + ".bak"); err != nil {
		t.Errorf("corrupted database was not kept as .bak: %v", err)
	}
	mustAdd(t, s, "a.txt", "/src/a.txt", "/dst/a.txt", OpMove, StatusSuccess)
	ops, err := s.Recent(DefaultPage())
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(ops) != 1 {
		t.Errorf("recreated store holds %d rows, want 1", len(ops))
	}
}
