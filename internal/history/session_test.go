package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSession_GroupsOperations(t *testing.T) {
	s := newTestStore(t)

	id := s.StartSession()
	if id == "" {
		t.Fatal("StartSession returned empty id")
	}
	mustAdd(t, s, "a.txt", "/src/a.txt", "/dst/a.txt", OpMove, StatusSuccess)
	mustAdd(t, s, "b.txt", "/src/b.txt", "/dst/b.txt", OpMove, StatusFailed)
	s.EndSession()

	// Outside any session.
	mustAdd(t, s, "c.txt", "/src/c.txt", "/dst/c.txt", OpMove, StatusSuccess)

	sessions, err := s.Sessions(0)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	sess := sessions[0]
	if sess.ID != id {
		t.Errorf("session id: got %s, want %s", sess.ID, id)
	}
	if sess.Operations != 2 || sess.Succeeded != 1 || sess.Failed != 1 {
		t.Errorf("counts: ops=%d ok=%d failed=%d, want 2/1/1",
			sess.Operations, sess.Succeeded, sess.Failed)
	}

	ops, err := s.SessionOperations(id)
	if err != nil {
		t.Fatalf("SessionOperations: %v", err)
	}
	if len(ops) != 2 {
		t.Errorf("got %d session operations, want 2", len(ops))
	}
	if len(ops) == 2 && (ops[0].FileName != "a.txt" || ops[1].FileName != "b.txt") {
		t.Errorf("session operations not chronological: %s, %s", ops[0].FileName, ops[1].FileName)
	}
	for _, op := range ops {
		if op.FileName == "c.txt" {
			t.Error("ungrouped operation leaked into session")
		}
	}
}

func TestSession_SummaryFile(t *testing.T) {
	s := newTestStore(t)

	id := s.StartSession()
	mustAdd(t, s, "a.txt", "/src/a.txt", "/dst/a.txt", OpMove, StatusSuccess)
	mustAdd(t, s, "b.txt", "/src/b.txt", "/dst/b.txt", OpMove, StatusFailed)
	s.EndSession()

	path := filepath.Join(s.DataDir(), "session_"+id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("summary file missing: %v", err)
	}
	var summary SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	if summary.SessionID != id || summary.Operations != 2 {
		t.Errorf("summary: id=%s ops=%d, want %s/2", summary.SessionID, summary.Operations, id)
	}

	// The summary must stand on its own: the full operation list rides
	// along, in chronological order.
	if len(summary.Entries) != 2 {
		t.Fatalf("summary carries %d operations, want 2", len(summary.Entries))
	}
	if summary.Entries[0].FileName != "a.txt" || summary.Entries[1].FileName != "b.txt" {
		t.Errorf("operation list out of order: %s, %s",
			summary.Entries[0].FileName, summary.Entries[1].FileName)
	}
	if summary.Entries[0].OriginalPath != "/src/a.txt" || summary.Entries[1].Status != StatusFailed {
		t.Error("operation list lost row details")
	}
}

func TestSession_EmptySessionLeavesNoArtifact(t *testing.T) {
	s := newTestStore(t)

	id := s.StartSession()
	s.EndSession()

	path := filepath.Join(s.DataDir(), "session_"+id+".json")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("empty session wrote a summary file at %s", path)
	}
	if s.CurrentSession() != "" {
		t.Error("session still active after EndSession")
	}
}

func TestSession_StartWhileActiveEndsPrevious(t *testing.T) {
	s := newTestStore(t)

	first := s.StartSession()
	mustAdd(t, s, "a.txt", "/src/a.txt", "/dst/a.txt", OpMove, StatusSuccess)
	second := s.StartSession()
	if first == second {
		t.Fatal("second StartSession reused the first id")
	}
	if s.CurrentSession() != second {
		t.Errorf("active session: got %s, want %s", s.CurrentSession(), second)
	}

	// The first session was ended implicitly and had one operation.
	path := filepath.Join(s.DataDir(), "session_"+first+".json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("implicitly ended session left no summary: %v", err)
	}
}
