package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Session is an aggregate over all operations sharing one session id.
// Sessions have no table of their own; they are derived from the
// history rows by grouping on session_id.
type Session struct {
	ID         string
	Operations int
	Succeeded  int
	Failed     int
	Undone     int
	TotalBytes int64
	Started    time.Time
	Ended      time.Time
}

// SessionSummary is the JSON side artifact written when a session with
// at least one operation ends. It carries the full operation list so
// the summary stands on its own after the rows are purged.
type SessionSummary struct {
	SessionID  string      `json:"session_id"`
	Started    time.Time   `json:"started"`
	Ended      time.Time   `json:"ended"`
	Operations int         `json:"operations"`
	Entries    []Operation `json:"operation_list"`
}

// StartSession begins a new session and returns its id. Operations logged
// between StartSession and EndSession carry the id. Starting a session
// while one is active ends the old one first.
func (s *Store) StartSession() string {
	s.state.sessionMu.Lock()
	active := s.state.sessionID
	s.state.sessionMu.Unlock()
	if active != "" {
		s.EndSession()
	}

	id := time.Now().Format("20060102-150405") + "-" + uuid.NewString()[:8]

	s.state.sessionMu.Lock()
	s.state.sessionID = id
	s.state.sessionStart = time.Now()
	s.state.sessionOps = 0
	s.state.sessionMu.Unlock()

	return id
}

// EndSession closes the active session. If the session recorded at least
// one operation a JSON summary is written next to the database; sessions
// that logged nothing leave no artifact. Ending with no active session
// is a no-op.
func (s *Store) EndSession() {
	s.state.sessionMu.Lock()
	id := s.state.sessionID
	started := s.state.sessionStart
	ops := s.state.sessionOps
	s.state.sessionID = ""
	s.state.sessionOps = 0
	s.state.sessionMu.Unlock()

	if id == "" || ops == 0 {
		return
	}

	entries, err := s.SessionOperations(id)
	if err != nil {
		log.Printf("could not load operations for session summary %s: %v", id, err)
	}

	summary := SessionSummary{
		SessionID:  id,
		Started:    started,
		Ended:      time.Now(),
		Operations: ops,
		Entries:    entries,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Printf("failed to encode session summary: %v", err)
		return
	}

	path := filepath.Join(s.state.dataDir, "session_"+id+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("failed to write session summary %s: %v", path, err)
	}
}

// CurrentSession returns the active session id, or empty.
func (s *Store) CurrentSession() string {
	s.state.sessionMu.Lock()
	defer s.state.sessionMu.Unlock()
	return s.state.sessionID
}

// currentSessionLocked reads the session id for AddEntry. The caller
// holds opLock; sessionMu still guards against StartSession racing in.
func (s *Store) currentSessionLocked() string {
	s.state.sessionMu.Lock()
	defer s.state.sessionMu.Unlock()
	return s.state.sessionID
}

// Sessions returns session aggregates, most recent first.
func (s *Store) Sessions(limit int) ([]Session, error) {
	conn, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT session_id,
		       COUNT(*),
		       SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'undone' THEN 1 ELSE 0 END),
		       COALESCE(SUM(file_size), 0),
		       MIN(timestamp),
		       MAX(timestamp)
		FROM history
		WHERE session_id IS NOT NULL
		GROUP BY session_id
		ORDER BY MAX(timestamp) DESC, session_id DESC`

	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var started, ended string
		if err := rows.Scan(&sess.ID, &sess.Operations, &sess.Succeeded,
			&sess.Failed, &sess.Undone, &sess.TotalBytes, &started, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sess.Started = parseTimestamp(started)
		sess.Ended = parseTimestamp(ended)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionOperations returns all operations of one session in
// chronological order.
func (s *Store) SessionOperations(sessionID string) ([]Operation, error) {
	ops, err := s.list("session_id = ?", []any{sessionID}, Page{})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops, nil
}
