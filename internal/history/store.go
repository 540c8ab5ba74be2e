// Package history implements the durable operation log, session grouping
// and the undo engine. Every filesystem mutation sortify performs is
// recorded here, success or failure, and successful operations can be
// reversed individually or as whole sessions.
package history

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/arvidh/sortify/internal/database"
	"github.com/arvidh/sortify/internal/fsutil"
)

// Operation types.
const (
	OpMove        = "move"
	OpCopy        = "copy"
	OpRename      = "rename"
	OpDelete      = "delete"
	OpBatchRename = "batch_rename"
)

// Operation statuses. Status only ever transitions success -> undone,
// and only after the reverse filesystem move has actually succeeded.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusUndone  = "undone"
)

// Operation is one logged filesystem mutation attempt.
type Operation struct {
	ID           int64     `json:"id"`
	FileName     string    `json:"file_name"`
	OriginalPath string    `json:"original_path"`
	NewPath      string    `json:"new_path"`
	FileSize     int64     `json:"file_size"` // 0 when unknown
	Type         string    `json:"operation_type"`
	Status       string    `json:"status"`
	SessionID    string    `json:"session_id,omitempty"` // empty for ungrouped rows
	Timestamp    time.Time `json:"timestamp"`
}

// storeState is shared between all worker-scoped views of one store.
type storeState struct {
	mgr     *database.Manager
	dataDir string

	// opLock serializes logical read-modify-write sequences (undo's
	// select-then-update, session-tagged inserts) across all workers.
	// Per-store, not per-row: throughput here is I/O-bound, not
	// lock-bound.
	opLock sync.Mutex

	// current session, guarded by sessionMu
	sessionMu    sync.Mutex
	sessionID    string
	sessionStart time.Time
	sessionOps   int
}

// Store manages the operation log. Each worker obtains its own view via
// WithWorker so no database connection ever crosses workers; views share
// the session pointer and the logical-operation lock.
type Store struct {
	state *storeState
	owner string
}

const defaultOwner = "history"

// NewStore opens (or creates) the history database under dataDir and
// migrates the schema. Opening is retried a few times because a freshly
// installed data directory can race with permission fixes; after the
// retries a construction error is fatal to the caller.
func NewStore(mgr *database.Manager, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		state: &storeState{mgr: mgr, dataDir: dataDir},
		owner: defaultOwner,
	}

	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if lastErr = s.migrate(); lastErr == nil {
			return s, nil
		}
		// Two failures are repairable before the next attempt: stale
		// permissions, and a corrupted database file. The latter is
		// quarantined as .bak and recreated from scratch; an empty log
		// beats a tool that refuses to start.
		os.Chmod(dataDir, 0755)
		if fsutil.FileExists(mgr.Path()) {
			os.Chmod(mgr.Path(), 0644)
			if !s.healthy() {
				s.quarantineDatabase()
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("could not initialize history database after %d attempts: %w", maxAttempts, lastErr)
}

// WithWorker returns a view of the store bound to the named worker's
// dedicated connection. Views share session state and the operation lock.
func (s *Store) WithWorker(name string) *Store {
	return &Store{state: s.state, owner: name}
}

// DataDir returns the directory holding the database and side artifacts.
func (s *Store) DataDir() string {
	return s.state.dataDir
}

// Close closes this view's connection.
func (s *Store) Close() {
	s.state.mgr.CloseConn(s.owner)
}

func (s *Store) conn() (*database.Connection, error) {
	return s.state.mgr.Conn(s.owner)
}

// migrate creates the schema and applies the non-destructive session_id
// migration for databases created before session grouping existed. A
// failed session_id migration is logged but non-fatal: the store keeps
// working, just without session grouping.
func (s *Store) migrate() error {
	conn, err := s.conn()
	if err != nil {
		return err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		original_path TEXT NOT NULL,
		new_path TEXT NOT NULL,
		file_size INTEGER,
		operation_type TEXT,
		status TEXT DEFAULT 'success',
		session_id TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_history_status ON history(status);
	CREATE INDEX IF NOT EXISTS idx_history_session_id ON history(session_id);
	CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp);
	CREATE INDEX IF NOT EXISTS idx_history_operation_type ON history(operation_type);
	`

	if _, err := conn.Execute(schema); err != nil {
		return fmt.Errorf("failed to migrate history database: %w", err)
	}

	if !s.hasColumn(conn, "session_id") {
		if _, err := conn.Execute(`ALTER TABLE history ADD COLUMN session_id TEXT`); err != nil {
			log.Printf("session_id migration failed, continuing without session grouping: %v", err)
		}
	}

	return nil
}

// healthy runs an integrity check against the database file. A file
// that is not a database at all fails the query itself.
func (s *Store) healthy() bool {
	rows, err := s.state.mgr.ExecuteQuery(s.owner, "PRAGMA integrity_check", nil, database.FetchOne)
	if err != nil || len(rows) == 0 || len(rows[0]) == 0 {
		return false
	}
	return fmt.Sprintf("%s", rows[0][0]) == "ok"
}

// quarantineDatabase moves a corrupted database aside as .bak so the
// next migrate attempt starts from a fresh file. The history is lost
// but recoverable by hand from the backup.
func (s *Store) quarantineDatabase() {
	path := s.state.mgr.Path()
	s.state.mgr.CloseConn(s.owner)

	bak := path + ".bak"
	if err := os.Rename(path, bak); err != nil {
		log.Printf("could not quarantine corrupted history database: %v", err)
		return
	}
	log.Printf("history database failed its integrity check, moved to %s", bak)
}

// hasColumn checks the history table for a column.
func (s *Store) hasColumn(conn *database.Connection, column string) bool {
	rows, err := conn.Query(`PRAGMA table_info(history)`)
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

// AddEntry inserts one operation row tagged with the current session.
// Returns the new row id and true on success. On failure it makes exactly
// one reconnect-and-retry attempt before giving up with (0, false); the
// caller decides whether a lost log entry aborts the surrounding work.
func (s *Store) AddEntry(fileName, originalPath, newPath string, fileSize int64, opType, status string) (int64, bool) {
	s.state.opLock.Lock()
	defer s.state.opLock.Unlock()

	sessionID := s.currentSessionLocked()

	id, err := s.insertEntry(fileName, originalPath, newPath, fileSize, opType, status, sessionID)
	if err != nil {
		log.Printf("history insert failed, reconnecting: %v", err)
		if _, rerr := s.state.mgr.Reconnect(s.owner); rerr != nil {
			log.Printf("reconnect failed: %v", rerr)
			return 0, false
		}
		id, err = s.insertEntry(fileName, originalPath, newPath, fileSize, opType, status, sessionID)
		if err != nil {
			log.Printf("history insert failed after reconnect: %v", err)
			return 0, false
		}
	}

	if sessionID != "" {
		s.state.sessionMu.Lock()
		s.state.sessionOps++
		s.state.sessionMu.Unlock()
	}

	return id, true
}

func (s *Store) insertEntry(fileName, originalPath, newPath string, fileSize int64, opType, status, sessionID string) (int64, error) {
	conn, err := s.conn()
	if err != nil {
		return 0, err
	}

	result, err := conn.Execute(`
		INSERT INTO history (file_name, original_path, new_path, file_size, operation_type, status, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fileName, originalPath, newPath, nullInt(fileSize), opType, status, nullString(sessionID))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Page bounds a lookup.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPage returns the default page size for listings.
func DefaultPage() Page {
	return Page{Limit: 50}
}

const operationColumns = "id, file_name, original_path, new_path, file_size, operation_type, status, session_id, timestamp"

// Recent returns operations, newest first.
func (s *Store) Recent(page Page) ([]Operation, error) {
	return s.list("", nil, page)
}

// ByType returns operations of one type, newest first.
func (s *Store) ByType(opType string, page Page) ([]Operation, error) {
	return s.list("operation_type = ?", []any{opType}, page)
}

// ByStatus returns operations with one status, newest first.
func (s *Store) ByStatus(status string, page Page) ([]Operation, error) {
	return s.list("status = ?", []any{status}, page)
}

// ByDateRange returns operations whose timestamp falls in [from, to].
func (s *Store) ByDateRange(from, to time.Time, page Page) ([]Operation, error) {
	return s.list("timestamp >= ? AND timestamp <= ?",
		[]any{from.UTC().Format(sqliteTimeLayout), to.UTC().Format(sqliteTimeLayout)}, page)
}

// SearchByName returns operations whose file name contains the substring.
func (s *Store) SearchByName(substr string, page Page) ([]Operation, error) {
	return s.list("file_name LIKE ?", []any{"%" + substr + "%"}, page)
}

// SearchByPath returns operations where either path contains the substring.
func (s *Store) SearchByPath(substr string, page Page) ([]Operation, error) {
	like := "%" + substr + "%"
	return s.list("(original_path LIKE ? OR new_path LIKE ?)", []any{like, like}, page)
}

// UndoableOperations returns status=success rows, the only rows eligible
// for undo, newest first.
func (s *Store) UndoableOperations(limit int) ([]Operation, error) {
	return s.list("status = ?", []any{StatusSuccess}, Page{Limit: limit})
}

// Get returns one operation by id, or nil if absent.
func (s *Store) Get(id int64) (*Operation, error) {
	ops, err := s.list("id = ?", []any{id}, Page{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, nil
	}
	return &ops[0], nil
}

// list runs a filtered, paged query. Ordering is timestamp DESC with id
// DESC as tiebreak: timestamps are the ordering authority across
// concurrent writers, ids break same-second ties.
func (s *Store) list(where string, args []any, page Page) ([]Operation, error) {
	conn, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := "SELECT " + operationColumns + " FROM history"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY timestamp DESC, id DESC"

	if page.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, page.Limit)
		if page.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, page.Offset)
		}
	}

	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history lookup failed: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// PurgeOlderThan deletes rows whose timestamp is strictly before the
// cutoff instant (now minus the given days). The boundary is exclusive:
// a row stamped exactly at the cutoff survives. Irreversible; intended
// for periodic maintenance only.
func (s *Store) PurgeOlderThan(days int) (int64, error) {
	var deleted int64
	err := s.state.mgr.ExecuteWithRetry(s.owner, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`DELETE FROM history WHERE timestamp < datetime('now', ?)`,
			fmt.Sprintf("-%d days", days))
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("history purge failed: %w", err)
	}
	return deleted, nil
}

// markStatus flips one row's status. Callers hold opLock.
func (s *Store) markStatus(id int64, status string) error {
	_, err := s.state.mgr.ExecuteQuery(s.owner,
		`UPDATE history SET status = ? WHERE id = ?`,
		[]any{status, id}, database.FetchNone)
	if err != nil {
		return fmt.Errorf("failed to update status for operation %d: %w", id, err)
	}
	return nil
}

// sqliteTimeLayout matches CURRENT_TIMESTAMP's text format.
const sqliteTimeLayout = "2006-01-02 15:04:05"

func scanOperations(rows *sql.Rows) ([]Operation, error) {
	var ops []Operation
	for rows.Next() {
		var op Operation
		var size sql.NullInt64
		var sessionID sql.NullString
		var ts string

		if err := rows.Scan(&op.ID, &op.FileName, &op.OriginalPath, &op.NewPath,
			&size, &op.Type, &op.Status, &sessionID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		op.FileSize = size.Int64
		op.SessionID = sessionID.String
		op.Timestamp = parseTimestamp(ts)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, strings.TrimSuffix(s, "Z"), time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// nullString converts an empty string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt converts a zero size to sql.NullInt64.
func nullInt(n int64) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}
