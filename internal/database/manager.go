package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"
)

// FetchMode controls how ExecuteQuery returns results.
type FetchMode int

const (
	// FetchAll returns every row.
	FetchAll FetchMode = iota
	// FetchOne returns at most one row.
	FetchOne
	// FetchNone discards results (for writes).
	FetchNone
)

// Statement is one query plus its arguments, for transactional batches.
type Statement struct {
	Query string
	Args  []any
}

// Manager owns one connection per worker and provides retrying
// query/transaction execution against a single history database file.
type Manager struct {
	path        string
	opts        OpenOptions
	maxRetries  int
	retryDelay  time.Duration
	connections map[string]*Connection
	mu          sync.Mutex
}

// NewManager creates a manager for the database at path. The file is not
// opened until a worker asks for its connection.
func NewManager(path string) *Manager {
	return &Manager{
		path:        path,
		opts:        DefaultOpenOptions(),
		maxRetries:  3,
		retryDelay:  100 * time.Millisecond,
		connections: make(map[string]*Connection),
	}
}

// SetRetryPolicy overrides the lock-contention retry bounds.
func (m *Manager) SetRetryPolicy(maxRetries int, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxRetries = maxRetries
	m.retryDelay = delay
}

// Path returns the database file path.
func (m *Manager) Path() string {
	return m.path
}

// Conn returns the dedicated connection for the named worker, creating it
// on first use. The registry lock guards only map mutation; queries run
// outside it.
func (m *Manager) Conn(owner string) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[owner]; ok {
		return conn, nil
	}

	conn, err := Open(m.path, owner, m.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection for %q: %w", owner, err)
	}

	m.connections[owner] = conn
	return conn, nil
}

// Reconnect drops and reopens the named worker's connection. Used after a
// query fails in a way that suggests the connection itself is bad.
func (m *Manager) Reconnect(owner string) (*Connection, error) {
	m.mu.Lock()
	if conn, ok := m.connections[owner]; ok {
		conn.Close()
		delete(m.connections, owner)
	}
	m.mu.Unlock()

	return m.Conn(owner)
}

// ExecuteQuery runs one statement on the owner's connection. Non-SELECT
// statements commit immediately (the connection is in autocommit mode).
// On failure the error is wrapped with the failing query for diagnostics.
func (m *Manager) ExecuteQuery(owner, query string, args []any, fetch FetchMode) ([][]any, error) {
	conn, err := m.Conn(owner)
	if err != nil {
		return nil, err
	}

	if fetch == FetchNone {
		if _, err := conn.Execute(query, args...); err != nil {
			return nil, fmt.Errorf("query failed: %w (query: %s)", err, query)
		}
		return nil, nil
	}

	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w (query: %s)", err, query)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var result [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, values)
		if fetch == FetchOne {
			break
		}
	}

	return result, rows.Err()
}

// ExecuteTransaction runs all statements atomically on the owner's
// connection. Transient lock contention is retried with a fixed delay up
// to the configured bound; on exhaustion or any non-transient error it
// rolls back and returns false. Lock exhaustion never surfaces as an
// error value, only as a false result.
func (m *Manager) ExecuteTransaction(owner string, stmts []Statement) bool {
	conn, err := m.Conn(owner)
	if err != nil {
		log.Printf("transaction aborted, no connection for %q: %v", owner, err)
		return false
	}

	for attempt := 0; attempt < m.maxRetries; attempt++ {
		err := conn.WithTransaction(func(tx *sql.Tx) error {
			for _, stmt := range stmts {
				if _, err := tx.Exec(stmt.Query, stmt.Args...); err != nil {
					return err
				}
			}
			return nil
		})

		if err == nil {
			return true
		}

		if IsBusyError(err) && attempt < m.maxRetries-1 {
			log.Printf("database locked, retry attempt %d/%d", attempt+1, m.maxRetries)
			time.Sleep(m.retryDelay)
			continue
		}

		log.Printf("transaction failed for %q: %v", owner, err)
		return false
	}

	return false
}

// ExecuteWithRetry runs fn inside a transaction on the owner's connection,
// retrying on lock contention with the same bounds as ExecuteTransaction.
// Unlike ExecuteTransaction, the final error is returned so callers with
// custom logic can inspect it; integrity errors propagate immediately.
func (m *Manager) ExecuteWithRetry(owner string, fn func(*sql.Tx) error) error {
	conn, err := m.Conn(owner)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		lastErr = conn.WithTransaction(fn)
		if lastErr == nil {
			return nil
		}
		if !IsBusyError(lastErr) {
			return lastErr
		}
		if attempt < m.maxRetries-1 {
			log.Printf("database locked, retry attempt %d/%d", attempt+1, m.maxRetries)
			time.Sleep(m.retryDelay)
		}
	}
	return lastErr
}

// CloseConn closes and forgets the named worker's connection. Idempotent.
func (m *Manager) CloseConn(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[owner]; ok {
		if err := conn.Close(); err != nil {
			log.Printf("error closing connection for %q: %v", owner, err)
		}
		delete(m.connections, owner)
	}
}

// CloseAll closes every tracked connection. Idempotent, never panics.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for owner, conn := range m.connections {
		if err := conn.Close(); err != nil {
			log.Printf("error closing connection for %q: %v", owner, err)
		}
	}
	m.connections = make(map[string]*Connection)
}
