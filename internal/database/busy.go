package database

import "strings"

// IsBusyError reports whether an error is SQLite lock contention
// (SQLITE_BUSY/SQLITE_LOCKED). These are the only errors the retry
// helpers treat as transient; everything else is fatal to the call.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}
