package history

import (
	"fmt"
	"log"
	"os"

	"github.com/arvidh/sortify/internal/fsutil"
	"github.com/arvidh/sortify/internal/safety"
)

// Engine reverses logged operations. Every undo runs under the store's
// operation lock so concurrent undo attempts of the same row cannot both
// succeed; the loser sees the row already flipped to undone.
type Engine struct {
	store *Store
}

// NewEngine returns an undo engine over the store.
func NewEngine(store *Store) *Engine {
	return &Engine{store: store}
}

// UndoOperation reverses the operation with the given id. The returned
// message is user-facing either way: on success it names the restored
// path, on failure it names the reason. Undo never returns an error for
// the expected failure modes (missing row, wrong status, moved file,
// occupied original); those come back as (false, reason).
func (e *Engine) UndoOperation(id int64) (bool, string) {
	e.store.state.opLock.Lock()
	defer e.store.state.opLock.Unlock()

	return e.undoLocked(id)
}

func (e *Engine) undoLocked(id int64) (bool, string) {
	op, err := e.store.Get(id)
	if err != nil {
		return false, fmt.Sprintf("could not load operation %d: %v", id, err)
	}
	if op == nil {
		return false, fmt.Sprintf("operation %d not found", id)
	}

	switch op.Status {
	case StatusUndone:
		return false, fmt.Sprintf("operation %d is already undone", id)
	case StatusFailed:
		return false, fmt.Sprintf("operation %d failed and has nothing to undo", id)
	}

	switch op.Type {
	case OpMove, OpRename, OpBatchRename:
		// reversible by moving back
	case OpCopy:
		return e.undoCopyLocked(op)
	case OpDelete:
		// A logged delete's destination is its pre-delete backup;
		// restoring is moving the backup back. No backup, no undo.
		if op.NewPath == "" {
			return false, fmt.Sprintf("operation %d deleted %s without a backup", id, op.FileName)
		}
	default:
		return false, fmt.Sprintf("operation type %q cannot be undone", op.Type)
	}

	if check := safety.VerifyUndo(op.OriginalPath, op.NewPath); !check.OK {
		return false, check.Reason
	}

	if err := fsutil.MoveFile(op.NewPath, op.OriginalPath); err != nil {
		return false, fmt.Sprintf("failed to restore %s: %v", op.FileName, err)
	}

	// The file is back; only now does the row flip to undone. If the
	// update fails the filesystem is already correct, so log and report
	// success anyway rather than re-moving the file.
	if err := e.store.markStatus(op.ID, StatusUndone); err != nil {
		log.Printf("undo of operation %d restored the file but could not update the record: %v", op.ID, err)
	}

	return true, fmt.Sprintf("restored %s to %s", op.FileName, op.OriginalPath)
}

// undoCopyLocked reverses a copy by deleting the duplicate. The original
// was never moved.
func (e *Engine) undoCopyLocked(op *Operation) (bool, string) {
	if !fsutil.FileExists(op.NewPath) {
		return false, fmt.Sprintf("copy no longer exists at %s", op.NewPath)
	}
	if err := os.Remove(op.NewPath); err != nil {
		return false, fmt.Sprintf("failed to remove copy %s: %v", op.NewPath, err)
	}
	if err := e.store.markStatus(op.ID, StatusUndone); err != nil {
		log.Printf("undo of copy %d removed the file but could not update the record: %v", op.ID, err)
	}
	return true, fmt.Sprintf("removed copy %s", op.NewPath)
}

// UndoLast reverses the most recent undoable operation.
func (e *Engine) UndoLast() (bool, string) {
	e.store.state.opLock.Lock()
	defer e.store.state.opLock.Unlock()

	ops, err := e.store.UndoableOperations(1)
	if err != nil {
		return false, fmt.Sprintf("could not look up undoable operations: %v", err)
	}
	if len(ops) == 0 {
		return false, "nothing to undo"
	}
	return e.undoLocked(ops[0].ID)
}

// SessionUndoReport summarizes a session undo. A session undo succeeds
// partially: operations that can be reversed are, the rest are reported.
type SessionUndoReport struct {
	SessionID string
	Attempted int
	Undone    int
	Failures  []string
}

// UndoSession reverses every undoable operation of a session, newest
// first. Reversing in reverse chronological order unwinds chained moves
// (A renamed to B, B moved to C) correctly: the last hop comes back
// first.
func (e *Engine) UndoSession(sessionID string) (SessionUndoReport, error) {
	e.store.state.opLock.Lock()
	defer e.store.state.opLock.Unlock()

	ops, err := e.store.SessionOperations(sessionID)
	if err != nil {
		return SessionUndoReport{}, fmt.Errorf("could not load session %s: %w", sessionID, err)
	}

	// SessionOperations is chronological; undo walks it backwards so the
	// last hop of any chained move comes back first.
	report := SessionUndoReport{SessionID: sessionID}
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op.Status != StatusSuccess {
			continue
		}
		report.Attempted++
		ok, msg := e.undoLocked(op.ID)
		if ok {
			report.Undone++
		} else {
			report.Failures = append(report.Failures, fmt.Sprintf("operation %d (%s): %s", op.ID, op.FileName, msg))
		}
	}
	return report, nil
}
