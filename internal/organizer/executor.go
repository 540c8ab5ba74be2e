package organizer

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"time"

	"github.com/arvidh/sortify/internal/fsutil"
	"github.com/arvidh/sortify/internal/history"
	"github.com/arvidh/sortify/internal/safety"
)

// Executor performs logged filesystem operations. Failures are logged to
// history too; the record of an attempt matters as much as the record of
// a success.
type Executor struct {
	store   *history.Store
	backups *safety.Backups
}

// NewExecutor returns an executor logging to store. backups may be nil
// when pre-operation backups are disabled.
func NewExecutor(store *history.Store, backups *safety.Backups) *Executor {
	if backups == nil {
		backups = safety.NewBackups("", false)
	}
	return &Executor{store: store, backups: backups}
}

// Move moves src to dst and logs the outcome. dst must already be
// conflict-free; callers go through ResolveDest.
func (e *Executor) Move(src, dst string) error {
	return e.run(src, dst, history.OpMove, func() error {
		return fsutil.MoveFile(src, dst)
	})
}

// Copy copies src to dst and logs the outcome.
func (e *Executor) Copy(src, dst string) error {
	return e.run(src, dst, history.OpCopy, func() error {
		return fsutil.CopyFile(src, dst)
	})
}

// MoveWithRetry moves src to dst, retrying permission errors only. A
// permission failure usually means another program still holds the file
// and frees it within seconds; up to 3 attempts with a doubling delay
// starting at 1s. Any other failure is final on the first attempt, so a
// missing source logs exactly one failed row.
func (e *Executor) MoveWithRetry(src, dst string) error {
	const attempts = 3
	delay := time.Second

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			log.Printf("retrying move of %s in %s (attempt %d/%d)", src, delay, i+1, attempts)
			time.Sleep(delay)
			delay *= 2
		}
		if err = e.Move(src, dst); err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrPermission) {
			return err
		}
	}
	return fmt.Errorf("move of %s failed after %d attempts: %w", src, attempts, err)
}

func (e *Executor) run(src, dst, opType string, op func() error) error {
	name := filepath.Base(src)
	size := fsutil.FileSize(src)

	if _, err := e.backups.Keep(src); err != nil {
		log.Printf("backup before %s of %s failed: %v", opType, src, err)
	}

	if err := op(); err != nil {
		// Failed rows carry the error text in the destination column;
		// there is no destination to record and the reason must survive
		// in the log.
		e.store.AddEntry(name, src, "error: "+err.Error(), size, opType, history.StatusFailed)
		return fmt.Errorf("%s of %s failed: %w", opType, src, err)
	}

	if _, ok := e.store.AddEntry(name, src, dst, size, opType, history.StatusSuccess); !ok {
		log.Printf("%s of %s succeeded but could not be logged", opType, src)
	}
	return nil
}
