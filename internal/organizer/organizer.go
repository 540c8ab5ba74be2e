package organizer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/arvidh/sortify/internal/categorize"
	"github.com/arvidh/sortify/internal/history"
)

// Organizer ties the planner and executor together: it plans a
// directory, then executes the plan inside a history session so the
// whole run can be undone as a unit.
type Organizer struct {
	planner  *Planner
	executor *Executor
	store    *history.Store
}

// New returns an organizer.
func New(c categorize.Categorizer, executor *Executor, store *history.Store) *Organizer {
	return &Organizer{
		planner:  NewPlanner(c),
		executor: executor,
		store:    store,
	}
}

// Planner exposes the organizer's planner for dry runs.
func (o *Organizer) Planner() *Planner {
	return o.planner
}

// Result summarizes one organize run.
type Result struct {
	SessionID string
	Moved     int
	Failed    int
	Skipped   int
	Canceled  bool
}

// OrganizeDir organizes every file directly in dir into categorized
// subdirectories of root. The run is wrapped in a session; cancellation
// via ctx stops between files, never mid-move, and the session still
// closes so completed moves remain undoable.
func (o *Organizer) OrganizeDir(ctx context.Context, dir, root string) (Result, error) {
	plan, err := o.planner.PlanDir(dir, root)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		SessionID: o.store.StartSession(),
		Skipped:   len(plan.Skipped),
	}
	defer o.store.EndSession()

	for _, op := range plan.Operations() {
		select {
		case <-ctx.Done():
			result.Canceled = true
			log.Printf("organize of %s canceled after %d files", dir, result.Moved)
			return result, ctx.Err()
		default:
		}

		// The plan may be stale: re-resolve against the live filesystem.
		dst := ConflictFree(op.Dest)
		if err := o.executor.Move(op.Source, dst); err != nil {
			log.Printf("organize: %v", err)
			result.Failed++
			continue
		}
		result.Moved++
	}

	return result, nil
}

// OrganizeTree organizes every file under dir, recursively, into root.
// Files already inside root are left alone so an overlapping tree does
// not churn its own output.
func (o *Organizer) OrganizeTree(ctx context.Context, dir, root string) (Result, error) {
	result := Result{SessionID: o.store.StartSession()}
	defer o.store.EndSession()

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			if within(root, path) {
				return filepath.SkipDir
			}
			return nil
		}
		select {
		case <-ctx.Done():
			result.Canceled = true
			return ctx.Err()
		default:
		}
		if strings.HasPrefix(d.Name(), ".") {
			result.Skipped++
			return nil
		}

		category := o.planner.categoryFor(path)
		dst := ConflictFree(ResolveDest(root, category, d.Name()))
		if err := o.executor.Move(path, dst); err != nil {
			log.Printf("organize: %v", err)
			result.Failed++
			return nil
		}
		result.Moved++
		return nil
	})
	return result, err
}

// within reports whether path sits inside root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// OrganizeFile categorizes and moves a single file into root. Used by
// the watcher for files arriving one at a time, outside any session.
func (o *Organizer) OrganizeFile(path, root string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return "", fmt.Errorf("%s is hidden", path)
	}

	category := o.planner.categoryFor(path)
	dst := ConflictFree(ResolveDest(root, category, filepath.Base(path)))
	if err := o.executor.MoveWithRetry(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}
