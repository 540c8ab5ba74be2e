package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arvidh/sortify/internal/organizer"
	"github.com/arvidh/sortify/internal/scheduler"
	"github.com/arvidh/sortify/internal/watcher"
)

// cmdOrganize organizes a directory into categorized subdirectories.
func (h *Handler) cmdOrganize(ctx *CommandContext) {
	dir, ok := ctx.RequireArg(0, "directory")
	if !ok {
		return
	}

	root := ctx.GetFlag("into")
	if root == "" {
		root = h.cfg.BaseDir
	}
	if root == "" {
		root = dir
	}

	recursive := ctx.HasFlag("recursive") || ctx.HasFlag("r")

	if !recursive {
		plan, err := h.org.Planner().PlanDir(dir, root)
		if err != nil {
			fmt.Fprintf(ctx.Err, "Error: %v\n", err)
			ctx.Exit(1)
			return
		}
		if !plan.HasOperations() {
			fmt.Fprintln(ctx.Out, "Nothing to organize")
			return
		}
		if !h.gate(ctx).Allow(fmt.Sprintf("Move %d files under %s?", len(plan.Operations()), root)) {
			fmt.Fprintln(ctx.Out, "Aborted")
			return
		}
	} else if !h.gate(ctx).Allow(fmt.Sprintf("Organize everything under %s into %s?", dir, root)) {
		fmt.Fprintln(ctx.Out, "Aborted")
		return
	}

	organize := h.org.OrganizeDir
	if recursive {
		organize = h.org.OrganizeTree
	}
	result, err := organize(interruptContext(), dir, root)
	if err != nil && !result.Canceled {
		fmt.Fprintf(ctx.Err, "Error: %v\n", err)
		ctx.Exit(1)
		return
	}

	fmt.Fprintf(ctx.Out, "Moved %d files", result.Moved)
	if result.Failed > 0 {
		fmt.Fprintf(ctx.Out, ", %d failed", result.Failed)
	}
	if result.Skipped > 0 {
		fmt.Fprintf(ctx.Out, ", %d skipped", result.Skipped)
	}
	if result.Canceled {
		fmt.Fprint(ctx.Out, " (interrupted)")
	}
	fmt.Fprintln(ctx.Out)
	fmt.Fprintf(ctx.Out, "Session: %s (undo with 'undo-session %s')\n", result.SessionID, result.SessionID)

	if result.Failed > 0 || result.Canceled {
		ctx.Exit(1)
	}
}

// cmdPreview shows what organize would do, without moving anything.
func (h *Handler) cmdPreview(ctx *CommandContext) {
	dir, ok := ctx.RequireArg(0, "directory")
	if !ok {
		return
	}

	root := ctx.GetFlag("into")
	if root == "" {
		root = h.cfg.BaseDir
	}
	if root == "" {
		root = dir
	}

	plan, err := h.org.Planner().PlanDir(dir, root)
	if err != nil {
		fmt.Fprintf(ctx.Err, "Error: %v\n", err)
		ctx.Exit(1)
		return
	}

	fmt.Fprint(ctx.Out, plan.Render())
}

// cmdRename renames a single file.
func (h *Handler) cmdRename(ctx *CommandContext) {
	path, ok := ctx.RequireArg(0, "file")
	if !ok {
		return
	}
	newName, ok := ctx.RequireArg(1, "new name")
	if !ok {
		return
	}

	dst, err := h.executor.Rename(path, newName)
	if err != nil {
		fmt.Fprintf(ctx.Err, "Error: %v\n", err)
		ctx.Exit(1)
		return
	}
	fmt.Fprintf(ctx.Out, "Renamed to %s\n", dst)
}

// cmdBatchRename renames every file matching a glob using a template.
func (h *Handler) cmdBatchRename(ctx *CommandContext) {
	dir, ok := ctx.RequireArg(0, "directory")
	if !ok {
		return
	}
	glob, ok := ctx.RequireArg(1, "glob")
	if !ok {
		return
	}
	template := ctx.GetFlag("template")
	if template == "" {
		fmt.Fprintln(ctx.Err, "Missing required flag: --template")
		ctx.Exit(1)
		return
	}

	if !h.gate(ctx).Allow(fmt.Sprintf("Rename files matching %s in %s?", glob, dir)) {
		fmt.Fprintln(ctx.Out, "Aborted")
		return
	}

	sessionID := h.store.StartSession()
	results, err := h.executor.BatchRename(dir, glob, organizer.BatchPattern{Template: template})
	h.store.EndSession()
	if err != nil {
		fmt.Fprintf(ctx.Err, "Error: %v\n", err)
		ctx.Exit(1)
		return
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(ctx.Err, "%s: %v\n", r.OldPath, r.Err)
			failed++
			continue
		}
		fmt.Fprintf(ctx.Out, "%s -> %s\n", filepath.Base(r.OldPath), filepath.Base(r.NewPath))
	}
	if len(results) > 0 {
		fmt.Fprintf(ctx.Out, "Session: %s\n", sessionID)
	}
	if failed > 0 {
		ctx.Exit(1)
	}
}

// cmdWatch watches a directory and organizes arriving files until
// interrupted.
func (h *Handler) cmdWatch(ctx *CommandContext) {
	dir, ok := ctx.RequireArg(0, "directory")
	if !ok {
		return
	}

	root := ctx.GetFlag("into")
	if root == "" {
		root = h.cfg.BaseDir
	}
	if root == "" {
		root = dir
	}

	minAge, stableFor, maxWait := h.cfg.WatchDurations()
	w := watcher.New(dir, root, h.org, watcher.Options{
		Ignore:    h.cfg.Watch.Ignore,
		MinAge:    minAge,
		StableFor: stableFor,
		MaxWait:   maxWait,
	})

	fmt.Fprintf(ctx.Out, "Watching %s, organizing into %s (Ctrl-C to stop)\n", dir, root)
	if err := w.Run(interruptContext()); err != nil && err != context.Canceled {
		fmt.Fprintf(ctx.Err, "Error: %v\n", err)
		ctx.Exit(1)
	}
}

// cmdSchedule runs the configured schedules until interrupted.
func (h *Handler) cmdSchedule(ctx *CommandContext) {
	if len(h.cfg.Schedules) == 0 {
		fmt.Fprintln(ctx.Err, "No schedules configured")
		ctx.Exit(1)
		return
	}

	s := scheduler.New()
	for _, sc := range h.cfg.Schedules {
		sc := sc
		job := scheduler.Job{
			Name:    sc.Name,
			DailyAt: sc.DailyAt,
			Run: func(jobCtx context.Context) error {
				root := h.cfg.BaseDir
				if root == "" {
					root = sc.Dir
				}
				organize := h.org.OrganizeDir
				if sc.Recursive {
					organize = h.org.OrganizeTree
				}
				result, err := organize(jobCtx, sc.Dir, root)
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.Out, "[%s] moved %d files\n", sc.Name, result.Moved)
				return nil
			},
		}
		if sc.Every != "" {
			every, err := time.ParseDuration(sc.Every)
			if err != nil {
				fmt.Fprintf(ctx.Err, "Schedule %s has a bad interval %q: %v\n", sc.Name, sc.Every, err)
				ctx.Exit(1)
				return
			}
			job.Every = every
		}
		if err := s.Add(job); err != nil {
			fmt.Fprintf(ctx.Err, "Error: %v\n", err)
			ctx.Exit(1)
			return
		}
	}

	runCtx := interruptContext()
	if ctx.HasFlag("now") {
		s.RunAllNow(runCtx)
	}

	fmt.Fprintf(ctx.Out, "Running %d schedules (Ctrl-C to stop)\n", len(h.cfg.Schedules))
	s.Start(runCtx)
	<-runCtx.Done()
	s.Stop()
}

// interruptContext returns a context canceled by SIGINT or SIGTERM.
func interruptContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx
}
