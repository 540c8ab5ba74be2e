package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/arvidh/sortify/internal/duplicates"
)

// cmdDuplicates finds files with identical content, and with --delete
// removes the surplus copies.
func (h *Handler) cmdDuplicates(ctx *CommandContext) {
	dir, ok := ctx.RequireArg(0, "directory")
	if !ok {
		return
	}

	opts := duplicates.Options{
		Recursive: ctx.HasFlag("recursive") || ctx.HasFlag("r"),
	}
	if raw := ctx.GetFlag("min-size"); raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || size < 0 {
			fmt.Fprintf(ctx.Err, "Invalid --min-size: %s\n", raw)
			ctx.Exit(1)
			return
		}
		opts.MinSize = size
	}
	if raw := ctx.GetFlag("ext"); raw != "" {
		opts.Extensions = strings.Split(raw, ",")
	}

	finder := duplicates.NewFinder(h.store, h.backups)
	groups, err := finder.Find(dir, opts)
	if err != nil {
		fmt.Fprintf(ctx.Err, "Error: %v\n", err)
		ctx.Exit(1)
		return
	}

	if len(groups) == 0 {
		fmt.Fprintln(ctx.Out, "No duplicates found")
		return
	}

	stats := duplicates.Statistics(groups)

	if ctx.GetFlag("format") == "json" && !ctx.HasFlag("delete") {
		printJSON(ctx.Out, map[string]any{
			"groups":       groups,
			"wasted_bytes": stats.WastedBytes,
		})
		return
	}

	for i, g := range groups {
		fmt.Fprintf(ctx.Out, "Group %d (%s each):\n", i+1, humanize.Bytes(uint64(g.Size)))
		for _, path := range g.Paths {
			fmt.Fprintf(ctx.Out, "  %s\n", path)
		}
	}
	fmt.Fprintf(ctx.Out, "%d duplicate groups, %d files, %s recoverable\n",
		stats.Groups, stats.Files, humanize.Bytes(uint64(stats.WastedBytes)))

	if !ctx.HasFlag("delete") {
		return
	}

	doomed := stats.Files - stats.Groups
	if !h.gate(ctx).Allow(fmt.Sprintf("Delete %d duplicate files, keeping one copy per group?", doomed)) {
		fmt.Fprintln(ctx.Out, "Aborted")
		return
	}

	report := finder.Delete(groups, !ctx.HasFlag("keep-last"))
	fmt.Fprintf(ctx.Out, "Deleted %d files", report.Deleted)
	if report.Failed > 0 {
		fmt.Fprintf(ctx.Out, ", %d failed", report.Failed)
	}
	fmt.Fprintln(ctx.Out)
	if report.Failed > 0 {
		ctx.Exit(1)
	}
}
