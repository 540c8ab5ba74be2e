package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// cmdHelp shows help information.
func (h *Handler) cmdHelp(ctx *CommandContext) {
	args := ctx.GetPositionalArgs()

	if len(args) > 0 {
		h.showCommandHelp(ctx, args[0])
		return
	}

	fmt.Fprintln(ctx.Out, `sortify - File organizer with full undo

USAGE:
  sortify command [arguments] [options]

ORGANIZING COMMANDS:
  organize <dir>                   Organize files into categories
  preview <dir>                    Show the plan without moving anything
  rename <file> <new-name>         Rename one file
  batch-rename <dir> <glob>        Rename matching files by template
  duplicates <dir>                 Find (and optionally delete) duplicate files

LONG-RUNNING COMMANDS:
  watch <dir>                      Organize files as they arrive
  schedule                         Run the configured schedules

HISTORY COMMANDS:
  history                          Show the operation log
  sessions                         List recorded sessions
  purge                            Delete old history entries

UNDO COMMANDS:
  undo [id|last]                   Reverse one operation
  undo-session <session-id>        Reverse a whole session

UTILITY COMMANDS:
  help [command]                   Show help
  version                          Show version

COMMON OPTIONS:
  --into=DIR                       Destination root (default from config)
  --yes                            Skip confirmation prompts
  --format=json                    Output in JSON format
  --limit=N                        Limit number of rows

Run 'help <command>' for detailed help on a specific command.`)
}

// showCommandHelp shows help for a specific command.
func (h *Handler) showCommandHelp(ctx *CommandContext, command string) {
	help := map[string]string{
		"organize": `organize - Organize files into categories

USAGE:
  organize <dir> [--into=DIR] [--yes]

Moves every file directly in <dir> into a categorized subdirectory of
the destination root. The whole run is recorded as one session and can
be reversed with 'undo-session'.

EXAMPLES:
  organize ~/Downloads
  organize ~/Downloads --into=~/Organized --yes`,

		"preview": `preview - Show the plan without moving anything

USAGE:
  preview <dir> [--into=DIR]

Prints every planned move, grouped by category, with conflict renames
marked. Nothing on disk changes.`,

		"batch-rename": `batch-rename - Rename matching files by template

USAGE:
  batch-rename <dir> <glob> --template=PATTERN [--yes]

The template may use {name} (original stem), {ext} (extension with dot),
{n} (position in the sorted batch, starting at 1), {date} and {time}.

EXAMPLE:
  batch-rename ~/Photos 'IMG_*.jpg' --template='vacation_{n}{ext}'`,

		"duplicates": `duplicates - Find (and optionally delete) duplicate files

USAGE:
  duplicates <dir> [--recursive] [--min-size=BYTES] [--ext=jpg,png]
             [--delete] [--keep-last] [--yes]

Groups files by content. With --delete, every group keeps one copy
(the first in path order, or the last with --keep-last) and the rest
are removed. When backups are enabled each deletion is backed up
first and shows up in the history log, where it can be undone.`,

		"watch": `watch - Organize files as they arrive

USAGE:
  watch <dir> [--into=DIR]

Waits for each new file to stop changing before moving it. Ignore
patterns and stability timing come from the configuration file.`,

		"history": `history - Show the operation log

USAGE:
  history [options]

OPTIONS:
  --type=move|copy|rename|batch_rename    Filter by operation type
  --status=success|failed|undone          Filter by status
  --name=TEXT                             Filter by file name substring
  --path=TEXT                             Filter by path substring
  --since=YYYY-MM-DD                      Only operations since a date
  --limit=N --offset=N                    Paging
  --format=json                           JSON output`,

		"undo": `undo - Reverse one operation

USAGE:
  undo [id|last] [--yes]

Without an id the most recent undoable operation is reversed. An
operation can only be undone while the file is still where it was
left and its original location is free.`,

		"undo-session": `undo-session - Reverse a whole session

USAGE:
  undo-session <session-id> [--yes]

Reverses the session's operations newest first. Operations that can no
longer be reversed are reported and skipped; the rest are still undone.`,

		"purge": `purge - Delete old history entries

USAGE:
  purge [--days=N] [--yes]

Deletes operations strictly older than the cutoff. The default window
comes from retention_days in the configuration. This cannot be undone.`,
	}

	if text, ok := help[command]; ok {
		fmt.Fprintln(ctx.Out, text)
	} else {
		fmt.Fprintf(ctx.Out, "No detailed help available for '%s'\n", command)
	}
}

// cmdVersion shows version information.
func (h *Handler) cmdVersion(ctx *CommandContext) {
	if ctx.GetFlag("format") == "json" {
		printJSON(ctx.Out, map[string]string{"version": h.version})
		return
	}
	fmt.Fprintf(ctx.Out, "sortify %s\n", h.version)
}

// printJSON writes indented JSON to a writer.
func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
