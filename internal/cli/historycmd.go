package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/arvidh/sortify/internal/history"
)

// cmdHistory shows the operation log.
func (h *Handler) cmdHistory(ctx *CommandContext) {
	page := history.DefaultPage()
	if l := ctx.GetFlag("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			page.Limit = n
		}
	}
	if o := ctx.GetFlag("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			page.Offset = n
		}
	}

	var ops []history.Operation
	var err error
	switch {
	case ctx.GetFlag("type") != "":
		ops, err = h.store.ByType(ctx.GetFlag("type"), page)
	case ctx.GetFlag("status") != "":
		ops, err = h.store.ByStatus(ctx.GetFlag("status"), page)
	case ctx.GetFlag("name") != "":
		ops, err = h.store.SearchByName(ctx.GetFlag("name"), page)
	case ctx.GetFlag("path") != "":
		ops, err = h.store.SearchByPath(ctx.GetFlag("path"), page)
	case ctx.GetFlag("since") != "":
		var from time.Time
		from, err = time.Parse("2006-01-02", ctx.GetFlag("since"))
		if err != nil {
			fmt.Fprintf(ctx.Err, "Bad --since date %q, want YYYY-MM-DD\n", ctx.GetFlag("since"))
			ctx.Exit(1)
			return
		}
		ops, err = h.store.ByDateRange(from, time.Now(), page)
	default:
		ops, err = h.store.Recent(page)
	}
	if err != nil {
		fmt.Fprintf(ctx.Err, "Error fetching history: %v\n", err)
		ctx.Exit(1)
		return
	}

	if ctx.GetFlag("format") == "json" {
		printJSON(ctx.Out, ops)
		return
	}

	if len(ops) == 0 {
		fmt.Fprintln(ctx.Out, "No operations")
		return
	}

	fmt.Fprintln(ctx.Out, "ID\tTIME\tTYPE\tSTATUS\tSIZE\tFILE")
	for _, op := range ops {
		size := ""
		if op.FileSize > 0 {
			size = humanize.Bytes(uint64(op.FileSize))
		}
		fmt.Fprintf(ctx.Out, "%d\t%s\t%s\t%s\t%s\t%s\n",
			op.ID,
			op.Timestamp.Format("2006-01-02 15:04"),
			op.Type,
			op.Status,
			size,
			op.FileName)
	}
}

// cmdSessions lists recorded sessions.
func (h *Handler) cmdSessions(ctx *CommandContext) {
	limit := 20
	if l := ctx.GetFlag("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	if id := ctx.GetFlag("show"); id != "" {
		ops, err := h.store.SessionOperations(id)
		if err != nil {
			fmt.Fprintf(ctx.Err, "Error fetching session: %v\n", err)
			ctx.Exit(1)
			return
		}
		if len(ops) == 0 {
			fmt.Fprintf(ctx.Out, "No operations in session %s\n", id)
			return
		}
		fmt.Fprintln(ctx.Out, "ID\tTIME\tTYPE\tSTATUS\tFILE")
		for _, op := range ops {
			fmt.Fprintf(ctx.Out, "%d\t%s\t%s\t%s\t%s\n",
				op.ID, op.Timestamp.Format("15:04:05"), op.Type, op.Status, op.FileName)
		}
		return
	}

	sessions, err := h.store.Sessions(limit)
	if err != nil {
		fmt.Fprintf(ctx.Err, "Error fetching sessions: %v\n", err)
		ctx.Exit(1)
		return
	}

	if ctx.GetFlag("format") == "json" {
		printJSON(ctx.Out, sessions)
		return
	}

	if len(sessions) == 0 {
		fmt.Fprintln(ctx.Out, "No sessions")
		return
	}

	fmt.Fprintln(ctx.Out, "SESSION\tSTARTED\tOPS\tOK\tFAILED\tUNDONE\tSIZE")
	for _, s := range sessions {
		fmt.Fprintf(ctx.Out, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.ID,
			s.Started.Format("2006-01-02 15:04"),
			s.Operations,
			s.Succeeded,
			s.Failed,
			s.Undone,
			humanize.Bytes(uint64(s.TotalBytes)))
	}
}

// cmdPurge deletes history rows older than the retention window.
func (h *Handler) cmdPurge(ctx *CommandContext) {
	days := h.cfg.RetentionDays
	if d := ctx.GetFlag("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 {
			fmt.Fprintf(ctx.Err, "Bad --days value %q\n", d)
			ctx.Exit(1)
			return
		}
		days = n
	}

	if !h.gate(ctx).Allow(fmt.Sprintf("Permanently delete history older than %d days?", days)) {
		fmt.Fprintln(ctx.Out, "Aborted")
		return
	}

	deleted, err := h.store.PurgeOlderThan(days)
	if err != nil {
		fmt.Fprintf(ctx.Err, "Error purging history: %v\n", err)
		ctx.Exit(1)
		return
	}
	fmt.Fprintf(ctx.Out, "Deleted %d operations older than %d days\n", deleted, days)
}
