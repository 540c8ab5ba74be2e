package cli

import (
	"fmt"
	"strconv"
)

// cmdUndo reverses one operation by id, or the most recent one when no
// id is given.
func (h *Handler) cmdUndo(ctx *CommandContext) {
	args := ctx.GetPositionalArgs()

	if !h.gate(ctx).Allow("Undo the operation?") {
		fmt.Fprintln(ctx.Out, "Aborted")
		return
	}

	var ok bool
	var msg string
	if len(args) == 0 || args[0] == "last" {
		ok, msg = h.engine.UndoLast()
	} else {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(ctx.Err, "Bad operation id %q\n", args[0])
			ctx.Exit(1)
			return
		}
		ok, msg = h.engine.UndoOperation(id)
	}

	if !ok {
		fmt.Fprintf(ctx.Err, "Cannot undo: %s\n", msg)
		ctx.Exit(1)
		return
	}
	fmt.Fprintln(ctx.Out, msg)
}

// cmdUndoSession reverses every undoable operation of a session.
func (h *Handler) cmdUndoSession(ctx *CommandContext) {
	id, ok := ctx.RequireArg(0, "session id")
	if !ok {
		return
	}

	if !h.gate(ctx).Allow(fmt.Sprintf("Undo every operation of session %s?", id)) {
		fmt.Fprintln(ctx.Out, "Aborted")
		return
	}

	report, err := h.engine.UndoSession(id)
	if err != nil {
		fmt.Fprintf(ctx.Err, "Error: %v\n", err)
		ctx.Exit(1)
		return
	}

	if report.Attempted == 0 {
		fmt.Fprintf(ctx.Out, "Session %s has nothing to undo\n", id)
		return
	}

	fmt.Fprintf(ctx.Out, "Undid %d of %d operations\n", report.Undone, report.Attempted)
	for _, failure := range report.Failures {
		fmt.Fprintf(ctx.Err, "  %s\n", failure)
	}
	if len(report.Failures) > 0 {
		ctx.Exit(1)
	}
}
