// Package cli implements the command-line interface.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arvidh/sortify/internal/config"
	"github.com/arvidh/sortify/internal/history"
	"github.com/arvidh/sortify/internal/organizer"
	"github.com/arvidh/sortify/internal/safety"
)

// Handler routes and executes commands.
type Handler struct {
	cfg      *config.Config
	store    *history.Store
	engine   *history.Engine
	org      *organizer.Organizer
	executor *organizer.Executor
	backups  *safety.Backups
	version  string
}

// NewHandler creates a CLI handler.
func NewHandler(cfg *config.Config, store *history.Store, engine *history.Engine,
	org *organizer.Organizer, executor *organizer.Executor, backups *safety.Backups,
	version string) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		org:      org,
		executor: executor,
		backups:  backups,
		version:  version,
	}
}

// Handle executes one command line. Returns an error when the command
// exited non-zero.
func (h *Handler) Handle(args []string, out, errOut io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(out, "No command specified. Run 'help' for usage.")
		return nil
	}

	ctx := &CommandContext{
		Args:     args[1:],
		Out:      out,
		Err:      errOut,
		exitCode: 0,
	}

	h.routeCommand(args[0], ctx)

	if ctx.exitCode != 0 {
		return fmt.Errorf("command failed with exit code %d", ctx.exitCode)
	}
	return nil
}

// routeCommand routes a command to its handler.
func (h *Handler) routeCommand(cmd string, ctx *CommandContext) {
	switch cmd {
	// Organizing commands
	case "organize":
		h.cmdOrganize(ctx)
	case "preview", "dry-run":
		h.cmdPreview(ctx)
	case "rename":
		h.cmdRename(ctx)
	case "batch-rename":
		h.cmdBatchRename(ctx)
	case "duplicates":
		h.cmdDuplicates(ctx)

	// Long-running commands
	case "watch":
		h.cmdWatch(ctx)
	case "schedule":
		h.cmdSchedule(ctx)

	// History commands
	case "history":
		h.cmdHistory(ctx)
	case "sessions":
		h.cmdSessions(ctx)
	case "purge":
		h.cmdPurge(ctx)

	// Undo commands
	case "undo":
		h.cmdUndo(ctx)
	case "undo-session":
		h.cmdUndoSession(ctx)

	// Utility commands
	case "help":
		h.cmdHelp(ctx)
	case "version":
		h.cmdVersion(ctx)

	default:
		fmt.Fprintf(ctx.Err, "Unknown command: %s\n", cmd)
		fmt.Fprintln(ctx.Err, "Run 'help' for usage.")
		ctx.Exit(1)
	}
}

// CommandContext provides context for command execution.
type CommandContext struct {
	Args     []string
	Out      io.Writer
	Err      io.Writer
	exitCode int
}

// Exit sets the exit code.
func (c *CommandContext) Exit(code int) {
	c.exitCode = code
}

// RequireArg ensures a positional argument is provided.
func (c *CommandContext) RequireArg(index int, name string) (string, bool) {
	args := c.GetPositionalArgs()
	if index >= len(args) {
		fmt.Fprintf(c.Err, "Missing required argument: %s\n", name)
		c.Exit(1)
		return "", false
	}
	return args[index], true
}

// GetFlag returns a flag value from args (e.g., --limit=20).
func (c *CommandContext) GetFlag(name string) string {
	prefix := "--" + name + "="
	shortPrefix := "-" + name + "="
	for _, arg := range c.Args {
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix)
		}
		if strings.HasPrefix(arg, shortPrefix) {
			return strings.TrimPrefix(arg, shortPrefix)
		}
	}
	return ""
}

// HasFlag checks if a boolean flag is present.
func (c *CommandContext) HasFlag(name string) bool {
	flag := "--" + name
	shortFlag := "-" + name
	for _, arg := range c.Args {
		if arg == flag || arg == shortFlag {
			return true
		}
	}
	return false
}

// GetPositionalArgs returns args that are not flags.
func (c *CommandContext) GetPositionalArgs() []string {
	var result []string
	for _, arg := range c.Args {
		if !strings.HasPrefix(arg, "-") {
			result = append(result, arg)
		}
	}
	return result
}

// gate builds the confirmation gate for a command. --yes bypasses the
// configured confirmation prompt.
func (h *Handler) gate(ctx *CommandContext) *safety.Gate {
	if ctx.HasFlag("yes") || ctx.HasFlag("y") {
		return safety.NewGate(safety.AutoApprove{}, false)
	}
	return safety.NewGate(stdinConfirmer{out: ctx.Out}, h.cfg.Safety.Confirmations)
}

// stdinConfirmer prompts on Out and reads the answer from stdin.
type stdinConfirmer struct {
	out io.Writer
}

func (c stdinConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
