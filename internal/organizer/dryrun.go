package organizer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/arvidh/sortify/internal/categorize"
	"github.com/arvidh/sortify/internal/history"
)

// PlannedOperation is one step of a dry-run plan. It mirrors a logged
// operation that has not happened yet.
type PlannedOperation struct {
	Op       string // history.OpMove etc.
	Source   string
	Dest     string
	Category string
	FileName string // final name at the destination
	Size     int64
	Conflict bool // dest needed a numbered variant
}

// Plan is the result of a dry run: what OrganizeDir would do, without
// touching anything.
type Plan struct {
	Root    string
	Skipped []string

	ops []PlannedOperation
}

// Add appends one operation to the plan. No I/O happens here.
func (p *Plan) Add(op PlannedOperation) {
	p.ops = append(p.ops, op)
}

// Operations returns the planned operations in plan order.
func (p *Plan) Operations() []PlannedOperation {
	return p.ops
}

// HasOperations reports whether the plan would do anything.
func (p *Plan) HasOperations() bool {
	return len(p.ops) > 0
}

// Clear drops the planned operations and skip list, keeping the root.
func (p *Plan) Clear() {
	p.ops = nil
	p.Skipped = nil
}

// Planner computes organization plans.
type Planner struct {
	categorizer categorize.Categorizer
}

// NewPlanner returns a planner using the given categorizer.
func NewPlanner(c categorize.Categorizer) *Planner {
	return &Planner{categorizer: c}
}

// categoryFor asks the categorizer and tolerates its failure: a broken
// or undecided classifier lands the file in the default bucket instead
// of aborting the run.
func (p *Planner) categoryFor(path string) string {
	category, err := p.categorizer.Categorize(path)
	if err != nil || category == "" {
		if err != nil {
			log.Printf("categorizer failed on %s: %v", path, err)
		}
		return categorize.DefaultFallback
	}
	return category
}

// PlanDir plans the organization of every regular file directly in dir
// into categorized subdirectories of root. Planned destinations are
// conflict-checked against the filesystem and against earlier entries of
// the same plan, so two pending files with one name get distinct targets.
func (p *Planner) PlanDir(dir, root string) (*Plan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", dir, err)
	}

	plan := &Plan{Root: root}
	claimed := map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			plan.Skipped = append(plan.Skipped, entry.Name()+"/")
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			plan.Skipped = append(plan.Skipped, entry.Name())
			continue
		}

		src := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			plan.Skipped = append(plan.Skipped, entry.Name())
			continue
		}

		category := p.categoryFor(src)
		dst := ResolveDest(root, category, entry.Name())
		for claimed[dst] {
			dst = ConflictFree(nextVariant(dst))
		}
		claimed[dst] = true

		plan.Add(PlannedOperation{
			Op:       history.OpMove,
			Source:   src,
			Dest:     dst,
			Category: category,
			FileName: filepath.Base(dst),
			Size:     info.Size(),
			Conflict: filepath.Base(dst) != entry.Name(),
		})
	}

	sort.Slice(plan.ops, func(i, j int) bool {
		if plan.ops[i].Category != plan.ops[j].Category {
			return plan.ops[i].Category < plan.ops[j].Category
		}
		return plan.ops[i].Source < plan.ops[j].Source
	})

	return plan, nil
}

// nextVariant bumps a path to its next numbered form regardless of what
// is on disk, for conflicts that exist only within the plan.
func nextVariant(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	if i := strings.LastIndex(stem, "_"); i >= 0 {
		var n int
		if _, err := fmt.Sscanf(stem[i+1:], "%d", &n); err == nil {
			return filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem[:i], n+1, ext))
		}
	}
	return filepath.Join(dir, stem+"_1"+ext)
}

// TotalBytes sums the plan's file sizes.
func (p *Plan) TotalBytes() int64 {
	var total int64
	for _, op := range p.ops {
		total += op.Size
	}
	return total
}

var (
	planHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	planCategoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	planArrowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	planConflictStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	planSummaryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

// Render returns the plan formatted for the terminal, grouped by
// category.
func (p *Plan) Render() string {
	var b strings.Builder

	b.WriteString(planHeaderStyle.Render(fmt.Sprintf("Plan for %s", p.Root)))
	b.WriteString("\n\n")

	if len(p.ops) == 0 {
		b.WriteString("  nothing to do\n")
		return b.String()
	}

	lastCategory := ""
	for _, op := range p.ops {
		if op.Category != lastCategory {
			b.WriteString(planCategoryStyle.Render(op.Category))
			b.WriteString("\n")
			lastCategory = op.Category
		}
		line := fmt.Sprintf("  %s %s %s (%s)",
			filepath.Base(op.Source),
			planArrowStyle.Render("->"),
			op.Dest,
			humanize.Bytes(uint64(op.Size)))
		if op.Conflict {
			line += " " + planConflictStyle.Render("[renamed to avoid conflict]")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(planSummaryStyle.Render(p.Summary()))
	b.WriteString("\n")
	return b.String()
}

// Summary returns a one-line description of the plan with counts per
// operation type.
func (p *Plan) Summary() string {
	categories := map[string]bool{}
	byOp := map[string]int{}
	for _, op := range p.ops {
		categories[op.Category] = true
		byOp[op.Op]++
	}

	var parts []string
	for _, op := range []string{history.OpMove, history.OpCopy, history.OpRename} {
		if n := byOp[op]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, op))
		}
	}
	s := fmt.Sprintf("%s, %s, %d categories",
		strings.Join(parts, ", "), humanize.Bytes(uint64(p.TotalBytes())), len(categories))
	if len(p.Skipped) > 0 {
		s += fmt.Sprintf(", %d skipped", len(p.Skipped))
	}
	return s
}
