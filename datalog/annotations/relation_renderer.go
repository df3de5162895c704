package annotations

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// RelationRenderer provides pretty-printing for relations and rules
type RelationRenderer struct {
	useColor bool
}

// NewRelationRenderer creates a new relation renderer
func NewRelationRenderer(useColor bool) *RelationRenderer {
	return &RelationRenderer{useColor: useColor}
}

// RenderRelation renders a relation name with its fact count, e.g.
// path(12 facts). A negative count omits it.
func (r *RelationRenderer) RenderRelation(name string, factCount int) string {
	if r.useColor {
		if factCount < 0 {
			return color.CyanString(name)
		}
		return fmt.Sprintf("%s%s%s%s",
			color.CyanString(name),
			color.BlueString("("),
			r.colorizeCount("facts", factCount),
			color.BlueString(")"))
	}
	if factCount < 0 {
		return name
	}
	return fmt.Sprintf("%s(%d facts)", name, factCount)
}

// RenderRelations renders several relation names as [a b c]
func (r *RelationRenderer) RenderRelations(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = r.RenderRelation(n, -1)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// RenderRule renders a rule, highlighting the atom that read a delta
func (r *RelationRenderer) RenderRule(rule string, delta string) string {
	if delta == "" {
		if r.useColor {
			return color.CyanString(rule)
		}
		return rule
	}
	if r.useColor {
		return fmt.Sprintf("%s %s", color.CyanString(rule), color.YellowString("Δ"+delta))
	}
	return fmt.Sprintf("%s Δ%s", rule, delta)
}

// colorizeCount formats a count with color based on size
func (r *RelationRenderer) colorizeCount(label string, count int) string {
	if !r.useColor {
		return fmt.Sprintf("%d %s", count, label)
	}

	countStr := fmt.Sprintf("%d", count)

	// Color based on size
	switch {
	case count == 0:
		countStr = color.RedString(countStr)
	case count < 100:
		countStr = color.GreenString(countStr)
	case count < 10000:
		countStr = color.YellowString(countStr)
	default:
		countStr = color.RedString(countStr)
	}

	return fmt.Sprintf("%s %s", countStr, label)
}
