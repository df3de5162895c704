package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
	renderer *RelationRenderer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	// Auto-detect color support
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd()) && !color.NoColor
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
		renderer: NewRelationRenderer(useColor),
	}
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case RunBegin:
		return fmt.Sprintf("%s %s Run (%v, %v) over %s",
			latency,
			f.colorize("===", color.FgYellow),
			event.Data["mode"],
			event.Data["provenance"],
			f.colorizeCount("strata", intData(event, "strata.count")))

	case RunComplete:
		if success, _ := event.Data["success"].(bool); !success {
			return fmt.Sprintf("%s %s Run failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				event.Data["error"])
		}
		return fmt.Sprintf("%s %s Run done in %s with %s changed.",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("rounds", intData(event, "rounds")),
			f.colorizeCount("facts", intData(event, "facts.changed")))

	case StratumBegin:
		relations, _ := event.Data["relations"].([]string)
		return fmt.Sprintf("%s %s Stratum %d %s starting (%v, %s)",
			latency,
			f.colorize("---", color.FgYellow),
			intData(event, "stratum"),
			f.renderer.RenderRelations(relations),
			event.Data["mode"],
			f.colorizeCount("rules", intData(event, "rules.count")))

	case StratumComplete:
		relations, _ := event.Data["relations"].([]string)
		return fmt.Sprintf("%s Stratum %d %s completed after %s with %s changed",
			latency,
			intData(event, "stratum"),
			f.renderer.RenderRelations(relations),
			f.colorizeCount("rounds", intData(event, "rounds")),
			f.colorizeCount("facts", intData(event, "facts.changed")))

	case RoundComplete:
		return fmt.Sprintf("%s Round %d: %s → %s",
			latency,
			intData(event, "round"),
			f.colorizeCount("tasks", intData(event, "tasks.count")),
			f.colorizeCount("delta", intData(event, "delta.count")))

	case RuleEvaluated:
		rule, _ := event.Data["rule"].(string)
		delta, _ := event.Data["delta"].(string)
		return fmt.Sprintf("%s %s → %s",
			latency,
			f.renderer.RenderRule(rule, delta),
			f.colorizeCount("derivations", intData(event, "derivations")))

	case FactsAdded:
		relation, _ := event.Data["relation"].(string)
		return fmt.Sprintf("%s Facts into %s: %d added, %d merged",
			latency,
			f.renderer.RenderRelation(relation, intData(event, "facts.count")),
			intData(event, "added"),
			intData(event, "merged"))

	case IncrementalFallback:
		return fmt.Sprintf("%s %s Recomputing from stratum %d: %v is read through negation or aggregation",
			latency,
			f.colorize("⚠️", color.FgYellow),
			intData(event, "stratum"),
			event.Data["relation"])

	case ErrorCompile, ErrorEvaluate, ErrorFactCheck:
		return fmt.Sprintf("%s %s %s: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Name,
			event.Data["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

// intData reads an integer field, tolerating missing keys
func intData(event Event, key string) int {
	switch v := event.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	// Use microseconds for sub-millisecond durations
	if d < time.Millisecond {
		us := d.Microseconds()
		s := fmt.Sprintf("[%dµs]", us)
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	// Use floating-point milliseconds to preserve precision
	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch strings.ToLower(label) {
	case "strata", "rounds":
		return color.CyanString(text)
	case "facts", "derivations":
		return color.MagentaString(text)
	case "delta":
		return color.YellowString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// ConsoleHandler creates a handler that prints formatted events to stdout.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stdout).Handle
}

// isTerminal checks if the file descriptor is stdout or stderr.
// TODO: use golang.org/x/term for real terminal detection.
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2)
}
