package executor

import (
	"time"

	"github.com/wbrown/janus-provenance/datalog/annotations"
	"github.com/wbrown/janus-provenance/datalog/program"
)

// Context provides clean annotation points for evaluation tracking.
type Context interface {
	// Run lifecycle
	RunBegin(mode Mode, provenance string, strata int)
	RunComplete(rounds, changed int, err error)

	// Stratum evaluation. fn returns the number of rounds and changed facts.
	EvaluateStratum(stratum *program.Stratum, mode Mode, fn func() (int, int, error)) error

	// Round and rule progress
	RoundComplete(stratum, round, tasks, delta int, start time.Time)
	EvaluateRule(rule *program.CompiledRule, delta string, round int, fn func() (int, error)) (int, error)

	// Fact insertion
	FactsAdded(relation string, added, merged, total int)

	// Incremental evaluation recomputing from a stratum
	IncrementalFallback(stratum int, relation string)

	// Get underlying collector
	Collector() *annotations.Collector
}

// BaseContext provides a no-op implementation with zero overhead.
type BaseContext struct{}

// NewContext creates an appropriate context based on whether annotations are needed.
func NewContext(handler annotations.Handler) Context {
	if handler == nil {
		return &BaseContext{}
	}
	return &AnnotatedContext{
		collector: annotations.NewCollector(handler),
	}
}

// BaseContext implementations - all are simple pass-throughs

func (c *BaseContext) RunBegin(mode Mode, provenance string, strata int) {}

func (c *BaseContext) RunComplete(rounds, changed int, err error) {}

func (c *BaseContext) EvaluateStratum(stratum *program.Stratum, mode Mode, fn func() (int, int, error)) error {
	_, _, err := fn()
	return err
}

func (c *BaseContext) RoundComplete(stratum, round, tasks, delta int, start time.Time) {}

func (c *BaseContext) EvaluateRule(rule *program.CompiledRule, delta string, round int, fn func() (int, error)) (int, error) {
	return fn()
}

func (c *BaseContext) FactsAdded(relation string, added, merged, total int) {}

func (c *BaseContext) IncrementalFallback(stratum int, relation string) {}

func (c *BaseContext) Collector() *annotations.Collector {
	return nil
}

// AnnotatedContext provides full annotation tracking
type AnnotatedContext struct {
	BaseContext
	collector *annotations.Collector
	runStart  time.Time
}

func (c *AnnotatedContext) RunBegin(mode Mode, provenance string, strata int) {
	c.runStart = time.Now()
	c.collector.Add(annotations.Event{
		Name:  annotations.RunBegin,
		Start: c.runStart,
		Data: map[string]interface{}{
			"mode":         mode.String(),
			"provenance":   provenance,
			"strata.count": strata,
		},
	})
}

func (c *AnnotatedContext) RunComplete(rounds, changed int, err error) {
	data := map[string]interface{}{
		"rounds":        rounds,
		"facts.changed": changed,
		"success":       err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	c.collector.AddTiming(annotations.RunComplete, c.runStart, data)
}

func (c *AnnotatedContext) EvaluateStratum(stratum *program.Stratum, mode Mode, fn func() (int, int, error)) error {
	start := time.Now()
	c.collector.Add(annotations.Event{
		Name:  annotations.StratumBegin,
		Start: start,
		Data: map[string]interface{}{
			"stratum":     stratum.Index,
			"relations":   stratum.Relations,
			"mode":        mode.String(),
			"rules.count": len(stratum.Rules),
		},
	})

	rounds, changed, err := fn()

	data := map[string]interface{}{
		"stratum":       stratum.Index,
		"relations":     stratum.Relations,
		"rounds":        rounds,
		"facts.changed": changed,
		"success":       err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
		c.collector.AddTiming(annotations.ErrorEvaluate, start, data)
		return err
	}
	c.collector.AddTiming(annotations.StratumComplete, start, data)
	return nil
}

func (c *AnnotatedContext) RoundComplete(stratum, round, tasks, delta int, start time.Time) {
	c.collector.AddTiming(annotations.RoundComplete, start, map[string]interface{}{
		"stratum":     stratum,
		"round":       round,
		"tasks.count": tasks,
		"delta.count": delta,
	})
}

func (c *AnnotatedContext) EvaluateRule(rule *program.CompiledRule, delta string, round int, fn func() (int, error)) (int, error) {
	start := time.Now()
	n, err := fn()

	data := map[string]interface{}{
		"rule":        rule.String(),
		"round":       round,
		"derivations": n,
		"success":     err == nil,
	}
	if delta != "" {
		data["delta"] = delta
	}
	if err != nil {
		data["error"] = err.Error()
	}
	c.collector.AddTiming(annotations.RuleEvaluated, start, data)
	return n, err
}

func (c *AnnotatedContext) FactsAdded(relation string, added, merged, total int) {
	c.collector.Add(annotations.Event{
		Name:  annotations.FactsAdded,
		Start: time.Now(),
		Data: map[string]interface{}{
			"relation":    relation,
			"added":       added,
			"merged":      merged,
			"facts.count": total,
		},
	})
}

func (c *AnnotatedContext) IncrementalFallback(stratum int, relation string) {
	c.collector.Add(annotations.Event{
		Name:  annotations.IncrementalFallback,
		Start: time.Now(),
		Data: map[string]interface{}{
			"stratum":  stratum,
			"relation": relation,
		},
	})
}

func (c *AnnotatedContext) Collector() *annotations.Collector {
	return c.collector
}
