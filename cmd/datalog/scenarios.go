package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/integrate"
	"github.com/wbrown/janus-provenance/datalog/program"
	"github.com/wbrown/janus-provenance/datalog/provenance"
)

var basicCmd = &cobra.Command{
	Use:   "basic",
	Short: "Transitive closure over a chain of edges",
	Args:  cobra.NoArgs,
	RunE:  scenario(runBasic),
}

var probabilisticCmd = &cobra.Command{
	Use:   "probabilistic",
	Short: "Most probable paths under minmaxprob",
	Args:  cobra.NoArgs,
	RunE:  scenario(runProbabilistic),
}

var proofsCmd = &cobra.Command{
	Use:   "proofs",
	Short: "Proof tracking and exact probabilities under topkproofs",
	Long: `Tracks the k most probable proofs of every path and computes exact
probabilities from them. k and disjunction support come from the config.`,
	Args: cobra.NoArgs,
	RunE: scenario(runProofs),
}

var incrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Grow a graph in three rounds and re-run incrementally",
	Args:  cobra.NoArgs,
	RunE:  scenario(runIncremental),
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every scenario",
	Args:  cobra.NoArgs,
	RunE: scenario(func(e *env) error {
		for _, fn := range []func(*env) error{
			runBasic, runProbabilistic, runProofs, runIncremental, runFunctions, runPredicates,
		} {
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	}),
}

// newContext creates a context with the command's options
func newContext[T any](e *env, prov provenance.Provenance[T], incremental bool) *integrate.Context[T] {
	opts := append(e.cfg.Options(), integrate.WithHandler(e.handler))
	if incremental {
		return integrate.NewIncremental(prov, opts...)
	}
	return integrate.New(prov, opts...)
}

// addPathProgram declares edge(i32, i32) and the rules of path
func addPathProgram[T any](ctx *integrate.Context[T]) error {
	if err := ctx.AddRelation("edge", datalog.TypeI32, datalog.TypeI32); err != nil {
		return err
	}
	rules := []program.Rule{
		program.NewRule(program.A("path", program.V("a"), program.V("b")),
			program.A("edge", program.V("a"), program.V("b"))),
		program.NewRule(program.A("path", program.V("a"), program.V("c")),
			program.A("path", program.V("a"), program.V("b")),
			program.A("edge", program.V("b"), program.V("c"))),
	}
	for _, r := range rules {
		if err := ctx.AddRule(r); err != nil {
			return err
		}
	}
	ctx.AddQuery("path")
	return nil
}

func printRelation[T any](e *env, ctx *integrate.Context[T], name string) error {
	rel, ok := ctx.Relation(name)
	if !ok {
		return fmt.Errorf("relation %s not found", name)
	}
	fmt.Fprintf(e.out, "\n### %s\n\n%s", name, rel.Table())
	return nil
}

func printQueries[T any](e *env, ctx *integrate.Context[T]) error {
	for _, name := range ctx.Queries() {
		if err := printRelation(e, ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func runBasic(e *env) error {
	fmt.Fprintln(e.out, "## Basic transitive closure")

	ctx := newContext[bool](e, provenance.NewUnit(), false)
	if err := addPathProgram(ctx); err != nil {
		return err
	}
	edges := []integrate.InputFact{
		integrate.Fact(nil, int32(0), int32(1)),
		integrate.Fact(nil, int32(1), int32(2)),
		integrate.Fact(nil, int32(2), int32(3)),
		integrate.Fact(nil, int32(3), int32(4)),
	}
	if _, err := ctx.AddFacts("edge", edges); err != nil {
		return err
	}
	if err := ctx.Run(); err != nil {
		return err
	}
	return printQueries(e, ctx)
}

// probabilisticEdges is a chain 0 -> 1 -> 2 -> 3 with a shortcut 0 -> 2
func probabilisticEdges() []integrate.InputFact {
	return []integrate.InputFact{
		integrate.Fact(provenance.Prob(0.8), int32(0), int32(1)),
		integrate.Fact(provenance.Prob(0.9), int32(1), int32(2)),
		integrate.Fact(provenance.Prob(0.7), int32(2), int32(3)),
		integrate.Fact(provenance.Prob(0.6), int32(0), int32(2)),
	}
}

func runProbabilistic(e *env) error {
	fmt.Fprintln(e.out, "\n## Most probable paths (minmaxprob)")

	ctx := newContext[float64](e, provenance.NewMinMaxProb(), false)
	if err := addPathProgram(ctx); err != nil {
		return err
	}
	if _, err := ctx.AddFacts("edge", probabilisticEdges()); err != nil {
		return err
	}
	if err := ctx.Run(); err != nil {
		return err
	}
	return printQueries(e, ctx)
}

func runProofs(e *env) error {
	prov := e.cfg.TopKProofs()
	fmt.Fprintf(e.out, "\n## Proofs and exact probabilities (topkproofs, k=%d)\n", prov.K())

	ctx := newContext[provenance.Proofs](e, prov, false)
	if err := addPathProgram(ctx); err != nil {
		return err
	}
	longPath := program.NewRule(program.A("long_path", program.V("a"), program.V("d")),
		program.A("path", program.V("a"), program.V("b")),
		program.A("path", program.V("b"), program.V("c")),
		program.A("path", program.V("c"), program.V("d")))
	if err := ctx.AddRule(longPath); err != nil {
		return err
	}
	ctx.AddQuery("long_path")

	if _, err := ctx.AddFacts("edge", probabilisticEdges()); err != nil {
		return err
	}
	if err := ctx.Run(); err != nil {
		return err
	}
	if err := printQueries(e, ctx); err != nil {
		return err
	}

	path, _ := ctx.Relation("path")
	fmt.Fprintln(e.out, "\nProofs are sets of input fact ids, numbered in insertion order:")
	path.Each(func(tag provenance.Proofs, tuple datalog.Tuple) bool {
		fmt.Fprintf(e.out, "  path%s = %.4f from %s\n", tuple, prov.Weight(tag), tag)
		return true
	})
	return nil
}

func runIncremental(e *env) error {
	fmt.Fprintln(e.out, "\n## Incremental evaluation")

	ctx := newContext[bool](e, provenance.NewUnit(), true)
	if err := addPathProgram(ctx); err != nil {
		return err
	}

	rounds := []struct {
		title string
		edges []integrate.InputFact
	}{
		{"initial edges (0, 1) and (1, 2)", []integrate.InputFact{
			integrate.Fact(nil, int32(0), int32(1)),
			integrate.Fact(nil, int32(1), int32(2)),
		}},
		{"extend with (2, 3) and (3, 4)", []integrate.InputFact{
			integrate.Fact(nil, int32(2), int32(3)),
			integrate.Fact(nil, int32(3), int32(4)),
		}},
		{"shortcut (0, 3)", []integrate.InputFact{
			integrate.Fact(nil, int32(0), int32(3)),
		}},
	}

	for i, round := range rounds {
		if _, err := ctx.AddFacts("edge", round.edges); err != nil {
			return err
		}
		if err := ctx.Run(); err != nil {
			return err
		}
		path, _ := ctx.Relation("path")
		stats := ctx.Stats()
		fmt.Fprintf(e.out, "\nRound %d, %s: %d paths, %d changed in %d rounds\n",
			i+1, round.title, path.Len(), stats.Changed, stats.Rounds)
	}
	return printQueries(e, ctx)
}
