package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-provenance/datalog/integrate"
	"github.com/wbrown/janus-provenance/datalog/provenance"
	"github.com/wbrown/janus-provenance/datalog/storage"
)

var pathsCmd = &cobra.Command{
	Use:   "paths [edge...]",
	Short: "Compute paths over edges given as FROM-TO[@PROB]",
	Long: `Adds the given edges and prints every path under the provenance named
in the config. With a fact log, edges from earlier invocations are
replayed first, so the graph grows across runs.

Example:
  datalog paths 0-1@0.9 1-2@0.8 0-2@0.5
  datalog paths --fact-log ./graph 2-3@0.7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		edges, err := parseEdges(args)
		if err != nil {
			return err
		}
		return runPaths(current, edges)
	},
}

// parseEdges reads edges of the form 0-1 or 0-1@0.5
func parseEdges(args []string) ([]integrate.InputFact, error) {
	facts := make([]integrate.InputFact, 0, len(args))
	for _, arg := range args {
		pair, probText, hasProb := strings.Cut(arg, "@")
		fromText, toText, ok := strings.Cut(pair, "-")
		if !ok {
			return nil, fmt.Errorf("invalid edge %q: want FROM-TO[@PROB]", arg)
		}
		from, err := strconv.ParseInt(fromText, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid edge %q: %w", arg, err)
		}
		to, err := strconv.ParseInt(toText, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid edge %q: %w", arg, err)
		}
		var tag *provenance.InputTag
		if hasProb {
			prob, err := strconv.ParseFloat(probText, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid edge %q: %w", arg, err)
			}
			if prob < 0 || prob > 1 {
				return nil, fmt.Errorf("invalid edge %q: probability %g is outside [0, 1]", arg, prob)
			}
			tag = provenance.Prob(prob)
		}
		facts = append(facts, integrate.Fact(tag, int32(from), int32(to)))
	}
	return facts, nil
}

func runPaths(e *env, edges []integrate.InputFact) error {
	switch e.cfg.Provenance {
	case "minmaxprob":
		return computePaths[float64](e, provenance.NewMinMaxProb(), edges)
	case "topkproofs":
		return computePaths[provenance.Proofs](e, e.cfg.TopKProofs(), edges)
	default:
		return computePaths[bool](e, provenance.NewUnit(), edges)
	}
}

func computePaths[T any](e *env, prov provenance.Provenance[T], edges []integrate.InputFact) error {
	ctx := newContext(e, prov, e.cfg.Incremental)
	if err := addPathProgram(ctx); err != nil {
		return err
	}

	if e.cfg.FactLog != "" {
		log, err := storage.OpenFactLog(e.cfg.FactLog)
		if err != nil {
			return err
		}
		defer log.Close()
		if err := ctx.AttachLog(log); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "replayed %d facts from %s\n", log.Len(), e.cfg.FactLog)
	}

	if len(edges) > 0 {
		res, err := ctx.AddFacts("edge", edges)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "added %d edges, merged %d, dropped %d\n", res.Added, res.Merged, res.Dropped)
	}

	if err := ctx.Run(); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "\n## Paths (%s)\n", prov.Name())
	return printQueries(e, ctx)
}
