package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/foreign"
	"github.com/wbrown/janus-provenance/datalog/integrate"
	"github.com/wbrown/janus-provenance/datalog/program"
	"github.com/wbrown/janus-provenance/datalog/provenance"
)

var functionsCmd = &cobra.Command{
	Use:   "foreign-functions",
	Short: "Call Go functions from rule heads",
	Args:  cobra.NoArgs,
	RunE:  scenario(runFunctions),
}

var predicatesCmd = &cobra.Command{
	Use:   "foreign-predicates",
	Short: "Generate facts from Go predicates",
	Args:  cobra.NoArgs,
	RunE:  scenario(runPredicates),
}

var (
	V = program.V
	C = program.C
	A = program.A
)

func customFunctions() []foreign.Function {
	return []foreign.Function{
		foreign.NewFunction("str_len", []datalog.ValueType{datalog.TypeString}, datalog.TypeUSize,
			func(args []datalog.Value) (datalog.Value, bool) {
				s, ok := args[0].(string)
				return uint(len(s)), ok
			}),
		foreign.NewFunction("uppercase", []datalog.ValueType{datalog.TypeString}, datalog.TypeString,
			func(args []datalog.Value) (datalog.Value, bool) {
				s, ok := args[0].(string)
				return strings.ToUpper(s), ok
			}),
		foreign.NewFunction("int_abs", []datalog.ValueType{datalog.TypeI32}, datalog.TypeI32,
			func(args []datalog.Value) (datalog.Value, bool) {
				n, ok := args[0].(int32)
				if n < 0 {
					n = -n
				}
				return n, ok
			}),
		foreign.NewFunction("int_max", []datalog.ValueType{datalog.TypeI32, datalog.TypeI32}, datalog.TypeI32,
			func(args []datalog.Value) (datalog.Value, bool) {
				a, okA := args[0].(int32)
				b, okB := args[1].(int32)
				return max(a, b), okA && okB
			}),
	}
}

type employee struct {
	name string
	age  int32
	role string
}

var employees = []employee{
	{"Alice", 30, "Engineer"},
	{"Bob", 25, "Designer"},
	{"Charlie", 35, "Manager"},
	{"Diana", 28, "Analyst"},
}

func customPredicates() []foreign.Predicate {
	return []foreign.Predicate{
		// range(n, i) yields 0 <= i < n
		foreign.NewPredicate("range", []datalog.ValueType{datalog.TypeI32, datalog.TypeI32}, 1,
			func(bounded []datalog.Value) []foreign.PredicateResult {
				n, _ := bounded[0].(int32)
				var out []datalog.Tuple
				for i := int32(0); i < n; i++ {
					out = append(out, datalog.Tuple{i})
				}
				return foreign.Results(out...)
			}),
		foreign.NewPredicate("str_chars", []datalog.ValueType{datalog.TypeString, datalog.TypeChar}, 1,
			func(bounded []datalog.Value) []foreign.PredicateResult {
				s, _ := bounded[0].(string)
				var out []datalog.Tuple
				for _, r := range s {
					out = append(out, datalog.Tuple{datalog.Char(r)})
				}
				return foreign.Results(out...)
			}),
		foreign.NewPredicate("csv_data",
			[]datalog.ValueType{datalog.TypeString, datalog.TypeI32, datalog.TypeString}, 0,
			func([]datalog.Value) []foreign.PredicateResult {
				out := make([]datalog.Tuple, len(employees))
				for i, emp := range employees {
					out[i] = datalog.Tuple{emp.name, emp.age, emp.role}
				}
				return foreign.Results(out...)
			}),
	}
}

func runFunctions(e *env) error {
	fmt.Fprintln(e.out, "\n## Foreign functions")

	ctx := newContext[bool](e, provenance.NewUnit(), false)
	for _, f := range customFunctions() {
		if err := ctx.RegisterForeignFunction(f); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "registered $%s%s\n", f.Name(), f.Signature())
	}

	if err := ctx.AddRelation("words", datalog.TypeString); err != nil {
		return err
	}
	if err := ctx.AddRelation("numbers", datalog.TypeI32); err != nil {
		return err
	}

	rules := []program.Rule{
		program.NewRule(A("word_length", V("w"), program.Fn("str_len", V("w"))), A("words", V("w"))),
		program.NewRule(A("word_upper", V("w"), program.Fn("uppercase", V("w"))), A("words", V("w"))),
		program.NewRule(A("absolute", V("n"), program.Fn("int_abs", V("n"))), A("numbers", V("n"))),
		program.NewRule(A("pair_max", V("a"), V("b"), program.Fn("int_max", V("a"), V("b"))),
			A("numbers", V("a")), A("numbers", V("b")), program.Cmp(program.OpLt, V("a"), V("b"))),
	}
	for _, r := range rules {
		if err := ctx.AddRule(r); err != nil {
			return err
		}
		ctx.AddQuery(r.Head.Relation)
	}

	words := []integrate.InputFact{
		integrate.Fact(nil, "hello"),
		integrate.Fact(nil, "world"),
		integrate.Fact(nil, "scallop"),
	}
	if _, err := ctx.AddFacts("words", words); err != nil {
		return err
	}
	var numbers []integrate.InputFact
	for _, n := range []int32{-5, 10, -3, 7} {
		numbers = append(numbers, integrate.Fact(nil, n))
	}
	if _, err := ctx.AddFacts("numbers", numbers); err != nil {
		return err
	}

	if err := ctx.Run(); err != nil {
		return err
	}
	return printQueries(e, ctx)
}

func runPredicates(e *env) error {
	fmt.Fprintln(e.out, "\n## Foreign predicates")

	ctx := newContext[bool](e, provenance.NewUnit(), false)
	for _, p := range customPredicates() {
		if err := ctx.RegisterForeignPredicate(p); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "registered %s/%d (%s)\n", p.Name(), len(p.Types()), foreign.Pattern(p))
	}

	if err := ctx.AddRelation("sizes", datalog.TypeI32); err != nil {
		return err
	}
	if err := ctx.AddRelation("words", datalog.TypeString); err != nil {
		return err
	}

	rules := []program.Rule{
		program.NewRule(A("sequence", V("n"), V("i")),
			A("sizes", V("n")), program.P("range", V("n"), V("i"))),
		program.NewRule(A("letters", V("w"), V("c")),
			A("words", V("w")), program.P("str_chars", V("w"), V("c"))),
		program.NewRule(A("employee", V("name"), V("age"), V("role")),
			program.P("csv_data", V("name"), V("age"), V("role"))),
		program.NewRule(A("senior_employee", V("name")),
			A("employee", V("name"), V("age"), program.W()),
			program.Cmp(program.OpGe, V("age"), C(int32(30)))),
	}
	for _, r := range rules {
		if err := ctx.AddRule(r); err != nil {
			return err
		}
		ctx.AddQuery(r.Head.Relation)
	}

	var sizes []integrate.InputFact
	for _, n := range []int32{3, 5, 7} {
		sizes = append(sizes, integrate.Fact(nil, n))
	}
	if _, err := ctx.AddFacts("sizes", sizes); err != nil {
		return err
	}
	words := []integrate.InputFact{integrate.Fact(nil, "hello"), integrate.Fact(nil, "world")}
	if _, err := ctx.AddFacts("words", words); err != nil {
		return err
	}

	if err := ctx.Run(); err != nil {
		return err
	}
	return printQueries(e, ctx)
}
