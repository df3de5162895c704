package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/foreign"
)

func transitiveClosure(t *testing.T) *Program {
	t.Helper()
	p := New()
	_, err := p.Declare("edge", datalog.TypeI32, datalog.TypeI32)
	require.NoError(t, err)

	reg := foreign.NewRegistry()
	require.NoError(t, p.AddRule(NewRule(A("path", V("a"), V("b")), A("edge", V("a"), V("b"))), reg))
	require.NoError(t, p.AddRule(NewRule(A("path", V("a"), V("c")),
		A("path", V("a"), V("b")), A("edge", V("b"), V("c"))), reg))
	p.AddQuery("path")
	return p
}

func TestCompileTransitiveClosure(t *testing.T) {
	p := transitiveClosure(t)
	c, err := p.Compile(foreign.NewRegistry(), CompileOptions{})
	require.NoError(t, err)

	require.Len(t, c.Strata, 1)
	s := c.Strata[0]
	assert.Equal(t, []string{"path"}, s.Relations)
	assert.True(t, s.Recursive)
	assert.Equal(t, []string{"edge"}, s.Inputs)
	require.Len(t, s.Rules, 2)

	rec := s.Rules[1]
	require.Len(t, rec.Steps, 2)
	first := rec.Steps[0].(ScanStep)
	second := rec.Steps[1].(ScanStep)
	assert.Equal(t, "path", first.Relation)
	assert.True(t, first.Recursive)
	assert.Equal(t, "edge", second.Relation)
	assert.False(t, second.Recursive)

	// edge(b, c) is joined on b
	assert.Equal(t, []int{0}, second.Key)
	assert.Equal(t, ArgCheck, second.Args[0].Mode)
	assert.Equal(t, ArgBind, second.Args[1].Mode)
	assert.Equal(t, []string{"a", "b", "c"}, rec.Vars)

	r, ok := c.Relation("path")
	require.True(t, ok)
	assert.True(t, r.Derived)
	assert.True(t, r.Query)
	assert.Equal(t, 2, r.Arity())
}

func TestCompileStrataOrder(t *testing.T) {
	p := New()
	reg := foreign.NewRegistry()
	_, err := p.Declare("node", datalog.TypeString)
	require.NoError(t, err)
	_, err = p.Declare("edge", datalog.TypeString, datalog.TypeString)
	require.NoError(t, err)

	// Rules added in an order that does not match their dependencies
	require.NoError(t, p.AddRule(NewRule(A("unreachable", V("x")),
		A("node", V("x")), Not("reach", V("x"))), reg))
	require.NoError(t, p.AddRule(NewRule(A("reach", C("root"))), reg))
	require.NoError(t, p.AddRule(NewRule(A("reach", V("y")),
		A("reach", V("x")), A("edge", V("x"), V("y"))), reg))

	c, err := p.Compile(reg, CompileOptions{Negation: true})
	require.NoError(t, err)
	require.Len(t, c.Strata, 2)
	assert.Equal(t, []string{"reach"}, c.Strata[0].Relations)
	assert.Equal(t, []string{"unreachable"}, c.Strata[1].Relations)
	assert.Equal(t, []string{"reach"}, c.Strata[1].NonMonotone)
	assert.True(t, c.UsesNegation)

	// The negation is scheduled after node(x) binds x
	steps := c.Strata[1].Rules[0].Steps
	require.Len(t, steps, 2)
	assert.IsType(t, ScanStep{}, steps[0])
	assert.IsType(t, NegationStep{}, steps[1])
}

func TestCompileForeignFunctionBinding(t *testing.T) {
	p := New()
	reg := foreign.NewRegistry()
	_, err := p.Declare("word", datalog.TypeString)
	require.NoError(t, err)

	// len == $string_length(w), len > 3: the filter must wait for the binding
	err = p.AddRule(NewRule(A("long_word", V("w"), V("len")),
		Cmp(OpGt, V("len"), C(uint(3))),
		Eq(V("len"), Fn("string_length", V("w"))),
		A("word", V("w"))), reg)
	require.NoError(t, err)

	c, err := p.Compile(reg, CompileOptions{})
	require.NoError(t, err)
	steps := c.Rules[0].Steps
	require.Len(t, steps, 3)
	assert.IsType(t, ScanStep{}, steps[0])
	bind, ok := steps[1].(BindStep)
	require.True(t, ok)
	assert.IsType(t, CallExpr{}, bind.Expr)
	assert.IsType(t, FilterStep{}, steps[2])
}

func TestCompileForeignPredicate(t *testing.T) {
	p := New()
	reg := foreign.NewRegistry()
	_, err := p.Declare("limit", datalog.TypeI32, datalog.TypeI32)
	require.NoError(t, err)

	require.NoError(t, p.AddRule(NewRule(A("num", V("i")),
		P("range_i32", V("lo"), V("hi"), V("i")), A("limit", V("lo"), V("hi"))), reg))

	c, err := p.Compile(reg, CompileOptions{})
	require.NoError(t, err)
	steps := c.Rules[0].Steps
	require.Len(t, steps, 2)
	assert.IsType(t, ScanStep{}, steps[0])
	pred, ok := steps[1].(PredicateStep)
	require.True(t, ok)
	assert.Len(t, pred.Bounded, 2)
	require.Len(t, pred.Free, 1)
	assert.Equal(t, ArgBind, pred.Free[0].Mode)
}

func TestCompileAggregation(t *testing.T) {
	p := New()
	reg := foreign.NewRegistry()
	_, err := p.Declare("edge", datalog.TypeI32, datalog.TypeI32)
	require.NoError(t, err)

	require.NoError(t, p.AddRule(NewRule(A("out_degree", V("x"), V("n")),
		Agg(V("n"), AggCount, []Var{V("y")}, A("edge", V("x"), V("y")), V("x"))), reg))

	c, err := p.Compile(reg, CompileOptions{})
	require.NoError(t, err)
	require.Len(t, c.Strata, 1)
	assert.Equal(t, []string{"edge"}, c.Strata[0].NonMonotone)

	agg, ok := c.Rules[0].Steps[0].(AggregateStep)
	require.True(t, ok)
	assert.Equal(t, 2, agg.NumLocals)
	assert.Equal(t, []int{0}, agg.Groups)
	assert.Equal(t, []int{1}, agg.Of)
	assert.Equal(t, ArgBind, agg.GroupTargets[0].Mode)
	assert.Equal(t, ArgBind, agg.Result.Mode)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr error
		atAdd   bool
	}{
		{
			name:    "unknown relation",
			rule:    NewRule(A("out", V("x")), A("missing", V("x"))),
			wantErr: ErrUnknownRelation,
		},
		{
			name:    "arity mismatch",
			rule:    NewRule(A("out", V("x")), A("edge", V("x"))),
			wantErr: ErrArityMismatch,
			atAdd:   true,
		},
		{
			name:    "unknown foreign function",
			rule:    NewRule(A("out", Fn("nope", V("x"))), A("edge", V("x"), W())),
			wantErr: ErrUnknownForeign,
			atAdd:   true,
		},
		{
			name:    "foreign arity",
			rule:    NewRule(A("out", Fn("abs", V("x"), V("x"))), A("edge", V("x"), W())),
			wantErr: ErrArityMismatch,
			atAdd:   true,
		},
		{
			name:    "constant of the wrong type",
			rule:    NewRule(A("out", V("x")), A("edge", V("x"), C("one"))),
			wantErr: ErrTypeMismatch,
			atAdd:   true,
		},
		{
			name:    "unsupported constant type",
			rule:    NewRule(A("out", V("x")), A("edge", V("x"), C(1))),
			wantErr: ErrTypeMismatch,
			atAdd:   true,
		},
		{
			name:    "variable used with two types",
			rule:    NewRule(A("out", V("x")), A("edge", V("x"), W()), A("name", V("x"))),
			wantErr: ErrTypeMismatch,
			atAdd:   true,
		},
		{
			name:    "foreign argument type",
			rule:    NewRule(A("out", Fn("string_length", V("x"))), A("edge", V("x"), W())),
			wantErr: ErrTypeMismatch,
			atAdd:   true,
		},
		{
			name:    "unbound head variable",
			rule:    NewRule(A("out", V("z")), A("edge", V("x"), W())),
			wantErr: ErrUnboundVariable,
			atAdd:   true,
		},
		{
			name:    "unbound negated variable",
			rule:    NewRule(A("out", V("x")), A("edge", V("x"), W()), Not("edge", V("y"), V("x"))),
			wantErr: ErrUnboundVariable,
			atAdd:   true,
		},
		{
			name:    "comparison on unbound variable",
			rule:    NewRule(A("out", V("x")), A("edge", V("x"), W()), Cmp(OpLt, V("y"), C(int32(3)))),
			wantErr: ErrUnboundVariable,
			atAdd:   true,
		},
		{
			name:    "wildcard in head",
			rule:    NewRule(A("out", W()), A("edge", V("x"), W())),
			wantErr: ErrInvalidRule,
			atAdd:   true,
		},
		{
			name:    "foreign predicate with unbound input",
			rule:    NewRule(A("out", V("i")), P("range_i32", V("a"), C(int32(3)), V("i"))),
			wantErr: ErrUnboundVariable,
			atAdd:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			reg := foreign.NewRegistry()
			_, err := p.Declare("edge", datalog.TypeI32, datalog.TypeI32)
			require.NoError(t, err)
			_, err = p.Declare("name", datalog.TypeString)
			require.NoError(t, err)

			err = p.AddRule(tt.rule, reg)
			if tt.atAdd {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, p.Rules(), "rejected rules are not added")
				return
			}
			require.NoError(t, err)
			_, err = p.Compile(reg, CompileOptions{Negation: true})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCompileUnstratifiable(t *testing.T) {
	p := New()
	reg := foreign.NewRegistry()
	_, err := p.Declare("node", datalog.TypeI32)
	require.NoError(t, err)
	require.NoError(t, p.AddRule(NewRule(A("p", V("x")), A("node", V("x")), Not("q", V("x"))), reg))
	require.NoError(t, p.AddRule(NewRule(A("q", V("x")), A("node", V("x")), Not("p", V("x"))), reg))

	_, err = p.Compile(reg, CompileOptions{Negation: true})
	assert.ErrorIs(t, err, ErrUnstratifiable)
}

func TestCompileNegationUnsupported(t *testing.T) {
	p := New()
	reg := foreign.NewRegistry()
	_, err := p.Declare("node", datalog.TypeI32)
	require.NoError(t, err)
	_, err = p.Declare("bad", datalog.TypeI32)
	require.NoError(t, err)
	require.NoError(t, p.AddRule(NewRule(A("good", V("x")), A("node", V("x")), Not("bad", V("x"))), reg))

	_, err = p.Compile(reg, CompileOptions{Negation: false})
	assert.ErrorIs(t, err, ErrNegationUnsupported)
}

func TestCompileUnknownQuery(t *testing.T) {
	p := New()
	p.AddQuery("nothing")
	_, err := p.Compile(foreign.NewRegistry(), CompileOptions{})
	assert.ErrorIs(t, err, ErrUnknownRelation)
}

func TestDeclare(t *testing.T) {
	p := New()
	_, err := p.Declare("edge", datalog.TypeI32, datalog.TypeI32)
	require.NoError(t, err)

	_, err = p.Declare("edge", datalog.TypeI32, datalog.TypeI32)
	assert.NoError(t, err, "identical redeclaration is allowed")

	_, err = p.Declare("edge", datalog.TypeI64, datalog.TypeI32)
	assert.ErrorIs(t, err, ErrDuplicateRelation)

	_, err = p.Declare("edge", datalog.TypeI32)
	assert.ErrorIs(t, err, ErrArityMismatch)

	r, _ := p.Relation("edge")
	assert.NoError(t, r.CheckTuple(datalog.Tuple{int32(1), int32(2)}))
	assert.ErrorIs(t, r.CheckTuple(datalog.Tuple{int32(1)}), ErrArityMismatch)
	assert.ErrorIs(t, r.CheckTuple(datalog.Tuple{int32(1), int64(2)}), ErrTypeMismatch)
	assert.ErrorIs(t, r.CheckTuple(datalog.Tuple{int32(1), 2}), ErrTypeMismatch)
	assert.Equal(t, "edge(i32, i32)", r.String())
}

func TestRuleString(t *testing.T) {
	r := NewRule(A("result", V("w"), Fn("string_length", V("w"))),
		A("word", V("w")), Cmp(OpNe, V("w"), C("")))
	assert.Equal(t, `result(w, $string_length(w)) = word(w), w != ""`, r.String())
	assert.Equal(t, `edge(0, 1)`, Fact("edge", C(int32(0)), C(int32(1))).String())
}
