package foreign

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wbrown/janus-provenance/datalog"
)

func TestBuiltinFunctions(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		fn   string
		args []datalog.Value
		want datalog.Value
		ok   bool
	}{
		{"abs negative", "abs", []datalog.Value{int32(-4)}, int32(4), true},
		{"abs float", "abs", []datalog.Value{-2.5}, 2.5, true},
		{"abs unsigned", "abs", []datalog.Value{uint8(7)}, uint8(7), true},
		{"abs string", "abs", []datalog.Value{"x"}, nil, false},
		{"max", "max", []datalog.Value{int64(3), int64(9)}, int64(9), true},
		{"min", "min", []datalog.Value{"b", "a"}, "a", true},
		{"max mixed types", "max", []datalog.Value{int32(3), int64(9)}, nil, false},
		{"string_length", "string_length", []datalog.Value{"hello"}, uint(5), true},
		{"string_length wrong type", "string_length", []datalog.Value{int32(5)}, nil, false},
		{"string_concat", "string_concat", []datalog.Value{"foo", "bar"}, "foobar", true},
		{"string_upper", "string_upper", []datalog.Value{"abc"}, "ABC", true},
		{"string_lower", "string_lower", []datalog.Value{"ABC"}, "abc", true},
		{"string_char_at", "string_char_at", []datalog.Value{"héllo", uint(1)}, datalog.Char('é'), true},
		{"string_char_at out of range", "string_char_at", []datalog.Value{"hi", uint(2)}, nil, false},
		{"substring", "substring", []datalog.Value{"datalog", uint(0), uint(4)}, "data", true},
		{"substring inverted", "substring", []datalog.Value{"datalog", uint(4), uint(1)}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := r.Function(tt.fn)
			assert.True(t, ok)
			got, ok := f.Execute(tt.args)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHashFunction(t *testing.T) {
	f, _ := NewRegistry().Function("hash")

	a, ok := f.Execute([]datalog.Value{"key"})
	assert.True(t, ok)
	b, _ := f.Execute([]datalog.Value{"key"})
	assert.Equal(t, a, b)
	assert.IsType(t, uint64(0), a)

	c, _ := f.Execute([]datalog.Value{int32(1)})
	d, _ := f.Execute([]datalog.Value{int64(1)})
	assert.NotEqual(t, c, d, "variants hash differently")
}

func TestBuiltinPredicates(t *testing.T) {
	r := NewRegistry()

	chars, _ := r.Predicate("string_chars")
	results := chars.Evaluate([]datalog.Value{"héy"})
	assert.Equal(t, []PredicateResult{
		{Values: datalog.Tuple{uint(0), datalog.Char('h')}},
		{Values: datalog.Tuple{uint(1), datalog.Char('é')}},
		{Values: datalog.Tuple{uint(2), datalog.Char('y')}},
	}, results)

	rng, _ := r.Predicate("range_i64")
	results = rng.Evaluate([]datalog.Value{int64(2), int64(5)})
	assert.Equal(t, Results(datalog.Tuple{int64(2)}, datalog.Tuple{int64(3)}, datalog.Tuple{int64(4)}), results)

	assert.Empty(t, rng.Evaluate([]datalog.Value{int64(5), int64(2)}))
	assert.Empty(t, rng.Evaluate([]datalog.Value{int32(0), int32(2)}), "wrong variant yields nothing")

	usize, _ := r.Predicate("range_usize")
	assert.Len(t, usize.Evaluate([]datalog.Value{uint(0), uint(3)}), 3)
}
