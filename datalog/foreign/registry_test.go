package foreign

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-provenance/datalog"
)

func rangePredicate() Predicate {
	return NewPredicate("range", []datalog.ValueType{datalog.TypeI32, datalog.TypeI32}, 1,
		func(bounded []datalog.Value) []PredicateResult {
			n, ok := bounded[0].(int32)
			if !ok {
				return nil
			}
			var results []PredicateResult
			for i := int32(0); i < n; i++ {
				results = append(results, PredicateResult{Values: datalog.Tuple{i}})
			}
			return results
		})
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"abs", "max", "min", "string_length", "string_concat",
		"string_upper", "string_lower", "string_char_at", "substring", "hash"} {
		_, ok := r.Function(name)
		assert.True(t, ok, "missing builtin function %s", name)
		assert.True(t, r.IsBuiltin(name))
	}
	for _, name := range []string{"string_chars", "range_i32", "range_i64", "range_usize"} {
		_, ok := r.Predicate(name)
		assert.True(t, ok, "missing builtin predicate %s", name)
	}

	empty := NewEmptyRegistry()
	assert.Empty(t, empty.Names())
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry()

	err := r.RegisterFunction(NewFunction("string_length",
		[]datalog.ValueType{datalog.TypeString}, datalog.TypeUSize, stringLength))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateName))
	assert.Contains(t, err.Error(), "string_length")

	require.NoError(t, r.RegisterPredicate(rangePredicate()))
	err = r.RegisterPredicate(rangePredicate())
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Functions and predicates share a namespace
	err = r.RegisterFunction(NewFunction("range", nil, datalog.TypeBool,
		func([]datalog.Value) (datalog.Value, bool) { return true, true }))
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestRegistryInvalidPredicate(t *testing.T) {
	r := NewEmptyRegistry()
	bad := NewPredicate("bad", []datalog.ValueType{datalog.TypeI32}, 2, nil)
	assert.ErrorIs(t, r.RegisterPredicate(bad), ErrInvalidRegistration)
	assert.ErrorIs(t, r.RegisterFunction(nil), ErrInvalidRegistration)
}

func TestRegistryValidate(t *testing.T) {
	r := NewRegistry()

	f, err := r.ValidateFunction("string_length", 1)
	require.NoError(t, err)
	assert.Equal(t, datalog.TypeUSize, f.Signature().Return)

	_, err = r.ValidateFunction("string_length", 2)
	assert.ErrorIs(t, err, ErrArity)

	_, err = r.ValidateFunction("nope", 1)
	assert.ErrorIs(t, err, ErrUnknownName)

	_, err = r.ValidateFunction("string_chars", 3)
	assert.ErrorIs(t, err, ErrUnknownName, "a predicate is not callable as a function")

	p, err := r.ValidatePredicate("range_i32", 3)
	require.NoError(t, err)
	assert.Equal(t, "bbf", Pattern(p))
}

func TestRegistryClone(t *testing.T) {
	r := NewRegistry()
	c := r.Clone()
	require.NoError(t, c.RegisterPredicate(rangePredicate()))

	assert.True(t, c.IsRegistered("range"))
	assert.False(t, r.IsRegistered("range"))
	assert.True(t, c.IsBuiltin("abs"))
}

func TestUserRangePredicate(t *testing.T) {
	r := NewEmptyRegistry()
	require.NoError(t, r.RegisterPredicate(rangePredicate()))

	p, ok := r.Predicate("range")
	require.True(t, ok)
	results := p.Evaluate([]datalog.Value{int32(3)})

	var got []int32
	for _, res := range results {
		assert.Nil(t, res.Tag)
		v, ok := datalog.At[int32](res.Values, 0)
		require.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, []int32{0, 1, 2}, got)
}
