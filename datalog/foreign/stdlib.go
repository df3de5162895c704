package foreign

import (
	"strings"
	"unicode/utf8"

	"github.com/wbrown/janus-provenance/datalog"
)

func builtinFunctions() []Function {
	return []Function{
		NewFunction("abs", []datalog.ValueType{datalog.TypeNumber}, datalog.TypeNumber, absFunc),
		NewFunction("max", []datalog.ValueType{datalog.TypeAny, datalog.TypeAny}, datalog.TypeAny, extremum(1)),
		NewFunction("min", []datalog.ValueType{datalog.TypeAny, datalog.TypeAny}, datalog.TypeAny, extremum(-1)),
		NewFunction("string_length", []datalog.ValueType{datalog.TypeString}, datalog.TypeUSize, stringLength),
		NewFunction("string_concat", []datalog.ValueType{datalog.TypeString, datalog.TypeString}, datalog.TypeString, stringConcat),
		NewFunction("string_upper", []datalog.ValueType{datalog.TypeString}, datalog.TypeString, mapString(strings.ToUpper)),
		NewFunction("string_lower", []datalog.ValueType{datalog.TypeString}, datalog.TypeString, mapString(strings.ToLower)),
		NewFunction("string_char_at", []datalog.ValueType{datalog.TypeString, datalog.TypeUSize}, datalog.TypeChar, stringCharAt),
		NewFunction("substring", []datalog.ValueType{datalog.TypeString, datalog.TypeUSize, datalog.TypeUSize}, datalog.TypeString, substring),
		NewFunction("hash", []datalog.ValueType{datalog.TypeAny}, datalog.TypeU64, hashFunc),
	}
}

func builtinPredicates() []Predicate {
	return []Predicate{
		NewPredicate("string_chars",
			[]datalog.ValueType{datalog.TypeString, datalog.TypeUSize, datalog.TypeChar}, 1, stringChars),
		NewPredicate("range_i32",
			[]datalog.ValueType{datalog.TypeI32, datalog.TypeI32, datalog.TypeI32}, 2, rangeOf[int32]),
		NewPredicate("range_i64",
			[]datalog.ValueType{datalog.TypeI64, datalog.TypeI64, datalog.TypeI64}, 2, rangeOf[int64]),
		NewPredicate("range_usize",
			[]datalog.ValueType{datalog.TypeUSize, datalog.TypeUSize, datalog.TypeUSize}, 2, rangeOf[uint]),
	}
}

func absFunc(args []datalog.Value) (datalog.Value, bool) {
	switch v := args[0].(type) {
	case int8:
		return absSigned(v), true
	case int16:
		return absSigned(v), true
	case int32:
		return absSigned(v), true
	case int64:
		return absSigned(v), true
	case float32:
		return absSigned(v), true
	case float64:
		return absSigned(v), true
	case uint8, uint16, uint32, uint64, uint:
		return v, true
	}
	return nil, false
}

func absSigned[N int8 | int16 | int32 | int64 | float32 | float64](n N) N {
	if n < 0 {
		return -n
	}
	return n
}

// extremum returns the larger (sign 1) or smaller (sign -1) of two values
// of the same type
func extremum(sign int) func(args []datalog.Value) (datalog.Value, bool) {
	return func(args []datalog.Value) (datalog.Value, bool) {
		c, err := datalog.CompareValues(args[0], args[1])
		if err != nil {
			return nil, false
		}
		if c*sign >= 0 {
			return args[0], true
		}
		return args[1], true
	}
}

func stringLength(args []datalog.Value) (datalog.Value, bool) {
	s, ok := args[0].(string)
	if !ok {
		return nil, false
	}
	return uint(len(s)), true
}

func stringConcat(args []datalog.Value) (datalog.Value, bool) {
	a, ok := args[0].(string)
	if !ok {
		return nil, false
	}
	b, ok := args[1].(string)
	if !ok {
		return nil, false
	}
	return a + b, true
}

func mapString(fn func(string) string) func(args []datalog.Value) (datalog.Value, bool) {
	return func(args []datalog.Value) (datalog.Value, bool) {
		s, ok := args[0].(string)
		if !ok {
			return nil, false
		}
		return fn(s), true
	}
}

func stringCharAt(args []datalog.Value) (datalog.Value, bool) {
	s, ok := args[0].(string)
	if !ok {
		return nil, false
	}
	i, ok := args[1].(uint)
	if !ok {
		return nil, false
	}
	runes := []rune(s)
	if i >= uint(len(runes)) {
		return nil, false
	}
	return datalog.Char(runes[i]), true
}

// substring takes the characters in [begin, end)
func substring(args []datalog.Value) (datalog.Value, bool) {
	s, ok := args[0].(string)
	if !ok {
		return nil, false
	}
	begin, ok := args[1].(uint)
	if !ok {
		return nil, false
	}
	end, ok := args[2].(uint)
	if !ok {
		return nil, false
	}
	runes := []rune(s)
	if begin > end || end > uint(len(runes)) {
		return nil, false
	}
	return string(runes[begin:end]), true
}

func hashFunc(args []datalog.Value) (datalog.Value, bool) {
	if _, ok := datalog.TypeOf(args[0]); !ok {
		return nil, false
	}
	return datalog.NewTupleKeyFull(datalog.Tuple{args[0]}).Hash(), true
}

func stringChars(bounded []datalog.Value) []PredicateResult {
	s, ok := bounded[0].(string)
	if !ok {
		return nil
	}
	results := make([]PredicateResult, 0, utf8.RuneCountInString(s))
	i := uint(0)
	for _, r := range s {
		results = append(results, PredicateResult{Values: datalog.Tuple{i, datalog.Char(r)}})
		i++
	}
	return results
}

// rangeOf yields every i with from <= i < to
func rangeOf[N int32 | int64 | uint](bounded []datalog.Value) []PredicateResult {
	from, ok := bounded[0].(N)
	if !ok {
		return nil
	}
	to, ok := bounded[1].(N)
	if !ok || to <= from {
		return nil
	}
	results := make([]PredicateResult, 0, int(to-from))
	for i := from; i < to; i++ {
		results = append(results, PredicateResult{Values: datalog.Tuple{i}})
	}
	return results
}
