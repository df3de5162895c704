package datalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTypeMismatch is returned when two values of different variants are
// compared. Cross-variant ordering is undefined.
var ErrTypeMismatch = errors.New("type mismatch")

// CompareValues compares two values and returns:
//
//	-1 if left < right
//	 0 if left == right
//	 1 if left > right
//
// Both values must be of the same variant; otherwise ErrTypeMismatch is
// returned. Nested tuples compare lexicographically.
func CompareValues(left, right Value) (int, error) {
	switch l := left.(type) {
	case int8:
		if r, ok := right.(int8); ok {
			return compareOrdered(l, r), nil
		}
	case int16:
		if r, ok := right.(int16); ok {
			return compareOrdered(l, r), nil
		}
	case int32:
		if r, ok := right.(int32); ok {
			return compareOrdered(l, r), nil
		}
	case int64:
		if r, ok := right.(int64); ok {
			return compareOrdered(l, r), nil
		}
	case uint8:
		if r, ok := right.(uint8); ok {
			return compareOrdered(l, r), nil
		}
	case uint16:
		if r, ok := right.(uint16); ok {
			return compareOrdered(l, r), nil
		}
	case uint32:
		if r, ok := right.(uint32); ok {
			return compareOrdered(l, r), nil
		}
	case uint64:
		if r, ok := right.(uint64); ok {
			return compareOrdered(l, r), nil
		}
	case uint:
		if r, ok := right.(uint); ok {
			return compareOrdered(l, r), nil
		}
	case float32:
		if r, ok := right.(float32); ok {
			return compareOrdered(l, r), nil
		}
	case float64:
		if r, ok := right.(float64); ok {
			return compareOrdered(l, r), nil
		}
	case Char:
		if r, ok := right.(Char); ok {
			return compareOrdered(l, r), nil
		}
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r), nil
		}
	case bool:
		if r, ok := right.(bool); ok {
			if !l && r {
				return -1, nil
			} else if l && !r {
				return 1, nil
			}
			return 0, nil
		}
	case Tuple:
		if r, ok := right.(Tuple); ok {
			return compareTuples(l, r)
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrTypeMismatch, left, right)
}

type ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint | ~float32 | ~float64
}

func compareOrdered[N ordered](a, b N) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// compareTuples compares element-wise, shorter tuples first on a tie
func compareTuples(a, b Tuple) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		c, err := CompareValues(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return compareOrdered(len(a), len(b)), nil
}

// CompareTuples orders two tuples lexicographically. Positions with
// incomparable values fall back to ordering by type so that sorting a
// heterogeneous collection stays deterministic.
func CompareTuples(a, b Tuple) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		c, err := CompareValues(a[i], b[i])
		if err != nil {
			ta, _ := TypeOf(a[i])
			tb, _ := TypeOf(b[i])
			c = compareOrdered(ta, tb)
		}
		if c != 0 {
			return c
		}
	}
	return compareOrdered(len(a), len(b))
}

// ValuesEqual checks if two values are equal. Values of different variants
// are never equal.
func ValuesEqual(a, b Value) bool {
	if ta, ok := a.(Tuple); ok {
		tb, ok := b.(Tuple)
		return ok && tupleValuesEqual(ta, tb)
	}
	if _, ok := b.(Tuple); ok {
		return false
	}
	// All remaining variants are comparable Go scalars with distinct
	// dynamic types, so interface equality is exact.
	return a == b
}

// tupleValuesEqual checks if two value slices are equal
func tupleValuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ValuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
