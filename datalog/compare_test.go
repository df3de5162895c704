package datalog

import (
	"errors"
	"testing"
)

func TestCompareValuesSameVariant(t *testing.T) {
	tests := []struct {
		name        string
		left, right Value
		want        int
	}{
		{"i32 less", int32(1), int32(2), -1},
		{"i64 equal", int64(7), int64(7), 0},
		{"usize greater", uint(9), uint(3), 1},
		{"f64", 0.5, 0.25, 1},
		{"string", "apple", "banana", -1},
		{"bool", false, true, -1},
		{"char", Char('b'), Char('a'), 1},
		{"tuple prefix", Tuple{int32(1)}, Tuple{int32(1), int32(2)}, -1},
		{"tuple element", Tuple{int32(1), "b"}, Tuple{int32(1), "a"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareValues(tt.left, tt.right)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CompareValues(%v, %v) = %d, want %d", tt.left, tt.right, got, tt.want)
			}
		})
	}
}

func TestCompareValuesCrossVariant(t *testing.T) {
	pairs := [][2]Value{
		{int32(1), int64(1)},
		{"1", int32(1)},
		{Char('a'), int32('a')},
		{Tuple{int32(1)}, Tuple{"x"}},
	}
	for _, p := range pairs {
		if _, err := CompareValues(p[0], p[1]); !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("CompareValues(%T, %T): expected ErrTypeMismatch, got %v", p[0], p[1], err)
		}
	}
}

func TestValuesEqual(t *testing.T) {
	if !ValuesEqual(int32(3), int32(3)) {
		t.Error("expected equal i32 values")
	}
	if ValuesEqual(int32(3), int64(3)) {
		t.Error("values of different variants must not be equal")
	}
	if !ValuesEqual(Tuple{"a", int32(1)}, Tuple{"a", int32(1)}) {
		t.Error("expected nested tuples to be structurally equal")
	}
	if ValuesEqual(Tuple{"a"}, "a") {
		t.Error("tuple must not equal a scalar")
	}
}

func TestCompareTuplesIsTotal(t *testing.T) {
	a := Tuple{int32(1), "x"}
	b := Tuple{int64(1), "x"}
	if CompareTuples(a, b) == 0 {
		t.Error("tuples with different variants should not order as equal")
	}
	if CompareTuples(a, b) != -CompareTuples(b, a) {
		t.Error("CompareTuples should be antisymmetric")
	}
}
