package datalog

import (
	"fmt"
)

// Value represents any value that can be stored in a fact tuple.
// Just like the storage layer, we use interface{} with direct Go types
// instead of a boxed variant.
type Value interface{}

// Valid value types:
// - int8, int16, int32, int64
// - uint8, uint16, uint32, uint64
// - uint (usize)
// - float32, float64
// - bool
// - Char
// - string
// - Tuple (nested)

// Char is a single unicode character. It is a distinct type so that a
// character never compares equal to an int32.
type Char rune

// String returns the character as a string
func (c Char) String() string {
	return string(rune(c))
}

// ValueType identifies the variant of a Value
type ValueType byte

const (
	TypeInvalid ValueType = iota
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeUSize
	TypeF32
	TypeF64
	TypeBool
	TypeChar
	TypeString
	TypeTuple

	// Families. These never describe a concrete value; they appear in
	// relation schemas and foreign signatures to accept a group of types.
	TypeAny
	TypeNumber
	TypeInteger
	TypeFloat
)

var typeNames = map[ValueType]string{
	TypeInvalid: "invalid",
	TypeI8:      "i8",
	TypeI16:     "i16",
	TypeI32:     "i32",
	TypeI64:     "i64",
	TypeU8:      "u8",
	TypeU16:     "u16",
	TypeU32:     "u32",
	TypeU64:     "u64",
	TypeUSize:   "usize",
	TypeF32:     "f32",
	TypeF64:     "f64",
	TypeBool:    "bool",
	TypeChar:    "char",
	TypeString:  "String",
	TypeTuple:   "tuple",
	TypeAny:     "any",
	TypeNumber:  "number",
	TypeInteger: "integer",
	TypeFloat:   "float",
}

func (t ValueType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", byte(t))
}

// ParseValueType maps a type name ("i32", "String", "usize", ...) to its ValueType
func ParseValueType(name string) (ValueType, bool) {
	for t, n := range typeNames {
		if n == name && t != TypeInvalid {
			return t, true
		}
	}
	return TypeInvalid, false
}

// IsFamily reports whether the type is a family rather than a concrete type
func (t ValueType) IsFamily() bool {
	return t >= TypeAny
}

// IsInteger reports whether t is a concrete integer type
func (t ValueType) IsInteger() bool {
	return t >= TypeI8 && t <= TypeUSize
}

// IsFloat reports whether t is a concrete floating point type
func (t ValueType) IsFloat() bool {
	return t == TypeF32 || t == TypeF64
}

// Accepts reports whether a value of concrete type other may be used where
// t is expected. Families accept their members, concrete types only
// themselves.
func (t ValueType) Accepts(other ValueType) bool {
	switch t {
	case TypeAny:
		return other != TypeInvalid
	case TypeNumber:
		return other.IsInteger() || other.IsFloat() || other == TypeNumber || other == TypeInteger || other == TypeFloat
	case TypeInteger:
		return other.IsInteger() || other == TypeInteger
	case TypeFloat:
		return other.IsFloat() || other == TypeFloat
	}
	if other.IsFamily() {
		// A family on the other side is only known loosely; accept when
		// it could contain t.
		return other.Accepts(t)
	}
	return t == other
}

// TypeOf returns the concrete type of a value, or false when v is not a
// valid Value.
func TypeOf(v Value) (ValueType, bool) {
	switch v.(type) {
	case int8:
		return TypeI8, true
	case int16:
		return TypeI16, true
	case int32:
		return TypeI32, true
	case int64:
		return TypeI64, true
	case uint8:
		return TypeU8, true
	case uint16:
		return TypeU16, true
	case uint32:
		return TypeU32, true
	case uint64:
		return TypeU64, true
	case uint:
		return TypeUSize, true
	case float32:
		return TypeF32, true
	case float64:
		return TypeF64, true
	case bool:
		return TypeBool, true
	case Char:
		return TypeChar, true
	case string:
		return TypeString, true
	case Tuple:
		return TypeTuple, true
	}
	return TypeInvalid, false
}

// Helper functions for creating typed values
func I8(i int8) Value        { return i }
func I16(i int16) Value      { return i }
func I32(i int32) Value      { return i }
func I64(i int64) Value      { return i }
func U8(i uint8) Value       { return i }
func U16(i uint16) Value     { return i }
func U32(i uint32) Value     { return i }
func U64(i uint64) Value     { return i }
func USize(i uint) Value     { return i }
func F32(f float32) Value    { return f }
func F64(f float64) Value    { return f }
func Bool(b bool) Value      { return b }
func CharValue(c rune) Value { return Char(c) }
func String(s string) Value  { return s }
