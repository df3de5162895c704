package datalog

import (
	"math"
)

// TupleKey represents a hashable key for a tuple or subset of tuple values
// It avoids string allocations by directly hashing the underlying data
type TupleKey struct {
	hash   uint64
	values []Value
}

// NewTupleKey creates a key from specific tuple positions
func NewTupleKey(tuple Tuple, indices []int) TupleKey {
	// Special case for single column
	if len(indices) == 1 {
		val := tuple[indices[0]]
		return TupleKey{
			hash:   mix(fnvOffset, hashValue(val)),
			values: []Value{val},
		}
	}

	values := make([]Value, len(indices))
	for i, idx := range indices {
		values[i] = tuple[idx]
	}
	return TupleKey{
		hash:   hashValues(values),
		values: values,
	}
}

// NewTupleKeyFull creates a key from an entire tuple
func NewTupleKeyFull(tuple Tuple) TupleKey {
	// Don't copy - stored tuples are immutable
	return TupleKey{
		hash:   hashValues(tuple),
		values: tuple,
	}
}

// Hash returns the precomputed hash
func (k TupleKey) Hash() uint64 {
	return k.hash
}

// Equal checks if two keys are equal
func (k TupleKey) Equal(other TupleKey) bool {
	if k.hash != other.hash {
		return false
	}
	return tupleValuesEqual(k.values, other.values)
}

const (
	fnvOffset = uint64(14695981039346656037)
	fnvPrime  = uint64(1099511628211)
)

func mix(hash, v uint64) uint64 {
	hash ^= v
	hash *= fnvPrime
	return hash
}

// hashValues computes a hash for a slice of values without string conversion
func hashValues(values []Value) uint64 {
	hash := fnvOffset
	for _, v := range values {
		hash = mix(hash, hashValue(v))
	}
	return hash
}

// hashValue hashes a single value. The variant is folded in so that
// int32(1) and int64(1) land in different buckets.
func hashValue(v Value) uint64 {
	t, _ := TypeOf(v)
	seed := mix(fnvOffset, uint64(t))

	switch val := v.(type) {
	case int8:
		return mix(seed, uint64(val))
	case int16:
		return mix(seed, uint64(val))
	case int32:
		return mix(seed, uint64(val))
	case int64:
		return mix(seed, uint64(val))
	case uint8:
		return mix(seed, uint64(val))
	case uint16:
		return mix(seed, uint64(val))
	case uint32:
		return mix(seed, uint64(val))
	case uint64:
		return mix(seed, val)
	case uint:
		return mix(seed, uint64(val))
	case float32:
		return mix(seed, uint64(math.Float32bits(val)))
	case float64:
		return mix(seed, math.Float64bits(val))
	case bool:
		if val {
			return mix(seed, 1)
		}
		return mix(seed, 0)
	case Char:
		return mix(seed, uint64(val))
	case string:
		return hashString(seed, val)
	case Tuple:
		return mix(seed, hashValues(val))
	}
	return seed
}

// hashString hashes a string without allocation
func hashString(hash uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= fnvPrime
	}
	return hash
}

// TupleKeyMap wraps a simple Go map keyed by hash and handles collisions
// by comparing the key values.
type TupleKeyMap struct {
	m    map[uint64][]mapEntry
	size int
}

type mapEntry struct {
	values []Value     // The actual tuple values for collision checking
	value  interface{} // The stored value
}

// NewTupleKeyMap creates a new TupleKeyMap
func NewTupleKeyMap() *TupleKeyMap {
	return &TupleKeyMap{
		m: make(map[uint64][]mapEntry),
	}
}

// NewTupleKeyMapWithCapacity creates a new TupleKeyMap pre-sized to hold expectedSize entries
func NewTupleKeyMapWithCapacity(expectedSize int) *TupleKeyMap {
	return &TupleKeyMap{
		m: make(map[uint64][]mapEntry, expectedSize),
	}
}

// Put adds or updates a key-value pair
func (m *TupleKeyMap) Put(key TupleKey, value interface{}) {
	entries := m.m[key.hash]

	for i := range entries {
		if tupleValuesEqual(entries[i].values, key.values) {
			entries[i].value = value
			return
		}
	}

	m.m[key.hash] = append(entries, mapEntry{
		values: key.values,
		value:  value,
	})
	m.size++
}

// Get retrieves a value by key
func (m *TupleKeyMap) Get(key TupleKey) (interface{}, bool) {
	entries, ok := m.m[key.hash]
	if !ok {
		return nil, false
	}

	for _, entry := range entries {
		if tupleValuesEqual(entry.values, key.values) {
			return entry.value, true
		}
	}

	return nil, false
}

// Exists checks if a key exists
func (m *TupleKeyMap) Exists(key TupleKey) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of distinct keys
func (m *TupleKeyMap) Len() int {
	return m.size
}
