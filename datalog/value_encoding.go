package datalog

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeValue serializes a value as a type byte followed by its payload.
// Strings and nested tuples are length-prefixed so encodings can be
// concatenated.
func EncodeValue(buf []byte, v Value) ([]byte, error) {
	t, ok := TypeOf(v)
	if !ok {
		return nil, fmt.Errorf("cannot encode value type: %T", v)
	}
	buf = append(buf, byte(t))

	switch val := v.(type) {
	case int8:
		buf = append(buf, byte(val))
	case uint8:
		buf = append(buf, val)
	case int16:
		buf = binary.BigEndian.AppendUint16(buf, uint16(val))
	case uint16:
		buf = binary.BigEndian.AppendUint16(buf, val)
	case int32:
		buf = binary.BigEndian.AppendUint32(buf, uint32(val))
	case uint32:
		buf = binary.BigEndian.AppendUint32(buf, val)
	case Char:
		buf = binary.BigEndian.AppendUint32(buf, uint32(val))
	case int64:
		buf = binary.BigEndian.AppendUint64(buf, uint64(val))
	case uint64:
		buf = binary.BigEndian.AppendUint64(buf, val)
	case uint:
		buf = binary.BigEndian.AppendUint64(buf, uint64(val))
	case float32:
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(val))
	case float64:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(val))
	case bool:
		if val {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case string:
		buf = binary.AppendUvarint(buf, uint64(len(val)))
		buf = append(buf, val...)
	case Tuple:
		return EncodeTuple(buf, val)
	}
	return buf, nil
}

// EncodeTuple serializes a tuple as its arity followed by each value
func EncodeTuple(buf []byte, t Tuple) ([]byte, error) {
	buf = binary.AppendUvarint(buf, uint64(len(t)))
	var err error
	for _, v := range t {
		buf, err = EncodeValue(buf, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DecodeValue deserializes one value and returns the remaining bytes
func DecodeValue(data []byte) (Value, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("empty value encoding")
	}
	vType := ValueType(data[0])
	data = data[1:]

	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("%s value must be %d bytes, got %d", vType, n, len(data))
		}
		return nil
	}

	switch vType {
	case TypeI8, TypeU8, TypeBool:
		if err := need(1); err != nil {
			return nil, nil, err
		}
		b := data[0]
		switch vType {
		case TypeI8:
			return int8(b), data[1:], nil
		case TypeU8:
			return b, data[1:], nil
		}
		return b != 0, data[1:], nil
	case TypeI16, TypeU16:
		if err := need(2); err != nil {
			return nil, nil, err
		}
		u := binary.BigEndian.Uint16(data)
		if vType == TypeI16 {
			return int16(u), data[2:], nil
		}
		return u, data[2:], nil
	case TypeI32, TypeU32, TypeChar, TypeF32:
		if err := need(4); err != nil {
			return nil, nil, err
		}
		u := binary.BigEndian.Uint32(data)
		switch vType {
		case TypeI32:
			return int32(u), data[4:], nil
		case TypeU32:
			return u, data[4:], nil
		case TypeChar:
			return Char(u), data[4:], nil
		}
		return math.Float32frombits(u), data[4:], nil
	case TypeI64, TypeU64, TypeUSize, TypeF64:
		if err := need(8); err != nil {
			return nil, nil, err
		}
		u := binary.BigEndian.Uint64(data)
		switch vType {
		case TypeI64:
			return int64(u), data[8:], nil
		case TypeU64:
			return u, data[8:], nil
		case TypeUSize:
			return uint(u), data[8:], nil
		}
		return math.Float64frombits(u), data[8:], nil
	case TypeString:
		n, read := binary.Uvarint(data)
		if read <= 0 || uint64(len(data)-read) < n {
			return nil, nil, fmt.Errorf("truncated string value")
		}
		data = data[read:]
		return string(data[:n]), data[n:], nil
	case TypeTuple:
		return DecodeTuple(data)
	default:
		return nil, nil, fmt.Errorf("unknown value type: %v", vType)
	}
}

// DecodeTuple deserializes a tuple written by EncodeTuple
func DecodeTuple(data []byte) (Tuple, []byte, error) {
	n, read := binary.Uvarint(data)
	if read <= 0 {
		return nil, nil, fmt.Errorf("truncated tuple arity")
	}
	data = data[read:]
	t := make(Tuple, 0, n)
	for i := uint64(0); i < n; i++ {
		var v Value
		var err error
		v, data, err = DecodeValue(data)
		if err != nil {
			return nil, nil, fmt.Errorf("tuple position %d: %w", i, err)
		}
		t = append(t, v)
	}
	return t, data, nil
}
