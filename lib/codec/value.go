// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// Sentinel errors reported by decoding. Callers classify failures with
// errors.Is; the wrapped message carries the detail.
var (
	// ErrMalformed reports bytes that are not a well-formed value.
	ErrMalformed = errors.New("malformed value")

	// ErrKindMismatch reports a well-formed value of the wrong kind
	// where a specific kind is required.
	ErrKindMismatch = errors.New("value kind mismatch")

	// ErrArity reports an array with the wrong number of elements.
	ErrArity = errors.New("wrong number of elements")

	// ErrBufferFull reports a receive buffer filled by a single value
	// that has not completed. The buffer is never grown.
	ErrBufferFull = errors.New("receive buffer full: message too big")
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindInvalid marks encodings outside the supported subset (maps,
	// tags, floats, undefined).
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindBool
	KindNil
	KindString
	KindArray
	// KindRaw holds a pre-encoded span emitted verbatim.
	KindRaw
)

func (kind Kind) String() string {
	switch kind {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindBool:
		return "bool"
	case KindNil:
		return "nil"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindRaw:
		return "raw"
	default:
		return "invalid"
	}
}

// Value is one decoded or to-be-encoded wire value. Only the field
// matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Int   int64
	Uint  uint64
	Bool  bool
	Bytes []byte
	Items []Value
	Raw   RawMessage
}

// Int returns a signed integer value.
func Int(v int64) Value { return Value{Kind: KindInt, Int: v} }

// Uint returns an unsigned integer value.
func Uint(v uint64) Value { return Value{Kind: KindUint, Uint: v} }

// Bool returns a boolean value.
func Bool(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// Nil returns the nil value.
func Nil() Value { return Value{Kind: KindNil} }

// String returns a string value holding the bytes of s.
func String(s string) Value { return Value{Kind: KindString, Bytes: []byte(s)} }

// Bytes returns a string value holding b.
func Bytes(b []byte) Value { return Value{Kind: KindString, Bytes: b} }

// Array returns an array value of items.
func Array(items ...Value) Value { return Value{Kind: KindArray, Items: items} }

// Raw returns an opaque value that encodes as the bytes of message.
func Raw(message RawMessage) Value { return Value{Kind: KindRaw, Raw: message} }

// Equal reports whether two values are structurally identical. Signed
// and unsigned integers compare by numeric value, because the wire has
// a single encoding for every non-negative integer.
func (v Value) Equal(other Value) bool {
	if v.isInteger() && other.isInteger() {
		return v.compareInteger(other)
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindNil:
		return true
	case KindString:
		return bytes.Equal(v.Bytes, other.Bytes)
	case KindRaw:
		return bytes.Equal(v.Raw, other.Raw)
	case KindArray:
		if len(v.Items) != len(other.Items) {
			return false
		}
		for index := range v.Items {
			if !v.Items[index].Equal(other.Items[index]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) isInteger() bool {
	return v.Kind == KindInt || v.Kind == KindUint
}

func (v Value) compareInteger(other Value) bool {
	switch {
	case v.Kind == KindInt && other.Kind == KindInt:
		return v.Int == other.Int
	case v.Kind == KindUint && other.Kind == KindUint:
		return v.Uint == other.Uint
	case v.Kind == KindInt:
		return v.Int >= 0 && uint64(v.Int) == other.Uint
	default:
		return other.Int >= 0 && uint64(other.Int) == v.Uint
	}
}

// String renders the value for test failures and debug logs.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindUint:
		return fmt.Sprintf("%d", v.Uint)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindNil:
		return "nil"
	case KindString:
		return fmt.Sprintf("%q", v.Bytes)
	case KindRaw:
		return fmt.Sprintf("raw(%x)", []byte(v.Raw))
	case KindArray:
		var buffer bytes.Buffer
		buffer.WriteByte('[')
		for index, item := range v.Items {
			if index > 0 {
				buffer.WriteString(", ")
			}
			buffer.WriteString(item.String())
		}
		buffer.WriteByte(']')
		return buffer.String()
	}
	return "invalid"
}

// CBOR major types and simple values used by the supported subset.
const (
	majorUnsigned   = 0
	majorNegative   = 1
	majorByteString = 2
	majorTextString = 3
	majorArray      = 4

	simpleFalse = 0xf4
	simpleTrue  = 0xf5
	simpleNull  = 0xf6
)

// KindOf reports the kind of the first value encoded in data, looking
// only at its initial byte. Returns KindInvalid for empty input and for
// encodings outside the supported subset.
func KindOf(data []byte) Kind {
	if len(data) == 0 {
		return KindInvalid
	}
	switch data[0] >> 5 {
	case majorUnsigned:
		return KindUint
	case majorNegative:
		return KindInt
	case majorByteString, majorTextString:
		return KindString
	case majorArray:
		return KindArray
	}
	switch data[0] {
	case simpleFalse, simpleTrue:
		return KindBool
	case simpleNull:
		return KindNil
	}
	return KindInvalid
}

// Decode converts one complete encoded value into a Value tree.
// Encodings outside the supported subset are ErrKindMismatch, and input
// that is not exactly one well-formed value is ErrMalformed.
func Decode(data RawMessage) (Value, error) {
	switch KindOf(data) {
	case KindUint:
		var number uint64
		if err := unmarshal(data, &number); err != nil {
			return Value{}, err
		}
		return Uint(number), nil

	case KindInt:
		var number int64
		if err := unmarshal(data, &number); err != nil {
			return Value{}, err
		}
		return Int(number), nil

	case KindBool:
		var boolean bool
		if err := unmarshal(data, &boolean); err != nil {
			return Value{}, err
		}
		return Bool(boolean), nil

	case KindNil:
		if len(data) != 1 {
			return Value{}, fmt.Errorf("%w: %d trailing bytes after nil", ErrMalformed, len(data)-1)
		}
		return Nil(), nil

	case KindString:
		content, err := decodeString(data)
		if err != nil {
			return Value{}, err
		}
		return Bytes(content), nil

	case KindArray:
		var elements []RawMessage
		if err := unmarshal(data, &elements); err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, len(elements))
		for index, element := range elements {
			item, err := Decode(element)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", index, err)
			}
			items = append(items, item)
		}
		return Array(items...), nil

	default:
		if len(data) == 0 {
			return Value{}, fmt.Errorf("%w: empty input", ErrMalformed)
		}
		return Value{}, fmt.Errorf("%w: unsupported initial byte 0x%02x", ErrKindMismatch, data[0])
	}
}

// decodeString returns the content of a byte or text string.
func decodeString(data []byte) ([]byte, error) {
	if data[0]>>5 == majorTextString {
		var text string
		if err := unmarshal(data, &text); err != nil {
			return nil, err
		}
		return []byte(text), nil
	}
	var content []byte
	if err := unmarshal(data, &content); err != nil {
		return nil, err
	}
	return content, nil
}

// decodeInt accepts either integer encoding as long as the value fits
// in an int64.
func decodeInt(data []byte) (int64, error) {
	switch KindOf(data) {
	case KindUint:
		var number uint64
		if err := unmarshal(data, &number); err != nil {
			return 0, err
		}
		if number > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrKindMismatch, number)
		}
		return int64(number), nil
	case KindInt:
		var number int64
		if err := unmarshal(data, &number); err != nil {
			return 0, err
		}
		return number, nil
	}
	return 0, fmt.Errorf("%w: got %s, want int", ErrKindMismatch, KindOf(data))
}

// unmarshal decodes data into target and classifies failures. A value
// that decodes but does not fit the target type (a negative integer
// below int64) is a kind mismatch; everything else is malformed input.
func unmarshal(data []byte, target any) error {
	err := decMode.Unmarshal(data, target)
	if err == nil {
		return nil
	}
	var typeError *cbor.UnmarshalTypeError
	if errors.As(err, &typeError) {
		return fmt.Errorf("%w: %w", ErrKindMismatch, err)
	}
	return fmt.Errorf("%w: %w", ErrMalformed, err)
}
