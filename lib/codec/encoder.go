// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
)

// Encoder appends encoded values to a growable buffer. Encoding never
// fails; the transport collects the output with Take.
//
// Array and string-length heads are written directly because a message
// is built incrementally: BeginArray declares an element count that the
// caller then satisfies with that many further values, and StringHeader
// declares a length that StringBody calls satisfy. Scalars go through
// the CBOR library's deterministic encoder.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	buffer  bytes.Buffer
	scalars *cbor.Encoder
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	encoder := &Encoder{}
	encoder.scalars = encMode.NewEncoder(&encoder.buffer)
	return encoder
}

// BeginArray declares an array of count elements. The next count values
// written become its elements.
func (e *Encoder) BeginArray(count int) {
	e.writeHead(majorArray, uint64(count))
}

// Int writes a signed integer.
func (e *Encoder) Int(v int64) {
	e.scalar(v)
}

// Uint writes an unsigned integer.
func (e *Encoder) Uint(v uint64) {
	e.scalar(v)
}

// Bool writes a boolean.
func (e *Encoder) Bool(v bool) {
	e.scalar(v)
}

// Nil writes nil.
func (e *Encoder) Nil() {
	e.buffer.WriteByte(simpleNull)
}

// String writes a complete length-prefixed string.
func (e *Encoder) String(s string) {
	e.StringHeader(len(s))
	e.buffer.WriteString(s)
}

// StringOrNil writes s, or nil when s is empty. Optional identity
// fields (public keys) use this.
func (e *Encoder) StringOrNil(s string) {
	if s == "" {
		e.Nil()
		return
	}
	e.String(s)
}

// StringHeader declares a string of length bytes. The caller must follow
// it with StringBody calls totalling exactly length bytes before writing
// any other value.
func (e *Encoder) StringHeader(length int) {
	e.writeHead(majorTextString, uint64(length))
}

// StringBody appends fragment to the string most recently declared with
// StringHeader.
func (e *Encoder) StringBody(fragment string) {
	e.buffer.WriteString(fragment)
}

// Raw appends a pre-encoded value verbatim.
func (e *Encoder) Raw(message RawMessage) {
	e.buffer.Write(message)
}

// Value writes a value tree.
func (e *Encoder) Value(v Value) {
	switch v.Kind {
	case KindInt:
		e.Int(v.Int)
	case KindUint:
		e.Uint(v.Uint)
	case KindBool:
		e.Bool(v.Bool)
	case KindString:
		e.StringHeader(len(v.Bytes))
		e.buffer.Write(v.Bytes)
	case KindArray:
		e.BeginArray(len(v.Items))
		for _, item := range v.Items {
			e.Value(item)
		}
	case KindRaw:
		e.Raw(v.Raw)
	default:
		e.Nil()
	}
}

// Len returns the number of encoded bytes not yet taken.
func (e *Encoder) Len() int {
	return e.buffer.Len()
}

// Take returns all pending output and empties the buffer. Returns nil
// when nothing is pending. The returned slice is owned by the caller.
func (e *Encoder) Take() []byte {
	if e.buffer.Len() == 0 {
		return nil
	}
	output := bytes.Clone(e.buffer.Bytes())
	e.buffer.Reset()
	return output
}

// scalar encodes an integer or boolean. These types always encode, so
// an error here is a programming error in the encoder configuration.
func (e *Encoder) scalar(v any) {
	if err := e.scalars.Encode(v); err != nil {
		panic("codec: encoding scalar: " + err.Error())
	}
}

// writeHead writes a CBOR initial byte and argument using the smallest
// form that holds argument.
func (e *Encoder) writeHead(major byte, argument uint64) {
	var head [9]byte
	head[0] = major << 5
	switch {
	case argument < 24:
		head[0] |= byte(argument)
		e.buffer.Write(head[:1])
	case argument <= 0xff:
		head[0] |= 24
		head[1] = byte(argument)
		e.buffer.Write(head[:2])
	case argument <= 0xffff:
		head[0] |= 25
		binary.BigEndian.PutUint16(head[1:3], uint16(argument))
		e.buffer.Write(head[:3])
	case argument <= 0xffffffff:
		head[0] |= 26
		binary.BigEndian.PutUint32(head[1:5], uint32(argument))
		e.buffer.Write(head[:5])
	default:
		head[0] |= 27
		binary.BigEndian.PutUint64(head[1:9], argument)
		e.buffer.Write(head[:9])
	}
}
