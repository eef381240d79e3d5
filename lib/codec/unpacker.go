// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
)

// Unpacker reads the elements of one array-shaped message in order.
// Each accessor consumes one element and fails with ErrArity when none
// remain or ErrKindMismatch when the element has the wrong kind.
type Unpacker struct {
	elements []RawMessage
	position int
}

// NewUnpacker splits message into its array elements. A message that
// is not an array is ErrKindMismatch.
func NewUnpacker(message RawMessage) (*Unpacker, error) {
	if kind := KindOf(message); kind != KindArray {
		return nil, fmt.Errorf("%w: message is %s, want array", ErrKindMismatch, kind)
	}
	var elements []RawMessage
	if err := unmarshal(message, &elements); err != nil {
		return nil, err
	}
	return &Unpacker{elements: elements}, nil
}

// Len returns the total number of elements in the message.
func (u *Unpacker) Len() int {
	return len(u.elements)
}

// Remaining returns the number of elements not yet consumed.
func (u *Unpacker) Remaining() int {
	return len(u.elements) - u.position
}

// Expect fails with ErrArity unless exactly count elements remain.
func (u *Unpacker) Expect(count int) error {
	if remaining := u.Remaining(); remaining != count {
		return fmt.Errorf("%w: %d arguments, want %d", ErrArity, remaining, count)
	}
	return nil
}

// Int consumes a signed or unsigned integer that fits in an int64.
func (u *Unpacker) Int() (int64, error) {
	element, err := u.next()
	if err != nil {
		return 0, err
	}
	number, err := decodeInt(element)
	if err != nil {
		return 0, u.wrap(err)
	}
	return number, nil
}

// Text consumes a byte or text string.
func (u *Unpacker) Text() (string, error) {
	element, err := u.next()
	if err != nil {
		return "", err
	}
	if kind := KindOf(element); kind != KindString {
		return "", u.wrap(fmt.Errorf("%w: got %s, want string", ErrKindMismatch, kind))
	}
	content, err := decodeString(element)
	if err != nil {
		return "", u.wrap(err)
	}
	return string(content), nil
}

// Raw consumes one element of any kind as an opaque span.
func (u *Unpacker) Raw() (RawMessage, error) {
	return u.next()
}

// Value consumes one element and decodes it into a Value tree.
func (u *Unpacker) Value() (Value, error) {
	element, err := u.next()
	if err != nil {
		return Value{}, err
	}
	value, err := Decode(element)
	if err != nil {
		return Value{}, u.wrap(err)
	}
	return value, nil
}

func (u *Unpacker) next() (RawMessage, error) {
	if u.position >= len(u.elements) {
		return nil, fmt.Errorf("%w: element %d of %d", ErrArity, u.position, len(u.elements))
	}
	element := u.elements[u.position]
	u.position++
	return element, nil
}

// wrap annotates err with the index of the element just consumed.
func (u *Unpacker) wrap(err error) error {
	return fmt.Errorf("element %d: %w", u.position-1, err)
}
