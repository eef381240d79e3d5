// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestUnpackerReadsTypedArguments(t *testing.T) {
	t.Parallel()
	inner := encode(func(e *Encoder) { e.BeginArray(1); e.Bool(true) })
	message := encode(func(e *Encoder) {
		e.BeginArray(4)
		e.Int(-7)
		e.String("keys")
		e.Raw(inner)
		e.Uint(12)
	})

	unpacker, err := NewUnpacker(message)
	if err != nil {
		t.Fatalf("NewUnpacker: %v", err)
	}
	if unpacker.Len() != 4 {
		t.Fatalf("Len: got %d, want 4", unpacker.Len())
	}

	number, err := unpacker.Int()
	if err != nil || number != -7 {
		t.Errorf("Int: got %d, %v", number, err)
	}
	text, err := unpacker.Text()
	if err != nil || text != "keys" {
		t.Errorf("Text: got %q, %v", text, err)
	}
	raw, err := unpacker.Raw()
	if err != nil || !bytes.Equal(raw, inner) {
		t.Errorf("Raw: got % x, %v", raw, err)
	}
	if err := unpacker.Expect(1); err != nil {
		t.Errorf("Expect(1): %v", err)
	}
	unsigned, err := unpacker.Int()
	if err != nil || unsigned != 12 {
		t.Errorf("Int from unsigned encoding: got %d, %v", unsigned, err)
	}
	if _, err := unpacker.Int(); !errors.Is(err, ErrArity) {
		t.Errorf("reading past the end: got %v, want ErrArity", err)
	}
}

func TestUnpackerKindMismatch(t *testing.T) {
	t.Parallel()
	message := encode(func(e *Encoder) {
		e.BeginArray(3)
		e.String("not a number")
		e.Int(5)
		e.Uint(1 << 63)
	})

	unpacker, err := NewUnpacker(message)
	if err != nil {
		t.Fatalf("NewUnpacker: %v", err)
	}
	if _, err := unpacker.Int(); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Int on a string: got %v, want ErrKindMismatch", err)
	}
	if _, err := unpacker.Text(); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Text on an int: got %v, want ErrKindMismatch", err)
	}
	if _, err := unpacker.Int(); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Int above int64 range: got %v, want ErrKindMismatch", err)
	}
}

func TestUnpackerRequiresArray(t *testing.T) {
	t.Parallel()
	_, err := NewUnpacker(encode(func(e *Encoder) { e.Int(3) }))
	if !errors.Is(err, ErrKindMismatch) {
		t.Errorf("got %v, want ErrKindMismatch", err)
	}
}

func TestUnpackerExpect(t *testing.T) {
	t.Parallel()
	unpacker, err := NewUnpacker(encode(func(e *Encoder) { e.BeginArray(2); e.Int(1); e.Int(2) }))
	if err != nil {
		t.Fatalf("NewUnpacker: %v", err)
	}
	if err := unpacker.Expect(1); !errors.Is(err, ErrArity) {
		t.Errorf("Expect(1) with 2 remaining: got %v, want ErrArity", err)
	}
	if err := unpacker.Expect(2); err != nil {
		t.Errorf("Expect(2): %v", err)
	}
	if _, err := unpacker.Int(); err != nil {
		t.Fatalf("Int: %v", err)
	}
	if err := unpacker.Expect(1); err != nil || unpacker.Remaining() != 1 {
		t.Errorf("Expect(1) after one read: %v, %d remaining", err, unpacker.Remaining())
	}
}

func TestUnpackerValue(t *testing.T) {
	t.Parallel()
	unpacker, err := NewUnpacker(encode(func(e *Encoder) {
		e.BeginArray(1)
		e.Value(Array(String("a"), Int(1)))
	}))
	if err != nil {
		t.Fatalf("NewUnpacker: %v", err)
	}
	value, err := unpacker.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if !value.Equal(Array(String("a"), Int(1))) {
		t.Errorf("got %s", value)
	}
}
