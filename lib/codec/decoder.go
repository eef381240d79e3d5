// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"
	"io"
)

// DefaultReceiveBufferSize is the receive buffer capacity used when a
// caller does not configure one. A single inbound message, including a
// relayed forward message, must fit.
const DefaultReceiveBufferSize = 64 * 1024

// MessageHandler receives one complete top-level value. A non-nil error
// stops decoding permanently and is returned from Commit.
type MessageHandler func(message RawMessage) error

// Decoder reconstructs complete values from arbitrarily chunked input
// held in a fixed-capacity receive buffer.
//
// The caller copies inbound bytes into Buffer and reports how many with
// Commit. Commit hands every complete value to the handler, in order,
// and keeps any trailing partial value for the next Commit.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buffer  []byte
	length  int
	handler MessageHandler
	err     error
}

// NewDecoder returns a Decoder with a receive buffer of capacity bytes.
// Non-positive capacities select DefaultReceiveBufferSize.
func NewDecoder(capacity int, handler MessageHandler) *Decoder {
	if capacity <= 0 {
		capacity = DefaultReceiveBufferSize
	}
	return &Decoder{
		buffer:  make([]byte, capacity),
		handler: handler,
	}
}

// Buffer returns the free region of the receive buffer. Its length is
// the remaining free capacity; it is empty after the decoder has failed.
func (d *Decoder) Buffer() []byte {
	if d.err != nil {
		return nil
	}
	return d.buffer[d.length:]
}

// Capacity returns the fixed size of the receive buffer.
func (d *Decoder) Capacity() int {
	return len(d.buffer)
}

// Buffered returns the number of bytes of incomplete input held.
func (d *Decoder) Buffered() int {
	return d.length
}

// Err returns the error that stopped the decoder, or nil.
func (d *Decoder) Err() error {
	return d.err
}

// Commit records that count bytes were written to the region returned
// by Buffer, then extracts and dispatches every complete value.
//
// Errors are permanent: ErrMalformed for bytes that can never form a
// value, ErrBufferFull when an incomplete value occupies the whole
// buffer, or the first error returned by the handler.
func (d *Decoder) Commit(count int) error {
	if d.err != nil {
		return d.err
	}
	if count < 0 || count > len(d.buffer)-d.length {
		return fmt.Errorf("codec: commit of %d bytes with %d free", count, len(d.buffer)-d.length)
	}
	d.length += count

	consumed := 0
	for consumed < d.length {
		pending := d.buffer[consumed:d.length]
		var message RawMessage
		rest, err := decMode.UnmarshalFirst(pending, &message)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			d.err = fmt.Errorf("%w: %w", ErrMalformed, err)
			return d.err
		}
		consumed += len(pending) - len(rest)
		if err := d.handler(message); err != nil {
			d.err = err
			return err
		}
	}

	copy(d.buffer, d.buffer[consumed:d.length])
	d.length -= consumed

	if d.length == len(d.buffer) {
		d.err = fmt.Errorf("%w (%d bytes)", ErrBufferFull, len(d.buffer))
		return d.err
	}
	return nil
}
