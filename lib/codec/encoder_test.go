// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// encode runs write against a fresh Encoder and returns its output.
func encode(write func(encoder *Encoder)) []byte {
	encoder := NewEncoder()
	write(encoder)
	return encoder.Take()
}

func TestEncoderPrimitives(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		write func(encoder *Encoder)
		want  []byte
	}{
		{"zero", func(e *Encoder) { e.Int(0) }, []byte{0x00}},
		{"small positive int", func(e *Encoder) { e.Int(23) }, []byte{0x17}},
		{"one-byte int", func(e *Encoder) { e.Int(24) }, []byte{0x18, 0x18}},
		{"minus one", func(e *Encoder) { e.Int(-1) }, []byte{0x20}},
		{"negative one-byte", func(e *Encoder) { e.Int(-100) }, []byte{0x38, 0x63}},
		{"two-byte uint", func(e *Encoder) { e.Uint(500) }, []byte{0x19, 0x01, 0xf4}},
		{"four-byte uint", func(e *Encoder) { e.Uint(0x78563412) }, []byte{0x1a, 0x78, 0x56, 0x34, 0x12}},
		{"true", func(e *Encoder) { e.Bool(true) }, []byte{0xf5}},
		{"false", func(e *Encoder) { e.Bool(false) }, []byte{0xf4}},
		{"nil", func(e *Encoder) { e.Nil() }, []byte{0xf6}},
		{"string", func(e *Encoder) { e.String("AB") }, []byte{0x62, 'A', 'B'}},
		{"empty string", func(e *Encoder) { e.String("") }, []byte{0x60}},
		{"string or nil empty", func(e *Encoder) { e.StringOrNil("") }, []byte{0xf6}},
		{"string or nil set", func(e *Encoder) { e.StringOrNil("k") }, []byte{0x61, 'k'}},
		{"empty array", func(e *Encoder) { e.BeginArray(0) }, []byte{0x80}},
		{"array head", func(e *Encoder) { e.BeginArray(2); e.Int(1); e.Int(2) }, []byte{0x82, 0x01, 0x02}},
		{"long array head", func(e *Encoder) { e.BeginArray(24) }, []byte{0x98, 0x18}},
		{"raw passthrough", func(e *Encoder) { e.Raw(RawMessage{0x82, 0x01, 0xf5}) }, []byte{0x82, 0x01, 0xf5}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := encode(test.write)
			if !bytes.Equal(got, test.want) {
				t.Errorf("got % x, want % x", got, test.want)
			}
		})
	}
}

func TestEncoderStreamedString(t *testing.T) {
	t.Parallel()
	streamed := encode(func(e *Encoder) {
		fragments := []string{"h", "é", "llo", ""}
		total := 0
		for _, fragment := range fragments {
			total += len(fragment)
		}
		e.StringHeader(total)
		for _, fragment := range fragments {
			e.StringBody(fragment)
		}
	})
	whole := encode(func(e *Encoder) { e.String("héllo") })
	if !bytes.Equal(streamed, whole) {
		t.Errorf("streamed string % x differs from whole string % x", streamed, whole)
	}
}

func TestEncoderLongStringHead(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 300)
	got := encode(func(e *Encoder) { e.String(text) })
	if got[0] != 0x79 || got[1] != 0x01 || got[2] != 0x2c {
		t.Errorf("head: got % x, want 79 01 2c", got[:3])
	}
	if len(got) != 3+300 {
		t.Errorf("length: got %d, want %d", len(got), 303)
	}
}

func TestEncoderTakeDrainsInOrder(t *testing.T) {
	t.Parallel()
	encoder := NewEncoder()
	if encoder.Take() != nil {
		t.Fatal("Take on an empty encoder should return nil")
	}

	encoder.Int(1)
	encoder.Int(2)
	if encoder.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", encoder.Len())
	}
	first := encoder.Take()
	encoder.Int(3)
	second := encoder.Take()

	if !bytes.Equal(first, []byte{0x01, 0x02}) {
		t.Errorf("first Take: got % x", first)
	}
	if !bytes.Equal(second, []byte{0x03}) {
		t.Errorf("second Take: got % x", second)
	}
	if encoder.Len() != 0 {
		t.Errorf("Len after Take: got %d, want 0", encoder.Len())
	}
}

func TestEncoderValueRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value Value
	}{
		{"int", Int(-42)},
		{"uint", Uint(1 << 40)},
		{"bool", Bool(true)},
		{"nil", Nil()},
		{"string", String("pane text")},
		{"binary string", Bytes([]byte{0x00, 0xff, 0x80})},
		{"nested array", Array(Int(1), Array(String("a"), Nil()), Bool(false))},
		{"empty array", Array()},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			data := encode(func(e *Encoder) { e.Value(test.value) })
			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !decoded.Equal(test.value) {
				t.Errorf("round trip: got %s, want %s", decoded, test.value)
			}
		})
	}
}

func TestEncoderRawValueIsVerbatim(t *testing.T) {
	t.Parallel()
	inner := encode(func(e *Encoder) { e.BeginArray(2); e.String("fwd"); e.Int(7) })
	data := encode(func(e *Encoder) { e.Value(Array(Int(1), Raw(inner))) })

	want := append([]byte{0x82, 0x01}, inner...)
	if !bytes.Equal(data, want) {
		t.Errorf("got % x, want % x", data, want)
	}
}
