// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): smallest integer encoding, no
// indefinite-length items. The same logical value always produces
// identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder used for every inbound byte. Text strings
// are not required to be valid UTF-8: terminal input and pane contents
// are byte strings that happen to be declared as text by some peers.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		UTF8:        cbor.UTF8DecodeInvalid,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// RawMessage is a raw encoded value. It is stored and re-emitted
// byte-for-byte, which is how forwarded messages are relayed without
// being reinterpreted.
type RawMessage = cbor.RawMessage

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for the
// entire contents of data. Used for log lines about messages the
// dispatcher does not understand.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
