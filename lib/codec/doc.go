// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec implements the control channel's wire value format.
//
// Values are a small subset of CBOR (RFC 8949): unsigned and negative
// integers, byte and text strings, definite-length arrays, booleans and
// null. Every array carries its element count and every string its byte
// length up front, and integers use the smallest head that fits (Core
// Deterministic Encoding), so the format is self-describing without
// maps, tags, or indefinite-length items.
//
// The command tags and message shapes match the MessagePack-based
// control protocol of tmate-style servers, but the bytes do not: a peer
// must speak this CBOR encoding, and a MessagePack control server cannot
// talk to this daemon without a translating proxy.
//
// [Encoder] is the write side: a growable, append-only buffer with one
// method per primitive. Strings may be declared with [Encoder.StringHeader]
// and then streamed from several fragments with [Encoder.StringBody],
// which lets a terminal line be written straight from its cells. The
// transport drains the buffer with [Encoder.Take].
//
// [Decoder] is the read side: an incremental parser over a fixed-size
// receive buffer. The transport writes into [Decoder.Buffer] and calls
// [Decoder.Commit]; every complete top-level value is handed to the
// message callback exactly once, in arrival order, no matter how the
// bytes were chunked. The buffer never grows. A partial value that fills
// it is [ErrBufferFull], and malformed bytes are [ErrMalformed]; both
// are permanent, the decoder refuses further input after either.
//
// [Unpacker] walks the elements of one decoded message with typed
// accessors that report [ErrKindMismatch] and [ErrArity]. [RawMessage]
// is an opaque encoded span that can be stored and re-emitted with
// [Encoder.Raw] without being reinterpreted, and [Decode] turns a span
// into a [Value] tree when the structure is needed.
package codec
