// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"fmt"
)

// Failure classes. Every error returned by this package wraps exactly
// one of these, alongside the underlying cause, so callers can classify
// with errors.Is and still log the detail.
var (
	// ErrProtocol reports input from the control server that violates
	// the protocol: undecodable bytes, a message too big for the receive
	// buffer, or a known command with the wrong arguments.
	ErrProtocol = errors.New("control protocol violation")

	// ErrTransport reports connection failures: resolve, connect,
	// socket options, read and write errors, and unexpected close.
	ErrTransport = errors.New("control transport failure")

	// ErrInternal reports a broken local invariant, such as a snapshot
	// request with no active session.
	ErrInternal = errors.New("control internal error")
)

// errInvalidArgument is the cause of a protocol violation where an
// argument has the right kind but an impossible value.
var errInvalidArgument = errors.New("invalid argument")

func protocolError(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrProtocol, fmt.Sprintf(format, args...), cause)
}

func transportError(cause error, format string, args ...any) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrTransport, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, fmt.Sprintf(format, args...), cause)
}

func internalError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
