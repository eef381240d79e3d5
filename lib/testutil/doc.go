// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for termshare packages.
//
// [SocketDir] creates a short temporary directory in /tmp for Unix
// domain sockets (tmux server sockets), because sun_path is limited to
// 108 bytes and t.TempDir() paths can exceed it.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) for tests that wait on
// the control channel's goroutines, so individual tests do not need
// direct time.After calls.
//
// [Pipe] returns a connected loopback TCP pair for exercising the
// transport against a real socket.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
