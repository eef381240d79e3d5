// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process is the single place where termshare binaries end the
// process after an unrecoverable error.
//
// Library packages never exit. They return classified errors (protocol
// violation, transport failure, internal inconsistency) up to main,
// which hands a non-nil result of run() to [Fatal]. This keeps every fatal
// path testable in-process: a test asserts on the returned error rather
// than on an exit status.
package process
