// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that carry their own exit status.
type ExitCoder interface {
	ExitCode() int
}

// exit is replaced in tests.
var exit = os.Exit

// stderr is replaced in tests.
var stderr io.Writer = os.Stderr

// Fatal writes "error: err" to stderr and exits. The status is taken
// from the first ExitCoder in err's chain, defaulting to 1. Use it in
// main() for errors from run(), where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(stderr, "error: %v\n", err)
	exit(Code(err))
}

// Exit ends the process with status 0 when err is nil and defers to
// Fatal otherwise.
func Exit(err error) {
	if err == nil {
		exit(0)
		return
	}
	Fatal(err)
}

// Code returns the exit status for err: 0 for nil, the code of the
// first ExitCoder in the chain, or 1.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
