// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("coded %d", e.code) }
func (e codedError) ExitCode() int { return e.code }

// capture swaps the exit and stderr hooks for the duration of a test.
// Tests using it must not run in parallel.
func capture(t *testing.T) (*int, *bytes.Buffer) {
	t.Helper()
	status := -1
	var output bytes.Buffer
	originalExit, originalStderr := exit, stderr
	exit = func(code int) { status = code }
	stderr = &output
	t.Cleanup(func() {
		exit, stderr = originalExit, originalStderr
	})
	return &status, &output
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"coded", codedError{code: 3}, 3},
		{"wrapped coded", fmt.Errorf("run: %w", codedError{code: 4}), 4},
	}
	for _, test := range tests {
		if got := Code(test.err); got != test.want {
			t.Errorf("%s: got %d, want %d", test.name, got, test.want)
		}
	}
}

func TestFatalWritesErrorAndExits(t *testing.T) {
	status, output := capture(t)

	Fatal(errors.New("connection to control server closed"))

	if *status != 1 {
		t.Errorf("status: got %d, want 1", *status)
	}
	if !strings.Contains(output.String(), "error: connection to control server closed") {
		t.Errorf("stderr: got %q", output.String())
	}
}

func TestExitNilIsSuccess(t *testing.T) {
	status, output := capture(t)

	Exit(nil)

	if *status != 0 {
		t.Errorf("status: got %d, want 0", *status)
	}
	if output.Len() != 0 {
		t.Errorf("unexpected stderr output %q", output.String())
	}
}
