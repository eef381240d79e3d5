// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if !strings.HasPrefix(info, Version+" (") {
		t.Errorf("Info() = %q, want prefix %q", info, Version+" (")
	}
	if !strings.Contains(info, GitCommit) {
		t.Errorf("Info() = %q, missing commit %q", info, GitCommit)
	}
}

func TestFprint(t *testing.T) {
	var buffer bytes.Buffer
	Fprint(&buffer, "termshare-daemon")
	if got, want := buffer.String(), "termshare-daemon "+Info()+"\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
