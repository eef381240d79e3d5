// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Termshare-daemon shares one tmux session with a remote control server.
// It connects to the server over TCP, announces the session, and then
// answers the server's snapshot, input, resize, and exec-response
// requests against the tmux session until the connection ends or the
// process is signalled.
//
// Configuration is read from the YAML file named by --config or by the
// TERMSHARE_CONFIG environment variable. With control.enabled false the
// daemon makes no connection and idles until signalled.
package main
