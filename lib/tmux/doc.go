// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tmux provides a typed interface to tmux servers. termshare
// shares one session of a dedicated tmux server (distinct from the
// user's personal tmux). All operations target a specific server socket;
// there is no default server, and the user's ~/.tmux.conf is never
// loaded unless explicitly requested.
//
// The central type is [Server], which represents a tmux server
// identified by its Unix socket path. All tmux commands go through
// Server, which injects the -S flag automatically. This makes it
// structurally impossible to accidentally target the wrong server or
// forget to specify a socket.
//
// Beyond session lifecycle, Server exposes the operations the control
// channel needs from a pane: [Server.ListPanes] for geometry and mode
// flags, [Server.CaptureLines] for screen content with escape sequences
// preserved, [Server.SendKeysHex] for byte-exact input, and
// [Server.ResizeWindow]. [Server.ListClients] reports the attached
// clients, and [Server.SetOption] stores per-session user options.
package tmux
