// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements the control channel between a terminal
// sharing daemon and its remote coordination server: one TCP connection
// carrying CBOR-encoded command arrays in both directions.
//
// The package is organized around the control data flow:
//
//   - protocol.go: command tags and the protocol version
//   - channel.go: [Dial] and [Channel], the connection and its reactor
//   - dispatch.go: [Dispatcher], routing inbound commands to [Handlers]
//   - snapshot.go: [WriteSnapshot], pane screen serialization
//   - notify.go: [Notifier], the outbound notification API
//   - session.go: [Session] and [Client] state shared by the above
//   - tmux.go: [TmuxHost], the collaborators backed by a tmux session
//   - clients.go: [ClientWatcher], join and left from attached tmux clients
//
// Every outbound message is an array whose first element is an
// [OutboundCommand]; every inbound message is an array whose first
// element is an [InboundCommand]. Unknown inbound commands are logged
// and dropped so newer servers can talk to older daemons.
//
// All state is owned by the goroutine running [Channel.Run]. Code on
// other goroutines reaches it through [Channel.Submit]. Nothing in this
// package exits the process: failures are returned as errors wrapping
// [ErrProtocol], [ErrTransport] or [ErrInternal], and the daemon's main
// function decides what to do with them.
package control
