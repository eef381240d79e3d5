// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import "strconv"

// ProtocolVersion is the control protocol version announced in the
// header message.
const ProtocolVersion = 2

// OutboundCommand tags messages sent to the control server. The values
// are a fixed external contract.
type OutboundCommand int64

const (
	// CommandHeader announces the session:
	// [0, version, ip, pubkey|nil, token, read_only_token,
	// connection_template, client_version, client_protocol_version].
	CommandHeader OutboundCommand = 0

	// CommandDaemonOut relays daemon-originated arguments: [1, [arg...]].
	CommandDaemonOut OutboundCommand = 1

	// CommandSnapshot answers a snapshot request: [2, [pane...]].
	CommandSnapshot OutboundCommand = 2

	// CommandClientJoin announces a local client: [3, id, ip, pubkey|nil, readonly].
	CommandClientJoin OutboundCommand = 3

	// CommandClientLeft announces a departed client: [4, id].
	CommandClientLeft OutboundCommand = 4

	// CommandExec forwards a remote exec request:
	// [5, username, ip, pubkey|nil, command].
	CommandExec OutboundCommand = 5
)

var outboundNames = map[OutboundCommand]string{
	CommandHeader:     "header",
	CommandDaemonOut:  "daemon_out",
	CommandSnapshot:   "snapshot",
	CommandClientJoin: "client_join",
	CommandClientLeft: "client_left",
	CommandExec:       "exec",
}

func (command OutboundCommand) String() string {
	if name, ok := outboundNames[command]; ok {
		return name
	}
	return "outbound_" + strconv.FormatInt(int64(command), 10)
}

// Daemon protocol tags. These name the messages carried inside
// daemon-forward and daemon-out, which the control server relays between
// the daemon and the session's clients.
const (
	// DaemonNotify is [0, message]: show message to the local clients.
	DaemonNotify int64 = 0

	// DaemonFin is [8]: the daemon is finished. The control server
	// closes the connection in response.
	DaemonFin int64 = 8
)

// InboundCommand tags messages received from the control server. The
// values are a fixed external contract.
type InboundCommand int64

const (
	// CommandDaemonForward carries one value for the local clients: [0, value].
	CommandDaemonForward InboundCommand = 0

	// CommandRequestSnapshot asks for pane contents: [1, max_history_lines].
	// A negative max_history_lines is a protocol violation.
	CommandRequestSnapshot InboundCommand = 1

	// CommandPaneKeys injects input: [2, pane_id, keys].
	CommandPaneKeys InboundCommand = 2

	// CommandResize sets the remote viewport: [3, width, height].
	CommandResize InboundCommand = 3

	// CommandExecResponse reports a remote exec result: [4, exit_code, message].
	CommandExecResponse InboundCommand = 4

	// CommandRenameSession replaces the session tokens: [5, token, read_only_token].
	CommandRenameSession InboundCommand = 5
)

var inboundNames = map[InboundCommand]string{
	CommandDaemonForward:   "daemon_forward",
	CommandRequestSnapshot: "request_snapshot",
	CommandPaneKeys:        "pane_keys",
	CommandResize:          "resize",
	CommandExecResponse:    "exec_response",
	CommandRenameSession:   "rename_session",
}

func (command InboundCommand) String() string {
	if name, ok := inboundNames[command]; ok {
		return name
	}
	return "unknown_" + strconv.FormatInt(int64(command), 10)
}
