// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/bureau-foundation/termshare/lib/codec"
)

// ErrNoActiveSession is returned by a SessionProvider when there is no
// session to snapshot.
var ErrNoActiveSession = errors.New("no active session")

// SessionProvider looks up the panes of the single active session, in
// stable window and pane order.
type SessionProvider interface {
	ActiveSession() ([]Pane, error)
}

// KeySink receives injected input one byte at a time. The pane id is the
// one the control server named.
type KeySink interface {
	PaneKey(paneID int, key byte)
}

// KeyFlusher is implemented by a KeySink that buffers keys. FlushKeys is
// called after the last key of each pane-keys message.
type KeyFlusher interface {
	FlushKeys() error
}

// Resizer applies the viewport size the control server requested.
// Either dimension may be ViewportUnset.
type Resizer interface {
	RecalculateSizes(width, height int)
}

// ExecResponseSink receives the result of a remote exec request.
type ExecResponseSink interface {
	ExecResponse(exitCode int, message string)
}

// ClientBroadcaster relays one encoded value to every attached client.
type ClientBroadcaster interface {
	Broadcast(message codec.RawMessage)
}

// SessionRenamer observes a token replaced by the control server.
type SessionRenamer interface {
	SessionRenamed(token string)
}

// Handlers are the collaborators inbound commands act on. A command
// whose collaborator is nil fails with ErrInternal when it arrives,
// except Renames, which may be nil.
type Handlers struct {
	Sessions      SessionProvider
	Keys          KeySink
	Resizer       Resizer
	ExecResponses ExecResponseSink
	Clients       ClientBroadcaster
	Renames       SessionRenamer
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Session  *Session
	Encoder  *codec.Encoder
	Handlers Handlers
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Dispatcher routes decoded inbound messages to their handlers. It is
// owned by the reactor goroutine.
type Dispatcher struct {
	session  *Session
	encoder  *codec.Encoder
	handlers Handlers
	logger   *slog.Logger
	metrics  *Metrics
}

// NewDispatcher returns a Dispatcher. Session and Encoder are required.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		session:  config.Session,
		encoder:  config.Encoder,
		handlers: config.Handlers,
		logger:   logger,
		metrics:  config.Metrics,
	}
}

type commandHandler func(d *Dispatcher, arguments *codec.Unpacker) error

var commandHandlers = map[InboundCommand]commandHandler{
	CommandDaemonForward:   (*Dispatcher).daemonForward,
	CommandRequestSnapshot: (*Dispatcher).requestSnapshot,
	CommandPaneKeys:        (*Dispatcher).paneKeys,
	CommandResize:          (*Dispatcher).resize,
	CommandExecResponse:    (*Dispatcher).execResponse,
	CommandRenameSession:   (*Dispatcher).renameSession,
}

// Dispatch interprets one complete inbound message. Unknown commands
// are logged and dropped. Any returned error is fatal to the channel.
// Dispatch has the signature of codec.MessageHandler.
func (d *Dispatcher) Dispatch(message codec.RawMessage) error {
	arguments, err := codec.NewUnpacker(message)
	if err != nil {
		return protocolError(err, "inbound message")
	}
	if arguments.Len() == 0 {
		return protocolError(codec.ErrArity, "inbound message is an empty array")
	}
	tag, err := arguments.Raw()
	if err != nil {
		return protocolError(err, "inbound command tag")
	}
	command, known, err := inboundCommand(tag)
	if err != nil {
		return protocolError(err, "inbound command tag")
	}
	handler, ok := commandHandlers[command]
	if !known || !ok {
		d.metrics.unknownCommand()
		d.logger.Info("dropping unknown control command",
			"command", diagnose(tag),
			"message", diagnose(message),
		)
		return nil
	}

	d.metrics.messageReceived(command)
	if err := handler(d, arguments); err != nil {
		if errors.Is(err, ErrProtocol) || errors.Is(err, ErrInternal) {
			return err
		}
		return protocolError(err, "%s", command)
	}
	return nil
}

// inboundCommand reads a command tag. Any integer is a valid tag; one
// outside the int64 range cannot name a known command and reports
// known=false. A tag of another kind is ErrKindMismatch.
func inboundCommand(tag codec.RawMessage) (command InboundCommand, known bool, err error) {
	kind := codec.KindOf(tag)
	if kind != codec.KindUint && kind != codec.KindInt {
		return 0, false, fmt.Errorf("%w: tag is %s, want int", codec.ErrKindMismatch, kind)
	}
	value, err := codec.Decode(tag)
	if err != nil {
		// The message decoded as a whole, so the only failure left for
		// an integer head is a value below math.MinInt64.
		return 0, false, nil
	}
	if value.Kind == codec.KindUint {
		if value.Uint > math.MaxInt64 {
			return 0, false, nil
		}
		return InboundCommand(value.Uint), true, nil
	}
	return InboundCommand(value.Int), true, nil
}

// diagnose renders message for a log line, falling back to hex.
func diagnose(message codec.RawMessage) string {
	notation, err := codec.Diagnose(message)
	if err != nil {
		return fmt.Sprintf("%x", []byte(message))
	}
	return notation
}

func missingHandler(command InboundCommand, collaborator string) error {
	return internalError("%s received with no %s configured", command, collaborator)
}

func (d *Dispatcher) daemonForward(arguments *codec.Unpacker) error {
	if err := arguments.Expect(1); err != nil {
		return err
	}
	value, err := arguments.Raw()
	if err != nil {
		return err
	}
	if d.handlers.Clients == nil {
		return missingHandler(CommandDaemonForward, "client broadcaster")
	}
	d.handlers.Clients.Broadcast(value)
	d.metrics.forwardRelayed()
	return nil
}

// requestSnapshot answers with every pane of the active session, each
// keeping at most max_history_lines of scrollback. A negative limit is a
// protocol violation; it is not reinterpreted as a huge unsigned limit.
func (d *Dispatcher) requestSnapshot(arguments *codec.Unpacker) error {
	if err := arguments.Expect(1); err != nil {
		return err
	}
	maxHistoryLines, err := arguments.Int()
	if err != nil {
		return err
	}
	if maxHistoryLines < 0 {
		return protocolError(errInvalidArgument, "%s: negative history limit %d",
			CommandRequestSnapshot, maxHistoryLines)
	}
	if d.handlers.Sessions == nil {
		return missingHandler(CommandRequestSnapshot, "session provider")
	}

	panes, err := d.handlers.Sessions.ActiveSession()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInternal, CommandRequestSnapshot, err)
	}

	d.encoder.BeginArray(2)
	d.encoder.Int(int64(CommandSnapshot))
	d.encoder.BeginArray(len(panes))
	for _, pane := range panes {
		WriteSnapshot(d.encoder, pane, int(maxHistoryLines))
	}
	d.metrics.messageSent(CommandSnapshot)
	return nil
}

func (d *Dispatcher) paneKeys(arguments *codec.Unpacker) error {
	if err := arguments.Expect(2); err != nil {
		return err
	}
	paneID, err := arguments.Int()
	if err != nil {
		return err
	}
	keys, err := arguments.Text()
	if err != nil {
		return err
	}
	if d.handlers.Keys == nil {
		return missingHandler(CommandPaneKeys, "key sink")
	}

	// The pane id is handed through but the sink decides where keys go;
	// sinks currently deliver to the active pane. Keys end at the first
	// NUL, which tmate-style servers never send as input.
	for index := 0; index < len(keys) && keys[index] != 0; index++ {
		d.handlers.Keys.PaneKey(int(paneID), keys[index])
	}
	if flusher, ok := d.handlers.Keys.(KeyFlusher); ok {
		if err := flusher.FlushKeys(); err != nil {
			d.logger.Warn("delivering pane keys failed", "pane_id", paneID, "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) resize(arguments *codec.Unpacker) error {
	if err := arguments.Expect(2); err != nil {
		return err
	}
	width, err := arguments.Int()
	if err != nil {
		return err
	}
	height, err := arguments.Int()
	if err != nil {
		return err
	}
	if width < ViewportUnset || height < ViewportUnset {
		return protocolError(errInvalidArgument, "%s: invalid size %dx%d", CommandResize, width, height)
	}
	if d.handlers.Resizer == nil {
		return missingHandler(CommandResize, "resizer")
	}

	d.session.SetViewport(int(width), int(height))
	d.handlers.Resizer.RecalculateSizes(int(width), int(height))
	return nil
}

func (d *Dispatcher) execResponse(arguments *codec.Unpacker) error {
	if err := arguments.Expect(2); err != nil {
		return err
	}
	exitCode, err := arguments.Int()
	if err != nil {
		return err
	}
	message, err := arguments.Text()
	if err != nil {
		return err
	}
	if d.handlers.ExecResponses == nil {
		return missingHandler(CommandExecResponse, "exec response sink")
	}
	d.handlers.ExecResponses.ExecResponse(int(exitCode), message)
	return nil
}

func (d *Dispatcher) renameSession(arguments *codec.Unpacker) error {
	if err := arguments.Expect(2); err != nil {
		return err
	}
	token, err := arguments.Text()
	if err != nil {
		return err
	}
	// The read-only token is validated but not applied.
	if _, err := arguments.Text(); err != nil {
		return err
	}
	d.session.SetToken(token)
	d.logger.Info("session token replaced by control server")
	if d.handlers.Renames != nil {
		d.handlers.Renames.SessionRenamed(token)
	}
	return nil
}
