// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/termshare/lib/codec"
	"github.com/bureau-foundation/termshare/lib/tmux"
)

// Screen mode bits reported in a pane snapshot. The values follow
// tmux's screen mode flags.
const (
	ModeCursor        uint32 = 0x1
	ModeInsert        uint32 = 0x2
	ModeKeypadCursor  uint32 = 0x4
	ModeKeypad        uint32 = 0x8
	ModeWrap          uint32 = 0x10
	ModeMouseStandard uint32 = 0x20
	ModeMouseButton   uint32 = 0x40
	ModeMouseUTF8     uint32 = 0x100
	ModeMouseSGR      uint32 = 0x200
	ModeMouseAny      uint32 = 0x1000
	ModeOrigin        uint32 = 0x2000
)

// ConnectionOption is the tmux user option holding the join command
// published for the session.
const ConnectionOption = "@termshare_connection"

// TmuxHost serves the inbound command collaborators from one session of
// a tmux server. Local clients attach to tmux directly: forwarded notify
// messages are shown on them with display-message, and the join command
// is kept in the ConnectionOption session option for status lines.
//
// TmuxHost is used from the reactor goroutine only.
type TmuxHost struct {
	server      *tmux.Server
	sessionName string
	logger      *slog.Logger

	pendingKeys        []byte
	connectionTemplate string
}

var (
	_ SessionProvider   = (*TmuxHost)(nil)
	_ KeySink           = (*TmuxHost)(nil)
	_ KeyFlusher        = (*TmuxHost)(nil)
	_ Resizer           = (*TmuxHost)(nil)
	_ ExecResponseSink  = (*TmuxHost)(nil)
	_ ClientBroadcaster = (*TmuxHost)(nil)
	_ SessionRenamer    = (*TmuxHost)(nil)
)

// NewTmuxHost returns a TmuxHost for sessionName on server.
func NewTmuxHost(server *tmux.Server, sessionName string, logger *slog.Logger) *TmuxHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &TmuxHost{
		server:      server,
		sessionName: sessionName,
		logger:      logger,
	}
}

// Handlers returns h as every collaborator of a Dispatcher.
func (h *TmuxHost) Handlers() Handlers {
	return Handlers{
		Sessions:      h,
		Keys:          h,
		Resizer:       h,
		ExecResponses: h,
		Clients:       h,
		Renames:       h,
	}
}

// ActiveSession lists the session's panes in window and pane order.
// Pane content is captured lazily when a snapshot first reads it.
func (h *TmuxHost) ActiveSession() ([]Pane, error) {
	if !h.server.HasSession(h.sessionName) {
		return nil, fmt.Errorf("%w: tmux session %q", ErrNoActiveSession, h.sessionName)
	}
	infos, err := h.server.ListPanes(h.sessionName)
	if err != nil {
		return nil, fmt.Errorf("listing panes of %q: %w", h.sessionName, err)
	}
	panes := make([]Pane, len(infos))
	for index, info := range infos {
		panes[index] = &tmuxPane{info: info, server: h.server, logger: h.logger}
	}
	return panes, nil
}

// PaneKey queues one key. Keys go to the session's active pane when
// FlushKeys runs, whatever paneID says.
func (h *TmuxHost) PaneKey(paneID int, key byte) {
	h.pendingKeys = append(h.pendingKeys, key)
}

// FlushKeys delivers the queued keys.
func (h *TmuxHost) FlushKeys() error {
	if len(h.pendingKeys) == 0 {
		return nil
	}
	keys := h.pendingKeys
	h.pendingKeys = h.pendingKeys[:0]
	return h.server.SendKeysHex(h.sessionName, keys)
}

// RecalculateSizes resizes the session's active window. An unset
// dimension leaves tmux's own sizing alone.
func (h *TmuxHost) RecalculateSizes(width, height int) {
	if width <= 0 || height <= 0 {
		h.logger.Debug("viewport unset, keeping tmux window size", "width", width, "height", height)
		return
	}
	if err := h.server.ResizeWindow(h.sessionName, width, height); err != nil {
		h.logger.Warn("resizing tmux window failed", "width", width, "height", height, "error", err)
	}
}

// ExecResponse logs the result of a remote exec and shows it on any
// attached tmux client.
func (h *TmuxHost) ExecResponse(exitCode int, message string) {
	h.logger.Info("exec response", "exit_code", exitCode, "message", message)
	status := fmt.Sprintf("exec exited with status %d: %s", exitCode, message)
	if err := h.server.DisplayMessage(h.sessionName, status); err != nil {
		h.logger.Debug("displaying exec response failed", "error", err)
	}
}

// Broadcast shows a forwarded notify message on the attached tmux
// clients. Other daemon messages are logged and dropped.
func (h *TmuxHost) Broadcast(message codec.RawMessage) {
	text, ok := notifyText(message)
	if !ok {
		h.logger.Debug("daemon message for local clients", "message", diagnose(message))
		return
	}
	h.logger.Info("control server notice", "message", text)
	if err := h.server.DisplayMessage(h.sessionName, text); err != nil {
		h.logger.Debug("displaying control server notice failed", "error", err)
	}
}

// notifyText returns the text of a [DaemonNotify, text] message.
func notifyText(message codec.RawMessage) (string, bool) {
	arguments, err := codec.NewUnpacker(message)
	if err != nil || arguments.Len() != 2 {
		return "", false
	}
	tag, err := arguments.Int()
	if err != nil || tag != DaemonNotify {
		return "", false
	}
	text, err := arguments.Text()
	if err != nil {
		return "", false
	}
	return text, true
}

// PublishConnection stores the join command for token in the
// ConnectionOption of the session. Later renames republish it with the
// same template.
func (h *TmuxHost) PublishConnection(template, token string) error {
	h.connectionTemplate = template
	return h.publishConnection(token)
}

// SessionRenamed republishes the join command after the control server
// replaced the token.
func (h *TmuxHost) SessionRenamed(token string) {
	if err := h.publishConnection(token); err != nil {
		h.logger.Warn("publishing renamed connection failed", "error", err)
	}
}

func (h *TmuxHost) publishConnection(token string) error {
	if h.connectionTemplate == "" {
		return nil
	}
	return h.server.SetOption(h.sessionName, ConnectionOption, fmt.Sprintf(h.connectionTemplate, token))
}

// tmuxPane is one pane as listed at snapshot time. Lines are captured
// from tmux on first use.
type tmuxPane struct {
	info   tmux.PaneInfo
	server *tmux.Server
	logger *slog.Logger

	captured bool
	from     int // first line index requested from tmux
	lines    []string
	offset   int // pane line index of lines[0]
}

func (p *tmuxPane) ID() int            { return p.info.ID }
func (p *tmuxPane) Cursor() (int, int) { return p.info.CursorX, p.info.CursorY }
func (p *tmuxPane) HistorySize() int   { return p.info.HistorySize }
func (p *tmuxPane) Height() int        { return p.info.Height }

func (p *tmuxPane) Mode() uint32 {
	flags := p.info.Flags
	var mode uint32
	for _, bit := range []struct {
		set  bool
		mode uint32
	}{
		{flags.Cursor, ModeCursor},
		{flags.Insert, ModeInsert},
		{flags.KeypadCursor, ModeKeypadCursor},
		{flags.Keypad, ModeKeypad},
		{flags.Wrap, ModeWrap},
		{flags.MouseStandard, ModeMouseStandard},
		{flags.MouseButton, ModeMouseButton},
		{flags.MouseUTF8, ModeMouseUTF8},
		{flags.MouseSGR, ModeMouseSGR},
		{flags.MouseAny, ModeMouseAny},
		{flags.Origin, ModeOrigin},
	} {
		if bit.set {
			mode |= bit.mode
		}
	}
	return mode
}

func (p *tmuxPane) Line(index int) []Cell {
	if !p.captured || index < p.from {
		p.capture(index)
	}
	relative := index - p.offset
	if relative < 0 || relative >= len(p.lines) {
		return nil
	}
	return ParseLine(p.lines[relative])
}

// capture reads every line from first to the bottom of the viewport.
// The result is aligned on the bottom row, so output that scrolled in
// since the pane was listed shifts history rather than the viewport.
func (p *tmuxPane) capture(first int) {
	p.captured = true
	p.from = first
	historyLines := p.info.HistorySize - first
	lines, err := p.server.CaptureLines(tmux.PaneTarget(p.info.ID), historyLines)
	if err != nil {
		p.logger.Warn("capturing pane failed", "pane_id", p.info.ID, "error", err)
		p.lines = nil
		return
	}
	p.lines = lines
	p.offset = p.info.HistorySize + p.info.Height - len(lines)
}
