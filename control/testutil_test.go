// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"io"
	"log/slog"
	"testing"

	"github.com/bureau-foundation/termshare/lib/codec"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// decodeAll splits encoded output into its top-level messages.
func decodeAll(t *testing.T, data []byte) []codec.Value {
	t.Helper()
	var messages []codec.Value
	decoder := codec.NewDecoder(len(data)+16, func(message codec.RawMessage) error {
		value, err := codec.Decode(message)
		if err != nil {
			return err
		}
		messages = append(messages, value)
		return nil
	})
	if len(data) == 0 {
		return nil
	}
	copy(decoder.Buffer(), data)
	if err := decoder.Commit(len(data)); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if decoder.Buffered() != 0 {
		t.Fatalf("output has %d trailing bytes of an incomplete message", decoder.Buffered())
	}
	return messages
}

// encodeMessage builds one message with an Encoder.
func encodeMessage(build func(*codec.Encoder)) codec.RawMessage {
	encoder := codec.NewEncoder()
	build(encoder)
	return encoder.Take()
}

// encodeValue encodes a value tree.
func encodeValue(value codec.Value) codec.RawMessage {
	return encodeMessage(func(encoder *codec.Encoder) { encoder.Value(value) })
}

// inbound encodes [tag, arguments...].
func inbound(command InboundCommand, arguments ...codec.Value) codec.RawMessage {
	items := append([]codec.Value{codec.Int(int64(command))}, arguments...)
	return encodeValue(codec.Array(items...))
}

func requireEqual(t *testing.T, got, want codec.Value) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

// fakePane is an in-memory Pane. lines holds history followed by the
// viewport.
type fakePane struct {
	id          int
	cursorX     int
	cursorY     int
	mode        uint32
	historySize int
	lines       [][]Cell

	reads []int
}

func (p *fakePane) ID() int            { return p.id }
func (p *fakePane) Cursor() (int, int) { return p.cursorX, p.cursorY }
func (p *fakePane) Mode() uint32       { return p.mode }
func (p *fakePane) HistorySize() int   { return p.historySize }
func (p *fakePane) Height() int        { return len(p.lines) - p.historySize }

func (p *fakePane) Line(index int) []Cell {
	p.reads = append(p.reads, index)
	return p.lines[index]
}

// textPane builds a fakePane whose lines are plain single-column text
// with default attributes.
func textPane(id, historySize int, lines ...string) *fakePane {
	pane := &fakePane{id: id, historySize: historySize}
	for _, line := range lines {
		pane.lines = append(pane.lines, plainCells(line))
	}
	return pane
}

func plainCells(text string) []Cell {
	cells := make([]Cell, 0, len(text))
	for _, character := range text {
		cell := defaultCell
		cell.Data = string(character)
		cells = append(cells, cell)
	}
	return cells
}

// recorder implements every Handlers collaborator and records calls.
type recorder struct {
	panes      []Pane
	sessionErr error

	keys      []byte
	keyPanes  []int
	flushes   int
	flushErr  error
	sizes     [][2]int
	exits     []int
	messages  []string
	broadcast []codec.RawMessage
	renames   []string
}

func (r *recorder) ActiveSession() ([]Pane, error) {
	if r.sessionErr != nil {
		return nil, r.sessionErr
	}
	return r.panes, nil
}

func (r *recorder) PaneKey(paneID int, key byte) {
	r.keyPanes = append(r.keyPanes, paneID)
	r.keys = append(r.keys, key)
}

func (r *recorder) FlushKeys() error {
	r.flushes++
	return r.flushErr
}

func (r *recorder) RecalculateSizes(width, height int) {
	r.sizes = append(r.sizes, [2]int{width, height})
}

func (r *recorder) ExecResponse(exitCode int, message string) {
	r.exits = append(r.exits, exitCode)
	r.messages = append(r.messages, message)
}

func (r *recorder) Broadcast(message codec.RawMessage) {
	r.broadcast = append(r.broadcast, message)
}

func (r *recorder) SessionRenamed(token string) {
	r.renames = append(r.renames, token)
}

func (r *recorder) handlers() Handlers {
	return Handlers{Sessions: r, Keys: r, Resizer: r, ExecResponses: r, Clients: r, Renames: r}
}

// testSession returns a Session with a fixed identity.
func testSession() *Session {
	return NewSession(SessionConfig{
		Identity: Identity{
			Username:  "alice",
			IPAddress: "192.0.2.10",
			PublicKey: "ssh-ed25519 AAAAkey",
		},
		Token:                 "rwtoken",
		ReadOnlyToken:         "rotoken",
		ClientVersion:         "2.4.0",
		ClientProtocolVersion: 6,
	})
}
