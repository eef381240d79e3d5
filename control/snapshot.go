// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"strings"

	"github.com/bureau-foundation/termshare/lib/codec"
)

// Cell is one grid cell of a pane. Data is the cell's UTF-8 text and may
// be several bytes (a combined or wide character) or empty (the padding
// half of a wide character).
type Cell struct {
	Data       string
	Foreground uint8
	Background uint8
	Attributes uint8
	Flags      uint8
}

// Pack returns the cell's attribute word: flags in bits 24-31,
// attributes in 16-23, background in 8-15, foreground in 0-7.
func (c Cell) Pack() uint32 {
	return uint32(c.Flags)<<24 |
		uint32(c.Attributes)<<16 |
		uint32(c.Background)<<8 |
		uint32(c.Foreground)
}

// Pane is a read-only view of one terminal surface. Lines are indexed
// from 0 (the oldest scrollback line) to HistorySize()+Height()-1 (the
// bottom row of the viewport).
type Pane interface {
	ID() int
	Cursor() (x, y int)
	Mode() uint32
	HistorySize() int
	Height() int
	Line(index int) []Cell
}

// Line is one captured row: the concatenated text of its cells and one
// attribute word per cell, in the same order.
type Line struct {
	Text       string
	Attributes []uint32
}

// PaneSnapshot is a point-in-time copy of a pane's retained lines.
type PaneSnapshot struct {
	ID      int
	CursorX int
	CursorY int
	Mode    uint32
	Lines   []Line
}

// retainedLines returns the index of the first line a snapshot keeps and
// the total line count. The whole viewport is always kept, plus at most
// maxHistoryLines of the newest scrollback.
func retainedLines(pane Pane, maxHistoryLines int) (start, total int) {
	if maxHistoryLines < 0 {
		maxHistoryLines = 0
	}
	total = pane.HistorySize() + pane.Height()
	limit := maxHistoryLines + pane.Height()
	if total > limit {
		start = total - limit
	}
	return start, total
}

// CapturePane copies the lines of pane that a snapshot with the given
// history limit retains.
func CapturePane(pane Pane, maxHistoryLines int) PaneSnapshot {
	cursorX, cursorY := pane.Cursor()
	snapshot := PaneSnapshot{
		ID:      pane.ID(),
		CursorX: cursorX,
		CursorY: cursorY,
		Mode:    pane.Mode(),
	}

	start, total := retainedLines(pane, maxHistoryLines)
	snapshot.Lines = make([]Line, 0, total-start)
	for index := start; index < total; index++ {
		cells := pane.Line(index)
		var text strings.Builder
		attributes := make([]uint32, len(cells))
		for position, cell := range cells {
			text.WriteString(cell.Data)
			attributes[position] = cell.Pack()
		}
		snapshot.Lines = append(snapshot.Lines, Line{Text: text.String(), Attributes: attributes})
	}
	return snapshot
}

// Value returns the snapshot in its wire shape:
// [id, [cx, cy], mode, [[text, [attribute...]]...]].
func (s PaneSnapshot) Value() codec.Value {
	lines := make([]codec.Value, len(s.Lines))
	for index, line := range s.Lines {
		attributes := make([]codec.Value, len(line.Attributes))
		for position, attribute := range line.Attributes {
			attributes[position] = codec.Uint(uint64(attribute))
		}
		lines[index] = codec.Array(codec.String(line.Text), codec.Array(attributes...))
	}
	return codec.Array(
		codec.Int(int64(s.ID)),
		codec.Array(codec.Int(int64(s.CursorX)), codec.Int(int64(s.CursorY))),
		codec.Uint(uint64(s.Mode)),
		codec.Array(lines...),
	)
}

// WriteSnapshot encodes pane in the same shape as PaneSnapshot.Value
// without building an intermediate copy. Each line's text is streamed
// cell by cell into a single string.
func WriteSnapshot(encoder *codec.Encoder, pane Pane, maxHistoryLines int) {
	encoder.BeginArray(4)
	encoder.Int(int64(pane.ID()))

	cursorX, cursorY := pane.Cursor()
	encoder.BeginArray(2)
	encoder.Int(int64(cursorX))
	encoder.Int(int64(cursorY))

	encoder.Uint(uint64(pane.Mode()))

	start, total := retainedLines(pane, maxHistoryLines)
	encoder.BeginArray(total - start)
	for index := start; index < total; index++ {
		cells := pane.Line(index)
		encoder.BeginArray(2)

		length := 0
		for _, cell := range cells {
			length += len(cell.Data)
		}
		encoder.StringHeader(length)
		for _, cell := range cells {
			encoder.StringBody(cell.Data)
		}

		encoder.BeginArray(len(cells))
		for _, cell := range cells {
			encoder.Uint(uint64(cell.Pack()))
		}
	}
}
