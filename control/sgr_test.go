// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"testing"
)

func TestParseLinePlain(t *testing.T) {
	t.Parallel()

	cells := ParseLine("ab ")
	if len(cells) != 3 {
		t.Fatalf("got %d cells, want 3", len(cells))
	}
	for index, want := range []string{"a", "b", " "} {
		if cells[index].Data != want {
			t.Errorf("cell %d = %q, want %q", index, cells[index].Data, want)
		}
		if cells[index].Pack() != defaultCell.Pack() {
			t.Errorf("cell %d attributes = %#x, want default", index, cells[index].Pack())
		}
	}
}

func TestParseLineEmpty(t *testing.T) {
	t.Parallel()

	if cells := ParseLine(""); len(cells) != 0 {
		t.Fatalf("got %d cells from an empty line", len(cells))
	}
	if cells := ParseLine("\x1b[0m"); len(cells) != 0 {
		t.Fatalf("got %d cells from a bare reset", len(cells))
	}
}

func TestParseLineStyles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want Cell
	}{
		{"basic foreground", "\x1b[31mx", Cell{Data: "x", Foreground: 1, Background: ColourDefault}},
		{"basic background", "\x1b[44mx", Cell{Data: "x", Foreground: ColourDefault, Background: 4}},
		{"bold and underline", "\x1b[1;4mx", Cell{Data: "x", Foreground: ColourDefault, Background: ColourDefault,
			Attributes: AttributeBright | AttributeUnderscore}},
		{"separate sequences accumulate", "\x1b[1m\x1b[32m\x1b[7mx", Cell{Data: "x", Foreground: 2, Background: ColourDefault,
			Attributes: AttributeBright | AttributeReverse}},
		{"reset clears", "\x1b[1;31m\x1b[0mx", defaultCellWith("x")},
		{"empty parameters reset", "\x1b[1;31m\x1b[mx", defaultCellWith("x")},
		{"default colours", "\x1b[31;42m\x1b[39;49mx", defaultCellWith("x")},
		{"bright colours", "\x1b[91;102mx", Cell{Data: "x", Foreground: 91, Background: 102}},
		{"256 foreground", "\x1b[38;5;208mx", Cell{Data: "x", Foreground: 208, Background: ColourDefault,
			Flags: FlagForeground256}},
		{"256 background colon form", "\x1b[48:5:17mx", Cell{Data: "x", Foreground: ColourDefault, Background: 17,
			Flags: FlagBackground256}},
		{"256 then basic clears flag", "\x1b[38;5;208m\x1b[33mx", Cell{Data: "x", Foreground: 3, Background: ColourDefault}},
		{"truecolor maps to cube", "\x1b[38;2;255;0;0mx", Cell{Data: "x", Foreground: 196, Background: ColourDefault,
			Flags: FlagForeground256}},
		{"truecolor grey", "\x1b[48;2;128;128;128mx", Cell{Data: "x", Foreground: ColourDefault, Background: 243,
			Flags: FlagBackground256}},
		{"parameters after extended colour", "\x1b[38;5;1;1mx", Cell{Data: "x", Foreground: 1, Background: ColourDefault,
			Attributes: AttributeBright, Flags: FlagForeground256}},
		{"attribute off codes", "\x1b[1;2;3;4;5;7;8m\x1b[22;23;24;25;27;28mx", defaultCellWith("x")},
		{"non-SGR sequences ignored", "\x1b[2K\x1b]0;title\x07\x1b[31mx", Cell{Data: "x", Foreground: 1, Background: ColourDefault}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cells := ParseLine(tt.line)
			if len(cells) != 1 {
				t.Fatalf("got %d cells, want 1: %+v", len(cells), cells)
			}
			if cells[0] != tt.want {
				t.Fatalf("cell = %+v, want %+v", cells[0], tt.want)
			}
		})
	}
}

func TestParseLineWideCharacter(t *testing.T) {
	t.Parallel()

	cells := ParseLine("\x1b[32m世a")
	if len(cells) != 3 {
		t.Fatalf("got %d cells, want 3 (wide, padding, narrow): %+v", len(cells), cells)
	}
	if cells[0].Data != "世" || cells[0].Flags&FlagPadding != 0 {
		t.Errorf("wide cell = %+v", cells[0])
	}
	if cells[1].Data != "" || cells[1].Flags&FlagPadding == 0 || cells[1].Foreground != 2 {
		t.Errorf("padding cell = %+v", cells[1])
	}
	if cells[2].Data != "a" {
		t.Errorf("narrow cell = %+v", cells[2])
	}
}

func TestRGBToPalette(t *testing.T) {
	t.Parallel()

	tests := []struct {
		red, green, blue int
		want             int
	}{
		{0, 0, 0, 16},
		{255, 255, 255, 231},
		{0, 0, 255, 21},
		{95, 135, 175, 67},
		{128, 128, 128, 243},
	}
	for _, tt := range tests {
		if got := rgbToPalette(tt.red, tt.green, tt.blue); got != tt.want {
			t.Errorf("rgbToPalette(%d, %d, %d) = %d, want %d", tt.red, tt.green, tt.blue, got, tt.want)
		}
	}
}

func defaultCellWith(data string) Cell {
	cell := defaultCell
	cell.Data = data
	return cell
}
