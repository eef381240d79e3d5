// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Cell colours use tmux's numbering: 0-7 are the ANSI colours, 8 is the
// terminal default, 90-97 and 100-107 are the bright foreground and
// background colours, and any value with the matching 256 flag is an
// index into the 256-colour palette.
const ColourDefault = 8

// Cell attribute bits.
const (
	AttributeBright     uint8 = 0x01
	AttributeDim        uint8 = 0x02
	AttributeUnderscore uint8 = 0x04
	AttributeBlink      uint8 = 0x08
	AttributeReverse    uint8 = 0x10
	AttributeHidden     uint8 = 0x20
	AttributeItalics    uint8 = 0x40
	AttributeCharset    uint8 = 0x80
)

// Cell flag bits.
const (
	FlagForeground256 uint8 = 0x01
	FlagBackground256 uint8 = 0x02
	FlagPadding       uint8 = 0x04
)

// defaultCell is a cell with no styling.
var defaultCell = Cell{Foreground: ColourDefault, Background: ColourDefault}

// ParseLine splits one line of terminal output into cells. SGR escape
// sequences update the style of the cells that follow; all other
// control sequences are dropped. A character wider than one column is
// followed by padding cells so the cell count matches the column count.
func ParseLine(line string) []Cell {
	var cells []Cell
	style := defaultCell

	var state byte
	remaining := line
	for len(remaining) > 0 {
		sequence, width, byteCount, newState := ansi.DecodeSequence(remaining, state, nil)
		state = newState
		if byteCount <= 0 {
			break
		}
		remaining = remaining[byteCount:]

		if width == 0 {
			if parameters, ok := sgrParameters(sequence); ok {
				style = applySGR(style, parameters)
			}
			continue
		}

		cell := style
		cell.Data = sequence
		cells = append(cells, cell)
		for extra := 1; extra < width; extra++ {
			padding := style
			padding.Flags |= FlagPadding
			cells = append(cells, padding)
		}
	}
	return cells
}

// sgrParameters returns the parameter list of a Select Graphic
// Rendition sequence (CSI ... m).
func sgrParameters(sequence string) ([]string, bool) {
	body, ok := strings.CutPrefix(sequence, "\x1b[")
	if !ok {
		return nil, false
	}
	body, ok = strings.CutSuffix(body, "m")
	if !ok {
		return nil, false
	}
	if body != "" && (body[0] < '0' || body[0] > '9') && body[0] != ';' && body[0] != ':' {
		// Private-parameter sequences (CSI > ... m) are not SGR.
		return nil, false
	}
	if body == "" {
		return []string{"0"}, true
	}
	return strings.Split(body, ";"), true
}

// applySGR returns style updated by one SGR parameter list.
func applySGR(style Cell, parameters []string) Cell {
	for index := 0; index < len(parameters); index++ {
		parameter := parameters[index]
		subparameters := strings.Split(parameter, ":")
		code := sgrNumber(subparameters[0])

		switch {
		case code == 0:
			style = defaultCell
		case code == 1:
			style.Attributes |= AttributeBright
		case code == 2:
			style.Attributes |= AttributeDim
		case code == 3:
			style.Attributes |= AttributeItalics
		case code == 4:
			if len(subparameters) > 1 && sgrNumber(subparameters[1]) == 0 {
				style.Attributes &^= AttributeUnderscore
			} else {
				style.Attributes |= AttributeUnderscore
			}
		case code == 5 || code == 6:
			style.Attributes |= AttributeBlink
		case code == 7:
			style.Attributes |= AttributeReverse
		case code == 8:
			style.Attributes |= AttributeHidden
		case code == 22:
			style.Attributes &^= AttributeBright | AttributeDim
		case code == 23:
			style.Attributes &^= AttributeItalics
		case code == 24:
			style.Attributes &^= AttributeUnderscore
		case code == 25:
			style.Attributes &^= AttributeBlink
		case code == 27:
			style.Attributes &^= AttributeReverse
		case code == 28:
			style.Attributes &^= AttributeHidden
		case code >= 30 && code <= 37:
			style.Foreground = uint8(code - 30)
			style.Flags &^= FlagForeground256
		case code == 39:
			style.Foreground = ColourDefault
			style.Flags &^= FlagForeground256
		case code >= 40 && code <= 47:
			style.Background = uint8(code - 40)
			style.Flags &^= FlagBackground256
		case code == 49:
			style.Background = ColourDefault
			style.Flags &^= FlagBackground256
		case code >= 90 && code <= 97, code >= 100 && code <= 107:
			if code < 100 {
				style.Foreground = uint8(code)
				style.Flags &^= FlagForeground256
			} else {
				style.Background = uint8(code)
				style.Flags &^= FlagBackground256
			}
		case code == 38 || code == 48:
			var colour int
			var ok bool
			if len(subparameters) > 1 {
				colour, ok = extendedColour(subparameters[1:], true)
			} else {
				var consumed int
				colour, consumed, ok = extendedColourParameters(parameters[index+1:])
				index += consumed
			}
			if !ok {
				continue
			}
			if code == 38 {
				style.Foreground = uint8(colour)
				style.Flags |= FlagForeground256
			} else {
				style.Background = uint8(colour)
				style.Flags |= FlagBackground256
			}
		}
	}
	return style
}

// extendedColourParameters reads a semicolon-form extended colour
// (5;n or 2;r;g;b) and reports how many parameters it consumed.
func extendedColourParameters(parameters []string) (colour, consumed int, ok bool) {
	if len(parameters) == 0 {
		return 0, 0, false
	}
	switch sgrNumber(parameters[0]) {
	case 5:
		if len(parameters) < 2 {
			return 0, len(parameters), false
		}
		colour, ok = extendedColour(parameters[:2], false)
		return colour, 2, ok
	case 2:
		if len(parameters) < 4 {
			return 0, len(parameters), false
		}
		colour, ok = extendedColour(parameters[:4], false)
		return colour, 4, ok
	}
	return 0, 1, false
}

// extendedColour converts 5,n or 2,r,g,b to a 256-colour index. The
// colon form may carry a colour-space id before the RGB components.
func extendedColour(parts []string, colonForm bool) (int, bool) {
	if len(parts) == 0 {
		return 0, false
	}
	switch sgrNumber(parts[0]) {
	case 5:
		if len(parts) < 2 {
			return 0, false
		}
		index := sgrNumber(parts[1])
		if index < 0 || index > 255 {
			return 0, false
		}
		return index, true
	case 2:
		components := parts[1:]
		if colonForm && len(components) == 4 {
			components = components[1:]
		}
		if len(components) < 3 {
			return 0, false
		}
		return rgbToPalette(sgrNumber(components[0]), sgrNumber(components[1]), sgrNumber(components[2])), true
	}
	return 0, false
}

// rgbToPalette maps a 24-bit colour to the nearest entry of the xterm
// 256-colour palette: the 6x6x6 cube or the grey ramp.
func rgbToPalette(red, green, blue int) int {
	if red == green && green == blue {
		switch {
		case red < 8:
			return 16
		case red > 248:
			return 231
		default:
			return 232 + (red-8)*24/247
		}
	}
	return 16 + 36*cubeLevel(red) + 6*cubeLevel(green) + cubeLevel(blue)
}

func cubeLevel(component int) int {
	switch {
	case component < 48:
		return 0
	case component < 115:
		return 1
	default:
		return min((component-35)/40, 5)
	}
}

// sgrNumber parses one SGR parameter. Empty parameters are zero, as are
// malformed ones.
func sgrNumber(parameter string) int {
	if parameter == "" {
		return 0
	}
	number, err := strconv.Atoi(parameter)
	if err != nil {
		return 0
	}
	return number
}
